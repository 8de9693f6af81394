package codegen

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jimyag/govirt/internal/idl"
)

func loadFixtureProtocol(t *testing.T) *idl.Protocol {
	t.Helper()
	b, err := os.ReadFile("../idl/testdata/remote_mini.x")
	require.NoError(t, err)
	proto, err := idl.Parse(string(b))
	require.NoError(t, err)
	return proto
}

func TestEmitIsDeterministic(t *testing.T) {
	proto := loadFixtureProtocol(t)
	a, err := Emit(proto, "remote")
	require.NoError(t, err)
	b, err := Emit(proto, "remote")
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestEmitProducesProcedureStubs(t *testing.T) {
	proto := loadFixtureProtocol(t)
	src, err := Emit(proto, "remote")
	require.NoError(t, err)

	require.Contains(t, src, "package remote")
	require.Contains(t, src, "func (c *Client) ConnectGetVersion(ctx context.Context) (*ConnectGetVersionRet, error)")
	require.Contains(t, src, "func (c *Client) DomainGetId(ctx context.Context, args *DomainGetIdArgs) (*DomainGetIdRet, error)")
	require.Contains(t, src, "func (c *Client) ConnectOpen(ctx context.Context) error")
	require.Contains(t, src, "ProcConnectGetVersion int32 = 57")
}

func TestEmitProducesStructsBeforeDependents(t *testing.T) {
	proto := loadFixtureProtocol(t)
	src, err := Emit(proto, "remote")
	require.NoError(t, err)

	domainIdx := strings.Index(src, "type NonnullDomain struct")
	argsIdx := strings.Index(src, "type DomainGetIdArgs struct")
	require.Greater(t, domainIdx, 0)
	require.Greater(t, argsIdx, 0)
	require.Less(t, domainIdx, argsIdx, "a struct's dependency must be emitted before it")
}

func TestEmitEnumHasMangledVariants(t *testing.T) {
	proto := loadFixtureProtocol(t)
	src, err := Emit(proto, "remote")
	require.NoError(t, err)

	require.Contains(t, src, "type DomainState int32")
	require.Contains(t, src, "DomainStateNostate DomainState = 0")
	require.Contains(t, src, "DomainStateRunning DomainState = 1")
	require.Contains(t, src, "DomainStateShutoff DomainState = 5")
}

func TestEmitUnionHasDiscriminantSwitch(t *testing.T) {
	proto := loadFixtureProtocol(t)
	src, err := Emit(proto, "remote")
	require.NoError(t, err)

	require.Contains(t, src, "type TypedParamValue struct")
	require.Contains(t, src, "func (v *TypedParamValue) MarshalXDR(enc *xdr.Encoder) error")
	require.Contains(t, src, "func (v *TypedParamValue) UnmarshalXDR(dec *xdr.Decoder) error")
}

// A union keyed on an enum discriminant must encode/decode the
// discriminant as int32, not call a nonexistent Marshal/UnmarshalXDR
// method on the enum's int32-backed Go type.
func TestEmitUnionWithEnumDiscriminant(t *testing.T) {
	proto := loadFixtureProtocol(t)
	src, err := Emit(proto, "remote")
	require.NoError(t, err)

	require.Contains(t, src, "type DomainStateUnion struct")
	require.Contains(t, src, "enc.EncodeInt32(int32(v.State))")
	require.Contains(t, src, "v.State = DomainState(val)")
}

// A union's MarshalXDR must reject a value whose selected arm pointer is
// nil instead of dereferencing it, since the discriminant otherwise
// promises a payload the value doesn't actually carry.
func TestEmitUnionEncodeGuardsNilArm(t *testing.T) {
	proto := loadFixtureProtocol(t)
	src, err := Emit(proto, "remote")
	require.NoError(t, err)

	require.Contains(t, src, "xdr.DiscriminantMismatch")
	require.Contains(t, src, "if v.Reason == nil {")
}

func TestEmitTypedefAliasesUnderlyingType(t *testing.T) {
	proto := loadFixtureProtocol(t)
	src, err := Emit(proto, "remote")
	require.NoError(t, err)

	require.Contains(t, src, "type Uuid = xdr.FixedOpaque16")
	require.Contains(t, src, "type NonnullString = string")
}
