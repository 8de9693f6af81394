package virtrpc

import (
	"fmt"

	"github.com/jimyag/govirt/internal/xdr"
)

// RpcKind classifies an RpcError so callers can branch on failure class
// with errors.As instead of string matching.
type RpcKind int

const (
	// KindCodec is an XDR encode/decode failure.
	KindCodec RpcKind = iota
	// KindFraming is a packet-framing failure (bad header, oversized
	// length, protocol mismatch).
	KindFraming
	// KindTransport is an I/O failure on the underlying stream.
	KindTransport
	// KindRemote is an error status returned by the libvirt server itself.
	KindRemote
	// KindConnectionClosed is returned for calls made after Close.
	KindConnectionClosed
)

func (k RpcKind) String() string {
	switch k {
	case KindCodec:
		return "Codec"
	case KindFraming:
		return "Framing"
	case KindTransport:
		return "Transport"
	case KindRemote:
		return "Remote"
	case KindConnectionClosed:
		return "ConnectionClosed"
	default:
		return "Unknown"
	}
}

// RpcError is the error type returned at the Call boundary: every fallible
// outcome, whatever subsystem produced it, is collected under this one sum
// type so callers have a single errors.As target.
type RpcError struct {
	Kind   RpcKind
	Msg    string
	Err    error
	Remote *RemoteError // non-nil only when Kind == KindRemote
}

func (e *RpcError) Error() string {
	if e.Remote != nil {
		return fmt.Sprintf("virtrpc: %s: %s", e.Kind, e.Remote.Message)
	}
	if e.Msg == "" {
		return fmt.Sprintf("virtrpc: %s", e.Kind)
	}
	return fmt.Sprintf("virtrpc: %s: %s", e.Kind, e.Msg)
}

func (e *RpcError) Unwrap() error { return e.Err }

func newRpcError(kind RpcKind, format string, args ...interface{}) *RpcError {
	return &RpcError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func wrapRpcError(kind RpcKind, err error, format string, args ...interface{}) *RpcError {
	return &RpcError{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// RemoteError mirrors libvirt's wire error shape: a numeric code, the
// originating error domain, a human-readable message, a severity level,
// and an optional nested cause.
type RemoteError struct {
	Code    uint32
	Domain  uint32
	Message string
	Level   uint32
	Cause   *RemoteError
}

func (e *RemoteError) Error() string {
	return e.Message
}

// decodeRemoteError decodes a StatusError reply payload into a RemoteError,
// recursively decoding the optional nested cause.
func decodeRemoteError(payload []byte) (*RemoteError, error) {
	dec := xdr.NewDecoder(payload)
	e, err := decodeRemoteErrorValue(dec)
	if err != nil {
		return nil, wrapRpcError(KindCodec, err, "decoding remote error")
	}
	return e, nil
}

func decodeRemoteErrorValue(dec *xdr.Decoder) (*RemoteError, error) {
	code, err := dec.DecodeUint32()
	if err != nil {
		return nil, err
	}
	domain, err := dec.DecodeUint32()
	if err != nil {
		return nil, err
	}
	msg, err := dec.DecodeString(0)
	if err != nil {
		return nil, err
	}
	level, err := dec.DecodeUint32()
	if err != nil {
		return nil, err
	}

	e := &RemoteError{Code: code, Domain: domain, Message: msg, Level: level}

	if _, err := dec.DecodeOptional(func() error {
		cause, err := decodeRemoteErrorValue(dec)
		if err != nil {
			return err
		}
		e.Cause = cause
		return nil
	}); err != nil {
		return nil, err
	}
	return e, nil
}

// RemoteCode reports the numeric libvirt error code carried by err, if err
// (or anything it wraps) is a RemoteError.
func RemoteCode(err error) (code uint32, ok bool) {
	var rpcErr *RpcError
	if !asRpcError(err, &rpcErr) {
		return 0, false
	}
	if rpcErr.Remote == nil {
		return 0, false
	}
	return rpcErr.Remote.Code, true
}

// IsNotFound reports whether err is a remote "object not found" error:
// libvirt's VIR_ERR_NO_DOMAIN, VIR_ERR_NO_NETWORK, and VIR_ERR_NO_STORAGE_POOL
// codes, the three a caller most commonly needs to special-case.
func IsNotFound(err error) bool {
	code, ok := RemoteCode(err)
	if !ok {
		return false
	}
	switch code {
	case errNoDomain, errNoNetwork, errNoStoragePool:
		return true
	default:
		return false
	}
}

// libvirt's VIR_ERR_* codes this module special-cases; see
// https://libvirt.org/html/libvirt-virterror.html for the full list this
// was grounded against.
const (
	errOk            = 0
	errNoDomain      = 42
	errNoNetwork     = 43
	errNoStoragePool = 49
)

func asRpcError(err error, target **RpcError) bool {
	for err != nil {
		if e, ok := err.(*RpcError); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
