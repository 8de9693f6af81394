package codegen

import (
	"fmt"
	"strings"

	"github.com/jimyag/govirt/internal/idl"
)

// Emit walks p and renders one Go source file implementing every
// declaration and procedure stub it contains. Emit is pure: the same
// Protocol value
// always produces the same byte-for-byte output, since declaration order
// is fixed by topological sort with source order as the tie-break rather
// than by anything keyed on map iteration.
func Emit(p *idl.Protocol, packageName string) (string, error) {
	e := &emitter{pkg: packageName, protocol: p, decls: map[string]idl.Decl{}}
	for _, d := range p.Decls {
		e.decls[d.DeclName()] = d
	}

	ordered, err := e.topoSort()
	if err != nil {
		return "", err
	}

	var body strings.Builder
	body.WriteString(preamble)
	for _, d := range ordered {
		switch v := d.(type) {
		case *idl.ConstDecl:
			e.emitConst(&body, v)
		case *idl.TypedefDecl:
			e.emitTypedef(&body, v)
		case *idl.EnumDecl:
			if v == p.Procedure {
				continue // emitted as procedure IDs below, not a Go type
			}
			e.emitEnum(&body, v)
		case *idl.StructDecl:
			e.emitStruct(&body, v)
		case *idl.UnionDecl:
			e.emitUnion(&body, v)
		}
	}
	if p.Procedure != nil {
		e.emitProcedures(&body, p.Procedure)
	}
	bodyText := body.String()

	var b strings.Builder
	fmt.Fprintf(&b, "// Code generated by lvgen. DO NOT EDIT.\n\npackage %s\n\n", packageName)
	b.WriteString("import (\n\t\"context\"\n")
	if strings.Contains(bodyText, "fmt.") {
		b.WriteString("\t\"fmt\"\n")
	}
	if strings.Contains(bodyText, "xdr.") {
		b.WriteString("\n\t\"github.com/jimyag/govirt/internal/xdr\"\n")
	}
	b.WriteString(")\n\n")
	b.WriteString(bodyText)

	return b.String(), nil
}

const preamble = `// caller is the minimal surface a generated stub needs from the
// connection core: send proc's marshaled arguments, get back the
// marshaled reply.
type caller interface {
	Call(ctx context.Context, proc int32, args []byte) ([]byte, error)
}

// Client adapts any caller into the generated procedure stubs below.
type Client struct {
	caller caller
}

// NewClient wraps c so the generated procedure methods below become
// available on the returned Client.
func NewClient(c caller) *Client {
	return &Client{caller: c}
}

`

type emitter struct {
	pkg      string
	protocol *idl.Protocol
	decls    map[string]idl.Decl
}

// topoSort orders decls so every dependency is emitted before its
// dependents, breaking ties by original source order.
func (e *emitter) topoSort() ([]idl.Decl, error) {
	visited := map[string]bool{}
	visiting := map[string]bool{}
	var out []idl.Decl

	var visit func(d idl.Decl) error
	visit = func(d idl.Decl) error {
		name := d.DeclName()
		if visited[name] {
			return nil
		}
		if visiting[name] {
			return fmt.Errorf("codegen: dependency cycle at %s", name)
		}
		visiting[name] = true
		for _, dep := range declDeps(d) {
			if err := visit(dep); err != nil {
				return err
			}
		}
		visiting[name] = false
		visited[name] = true
		out = append(out, d)
		return nil
	}

	for _, d := range e.protocol.Decls {
		if err := visit(d); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// declDeps returns the other declarations d directly refers to, as
// resolved Decl pointers (resolve already attached these during parsing).
func declDeps(d idl.Decl) []idl.Decl {
	var out []idl.Decl
	add := func(t idl.Type) {
		out = append(out, typeDeps(t)...)
	}
	switch v := d.(type) {
	case *idl.TypedefDecl:
		add(v.Type)
	case *idl.StructDecl:
		for _, f := range v.Fields {
			add(f.Type)
		}
	case *idl.UnionDecl:
		add(v.DiscType)
		for _, c := range v.Cases {
			if c.Arm != nil {
				add(c.Arm.Type)
			}
		}
		if v.Default != nil {
			add(v.Default.Type)
		}
	}
	return out
}

func typeDeps(t idl.Type) []idl.Decl {
	switch v := t.(type) {
	case idl.NamedType:
		if v.Resolved != nil {
			return []idl.Decl{v.Resolved}
		}
	case idl.ArrayType:
		return typeDeps(v.Elem)
	case idl.OptionalType:
		return typeDeps(v.Elem)
	}
	return nil
}

func (e *emitter) emitConst(b *strings.Builder, c *idl.ConstDecl) {
	fmt.Fprintf(b, "const %s = %d\n\n", MangleTypeName(c.Name), c.Value)
}

func (e *emitter) emitTypedef(b *strings.Builder, t *idl.TypedefDecl) {
	fmt.Fprintf(b, "type %s = %s\n\n", MangleTypeName(t.Name), goType(t.Type))
}

func (e *emitter) emitEnum(b *strings.Builder, en *idl.EnumDecl) {
	goName := MangleTypeName(en.Name)
	names := make([]string, len(en.Variants))
	for i, v := range en.Variants {
		names[i] = v.Name
	}
	mangled := MangleEnumVariants(names)

	fmt.Fprintf(b, "type %s int32\n\nconst (\n", goName)
	for i, v := range en.Variants {
		fmt.Fprintf(b, "\t%s%s %s = %d\n", goName, mangled[i], goName, v.Value)
	}
	b.WriteString(")\n\n")

	fmt.Fprintf(b, "func (v %s) String() string {\n\tswitch v {\n", goName)
	for i := range en.Variants {
		fmt.Fprintf(b, "\tcase %s%s:\n\t\treturn %q\n", goName, mangled[i], mangled[i])
	}
	b.WriteString("\tdefault:\n\t\treturn fmt.Sprintf(\"" + goName + "(%d)\", int32(v))\n\t}\n}\n\n")
}

func (e *emitter) emitStruct(b *strings.Builder, s *idl.StructDecl) {
	goName := MangleTypeName(s.Name)
	fmt.Fprintf(b, "type %s struct {\n", goName)
	for _, f := range s.Fields {
		fmt.Fprintf(b, "\t%s %s\n", MangleFieldName(f.Name), goType(f.Type))
	}
	b.WriteString("}\n\n")

	fmt.Fprintf(b, "func (v *%s) MarshalXDR(enc *xdr.Encoder) error {\n", goName)
	for _, f := range s.Fields {
		emitFieldEncode(b, "v."+MangleFieldName(f.Name), f.Type)
	}
	b.WriteString("\treturn nil\n}\n\n")

	fmt.Fprintf(b, "func (v *%s) UnmarshalXDR(dec *xdr.Decoder) error {\n", goName)
	for _, f := range s.Fields {
		emitFieldDecode(b, "v."+MangleFieldName(f.Name), f.Type)
	}
	b.WriteString("\treturn nil\n}\n\n")
}

// emitUnion renders a union as a struct carrying the discriminant plus one
// optional pointer field per case arm (nil when that arm isn't selected),
// representing XDR's tagged unions as plain structs rather than an
// interface hierarchy.
func (e *emitter) emitUnion(b *strings.Builder, u *idl.UnionDecl) {
	goName := MangleTypeName(u.Name)
	discGoType := goType(u.DiscType)

	fmt.Fprintf(b, "type %s struct {\n\t%s %s\n", goName, MangleFieldName(u.DiscName), discGoType)
	for i, c := range u.Cases {
		if c.Arm == nil {
			continue
		}
		fmt.Fprintf(b, "\t%s *%s\n", caseFieldName(u, i, c), goType(c.Arm.Type))
	}
	if u.Default != nil && u.Default.Type != nil {
		fmt.Fprintf(b, "\tDefault *%s\n", goType(u.Default.Type))
	}
	b.WriteString("}\n\n")

	discField := "v." + MangleFieldName(u.DiscName)
	fmt.Fprintf(b, "func (v *%s) MarshalXDR(enc *xdr.Encoder) error {\n", goName)
	emitFieldEncode(b, discField, u.DiscType)
	fmt.Fprintf(b, "\tswitch %s {\n", discField)
	for i, c := range u.Cases {
		if c.Arm == nil {
			continue
		}
		fieldName := caseFieldName(u, i, c)
		fmt.Fprintf(b, "\tcase %d:\n\t\tif v.%s == nil {\n\t\t\treturn &xdr.Error{Kind: xdr.DiscriminantMismatch, Msg: fmt.Sprintf(\"%s: discriminant %%v selects %s but that arm is nil\", %s)}\n\t\t}\n", c.Value, fieldName, goName, fieldName, discField)
		emitFieldEncode(b, "(*v."+fieldName+")", c.Arm.Type)
	}
	b.WriteString("\t}\n\treturn nil\n}\n\n")

	fmt.Fprintf(b, "func (v *%s) UnmarshalXDR(dec *xdr.Decoder) error {\n", goName)
	emitFieldDecode(b, discField, u.DiscType)
	fmt.Fprintf(b, "\tswitch %s {\n", discField)
	for i, c := range u.Cases {
		if c.Arm == nil {
			fmt.Fprintf(b, "\tcase %d:\n", c.Value)
			continue
		}
		armType := goType(c.Arm.Type)
		fieldName := caseFieldName(u, i, c)
		fmt.Fprintf(b, "\tcase %d:\n\t\tvar arm %s\n", c.Value, armType)
		emitFieldDecode(b, "arm", c.Arm.Type)
		fmt.Fprintf(b, "\t\tv.%s = &arm\n", fieldName)
	}
	if u.Default == nil {
		fmt.Fprintf(b, "\tdefault:\n\t\treturn &xdr.Error{Kind: xdr.InvalidUnion, Msg: fmt.Sprintf(\"%s: no arm for discriminant %%v\", %s)}\n", goName, discField)
	}
	b.WriteString("\t}\n\treturn nil\n}\n\n")
}

func caseFieldName(u *idl.UnionDecl, i int, c idl.UnionCase) string {
	if c.Arm.Name != "" {
		return MangleFieldName(c.Arm.Name)
	}
	return fmt.Sprintf("Case%d", i)
}

// emitProcedures renders one Proc<Name> constant and one Client method per
// procedure variant; each method's signature takes or returns only those of
// its paired <base>_args/<base>_ret structs that exist among decls.
func (e *emitter) emitProcedures(b *strings.Builder, procEnum *idl.EnumDecl) {
	variants := procEnum.Variants

	b.WriteString("const (\n")
	for _, v := range variants {
		fmt.Fprintf(b, "\tProc%s int32 = %d\n", MangleProcedureMethodName(v.Name), v.Value)
	}
	b.WriteString(")\n\n")

	for _, v := range variants {
		e.emitProcedureStub(b, v)
	}
}

func (e *emitter) emitProcedureStub(b *strings.Builder, v idl.EnumVariant) {
	base := MangleProcedureBase(v.Name)
	method := MangleProcedureMethodName(v.Name)
	procConst := "Proc" + method

	argsDecl, hasArgs := e.decls[base+"_args"].(*idl.StructDecl)
	retDecl, hasRet := e.decls[base+"_ret"].(*idl.StructDecl)

	argsGoType := ""
	if hasArgs {
		argsGoType = MangleTypeName(argsDecl.Name)
	}
	retGoType := ""
	if hasRet {
		retGoType = MangleTypeName(retDecl.Name)
	}

	switch {
	case hasArgs && hasRet:
		fmt.Fprintf(b, "func (c *Client) %s(ctx context.Context, args *%s) (*%s, error) {\n", method, argsGoType, retGoType)
		b.WriteString("\tenc := xdr.NewEncoder()\n\tif err := args.MarshalXDR(enc); err != nil {\n\t\treturn nil, err\n\t}\n")
		fmt.Fprintf(b, "\trespBytes, err := c.caller.Call(ctx, %s, enc.Bytes())\n", procConst)
		b.WriteString("\tif err != nil {\n\t\treturn nil, err\n\t}\n")
		fmt.Fprintf(b, "\tvar ret %s\n\tif err := ret.UnmarshalXDR(xdr.NewDecoder(respBytes)); err != nil {\n\t\treturn nil, err\n\t}\n\treturn &ret, nil\n}\n\n", retGoType)
	case hasArgs && !hasRet:
		fmt.Fprintf(b, "func (c *Client) %s(ctx context.Context, args *%s) error {\n", method, argsGoType)
		b.WriteString("\tenc := xdr.NewEncoder()\n\tif err := args.MarshalXDR(enc); err != nil {\n\t\treturn err\n\t}\n")
		fmt.Fprintf(b, "\t_, err := c.caller.Call(ctx, %s, enc.Bytes())\n\treturn err\n}\n\n", procConst)
	case !hasArgs && hasRet:
		fmt.Fprintf(b, "func (c *Client) %s(ctx context.Context) (*%s, error) {\n", method, retGoType)
		fmt.Fprintf(b, "\trespBytes, err := c.caller.Call(ctx, %s, nil)\n", procConst)
		b.WriteString("\tif err != nil {\n\t\treturn nil, err\n\t}\n")
		fmt.Fprintf(b, "\tvar ret %s\n\tif err := ret.UnmarshalXDR(xdr.NewDecoder(respBytes)); err != nil {\n\t\treturn nil, err\n\t}\n\treturn &ret, nil\n}\n\n", retGoType)
	default:
		fmt.Fprintf(b, "func (c *Client) %s(ctx context.Context) error {\n", method)
		fmt.Fprintf(b, "\t_, err := c.caller.Call(ctx, %s, nil)\n\treturn err\n}\n\n", procConst)
	}
}

// goType maps an idl.Type to the Go type used for struct fields, typedef
// targets, and union arms.
func goType(t idl.Type) string {
	switch v := t.(type) {
	case idl.PrimitiveType:
		switch v.Kind {
		case idl.KindInt:
			return "int32"
		case idl.KindUnsignedInt:
			return "uint32"
		case idl.KindHyper:
			return "int64"
		case idl.KindUnsignedHyper:
			return "uint64"
		case idl.KindFloat:
			return "float32"
		case idl.KindDouble:
			return "float64"
		case idl.KindBool:
			return "bool"
		}
	case idl.StringType:
		return "string"
	case idl.OpaqueVarType:
		return "[]byte"
	case idl.OpaqueFixedType:
		if v.N.Literal == 16 {
			return "xdr.FixedOpaque16"
		}
		return fmt.Sprintf("[%d]byte", v.N.Literal)
	case idl.ArrayType:
		elem := goType(v.Elem)
		if v.Fixed {
			return fmt.Sprintf("[%d]%s", v.N.Literal, elem)
		}
		return "[]" + elem
	case idl.OptionalType:
		return "*" + goType(v.Elem)
	case idl.NamedType:
		if td, ok := v.Resolved.(*idl.TypedefDecl); ok {
			return goType(td.Type)
		}
		return MangleTypeName(v.Name)
	}
	return "interface{}"
}

func emitFieldEncode(b *strings.Builder, expr string, t idl.Type) {
	switch v := t.(type) {
	case idl.PrimitiveType:
		switch v.Kind {
		case idl.KindInt:
			fmt.Fprintf(b, "\tenc.EncodeInt32(%s)\n", expr)
		case idl.KindUnsignedInt:
			fmt.Fprintf(b, "\tenc.EncodeUint32(%s)\n", expr)
		case idl.KindHyper:
			fmt.Fprintf(b, "\tenc.EncodeInt64(%s)\n", expr)
		case idl.KindUnsignedHyper:
			fmt.Fprintf(b, "\tenc.EncodeUint64(%s)\n", expr)
		case idl.KindFloat:
			fmt.Fprintf(b, "\tenc.EncodeFloat32(%s)\n", expr)
		case idl.KindDouble:
			fmt.Fprintf(b, "\tenc.EncodeFloat64(%s)\n", expr)
		case idl.KindBool:
			fmt.Fprintf(b, "\tenc.EncodeBool(%s)\n", expr)
		}
	case idl.StringType:
		fmt.Fprintf(b, "\tif err := enc.EncodeString(%s, %d); err != nil {\n\t\treturn err\n\t}\n", expr, boundOf(v.Bound))
	case idl.OpaqueVarType:
		fmt.Fprintf(b, "\tif err := enc.EncodeVarOpaque(%s, %d); err != nil {\n\t\treturn err\n\t}\n", expr, boundOf(v.Bound))
	case idl.OpaqueFixedType:
		if v.N.Literal == 16 {
			fmt.Fprintf(b, "\tenc.EncodeFixedOpaque16(%s)\n", expr)
		} else {
			fmt.Fprintf(b, "\tenc.EncodeFixedOpaque(%s[:])\n", expr)
		}
	case idl.ArrayType:
		elemVar := "e"
		if !v.Fixed {
			fmt.Fprintf(b, "\tif err := enc.EncodeArrayLen(len(%s), %d); err != nil {\n\t\treturn err\n\t}\n", expr, boundOf(v.N))
		}
		fmt.Fprintf(b, "\tfor _, %s := range %s {\n", elemVar, expr)
		emitFieldEncode(b, elemVar, v.Elem)
		b.WriteString("\t}\n")
	case idl.OptionalType:
		fmt.Fprintf(b, "\tif err := enc.EncodeOptional(%s != nil, func() error {\n", expr)
		emitFieldEncode(b, "(*"+expr+")", v.Elem)
		b.WriteString("\t\treturn nil\n\t}); err != nil {\n\t\treturn err\n\t}\n")
	case idl.NamedType:
		if td, ok := v.Resolved.(*idl.TypedefDecl); ok {
			emitFieldEncode(b, expr, td.Type)
			return
		}
		if _, ok := v.Resolved.(*idl.EnumDecl); ok {
			fmt.Fprintf(b, "\tenc.EncodeInt32(int32(%s))\n", expr)
			return
		}
		fmt.Fprintf(b, "\tif err := (&%s).MarshalXDR(enc); err != nil {\n\t\treturn err\n\t}\n", addrExpr(expr))
	}
}

func emitFieldDecode(b *strings.Builder, expr string, t idl.Type) {
	switch v := t.(type) {
	case idl.PrimitiveType:
		switch v.Kind {
		case idl.KindInt:
			fmt.Fprintf(b, "\t{\n\t\tval, err := dec.DecodeInt32()\n\t\tif err != nil {\n\t\t\treturn err\n\t\t}\n\t\t%s = val\n\t}\n", expr)
		case idl.KindUnsignedInt:
			fmt.Fprintf(b, "\t{\n\t\tval, err := dec.DecodeUint32()\n\t\tif err != nil {\n\t\t\treturn err\n\t\t}\n\t\t%s = val\n\t}\n", expr)
		case idl.KindHyper:
			fmt.Fprintf(b, "\t{\n\t\tval, err := dec.DecodeInt64()\n\t\tif err != nil {\n\t\t\treturn err\n\t\t}\n\t\t%s = val\n\t}\n", expr)
		case idl.KindUnsignedHyper:
			fmt.Fprintf(b, "\t{\n\t\tval, err := dec.DecodeUint64()\n\t\tif err != nil {\n\t\t\treturn err\n\t\t}\n\t\t%s = val\n\t}\n", expr)
		case idl.KindFloat:
			fmt.Fprintf(b, "\t{\n\t\tval, err := dec.DecodeFloat32()\n\t\tif err != nil {\n\t\t\treturn err\n\t\t}\n\t\t%s = val\n\t}\n", expr)
		case idl.KindDouble:
			fmt.Fprintf(b, "\t{\n\t\tval, err := dec.DecodeFloat64()\n\t\tif err != nil {\n\t\t\treturn err\n\t\t}\n\t\t%s = val\n\t}\n", expr)
		case idl.KindBool:
			fmt.Fprintf(b, "\t{\n\t\tval, err := dec.DecodeBool()\n\t\tif err != nil {\n\t\t\treturn err\n\t\t}\n\t\t%s = val\n\t}\n", expr)
		}
	case idl.StringType:
		fmt.Fprintf(b, "\t{\n\t\tval, err := dec.DecodeString(%d)\n\t\tif err != nil {\n\t\t\treturn err\n\t\t}\n\t\t%s = val\n\t}\n", boundOf(v.Bound), expr)
	case idl.OpaqueVarType:
		fmt.Fprintf(b, "\t{\n\t\tval, err := dec.DecodeVarOpaque(%d)\n\t\tif err != nil {\n\t\t\treturn err\n\t\t}\n\t\t%s = val\n\t}\n", boundOf(v.Bound), expr)
	case idl.OpaqueFixedType:
		if v.N.Literal == 16 {
			fmt.Fprintf(b, "\t{\n\t\tval, err := dec.DecodeFixedOpaque16()\n\t\tif err != nil {\n\t\t\treturn err\n\t\t}\n\t\t%s = val\n\t}\n", expr)
		} else {
			fmt.Fprintf(b, "\t{\n\t\tval, err := dec.DecodeFixedOpaque(%d)\n\t\tif err != nil {\n\t\t\treturn err\n\t\t}\n\t\tcopy(%s[:], val)\n\t}\n", v.N.Literal, expr)
		}
	case idl.ArrayType:
		elemGoType := goType(v.Elem)
		if v.Fixed {
			fmt.Fprintf(b, "\tfor i := range %s {\n", expr)
			emitFieldDecode(b, expr+"[i]", v.Elem)
			b.WriteString("\t}\n")
		} else {
			fmt.Fprintf(b, "\t{\n\t\tn, err := dec.DecodeArrayLen(%d)\n\t\tif err != nil {\n\t\t\treturn err\n\t\t}\n\t\t%s = make([]%s, n)\n\t\tfor i := 0; i < n; i++ {\n", boundOf(v.N), expr, elemGoType)
			emitFieldDecode(b, expr+"[i]", v.Elem)
			b.WriteString("\t\t}\n\t}\n")
		}
	case idl.OptionalType:
		elemGoType := goType(v.Elem)
		fmt.Fprintf(b, "\t{\n\t\tvar elem %s\n\t\tpresent, err := dec.DecodeOptional(func() error {\n", elemGoType)
		emitFieldDecode(b, "elem", v.Elem)
		b.WriteString("\t\t\treturn nil\n\t\t})\n\t\tif err != nil {\n\t\t\treturn err\n\t\t}\n\t\tif present {\n")
		fmt.Fprintf(b, "\t\t\t%s = &elem\n\t\t}\n\t}\n", expr)
	case idl.NamedType:
		if td, ok := v.Resolved.(*idl.TypedefDecl); ok {
			emitFieldDecode(b, expr, td.Type)
			return
		}
		if en, ok := v.Resolved.(*idl.EnumDecl); ok {
			typeName := MangleTypeName(v.Name)
			values := make([]string, len(en.Variants))
			for i, ev := range en.Variants {
				values[i] = fmt.Sprint(ev.Value)
			}
			fmt.Fprintf(b, "\t{\n\t\tval, err := dec.DecodeInt32()\n\t\tif err != nil {\n\t\t\treturn err\n\t\t}\n\t\tswitch val {\n\t\tcase %s:\n\t\tdefault:\n\t\t\treturn &xdr.Error{Kind: xdr.InvalidEnum, Msg: fmt.Sprintf(\"%s: undeclared value %%d\", val)}\n\t\t}\n\t\t%s = %s(val)\n\t}\n", strings.Join(values, ", "), typeName, expr, typeName)
			return
		}
		fmt.Fprintf(b, "\tif err := (&%s).UnmarshalXDR(dec); err != nil {\n\t\treturn err\n\t}\n", addrExpr(expr))
	}
}

// addrExpr strips one layer of "(*x)" so &(*x) doesn't get emitted as
// a no-op double-indirection; anything else is used as-is.
func addrExpr(expr string) string {
	if strings.HasPrefix(expr, "(*") && strings.HasSuffix(expr, ")") {
		return expr[2 : len(expr)-1]
	}
	return expr
}

func boundOf(b idl.Bound) uint32 {
	if !b.Present {
		return 0
	}
	return uint32(b.Literal)
}
