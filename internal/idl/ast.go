// Package idl parses libvirt's XDR interface-definition (.x) text into a
// typed AST. It does not itself generate code; see package codegen for
// that.
package idl

// Protocol is the top-level parse result: every declaration, in source
// order, plus a pointer at the procedure enumeration if one was found.
type Protocol struct {
	Decls     []Decl
	Procedure *EnumDecl // the "*_procedure" enum, or nil
}

// Decl is implemented by every top-level declaration kind.
type Decl interface {
	DeclName() string
	declTag()
}

// ConstDecl is `const NAME = LIT;`.
type ConstDecl struct {
	Name  string
	Value int64
	Line  int
}

func (d *ConstDecl) DeclName() string { return d.Name }
func (*ConstDecl) declTag()           {}

// TypedefDecl is `typedef TYPE NAME (ARRAY_SPEC)?;`.
type TypedefDecl struct {
	Name string
	Type Type
	Line int
}

func (d *TypedefDecl) DeclName() string { return d.Name }
func (*TypedefDecl) declTag()           {}

// Field is one member of a Struct or one arm of a Union case.
type Field struct {
	Name string
	Type Type
}

// StructDecl is `struct NAME { FIELD; ... };`.
type StructDecl struct {
	Name   string
	Fields []Field
	Line   int
}

func (d *StructDecl) DeclName() string { return d.Name }
func (*StructDecl) declTag()           {}

// EnumVariant is one `NAME = LIT` pair inside an enum.
type EnumVariant struct {
	Name  string
	Value int32
}

// EnumDecl is `enum NAME { VARIANT = LIT, ... };`.
type EnumDecl struct {
	Name     string
	Variants []EnumVariant
	Line     int
}

func (d *EnumDecl) DeclName() string { return d.Name }
func (*EnumDecl) declTag()           {}

// UnionCase is one `case LIT: ARM;` inside a union. Arm is nil for a void
// case. ValueName is set instead of Value when the case selector names an
// enum variant or constant rather than a literal; resolve fills in Value
// from it during the second pass.
type UnionCase struct {
	Value     int64
	ValueName string
	Arm       *Field
}

// UnionDecl is `union NAME switch (DISC_TYPE DISC_NAME) { case LIT: ARM;
// ... default: ARM; };`.
type UnionDecl struct {
	Name     string
	DiscName string
	DiscType Type
	Cases    []UnionCase
	Default  *Field // nil if there is no default arm; a void default arm has a nil Type
	Line     int
}

func (d *UnionDecl) DeclName() string { return d.Name }
func (*UnionDecl) declTag()           {}

// PrimKind enumerates XDR's scalar base types.
type PrimKind int

const (
	KindInt PrimKind = iota
	KindUnsignedInt
	KindHyper
	KindUnsignedHyper
	KindFloat
	KindDouble
	KindBool
)

// Type is implemented by every type expression that can appear in a
// field, typedef, array element, or union discriminant/arm position.
type Type interface {
	typeTag()
}

// PrimitiveType is one of int/unsigned int/hyper/unsigned hyper/float/
// double/bool.
type PrimitiveType struct{ Kind PrimKind }

func (PrimitiveType) typeTag() {}

// Bound is an array/string/opaque length bound: either a numeric literal
// or a reference to a previously declared Constant, resolved in the
// second pass.
type Bound struct {
	Name    string // non-empty if this bound names a Constant
	Literal int64  // valid once resolved (or immediately, if Name == "")
	Present bool   // false means "unbounded" (e.g. string<>)
}

// StringType is `string<N?>`.
type StringType struct{ Bound Bound }

func (StringType) typeTag() {}

// OpaqueVarType is `opaque<N?>`, variable-length bounded opaque data.
type OpaqueVarType struct{ Bound Bound }

func (OpaqueVarType) typeTag() {}

// OpaqueFixedType is `opaque[N]`, exactly N bytes.
type OpaqueFixedType struct{ N Bound }

func (OpaqueFixedType) typeTag() {}

// ArrayType is `T<N?>` (Fixed == false) or `T[N]` (Fixed == true).
type ArrayType struct {
	Elem  Type
	N     Bound
	Fixed bool
}

func (ArrayType) typeTag() {}

// OptionalType is `T*`.
type OptionalType struct{ Elem Type }

func (OptionalType) typeTag() {}

// NamedType is a reference to an earlier Struct/Enum/Union/Typedef
// declaration, resolved in the second pass.
type NamedType struct {
	Name     string
	Resolved Decl
}

func (NamedType) typeTag() {}
