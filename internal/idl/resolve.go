package idl

// resolve runs a second pass over the parsed declarations: every Named
// type reference and every Constant-named bound is resolved against the
// declarations already collected by the first pass.
func resolve(p *Protocol) *ParseError {
	decls := map[string]Decl{}
	consts := map[string]int64{}
	for _, d := range p.Decls {
		decls[d.DeclName()] = d
		if cd, ok := d.(*ConstDecl); ok {
			consts[cd.Name] = cd.Value
		}
	}

	r := &resolver{decls: decls, consts: consts}
	for _, d := range p.Decls {
		if err := r.resolveDecl(d); err != nil {
			return err
		}
	}
	return nil
}

type resolver struct {
	decls  map[string]Decl
	consts map[string]int64
}

func (r *resolver) resolveDecl(d Decl) *ParseError {
	switch v := d.(type) {
	case *ConstDecl:
		return nil
	case *TypedefDecl:
		t, err := r.resolveType(v.Type)
		if err != nil {
			return err
		}
		v.Type = t
		return nil
	case *StructDecl:
		for i := range v.Fields {
			t, err := r.resolveType(v.Fields[i].Type)
			if err != nil {
				return err
			}
			v.Fields[i].Type = t
		}
		return nil
	case *EnumDecl:
		return nil
	case *UnionDecl:
		return r.resolveUnion(v)
	}
	return nil
}

func (r *resolver) resolveType(t Type) (Type, *ParseError) {
	switch v := t.(type) {
	case NamedType:
		d, ok := r.decls[v.Name]
		if !ok {
			return nil, &ParseError{Kind: UndefinedType, Msg: "undefined type", Snippet: v.Name}
		}
		v.Resolved = d
		return v, nil
	case StringType:
		b, err := r.resolveBound(v.Bound)
		if err != nil {
			return nil, err
		}
		v.Bound = b
		return v, nil
	case OpaqueVarType:
		b, err := r.resolveBound(v.Bound)
		if err != nil {
			return nil, err
		}
		v.Bound = b
		return v, nil
	case OpaqueFixedType:
		b, err := r.resolveBound(v.N)
		if err != nil {
			return nil, err
		}
		v.N = b
		return v, nil
	case ArrayType:
		elem, err := r.resolveType(v.Elem)
		if err != nil {
			return nil, err
		}
		v.Elem = elem
		b, err := r.resolveBound(v.N)
		if err != nil {
			return nil, err
		}
		v.N = b
		return v, nil
	case OptionalType:
		elem, err := r.resolveType(v.Elem)
		if err != nil {
			return nil, err
		}
		v.Elem = elem
		return v, nil
	default:
		// PrimitiveType and anything already fully concrete.
		return t, nil
	}
}

func (r *resolver) resolveBound(b Bound) (Bound, *ParseError) {
	if b.Name == "" {
		return b, nil
	}
	v, ok := r.consts[b.Name]
	if !ok {
		return Bound{}, &ParseError{Kind: UndefinedConstant, Msg: "undefined constant bound", Snippet: b.Name}
	}
	b.Literal = v
	return b, nil
}

func (r *resolver) resolveUnion(u *UnionDecl) *ParseError {
	discType, err := r.resolveType(u.DiscType)
	if err != nil {
		return err
	}
	u.DiscType = discType

	var discEnum *EnumDecl
	if nt, ok := discType.(NamedType); ok {
		if e, ok := nt.Resolved.(*EnumDecl); ok {
			discEnum = e
		}
	}

	seenValues := map[int64]bool{}
	for i := range u.Cases {
		c := &u.Cases[i]
		if c.ValueName != "" {
			resolvedValue, ok := lookupCaseValue(c.ValueName, discEnum, r.consts)
			if !ok {
				return &ParseError{Kind: UndefinedConstant, Msg: "undefined case discriminant value", Snippet: c.ValueName}
			}
			c.Value = resolvedValue
		}
		if seenValues[c.Value] {
			return &ParseError{Kind: DuplicateName, Msg: "duplicate union case value"}
		}
		seenValues[c.Value] = true

		if c.Arm != nil {
			t, err := r.resolveType(c.Arm.Type)
			if err != nil {
				return err
			}
			c.Arm.Type = t
		}
	}
	if u.Default != nil {
		t, err := r.resolveType(u.Default.Type)
		if err != nil {
			return err
		}
		u.Default.Type = t
	}
	return nil
}

func lookupCaseValue(name string, discEnum *EnumDecl, consts map[string]int64) (int64, bool) {
	if discEnum != nil {
		for _, v := range discEnum.Variants {
			if v.Name == name {
				return int64(v.Value), true
			}
		}
	}
	if v, ok := consts[name]; ok {
		return v, true
	}
	return 0, false
}
