package idl

import "strings"

// Parse tokenizes and parses .x interface-definition text into a
// Protocol, running the type-resolution pass before returning.
func Parse(text string) (*Protocol, error) {
	toks, lerr := tokenizeAll(text)
	if lerr != nil {
		return nil, lerr
	}

	p := &parser{toks: toks}
	var decls []Decl
	seen := map[string]bool{}

	for p.cur().kind != tokEOF {
		decl, err := p.parseDecl()
		if err != nil {
			return nil, err
		}
		if seen[decl.DeclName()] {
			return nil, &ParseError{
				Kind: DuplicateName, Line: p.lastLine, Column: p.lastCol,
				Snippet: decl.DeclName(), Msg: "declaration name already used",
			}
		}
		seen[decl.DeclName()] = true
		decls = append(decls, decl)
	}

	proto := &Protocol{Decls: decls}
	for _, d := range decls {
		if e, ok := d.(*EnumDecl); ok && strings.HasSuffix(strings.ToLower(e.Name), "_procedure") {
			proto.Procedure = e
		}
	}

	if err := resolve(proto); err != nil {
		return nil, err
	}
	return proto, nil
}

func tokenizeAll(text string) ([]token, *ParseError) {
	l := newLexer(text)
	var toks []token
	for {
		t, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.kind == tokEOF {
			return toks, nil
		}
	}
}

type parser struct {
	toks             []token
	pos              int
	lastLine, lastCol int
}

func (p *parser) cur() token {
	return p.toks[p.pos]
}

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	p.lastLine, p.lastCol = t.line, t.column
	return t
}

func (p *parser) unexpected(t token, want string) *ParseError {
	snippet := t.text
	if t.kind == tokEOF {
		snippet = "<eof>"
	}
	return &ParseError{
		Kind: UnexpectedToken, Line: t.line, Column: t.column,
		Snippet: snippet, Msg: "expected " + want,
	}
}

func (p *parser) expectKind(k tokenKind, want string) (token, *ParseError) {
	t := p.cur()
	if t.kind != k {
		return token{}, p.unexpected(t, want)
	}
	return p.advance(), nil
}

func (p *parser) expectIdentText(text string) *ParseError {
	t := p.cur()
	if t.kind != tokIdent || t.text != text {
		return p.unexpected(t, "'"+text+"'")
	}
	p.advance()
	return nil
}

func (p *parser) atIdent(text string) bool {
	t := p.cur()
	return t.kind == tokIdent && t.text == text
}

// parseDecl dispatches on the leading keyword of a top-level declaration.
func (p *parser) parseDecl() (Decl, *ParseError) {
	t := p.cur()
	if t.kind != tokIdent {
		return nil, p.unexpected(t, "a declaration")
	}
	switch t.text {
	case "const":
		return p.parseConst()
	case "typedef":
		return p.parseTypedef()
	case "struct":
		return p.parseStruct()
	case "enum":
		return p.parseEnum()
	case "union":
		return p.parseUnion()
	default:
		return nil, p.unexpected(t, "const/typedef/struct/enum/union")
	}
}

func (p *parser) parseConst() (*ConstDecl, *ParseError) {
	line := p.cur().line
	if err := p.expectIdentText("const"); err != nil {
		return nil, err
	}
	name, err := p.expectKind(tokIdent, "constant name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(tokEquals, "'='"); err != nil {
		return nil, err
	}
	num, err := p.expectKind(tokNumber, "a number")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(tokSemicolon, "';'"); err != nil {
		return nil, err
	}
	return &ConstDecl{Name: name.text, Value: num.num, Line: line}, nil
}

func (p *parser) parseTypedef() (*TypedefDecl, *ParseError) {
	line := p.cur().line
	if err := p.expectIdentText("typedef"); err != nil {
		return nil, err
	}
	name, typ, err := p.parseNamedTypeWithSuffix()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(tokSemicolon, "';'"); err != nil {
		return nil, err
	}
	return &TypedefDecl{Name: name, Type: typ, Line: line}, nil
}

func (p *parser) parseStruct() (*StructDecl, *ParseError) {
	line := p.cur().line
	if err := p.expectIdentText("struct"); err != nil {
		return nil, err
	}
	name, err := p.expectKind(tokIdent, "struct name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(tokLBrace, "'{'"); err != nil {
		return nil, err
	}
	var fields []Field
	for p.cur().kind != tokRBrace {
		fname, ftype, ferr := p.parseNamedTypeWithSuffix()
		if ferr != nil {
			return nil, ferr
		}
		if _, err := p.expectKind(tokSemicolon, "';'"); err != nil {
			return nil, err
		}
		fields = append(fields, Field{Name: fname, Type: ftype})
	}
	if _, err := p.expectKind(tokRBrace, "'}'"); err != nil {
		return nil, err
	}
	if _, err := p.expectKind(tokSemicolon, "';'"); err != nil {
		return nil, err
	}
	return &StructDecl{Name: name.text, Fields: fields, Line: line}, nil
}

func (p *parser) parseEnum() (*EnumDecl, *ParseError) {
	line := p.cur().line
	if err := p.expectIdentText("enum"); err != nil {
		return nil, err
	}
	name, err := p.expectKind(tokIdent, "enum name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(tokLBrace, "'{'"); err != nil {
		return nil, err
	}

	var variants []EnumVariant
	seenNames := map[string]bool{}
	seenValues := map[int32]bool{}
	for {
		vname, err := p.expectKind(tokIdent, "variant name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expectKind(tokEquals, "'='"); err != nil {
			return nil, err
		}
		vnum, err := p.expectKind(tokNumber, "a number")
		if err != nil {
			return nil, err
		}
		if vnum.num < -(1<<31) || vnum.num > (1<<31-1) {
			return nil, &ParseError{Kind: NumberOutOfRange, Line: vnum.line, Column: vnum.column, Snippet: vnum.text, Msg: "enum value out of int32 range"}
		}
		if seenNames[vname.text] {
			return nil, &ParseError{Kind: DuplicateName, Line: vname.line, Column: vname.column, Snippet: vname.text, Msg: "duplicate enum variant name"}
		}
		v32 := int32(vnum.num)
		if seenValues[v32] {
			return nil, &ParseError{Kind: DuplicateEnumValue, Line: vnum.line, Column: vnum.column, Snippet: vnum.text, Msg: "duplicate enum variant value"}
		}
		seenNames[vname.text] = true
		seenValues[v32] = true
		variants = append(variants, EnumVariant{Name: vname.text, Value: v32})

		if p.cur().kind == tokComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectKind(tokRBrace, "'}'"); err != nil {
		return nil, err
	}
	if _, err := p.expectKind(tokSemicolon, "';'"); err != nil {
		return nil, err
	}
	return &EnumDecl{Name: name.text, Variants: variants, Line: line}, nil
}

func (p *parser) parseUnion() (*UnionDecl, *ParseError) {
	line := p.cur().line
	if err := p.expectIdentText("union"); err != nil {
		return nil, err
	}
	name, err := p.expectKind(tokIdent, "union name")
	if err != nil {
		return nil, err
	}
	if err := p.expectIdentText("switch"); err != nil {
		return nil, err
	}
	if _, err := p.expectKind(tokLParen, "'('"); err != nil {
		return nil, err
	}
	discType, err := p.parseTypeSpecifier()
	if err != nil {
		return nil, err
	}
	discName, err := p.expectKind(tokIdent, "discriminant field name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(tokRParen, "')'"); err != nil {
		return nil, err
	}
	if _, err := p.expectKind(tokLBrace, "'{'"); err != nil {
		return nil, err
	}

	var cases []UnionCase
	var def *Field
	for p.atIdent("case") {
		p.advance()
		var uc UnionCase
		if p.cur().kind == tokNumber {
			uc.Value = p.advance().num
		} else {
			id, err := p.expectKind(tokIdent, "case value")
			if err != nil {
				return nil, err
			}
			uc.ValueName = id.text
		}
		if _, err := p.expectKind(tokColon, "':'"); err != nil {
			return nil, err
		}
		arm, err := p.parseUnionArm()
		if err != nil {
			return nil, err
		}
		uc.Arm = arm
		cases = append(cases, uc)
	}
	if p.atIdent("default") {
		p.advance()
		if _, err := p.expectKind(tokColon, "':'"); err != nil {
			return nil, err
		}
		arm, err := p.parseUnionArm()
		if err != nil {
			return nil, err
		}
		if arm == nil {
			arm = &Field{} // void default arm: present, but with no Type
		}
		def = arm
	}
	if _, err := p.expectKind(tokRBrace, "'}'"); err != nil {
		return nil, err
	}
	if _, err := p.expectKind(tokSemicolon, "';'"); err != nil {
		return nil, err
	}
	return &UnionDecl{Name: name.text, DiscName: discName.text, DiscType: discType, Cases: cases, Default: def, Line: line}, nil
}

// parseUnionArm parses one case/default body: either "void;" or a field.
func (p *parser) parseUnionArm() (*Field, *ParseError) {
	if p.atIdent("void") {
		p.advance()
		if _, err := p.expectKind(tokSemicolon, "';'"); err != nil {
			return nil, err
		}
		return nil, nil
	}
	fname, ftype, err := p.parseNamedTypeWithSuffix()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(tokSemicolon, "';'"); err != nil {
		return nil, err
	}
	return &Field{Name: fname, Type: ftype}, nil
}

// parseTypeSpecifier reads a base type token (primitive, "opaque",
// "string", or a named reference) without consuming any array/optional
// suffix. The returned Type is a placeholder for opaque/string (their
// real shape is only known once the trailing ARRAY_SPEC is parsed).
func (p *parser) parseTypeSpecifier() (Type, *ParseError) {
	t := p.cur()
	if t.kind != tokIdent {
		return nil, p.unexpected(t, "a type")
	}
	switch t.text {
	case "unsigned":
		p.advance()
		next := p.cur()
		if next.kind != tokIdent {
			return nil, p.unexpected(next, "'int' or 'hyper'")
		}
		switch next.text {
		case "int":
			p.advance()
			return PrimitiveType{Kind: KindUnsignedInt}, nil
		case "hyper":
			p.advance()
			return PrimitiveType{Kind: KindUnsignedHyper}, nil
		default:
			return nil, p.unexpected(next, "'int' or 'hyper'")
		}
	case "int":
		p.advance()
		return PrimitiveType{Kind: KindInt}, nil
	case "hyper":
		p.advance()
		return PrimitiveType{Kind: KindHyper}, nil
	case "float":
		p.advance()
		return PrimitiveType{Kind: KindFloat}, nil
	case "double":
		p.advance()
		return PrimitiveType{Kind: KindDouble}, nil
	case "bool":
		p.advance()
		return PrimitiveType{Kind: KindBool}, nil
	case "opaque":
		p.advance()
		return opaquePlaceholder{}, nil
	case "string":
		p.advance()
		return stringPlaceholder{}, nil
	default:
		p.advance()
		return NamedType{Name: t.text}, nil
	}
}

// opaquePlaceholder and stringPlaceholder are internal markers used only
// between parseTypeSpecifier and parseNamedTypeWithSuffix; they never
// appear in a resolved AST.
type opaquePlaceholder struct{}

func (opaquePlaceholder) typeTag() {}

type stringPlaceholder struct{}

func (stringPlaceholder) typeTag() {}

// parseNamedTypeWithSuffix parses "TYPE NAME (ARRAY_SPEC)?" as used by
// struct fields, typedefs, and non-void union arms.
func (p *parser) parseNamedTypeWithSuffix() (string, Type, *ParseError) {
	base, err := p.parseTypeSpecifier()
	if err != nil {
		return "", nil, err
	}
	nameTok, err := p.expectKind(tokIdent, "field name")
	if err != nil {
		return "", nil, err
	}

	var result Type
	switch p.cur().kind {
	case tokLBracket:
		p.advance()
		n, err := p.parseBound()
		if err != nil {
			return "", nil, err
		}
		if _, err := p.expectKind(tokRBracket, "']'"); err != nil {
			return "", nil, err
		}
		if _, ok := base.(opaquePlaceholder); ok {
			result = OpaqueFixedType{N: n}
		} else {
			result = ArrayType{Elem: base, N: n, Fixed: true}
		}
	case tokLAngle:
		p.advance()
		var bound Bound
		if p.cur().kind != tokRAngle {
			b, err := p.parseBound()
			if err != nil {
				return "", nil, err
			}
			bound = b
		}
		if _, err := p.expectKind(tokRAngle, "'>'"); err != nil {
			return "", nil, err
		}
		switch base.(type) {
		case opaquePlaceholder:
			result = OpaqueVarType{Bound: bound}
		case stringPlaceholder:
			result = StringType{Bound: bound}
		default:
			result = ArrayType{Elem: base, N: bound, Fixed: false}
		}
	case tokStar:
		p.advance()
		if _, ok := base.(opaquePlaceholder); ok {
			return "", nil, p.unexpected(p.cur(), "array spec after 'opaque'")
		}
		if _, ok := base.(stringPlaceholder); ok {
			return "", nil, p.unexpected(p.cur(), "array spec after 'string'")
		}
		result = OptionalType{Elem: base}
	default:
		if _, ok := base.(opaquePlaceholder); ok {
			return "", nil, p.unexpected(p.cur(), "'[' or '<' after 'opaque'")
		}
		if _, ok := base.(stringPlaceholder); ok {
			return "", nil, p.unexpected(p.cur(), "'<' after 'string'")
		}
		result = base
	}
	return nameTok.text, result, nil
}

// parseBound reads a numeric literal or a named Constant reference used
// as an array/string/opaque bound.
func (p *parser) parseBound() (Bound, *ParseError) {
	t := p.cur()
	if t.kind == tokNumber {
		p.advance()
		return Bound{Literal: t.num, Present: true}, nil
	}
	if t.kind == tokIdent {
		p.advance()
		return Bound{Name: t.text, Present: true}, nil
	}
	return Bound{}, p.unexpected(t, "a number or constant name")
}
