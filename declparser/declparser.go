// Package declparser analyzes the C declarations inside an embedded-SQL
// declare section and records every declared host variable into the symbol
// table. Declarations are not removed from the output: the section text is
// re-emitted verbatim, except that varchar pseudo-type declarations are
// rewritten to the struct form the runtime library expects.
package declparser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shibukawa/esqlc/symtab"
)

// Sentinel errors
var (
	ErrUnknownType       = errors.New("unrecognized type in declare section")
	ErrVarcharLength     = errors.New("varchar host variable requires an explicit length")
	ErrMalformedDecl     = errors.New("malformed declaration in declare section")
	ErrUnsupportedArray  = errors.New("array dimension must be a numeric literal")
	ErrPointerVarchar    = errors.New("pointer to varchar is not supported")
	ErrDuplicateTypedef  = errors.New("typedef name is already defined")
	ErrUnknownStructTag  = errors.New("struct tag was not declared in any declare section")
	ErrDuplicateMember   = errors.New("duplicate member name in struct declaration")
	ErrAnonymousDeclarer = errors.New("declaration is missing a variable name")
	ErrVarcharInStruct   = errors.New("varchar is not allowed as a struct member")
)

// Qualifiers that may precede a type and carry no meaning for binding.
var qualifiers = map[string]bool{
	"static":   true,
	"extern":   true,
	"auto":     true,
	"register": true,
	"const":    true,
	"volatile": true,
}

// typeWords are the C scalar type keywords that may combine.
var typeWords = map[string]bool{
	"unsigned": true,
	"signed":   true,
	"short":    true,
	"long":     true,
	"int":      true,
	"char":     true,
	"float":    true,
	"double":   true,
	"bool":     true,
}

// Parser analyzes declare sections for one translation unit. Typedef
// aliases and struct tags accumulate across sections, matching the file
// scope of C type names.
type Parser struct {
	table      *symtab.Table
	aliases    map[string]*symtab.TypeDescriptor
	structTags map[string][]symtab.Field
}

// New creates a Parser recording declarations into the given symbol table.
func New(table *symtab.Table) *Parser {
	return &Parser{
		table:      table,
		aliases:    map[string]*symtab.TypeDescriptor{},
		structTags: map[string][]symtab.Field{},
	}
}

// RegisterAlias records a type alias established by EXEC SQL TYPE.
func (p *Parser) RegisterAlias(name string, desc *symtab.TypeDescriptor) error {
	if _, ok := p.aliases[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTypedef, name)
	}
	p.aliases[name] = desc

	return nil
}

// ParseSection analyzes the text between BEGIN and END DECLARE SECTION,
// records every declared name, and returns the text to re-emit. baseLine is
// the source line of the first character of text.
func (p *Parser) ParseSection(text string, baseLine int) (string, error) {
	tokens, err := lex(text, baseLine)
	if err != nil {
		return "", err
	}

	ps := &parser{owner: p, tokens: tokens}

	var out strings.Builder

	copied := 0

	for ps.cur().kind != tkEOF {
		if ps.cur().is(";") {
			ps.next()
			continue
		}

		group, err := ps.parseGroup(nil)
		if err != nil {
			return "", err
		}

		if group.synth != "" {
			out.WriteString(text[copied:group.start])
			out.WriteString(group.synth)
			copied = group.end
		}
	}

	out.WriteString(text[copied:])

	return out.String(), nil
}

// parser walks one token slice.
type parser struct {
	owner  *Parser
	tokens []token
	pos    int
}

func (ps *parser) cur() token {
	return ps.tokens[ps.pos]
}

func (ps *parser) next() token {
	t := ps.tokens[ps.pos]
	if t.kind != tkEOF {
		ps.pos++
	}

	return t
}

// group describes one parsed declaration group ("int a, b[3];").
type group struct {
	start int    // byte offset of the first token
	end   int    // byte offset just past the terminating ';'
	synth string // non-empty when the group must be rewritten (varchar)
}

// parseGroup parses one declaration group. When fields is nil the declared
// names go into the symbol table; otherwise they are collected as struct
// members.
func (ps *parser) parseGroup(fields *[]symtab.Field) (group, error) {
	g := group{start: ps.cur().offset}
	line := ps.cur().line

	isTypedef := false

	for ps.cur().kind == tkIdent && (qualifiers[ps.cur().text] || ps.cur().text == "typedef") {
		if ps.cur().text == "typedef" {
			isTypedef = true
		}
		ps.next()
	}

	base, isVarchar, err := ps.parseBaseType()
	if err != nil {
		return g, err
	}

	if isVarchar && fields != nil {
		return g, fmt.Errorf("%w at line %d", ErrVarcharInStruct, line)
	}

	var synth []string

	for {
		name, desc, err := ps.parseDeclarator(base, isVarchar)
		if err != nil {
			return g, err
		}

		switch {
		case isTypedef:
			if err := ps.owner.RegisterAlias(name, desc); err != nil {
				return g, err
			}
		case fields != nil:
			for _, f := range *fields {
				if f.Name == name {
					return g, fmt.Errorf("%w: %s at line %d", ErrDuplicateMember, name, line)
				}
			}
			*fields = append(*fields, symtab.Field{Name: name, Type: desc})
		default:
			if _, err := ps.owner.table.Declare(name, desc, line); err != nil {
				return g, fmt.Errorf("%w at line %d", err, line)
			}
		}

		if isVarchar {
			desc.Tag = "varchar_" + name
			if isTypedef {
				synth = append(synth, fmt.Sprintf("typedef struct %s { int len; char arr[ %d ]; } %s ;", desc.Tag, desc.MaxLen, name))
			} else {
				synth = append(synth, fmt.Sprintf("struct %s { int len; char arr[ %d ]; } %s ;", desc.Tag, desc.MaxLen, name))
			}
		}

		if ps.cur().is(",") {
			ps.next()
			continue
		}

		break
	}

	terminator := ps.next()
	if !terminator.is(";") {
		return g, fmt.Errorf("%w: expected ';' at line %d", ErrMalformedDecl, terminator.line)
	}

	g.end = terminator.offset + 1
	g.synth = strings.Join(synth, " ")

	return g, nil
}

// parseBaseType parses the type specifier of a group.
func (ps *parser) parseBaseType() (*symtab.TypeDescriptor, bool, error) {
	t := ps.cur()
	if t.kind != tkIdent {
		return nil, false, fmt.Errorf("%w: expected type at line %d", ErrMalformedDecl, t.line)
	}

	switch {
	case strings.EqualFold(t.text, "varchar"):
		ps.next()
		return nil, true, nil
	case t.text == "struct":
		desc, err := ps.parseStruct()
		return desc, false, err
	case typeWords[t.text]:
		words := []string{}
		for ps.cur().kind == tkIdent && typeWords[ps.cur().text] {
			words = append(words, ps.next().text)
		}
		return symtab.ScalarOf(canonicalCType(words)), false, nil
	default:
		if desc, ok := ps.owner.aliases[t.text]; ok {
			ps.next()
			return desc, false, nil
		}
		return nil, false, fmt.Errorf("%w: %s at line %d", ErrUnknownType, t.text, t.line)
	}
}

// parseStruct parses "struct [tag] { members }" or a reference to a
// previously seen tag.
func (ps *parser) parseStruct() (*symtab.TypeDescriptor, error) {
	ps.next() // struct

	tag := ""
	if ps.cur().kind == tkIdent {
		tag = ps.next().text
	}

	if !ps.cur().is("{") {
		if tag == "" {
			return nil, fmt.Errorf("%w: anonymous struct without body at line %d", ErrMalformedDecl, ps.cur().line)
		}
		fields, ok := ps.owner.structTags[tag]
		if !ok {
			return nil, fmt.Errorf("%w: %s at line %d", ErrUnknownStructTag, tag, ps.cur().line)
		}
		return &symtab.TypeDescriptor{Kind: symtab.Struct, Tag: tag, Fields: fields}, nil
	}

	ps.next() // {

	var fields []symtab.Field

	for !ps.cur().is("}") {
		if ps.cur().kind == tkEOF {
			return nil, fmt.Errorf("%w: struct body is not closed", ErrMalformedDecl)
		}
		if _, err := ps.parseGroup(&fields); err != nil {
			return nil, err
		}
	}

	ps.next() // }

	if tag != "" {
		ps.owner.structTags[tag] = fields
	}

	return &symtab.TypeDescriptor{Kind: symtab.Struct, Tag: tag, Fields: fields}, nil
}

// parseDeclarator parses one "*... name [N]... [= init]" declarator and
// returns the declared name with its full descriptor.
func (ps *parser) parseDeclarator(base *symtab.TypeDescriptor, isVarchar bool) (string, *symtab.TypeDescriptor, error) {
	stars := 0
	for ps.cur().is("*") {
		stars++
		ps.next()
	}

	nameTok := ps.next()
	if nameTok.kind != tkIdent {
		return "", nil, fmt.Errorf("%w at line %d", ErrAnonymousDeclarer, nameTok.line)
	}

	var dims []int

	for ps.cur().is("[") {
		ps.next()

		dimTok := ps.next()
		if dimTok.kind != tkNumber {
			return "", nil, fmt.Errorf("%w: %s at line %d", ErrUnsupportedArray, nameTok.text, dimTok.line)
		}
		n, err := strconv.Atoi(dimTok.text)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %s at line %d", ErrUnsupportedArray, dimTok.text, dimTok.line)
		}
		dims = append(dims, n)

		if closer := ps.next(); !closer.is("]") {
			return "", nil, fmt.Errorf("%w: expected ']' at line %d", ErrMalformedDecl, closer.line)
		}
	}

	if ps.cur().is("=") {
		ps.skipInitializer()
	}

	if isVarchar {
		if stars > 0 {
			return "", nil, fmt.Errorf("%w: %s at line %d", ErrPointerVarchar, nameTok.text, nameTok.line)
		}
		if len(dims) != 1 || dims[0] <= 0 {
			return "", nil, fmt.Errorf("%w: %s at line %d", ErrVarcharLength, nameTok.text, nameTok.line)
		}
		return nameTok.text, symtab.VarcharOf(dims[0]), nil
	}

	desc := base
	if stars > 0 {
		if base.Kind == symtab.Varchar {
			return "", nil, fmt.Errorf("%w: %s at line %d", ErrPointerVarchar, nameTok.text, nameTok.line)
		}
		desc = symtab.PointerTo(base.CType)
	}
	for i := len(dims) - 1; i >= 0; i-- {
		desc = symtab.ArrayOf(desc, dims[i])
	}

	return nameTok.text, desc, nil
}

// skipInitializer consumes "= expr" up to the next ',' or ';' at bracket
// depth zero. The initializer text survives through verbatim re-emission.
func (ps *parser) skipInitializer() {
	depth := 0

	for {
		t := ps.cur()
		switch {
		case t.kind == tkEOF:
			return
		case t.is("(") || t.is("[") || t.is("{"):
			depth++
		case t.is(")") || t.is("]") || t.is("}"):
			depth--
		case depth == 0 && (t.is(",") || t.is(";")):
			return
		}
		ps.next()
	}
}

// canonicalCType joins combined scalar type keywords into the spelling used
// for sizeof expressions and type tags.
func canonicalCType(words []string) string {
	hasSize := false
	for _, w := range words {
		if w == "short" || w == "long" || w == "char" || w == "float" || w == "double" || w == "bool" {
			hasSize = true
		}
	}

	out := make([]string, 0, len(words))

	for _, w := range words {
		if w == "signed" {
			continue
		}
		if w == "int" && hasSize {
			continue
		}
		out = append(out, w)
	}

	if len(out) == 0 {
		return "int"
	}
	if len(out) == 1 && out[0] == "unsigned" {
		return "unsigned int"
	}

	return strings.Join(out, " ")
}
