package sqlparser

import (
	"fmt"
	"strings"

	pc "github.com/shibukawa/parsercombinator"
)

// toParserTokens wraps tokens for the combinator grammars.
func toParserTokens(tokens []Token) []pc.Token[Token] {
	out := make([]pc.Token[Token], len(tokens))

	for i, t := range tokens {
		out[i] = pc.Token[Token]{
			Type: "raw",
			Pos:  &pc.Pos{Line: t.Position.Line, Col: t.Position.Column},
			Val:  t,
		}
	}

	return out
}

// primitive matches one token of any of the given types.
func primitive(types ...TokenType) pc.Parser[Token] {
	return func(pctx *pc.ParseContext[Token], tokens []pc.Token[Token]) (int, []pc.Token[Token], error) {
		for _, ty := range types {
			if len(tokens) > 0 && tokens[0].Val.Type == ty {
				return 1, tokens[:1], nil
			}
		}

		return 0, nil, pc.ErrNotMatch
	}
}

// keyword matches one WORD token case-insensitively.
func keyword(words ...string) pc.Parser[Token] {
	return func(pctx *pc.ParseContext[Token], tokens []pc.Token[Token]) (int, []pc.Token[Token], error) {
		if len(tokens) > 0 && tokens[0].Val.Type == WORD {
			v := tokens[0].Val.Value
			for _, w := range words {
				if strings.EqualFold(v, w) {
					return 1, tokens[:1], nil
				}
			}
		}

		return 0, nil, pc.ErrNotMatch
	}
}

// Directive grammars
var (
	condNotFound = pc.Seq(keyword("not"), keyword("found"))
	condError    = keyword("sqlerror")
	condWarning  = pc.Or(keyword("sqlwarning"), keyword("sql_warning"))

	cursorHeader = pc.Seq(
		keyword("declare"),
		primitive(WORD),
		pc.Optional(keyword("binary")),
		pc.Optional(keyword("insensitive")),
		pc.Optional(keyword("scroll")),
		keyword("cursor"),
		keyword("for"),
	)
)

// rawAfter returns the raw tokens strictly after the given token.
func rawAfter(raw []Token, after Token) []Token {
	for i, t := range raw {
		if t.Position.Offset > after.Position.Offset {
			return raw[i:]
		}
	}

	return nil
}

// parseWhenever parses "WHENEVER condition action".
func (n *Normalizer) parseWhenever(raw, filtered []Token, st *Statement) (*Statement, error) {
	st.Kind = KindWhenever
	st.Text = canonicalize(raw)

	pctx := pc.NewParseContext[Token]()
	pcToks := toParserTokens(filtered[1:])

	clause := &WheneverClause{}

	rest := filtered[1:]
	if consumed, _, err := condNotFound(pctx, pcToks); err == nil {
		clause.Condition = CondNotFound
		rest = rest[consumed:]
	} else if consumed, _, err := condWarning(pctx, pcToks); err == nil {
		clause.Condition = CondSQLWarning
		rest = rest[consumed:]
	} else if consumed, _, err := condError(pctx, pcToks); err == nil {
		clause.Condition = CondSQLError
		rest = rest[consumed:]
	} else {
		return nil, fmt.Errorf("%w: whenever condition at line %d", ErrMalformedDirective, st.Line)
	}

	if len(rest) == 0 {
		return nil, fmt.Errorf("%w: whenever action is missing at line %d", ErrMalformedDirective, st.Line)
	}

	switch lowerWord(rest[0]) {
	case "continue":
		clause.Action = ActContinue
	case "break":
		clause.Action = ActBreak
	case "stop":
		clause.Action = ActStop
	case "sqlprint":
		clause.Action = ActSQLPrint
	case "goto":
		if len(rest) < 2 {
			return nil, fmt.Errorf("%w: goto label is missing at line %d", ErrMalformedDirective, st.Line)
		}
		clause.Action = ActGoto
		clause.Target = rest[1].Value
	case "go":
		if len(rest) < 3 || lowerWord(rest[1]) != "to" {
			return nil, fmt.Errorf("%w: goto label is missing at line %d", ErrMalformedDirective, st.Line)
		}
		clause.Action = ActGoto
		clause.Target = rest[2].Value
	case "do", "call":
		if len(rest) < 2 {
			return nil, fmt.Errorf("%w: whenever call target is missing at line %d", ErrMalformedDirective, st.Line)
		}
		switch lowerWord(rest[1]) {
		case "break":
			clause.Action = ActBreak
		case "continue":
			clause.Action = ActContinue
		case "sqlprint":
			clause.Action = ActSQLPrint
			// the call form keeps its parentheses
			if target := canonicalize(rawAfter(raw, rest[0])); strings.Contains(target, "(") {
				clause.Target = target
				clause.Action = ActCall
			}
		default:
			clause.Action = ActCall
			clause.Target = canonicalize(rawAfter(raw, rest[0]))
		}
	default:
		return nil, fmt.Errorf("%w: whenever action %q at line %d", ErrMalformedDirective, rest[0].Value, st.Line)
	}

	st.Whenever = clause

	return st, nil
}

// parseConnect parses the CONNECT forms. The resulting Target, User and
// Password fields are C expressions ready for the generated call: quoted
// string literals for names, bare identifiers for host variables.
func (n *Normalizer) parseConnect(filtered []Token, st *Statement) (*Statement, error) {
	st.Kind = KindConnect

	rest := filtered[1:]
	if len(rest) > 0 && lowerWord(rest[0]) == "to" {
		rest = rest[1:]
	}

	if len(rest) == 0 {
		return nil, fmt.Errorf("%w: connect target is missing at line %d", ErrMalformedDirective, st.Line)
	}

	var err error

	// target runs to AS/USER or end
	i := 0
	for i < len(rest) && lowerWord(rest[i]) != "as" && lowerWord(rest[i]) != "user" {
		i++
	}

	st.Target, err = n.connParam(rest[:i], st.Line)
	if err != nil {
		return nil, err
	}

	rest = rest[i:]

	if len(rest) >= 2 && lowerWord(rest[0]) == "as" {
		st.Name = rest[1].Value
		rest = rest[2:]
	}

	if len(rest) >= 2 && lowerWord(rest[0]) == "user" {
		j := 1
		for j < len(rest) && lowerWord(rest[j]) != "using" && lowerWord(rest[j]) != "identified" {
			j++
		}

		st.User, err = n.connParam(rest[1:j], st.Line)
		if err != nil {
			return nil, err
		}

		rest = rest[j:]

		switch {
		case len(rest) >= 2 && lowerWord(rest[0]) == "using":
			st.Password, err = n.connParam(rest[1:], st.Line)
		case len(rest) >= 3 && lowerWord(rest[0]) == "identified" && lowerWord(rest[1]) == "by":
			st.Password, err = n.connParam(rest[2:], st.Line)
		}
		if err != nil {
			return nil, err
		}
	}

	return st, nil
}

// connParam renders one connect parameter as a C expression. A slash- or
// colon-separated target keeps its punctuation; a single host variable
// becomes a bare reference to it.
func (n *Normalizer) connParam(tokens []Token, line int) (string, error) {
	if len(tokens) == 0 {
		return "NULL", nil
	}

	if len(tokens) == 1 {
		t := tokens[0]
		switch t.Type {
		case HOSTVAR:
			if _, err := n.resolve(t.Value, line); err != nil {
				return "", err
			}
			return t.Value, nil
		case QUOTE:
			return `"` + strings.Trim(t.Value, `'"`) + `"`, nil
		case WORD, NUMBER:
			if strings.EqualFold(t.Value, "default") {
				return "NULL", nil
			}
			return `"` + t.Value + `"`, nil
		}
	}

	// multi-token target like tcp:postgresql://localhost:5432/testdb; the
	// tokenizer splits ":" prefixed words into host variable tokens, so the
	// colon is restored from the token type.
	var out strings.Builder
	for _, t := range tokens {
		if t.Type == HOSTVAR {
			out.WriteByte(':')
		}
		out.WriteString(t.Value)
	}

	return `"` + out.String() + `"`, nil
}

func (n *Normalizer) parseDisconnect(filtered []Token, st *Statement) (*Statement, error) {
	st.Kind = KindDisconnect
	st.Name = "CURRENT"

	if len(filtered) > 1 {
		st.Name = filtered[1].Value
	}

	return st, nil
}

func (n *Normalizer) parseSetConnection(filtered []Token, st *Statement) (*Statement, error) {
	st.Kind = KindSetConnection

	rest := filtered[2:]
	if len(rest) > 0 && (lowerWord(rest[0]) == "to" || rest[0].Value == "=") {
		rest = rest[1:]
	}

	if len(rest) == 0 {
		return nil, fmt.Errorf("%w: connection name is missing at line %d", ErrMalformedDirective, st.Line)
	}

	st.Name = rest[0].Value

	return st, nil
}

// parseDeclareCursor validates the DECLARE header, normalizes the cursor
// query, and records the cursor for later OPEN/FETCH/CLOSE statements.
func (n *Normalizer) parseDeclareCursor(raw, filtered []Token, st *Statement) (*Statement, error) {
	pctx := pc.NewParseContext[Token]()

	if _, _, err := cursorHeader(pctx, toParserTokens(filtered)); err != nil {
		return nil, fmt.Errorf("%w: declare cursor at line %d", ErrMalformedDirective, st.Line)
	}

	st.Kind = KindDeclareCursor
	st.Cursor = filtered[1].Value

	if _, ok := n.cursors[st.Cursor]; ok {
		return nil, fmt.Errorf("%w: %s at line %d", ErrDuplicateCursor, st.Cursor, st.Line)
	}

	if err := n.normalize(raw, st); err != nil {
		return nil, err
	}

	n.cursors[st.Cursor] = st

	return st, nil
}

func (n *Normalizer) parseOpen(filtered []Token, st *Statement) (*Statement, error) {
	if len(filtered) < 2 || filtered[1].Type != WORD {
		return nil, fmt.Errorf("%w: open requires a cursor name at line %d", ErrMalformedDirective, st.Line)
	}

	name := filtered[1].Value

	decl, ok := n.cursors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s at line %d", ErrUndeclaredCursor, name, st.Line)
	}

	st.Kind = KindOpen
	st.Cursor = name
	st.Text = decl.Text
	st.Inputs = append(st.Inputs, decl.Inputs...)

	if len(filtered) > 2 && lowerWord(filtered[2]) == "using" {
		vars, _, err := n.parseHostList(filtered, 3)
		if err != nil {
			return nil, err
		}
		st.Inputs = append(st.Inputs, vars...)
	}

	return st, nil
}

func (n *Normalizer) parseClose(filtered []Token, st *Statement) (*Statement, error) {
	if len(filtered) < 2 || filtered[1].Type != WORD {
		return nil, fmt.Errorf("%w: close requires a cursor name at line %d", ErrMalformedDirective, st.Line)
	}

	name := filtered[1].Value
	if _, ok := n.cursors[name]; !ok {
		return nil, fmt.Errorf("%w: %s at line %d", ErrUndeclaredCursor, name, st.Line)
	}

	st.Kind = KindClose
	st.Cursor = name
	st.Text = "close " + name

	return st, nil
}

// fetchDirections are the FETCH orientation keywords that may precede the
// cursor name.
var fetchDirections = map[string]bool{
	"next": true, "prior": true, "first": true, "last": true,
	"absolute": true, "relative": true, "forward": true, "backward": true,
	"all": true, "from": true, "in": true,
}

func (n *Normalizer) parseFetch(raw, filtered []Token, st *Statement) (*Statement, error) {
	st.Kind = KindFetch

	for _, t := range filtered[1:] {
		if lowerWord(t) == "into" {
			break
		}
		if t.Type == WORD && !fetchDirections[strings.ToLower(t.Value)] {
			st.Cursor = t.Value
			break
		}
	}

	if st.Cursor == "" {
		return nil, fmt.Errorf("%w: fetch requires a cursor name at line %d", ErrMalformedDirective, st.Line)
	}
	if _, ok := n.cursors[st.Cursor]; !ok {
		return nil, fmt.Errorf("%w: %s at line %d", ErrUndeclaredCursor, st.Cursor, st.Line)
	}

	return st, n.normalize(raw, st)
}

func (n *Normalizer) parsePrepare(raw, filtered []Token, st *Statement) (*Statement, error) {
	if len(filtered) < 4 || lowerWord(filtered[2]) != "from" {
		return nil, fmt.Errorf("%w: prepare requires FROM at line %d", ErrMalformedDirective, st.Line)
	}

	st.Kind = KindPrepare
	st.Name = filtered[1].Value

	source := filtered[3:]
	if len(source) == 1 && source[0].Type == HOSTVAR {
		bv, err := n.bind(source[0].Value, "", st.Line)
		if err != nil {
			return nil, err
		}
		st.Inputs = append(st.Inputs, bv)
	} else if len(source) == 1 && source[0].Type == QUOTE {
		st.Text = strings.Trim(source[0].Value, `'`)
	} else {
		st.Text = canonicalize(rawAfter(raw, filtered[2]))
	}

	n.prepared[st.Name] = true

	return st, nil
}

func (n *Normalizer) parseExecute(raw, filtered []Token, st *Statement) (*Statement, error) {
	if len(filtered) < 2 || filtered[1].Type != WORD {
		return nil, fmt.Errorf("%w: execute requires a statement name at line %d", ErrMalformedDirective, st.Line)
	}

	st.Kind = KindExecutePrepared
	st.Name = filtered[1].Value

	if !n.prepared[st.Name] {
		return nil, fmt.Errorf("%w: %s at line %d", ErrUndeclaredPrepared, st.Name, st.Line)
	}

	return st, n.normalize(raw, st)
}

func (n *Normalizer) parseExecuteImmediate(filtered []Token, st *Statement) (*Statement, error) {
	st.Kind = KindExecuteImmediate

	source := filtered[2:]
	if len(source) != 1 {
		return nil, fmt.Errorf("%w: execute immediate requires one source at line %d", ErrMalformedDirective, st.Line)
	}

	switch source[0].Type {
	case HOSTVAR:
		bv, err := n.bind(source[0].Value, "", st.Line)
		if err != nil {
			return nil, err
		}
		st.Inputs = append(st.Inputs, bv)
	case QUOTE:
		st.Text = strings.Trim(source[0].Value, `'`)
	default:
		return nil, fmt.Errorf("%w: execute immediate source at line %d", ErrMalformedDirective, st.Line)
	}

	return st, nil
}

func (n *Normalizer) parseDeallocate(filtered []Token, st *Statement) (*Statement, error) {
	rest := filtered[1:]
	if len(rest) > 0 && lowerWord(rest[0]) == "prepare" {
		rest = rest[1:]
	}

	if len(rest) == 0 {
		return nil, fmt.Errorf("%w: deallocate requires a statement name at line %d", ErrMalformedDirective, st.Line)
	}

	st.Kind = KindDeallocate
	st.Name = rest[0].Value

	if !n.prepared[st.Name] {
		return nil, fmt.Errorf("%w: %s at line %d", ErrUndeclaredPrepared, st.Name, st.Line)
	}

	delete(n.prepared, st.Name)

	return st, nil
}

// parseDescriptorName handles ALLOCATE/DEALLOCATE DESCRIPTOR.
func (n *Normalizer) parseDescriptorName(filtered []Token, st *Statement, kind StatementKind) (*Statement, error) {
	if len(filtered) < 3 || lowerWord(filtered[1]) != "descriptor" {
		return nil, fmt.Errorf("%w: descriptor name is missing at line %d", ErrMalformedDirective, st.Line)
	}

	st.Kind = kind
	st.Name = strings.Trim(filtered[2].Value, `'"`)

	return st, nil
}

// parseGetDescriptor parses
//
//	GET DESCRIPTOR name :v = COUNT
//	GET DESCRIPTOR name VALUE n :v = FIELD [, :v = FIELD]...
func (n *Normalizer) parseGetDescriptor(filtered []Token, st *Statement) (*Statement, error) {
	if len(filtered) < 4 || lowerWord(filtered[1]) != "descriptor" {
		return nil, fmt.Errorf("%w: get descriptor at line %d", ErrMalformedDirective, st.Line)
	}

	st.Kind = KindGetDescriptor
	st.Name = strings.Trim(filtered[2].Value, `'"`)

	rest := filtered[3:]

	var err error

	rest, err = n.parseDescriptorValue(rest, st)
	if err != nil {
		return nil, err
	}

	for len(rest) > 0 {
		if rest[0].Type == COMMA {
			rest = rest[1:]
			continue
		}
		if len(rest) < 3 || rest[0].Type != HOSTVAR || rest[1].Value != "=" || rest[2].Type != WORD {
			return nil, fmt.Errorf("%w: get descriptor item at line %d", ErrMalformedDirective, st.Line)
		}

		bv, err := n.bind(rest[0].Value, "", st.Line)
		if err != nil {
			return nil, err
		}

		st.Descriptor.Items = append(st.Descriptor.Items, DescriptorItem{
			Field: strings.ToLower(rest[2].Value),
			Var:   bv,
		})

		rest = rest[3:]
	}

	if len(st.Descriptor.Items) == 0 {
		return nil, fmt.Errorf("%w: get descriptor has no items at line %d", ErrMalformedDirective, st.Line)
	}
	if st.Descriptor.Number == "" && len(st.Descriptor.Items) > 1 {
		return nil, fmt.Errorf("%w: get descriptor header form takes a single item at line %d", ErrMalformedDirective, st.Line)
	}

	return st, nil
}

// parseSetDescriptor parses
//
//	SET DESCRIPTOR name COUNT = :v
//	SET DESCRIPTOR name VALUE n FIELD = :v [, FIELD = :v]...
func (n *Normalizer) parseSetDescriptor(filtered []Token, st *Statement) (*Statement, error) {
	if len(filtered) < 4 {
		return nil, fmt.Errorf("%w: set descriptor at line %d", ErrMalformedDirective, st.Line)
	}

	st.Kind = KindSetDescriptor
	st.Name = strings.Trim(filtered[2].Value, `'"`)

	rest := filtered[3:]

	var err error

	rest, err = n.parseDescriptorValue(rest, st)
	if err != nil {
		return nil, err
	}

	for len(rest) > 0 {
		if rest[0].Type == COMMA {
			rest = rest[1:]
			continue
		}
		if len(rest) < 3 || rest[0].Type != WORD || rest[1].Value != "=" || rest[2].Type != HOSTVAR {
			return nil, fmt.Errorf("%w: set descriptor item at line %d", ErrMalformedDirective, st.Line)
		}

		bv, err := n.bind(rest[2].Value, "", st.Line)
		if err != nil {
			return nil, err
		}

		st.Descriptor.Items = append(st.Descriptor.Items, DescriptorItem{
			Field: strings.ToLower(rest[0].Value),
			Var:   bv,
		})

		rest = rest[3:]
	}

	if len(st.Descriptor.Items) == 0 {
		return nil, fmt.Errorf("%w: set descriptor has no items at line %d", ErrMalformedDirective, st.Line)
	}
	if st.Descriptor.Number == "" && len(st.Descriptor.Items) > 1 {
		return nil, fmt.Errorf("%w: set descriptor header form takes a single item at line %d", ErrMalformedDirective, st.Line)
	}

	return st, nil
}

// parseDescriptorValue consumes an optional "VALUE n" clause.
func (n *Normalizer) parseDescriptorValue(rest []Token, st *Statement) ([]Token, error) {
	if len(rest) == 0 || lowerWord(rest[0]) != "value" {
		return rest, nil
	}
	if len(rest) < 2 {
		return nil, fmt.Errorf("%w: descriptor item number is missing at line %d", ErrMalformedDirective, st.Line)
	}

	switch rest[1].Type {
	case NUMBER:
		st.Descriptor.Number = rest[1].Value
	case HOSTVAR:
		if _, err := n.resolve(rest[1].Value, st.Line); err != nil {
			return nil, err
		}
		st.Descriptor.Number = rest[1].Value
	default:
		return nil, fmt.Errorf("%w: descriptor item number at line %d", ErrMalformedDirective, st.Line)
	}

	return rest[2:], nil
}

func (n *Normalizer) parseTypeDef(raw, filtered []Token, st *Statement) (*Statement, error) {
	if len(filtered) < 3 || filtered[1].Type != WORD || lowerWord(filtered[2]) != "is" {
		return nil, fmt.Errorf("%w: exec sql type at line %d", ErrMalformedDirective, st.Line)
	}

	st.Kind = KindTypeDef
	st.Name = filtered[1].Value
	st.TypeSpec = canonicalize(rawAfter(raw, filtered[2]))

	if st.TypeSpec == "" {
		return nil, fmt.Errorf("%w: exec sql type is missing a type at line %d", ErrMalformedDirective, st.Line)
	}

	return st, nil
}
