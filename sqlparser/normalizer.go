// Package sqlparser tokenizes embedded SQL statement text, resolves host
// variable references against the symbol table, and normalizes each
// statement into the form the code generator consumes: canonical text with
// positional parameter markers plus ordered input and output binding lists.
package sqlparser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shibukawa/esqlc/symtab"
)

// Normalizer parses embedded SQL statements for one translation unit. It
// owns the cursor and prepared statement registries, which live for the
// whole unit like the symbol table does.
type Normalizer struct {
	table    *symtab.Table
	cursors  map[string]*Statement
	prepared map[string]bool
}

// New creates a Normalizer resolving host variables against table.
func New(table *symtab.Table) *Normalizer {
	return &Normalizer{
		table:    table,
		cursors:  map[string]*Statement{},
		prepared: map[string]bool{},
	}
}

// Parse normalizes one embedded SQL statement. line is the source line of
// the directive for error reporting and line mapping.
func (n *Normalizer) Parse(text string, line int) (*Statement, error) {
	tokens, err := NewTokenizer(text, line).AllTokens()
	if err != nil {
		return nil, err
	}

	tokens = dropComments(tokens)

	st := &Statement{Line: line}

	tokens, err = n.stripAtClause(tokens, st)
	if err != nil {
		return nil, err
	}

	filtered := filterSpace(tokens)
	if len(filtered) == 0 {
		return nil, fmt.Errorf("%w: empty statement at line %d", ErrUnsupportedStatement, line)
	}

	head := lowerWord(filtered[0])

	switch head {
	case "whenever":
		return n.parseWhenever(tokens, filtered, st)
	case "connect":
		return n.parseConnect(filtered, st)
	case "disconnect":
		return n.parseDisconnect(filtered, st)
	case "set":
		if len(filtered) > 1 && lowerWord(filtered[1]) == "connection" {
			return n.parseSetConnection(filtered, st)
		}
		if len(filtered) > 1 && lowerWord(filtered[1]) == "descriptor" {
			return n.parseSetDescriptor(filtered, st)
		}
		return n.parseGeneric(tokens, st)
	case "declare":
		if hasWord(filtered, "cursor") {
			return n.parseDeclareCursor(tokens, filtered, st)
		}
		return n.parseGeneric(tokens, st)
	case "open":
		return n.parseOpen(filtered, st)
	case "close":
		return n.parseClose(filtered, st)
	case "fetch":
		return n.parseFetch(tokens, filtered, st)
	case "prepare":
		return n.parsePrepare(tokens, filtered, st)
	case "execute":
		if len(filtered) > 1 && lowerWord(filtered[1]) == "immediate" {
			return n.parseExecuteImmediate(filtered, st)
		}
		return n.parseExecute(tokens, filtered, st)
	case "deallocate":
		if len(filtered) > 1 && lowerWord(filtered[1]) == "descriptor" {
			return n.parseDescriptorName(filtered, st, KindDeallocateDescriptor)
		}
		return n.parseDeallocate(filtered, st)
	case "allocate":
		return n.parseDescriptorName(filtered, st, KindAllocateDescriptor)
	case "get":
		return n.parseGetDescriptor(filtered, st)
	case "commit", "rollback", "begin", "start", "savepoint":
		st.Kind = KindTransaction
		if err := n.normalize(tokens, st); err != nil {
			return nil, err
		}
		st.Command = strings.ToLower(st.Text)
		return st, nil
	case "type":
		return n.parseTypeDef(tokens, filtered, st)
	default:
		if !sqlLeadingKeywords[head] {
			return nil, fmt.Errorf("%w: %q at line %d", ErrUnsupportedStatement, filtered[0].Value, line)
		}
		return n.parseGeneric(tokens, st)
	}
}

// sqlLeadingKeywords are the statement-starting keywords passed through to
// the generic execute path.
var sqlLeadingKeywords = map[string]bool{
	"select": true, "insert": true, "update": true, "delete": true,
	"with": true, "values": true, "create": true, "drop": true,
	"alter": true, "grant": true, "revoke": true, "truncate": true,
	"lock": true, "listen": true, "notify": true, "unlisten": true,
	"vacuum": true, "copy": true, "show": true, "explain": true,
	"comment": true, "reindex": true, "cluster": true, "checkpoint": true,
	"discard": true, "refresh": true, "release": true, "analyze": true,
}

func lowerWord(t Token) string {
	if t.Type != WORD {
		return ""
	}
	return strings.ToLower(t.Value)
}

func hasWord(tokens []Token, word string) bool {
	for _, t := range tokens {
		if lowerWord(t) == word {
			return true
		}
	}
	return false
}

func dropComments(tokens []Token) []Token {
	out := make([]Token, 0, len(tokens))
	for _, t := range tokens {
		if t.Type == LINE_COMMENT || t.Type == BLOCK_COMMENT {
			continue
		}
		out = append(out, t)
	}
	return out
}

// filterSpace removes whitespace tokens for structural parsing. The raw
// token list keeps them for text canonicalization.
func filterSpace(tokens []Token) []Token {
	out := make([]Token, 0, len(tokens))
	for _, t := range tokens {
		if t.Type == WHITESPACE || t.Type == EOF {
			continue
		}
		out = append(out, t)
	}
	return out
}

// stripAtClause removes a leading "AT connection" clause and records the
// connection target. A host variable target is resolved against the symbol
// table; the generated call receives the variable itself.
func (n *Normalizer) stripAtClause(tokens []Token, st *Statement) ([]Token, error) {
	filtered := filterSpace(tokens)
	if len(filtered) < 3 || lowerWord(filtered[0]) != "at" {
		return tokens, nil
	}
	if filtered[1].Type != WORD && filtered[1].Type != HOSTVAR {
		return tokens, nil
	}

	if filtered[1].Type == HOSTVAR {
		if _, err := n.resolve(filtered[1].Value, filtered[1].Position.Line); err != nil {
			return nil, err
		}
		st.ConnVar = true
	}

	st.Connection = filtered[1].Value

	// Drop everything up to and including the connection token, plus one
	// trailing whitespace run.
	cut := 0
	seen := 0
	for i, t := range tokens {
		if t.Type != WHITESPACE && t.Type != EOF {
			seen++
		}
		if seen == 2 {
			cut = i + 1
			break
		}
	}
	for cut < len(tokens) && tokens[cut].Type == WHITESPACE {
		cut++
	}

	return tokens[cut:], nil
}

// adjacentHostVar reports whether b follows a host variable token a with no
// separation, i.e. the ":var:ind" indicator form.
func adjacentHostVar(a, b Token) bool {
	return b.Type == HOSTVAR && b.Position.Offset == a.Position.Offset+len(a.Value)+1
}

// bind resolves a host variable reference and its optional indicator.
func (n *Normalizer) bind(name string, indicator string, line int) (BoundVariable, error) {
	decl, err := n.resolve(name, line)
	if err != nil {
		return BoundVariable{}, err
	}

	bv := BoundVariable{Name: name, Decl: decl}

	if indicator != "" {
		ind, err := n.resolve(indicator, line)
		if err != nil {
			return BoundVariable{}, err
		}
		if !ind.Type.IsInteger() {
			return BoundVariable{}, fmt.Errorf("%w: %s is %s at line %d", ErrTypeMismatch, indicator, ind.Type, line)
		}
		if ind.Type.Kind == symtab.FixedArray && ind.Type.ArrayLength() != decl.Type.ArrayLength() {
			return BoundVariable{}, fmt.Errorf("%w: %s[%d] paired with %s[%d] at line %d",
				ErrArityMismatch, indicator, ind.Type.ArrayLength(), name, decl.Type.ArrayLength(), line)
		}
		bv.Indicator = ind
	}

	return bv, nil
}

func (n *Normalizer) resolve(name string, line int) (*symtab.Declaration, error) {
	parts := strings.Split(name, ".")

	decl, err := n.table.Lookup(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w at line %d", err, line)
	}

	if len(parts) > 1 {
		decl, err = decl.Member(parts[1:])
		if err != nil {
			return nil, fmt.Errorf("%w at line %d", err, line)
		}
	}

	return decl, nil
}

// normalize walks the raw token list and produces the canonical statement
// text: whitespace runs collapse to single spaces, host variable references
// become positional markers, INTO host variable lists are removed and
// collected as outputs. String literals pass through verbatim.
func (n *Normalizer) normalize(tokens []Token, st *Statement) error {
	var out strings.Builder

	lastSpace := true // swallow leading whitespace

	writeSpace := func() {
		if !lastSpace {
			out.WriteByte(' ')
			lastSpace = true
		}
	}
	write := func(s string) {
		out.WriteString(s)
		lastSpace = false
	}

	i := 0
	for i < len(tokens) {
		t := tokens[i]

		switch t.Type {
		case EOF:
			i++
		case WHITESPACE:
			writeSpace()
			i++
		case HOSTVAR:
			bv, consumed, err := n.parseReference(tokens, i)
			if err != nil {
				return err
			}
			st.Inputs = append(st.Inputs, bv)
			write("$" + strconv.Itoa(len(st.Inputs)))
			i += consumed
		case WORD:
			if strings.ToLower(t.Value) == "into" && startsHostList(tokens, i+1) {
				outputs, consumed, err := n.parseHostList(tokens, i+1)
				if err != nil {
					return err
				}
				st.Outputs = append(st.Outputs, outputs...)
				i += 1 + consumed
				// swallow whitespace the removed clause leaves behind
				for i < len(tokens) && tokens[i].Type == WHITESPACE {
					i++
				}
				writeSpace()
				continue
			}
			write(t.Value)
			i++
		default:
			write(t.Value)
			i++
		}
	}

	st.Text = strings.TrimSpace(out.String())

	return nil
}

// parseReference reads one host variable reference starting at index i,
// including the ":var:ind" and ":var INDICATOR :ind" forms. It returns the
// binding and the number of tokens consumed.
func (n *Normalizer) parseReference(tokens []Token, i int) (BoundVariable, int, error) {
	t := tokens[i]
	consumed := 1
	indicator := ""

	if i+1 < len(tokens) && adjacentHostVar(t, tokens[i+1]) {
		indicator = tokens[i+1].Value
		consumed = 2
	} else {
		// ":var INDICATOR :ind" with arbitrary spacing
		j := i + 1
		for j < len(tokens) && tokens[j].Type == WHITESPACE {
			j++
		}
		if j+1 < len(tokens) && lowerWord(tokens[j]) == "indicator" {
			k := j + 1
			for k < len(tokens) && tokens[k].Type == WHITESPACE {
				k++
			}
			if k < len(tokens) && tokens[k].Type == HOSTVAR {
				indicator = tokens[k].Value
				consumed = k - i + 1
			}
		}
	}

	bv, err := n.bind(t.Value, indicator, t.Position.Line)
	if err != nil {
		return BoundVariable{}, 0, err
	}

	return bv, consumed, nil
}

// startsHostList reports whether a host variable list begins at index i
// (skipping whitespace).
func startsHostList(tokens []Token, i int) bool {
	for i < len(tokens) && tokens[i].Type == WHITESPACE {
		i++
	}
	return i < len(tokens) && tokens[i].Type == HOSTVAR
}

// parseHostList reads a comma- or space-separated host variable list
// starting at index i and returns the bindings plus tokens consumed.
func (n *Normalizer) parseHostList(tokens []Token, i int) ([]BoundVariable, int, error) {
	var list []BoundVariable

	j := i

	for j < len(tokens) {
		switch tokens[j].Type {
		case WHITESPACE, COMMA:
			j++
		case HOSTVAR:
			bv, consumed, err := n.parseReference(tokens, j)
			if err != nil {
				return nil, 0, err
			}
			list = append(list, bv)
			j += consumed
		default:
			return list, j - i, nil
		}
	}

	return list, j - i, nil
}

// canonicalize renders tokens as canonical text without host variable
// substitution. Used for sub-clauses that carry no bindings.
func canonicalize(tokens []Token) string {
	var out strings.Builder

	lastSpace := true

	for _, t := range tokens {
		switch t.Type {
		case EOF:
		case WHITESPACE:
			if !lastSpace {
				out.WriteByte(' ')
				lastSpace = true
			}
		default:
			out.WriteString(t.Value)
			lastSpace = false
		}
	}

	return strings.TrimSpace(out.String())
}

// Canonicalize collapses whitespace runs in statement text to single
// spaces, preserving string and quoted identifier literals verbatim. The
// operation is idempotent.
func Canonicalize(text string) (string, error) {
	tokens, err := NewTokenizer(text, 1).AllTokens()
	if err != nil {
		return "", err
	}

	return canonicalize(dropComments(tokens)), nil
}

// parseGeneric handles plain SQL statements: normalize, then refine the
// kind from the leading keyword and the collected outputs.
func (n *Normalizer) parseGeneric(tokens []Token, st *Statement) (*Statement, error) {
	if err := n.normalize(tokens, st); err != nil {
		return nil, err
	}

	st.Kind = KindExecute
	if strings.HasPrefix(strings.ToLower(st.Text), "select") && len(st.Outputs) > 0 {
		st.Kind = KindSelectInto
	}

	return st, nil
}
