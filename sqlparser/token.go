package sqlparser

import "errors"

// Sentinel errors
var (
	ErrUnterminatedString   = errors.New("unterminated string literal")
	ErrUnterminatedComment  = errors.New("unterminated block comment")
	ErrMalformedHostVar     = errors.New("malformed host variable reference")
	ErrTypeMismatch         = errors.New("indicator variable must have an integer type")
	ErrArityMismatch        = errors.New("indicator array length does not match host variable")
	ErrUnsupportedStatement = errors.New("embedded SQL statement form is not recognized")
	ErrUndeclaredCursor     = errors.New("cursor is used before being declared")
	ErrDuplicateCursor      = errors.New("cursor is declared twice")
	ErrUndeclaredPrepared   = errors.New("prepared statement is executed before being prepared")
	ErrMalformedDirective   = errors.New("malformed embedded SQL directive")
)

// TokenType represents the type of a token
type TokenType int

const (
	EOF TokenType = iota
	WHITESPACE
	WORD    // identifiers and keywords
	QUOTE   // 'string' literals and "quoted" identifiers
	NUMBER  // numeric literals
	HOSTVAR // :name or :struct.member host variable reference
	OPENED_PARENS
	CLOSED_PARENS
	COMMA
	SEMICOLON
	DOT
	OPERATOR // =, <, >, +, -, *, /, <>, !=, <=, >=, ||
	LINE_COMMENT
	BLOCK_COMMENT
	OTHER
)

// String returns the string representation of TokenType
func (t TokenType) String() string {
	switch t {
	case EOF:
		return "EOF"
	case WHITESPACE:
		return "WHITESPACE"
	case WORD:
		return "WORD"
	case QUOTE:
		return "QUOTE"
	case NUMBER:
		return "NUMBER"
	case HOSTVAR:
		return "HOSTVAR"
	case OPENED_PARENS:
		return "OPENED_PARENS"
	case CLOSED_PARENS:
		return "CLOSED_PARENS"
	case COMMA:
		return "COMMA"
	case SEMICOLON:
		return "SEMICOLON"
	case DOT:
		return "DOT"
	case OPERATOR:
		return "OPERATOR"
	case LINE_COMMENT:
		return "LINE_COMMENT"
	case BLOCK_COMMENT:
		return "BLOCK_COMMENT"
	case OTHER:
		return "OTHER"
	default:
		return "UNKNOWN"
	}
}

// Position represents a position in the statement text
type Position struct {
	Line   int
	Column int
	Offset int
}

// Token represents a token of embedded SQL statement text. The Value of a
// HOSTVAR token is the referenced name without the leading colon.
type Token struct {
	Type     TokenType
	Value    string
	Position Position
}

// String returns the string representation of Token
func (t Token) String() string {
	return t.Type.String() + ": " + t.Value
}
