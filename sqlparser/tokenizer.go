package sqlparser

import (
	"fmt"
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenIterator uses the Go 1.24 iterator pattern
type TokenIterator iter.Seq2[Token, error]

// Tokenizer is a tokenizer for embedded SQL statement text that returns an
// iterator. Word case is preserved: the canonical statement text keeps the
// author's spelling.
type Tokenizer struct {
	input    string
	baseLine int
}

// NewTokenizer creates a Tokenizer. baseLine is the source line of the first
// character, used for positions in error messages.
func NewTokenizer(input string, baseLine int) *Tokenizer {
	return &Tokenizer{input: input, baseLine: baseLine}
}

// Tokens returns an iterator of tokens
func (t *Tokenizer) Tokens() TokenIterator {
	return func(yield func(Token, error) bool) {
		tk := &tokenizer{input: t.input, line: t.baseLine, column: 1}
		tk.readChar()

		for {
			token, err := tk.nextToken()
			if err != nil {
				if !yield(Token{}, err) {
					return
				}
				continue
			}

			if !yield(token, nil) {
				return
			}

			if token.Type == EOF {
				return
			}
		}
	}
}

// AllTokens gets all tokens as a slice
func (t *Tokenizer) AllTokens() ([]Token, error) {
	tokens := make([]Token, 0, 32)

	for token, err := range t.Tokens() {
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
		if token.Type == EOF {
			break
		}
	}

	return tokens, nil
}

// Internal tokenizer implementation
type tokenizer struct {
	input    string
	position int // byte offset just past current
	line     int
	column   int
	current  rune
	width    int // byte width of current
}

func (t *tokenizer) nextToken() (Token, error) {
	switch t.current {
	case 0:
		return t.newToken(EOF, ""), nil
	case ' ', '\t', '\r', '\n':
		return t.readWhitespace(), nil
	case '(':
		return t.single(OPENED_PARENS), nil
	case ')':
		return t.single(CLOSED_PARENS), nil
	case ',':
		return t.single(COMMA), nil
	case ';':
		return t.single(SEMICOLON), nil
	case '\'', '"':
		return t.readString(t.current)
	case ':':
		return t.readHostVar()
	case '-':
		if t.peekChar() == '-' {
			return t.readLineComment(), nil
		}
		return t.single(OPERATOR), nil
	case '/':
		if t.peekChar() == '*' {
			return t.readBlockComment()
		}
		return t.single(OPERATOR), nil
	case '<', '>', '!':
		if t.peekChar() == '=' || (t.current == '<' && t.peekChar() == '>') {
			first := t.current
			t.readChar()
			second := t.current
			token := t.newToken(OPERATOR, string(first)+string(second))
			t.readChar()
			return token, nil
		}
		return t.single(OPERATOR), nil
	case '|':
		if t.peekChar() == '|' {
			t.readChar()
			token := t.newToken(OPERATOR, "||")
			t.readChar()
			return token, nil
		}
		return t.single(OTHER), nil
	case '=', '+', '*', '%':
		return t.single(OPERATOR), nil
	case '.':
		if unicode.IsDigit(t.peekChar()) {
			return t.readNumber(), nil
		}
		return t.single(DOT), nil
	default:
		if unicode.IsLetter(t.current) || t.current == '_' {
			return t.readWord(), nil
		}
		if unicode.IsDigit(t.current) {
			return t.readNumber(), nil
		}
		return t.single(OTHER), nil
	}
}

func (t *tokenizer) readChar() {
	if t.position >= len(t.input) {
		t.current = 0
		t.width = 1
		t.position++
		return
	}

	r, w := utf8.DecodeRuneInString(t.input[t.position:])
	t.current = r
	t.width = w
	t.position += w

	if t.current == '\n' {
		t.line++
		t.column = 1
	} else {
		t.column++
	}
}

func (t *tokenizer) peekChar() rune {
	if t.position >= len(t.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(t.input[t.position:])
	return r
}

func (t *tokenizer) single(tokenType TokenType) Token {
	token := t.newToken(tokenType, string(t.current))
	t.readChar()

	return token
}

func (t *tokenizer) readWhitespace() Token {
	var builder strings.Builder

	start := t.markPosition()

	for unicode.IsSpace(t.current) {
		builder.WriteRune(t.current)
		t.readChar()
	}

	return Token{Type: WHITESPACE, Value: builder.String(), Position: start}
}

func (t *tokenizer) readWord() Token {
	var builder strings.Builder

	start := t.markPosition()

	for unicode.IsLetter(t.current) || unicode.IsDigit(t.current) || t.current == '_' {
		builder.WriteRune(t.current)
		t.readChar()
	}

	return Token{Type: WORD, Value: builder.String(), Position: start}
}

// readHostVar reads ":name" or ":name.member.member" references. "::" is
// passed through as the cast operator and ":digits" as plain text so that
// connection targets with port numbers survive tokenization.
func (t *tokenizer) readHostVar() (Token, error) {
	start := t.markPosition()

	t.readChar() // ':'

	if t.current == ':' {
		t.readChar()
		return Token{Type: OPERATOR, Value: "::", Position: start}, nil
	}

	if unicode.IsDigit(t.current) {
		var builder strings.Builder
		builder.WriteByte(':')
		for unicode.IsDigit(t.current) {
			builder.WriteRune(t.current)
			t.readChar()
		}
		return Token{Type: OTHER, Value: builder.String(), Position: start}, nil
	}

	if !unicode.IsLetter(t.current) && t.current != '_' {
		return Token{}, fmt.Errorf("%w: expected identifier after ':' at line %d, column %d", ErrMalformedHostVar, start.Line, start.Column)
	}

	var builder strings.Builder

	for unicode.IsLetter(t.current) || unicode.IsDigit(t.current) || t.current == '_' {
		builder.WriteRune(t.current)
		t.readChar()

		if t.current == '.' && (unicode.IsLetter(t.peekChar()) || t.peekChar() == '_') {
			builder.WriteRune(t.current)
			t.readChar()
		}
	}

	return Token{Type: HOSTVAR, Value: builder.String(), Position: start}, nil
}

// readString reads 'literals' and "quoted identifiers", including the
// delimiters. A doubled delimiter inside the literal is an escape.
func (t *tokenizer) readString(delimiter rune) (Token, error) {
	var builder strings.Builder

	start := t.markPosition()

	builder.WriteRune(delimiter)
	t.readChar()

	for {
		if t.current == 0 {
			return Token{}, fmt.Errorf("%w: %c at line %d, column %d", ErrUnterminatedString, delimiter, start.Line, start.Column)
		}

		if t.current == delimiter {
			if t.peekChar() == delimiter {
				builder.WriteRune(t.current)
				t.readChar()
				builder.WriteRune(t.current)
				t.readChar()
				continue
			}
			builder.WriteRune(t.current)
			t.readChar()
			break
		}

		if t.current == '\\' {
			builder.WriteRune(t.current)
			t.readChar()
			if t.current != 0 {
				builder.WriteRune(t.current)
				t.readChar()
			}
			continue
		}

		builder.WriteRune(t.current)
		t.readChar()
	}

	return Token{Type: QUOTE, Value: builder.String(), Position: start}, nil
}

func (t *tokenizer) readNumber() Token {
	var builder strings.Builder

	start := t.markPosition()

	for unicode.IsDigit(t.current) || t.current == '.' {
		builder.WriteRune(t.current)
		t.readChar()
	}

	if t.current == 'e' || t.current == 'E' {
		builder.WriteRune(t.current)
		t.readChar()
		if t.current == '+' || t.current == '-' {
			builder.WriteRune(t.current)
			t.readChar()
		}
		for unicode.IsDigit(t.current) {
			builder.WriteRune(t.current)
			t.readChar()
		}
	}

	return Token{Type: NUMBER, Value: builder.String(), Position: start}
}

func (t *tokenizer) readLineComment() Token {
	var builder strings.Builder

	start := t.markPosition()

	for t.current != 0 && t.current != '\n' {
		builder.WriteRune(t.current)
		t.readChar()
	}

	return Token{Type: LINE_COMMENT, Value: builder.String(), Position: start}
}

func (t *tokenizer) readBlockComment() (Token, error) {
	var builder strings.Builder

	start := t.markPosition()

	builder.WriteRune(t.current)
	t.readChar()
	builder.WriteRune(t.current)
	t.readChar()

	for t.current != 0 {
		if t.current == '*' && t.peekChar() == '/' {
			builder.WriteRune(t.current)
			t.readChar()
			builder.WriteRune(t.current)
			t.readChar()

			return Token{Type: BLOCK_COMMENT, Value: builder.String(), Position: start}, nil
		}
		builder.WriteRune(t.current)
		t.readChar()
	}

	return Token{}, fmt.Errorf("%w at line %d, column %d", ErrUnterminatedComment, start.Line, start.Column)
}

func (t *tokenizer) markPosition() Position {
	return Position{Line: t.line, Column: t.column - 1, Offset: t.position - t.width}
}

func (t *tokenizer) newToken(tokenType TokenType, value string) Token {
	return Token{
		Type:  tokenType,
		Value: value,
		Position: Position{
			Line:   t.line,
			Column: t.column - len([]rune(value)),
			Offset: t.position - len(value),
		},
	}
}
