package declparser

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnterminatedComment is reported for a block comment left open inside a
// declare section.
var ErrUnterminatedComment = errors.New("unterminated block comment in declare section")

type tokenKind int

const (
	tkEOF tokenKind = iota
	tkIdent
	tkNumber
	tkPunct // single punctuation character: * , ; [ ] { } = ( )
)

type token struct {
	kind   tokenKind
	text   string
	offset int // byte offset in the section text
	line   int // absolute source line
}

func (t token) is(text string) bool {
	return t.text == text
}

// lex tokenizes the C text of one declare section. Whitespace and comments
// are trivia: they are skipped here and preserved through verbatim
// re-emission of the original text. baseLine is the source line of the
// first character of the section.
func lex(input string, baseLine int) ([]token, error) {
	tokens := make([]token, 0, 32)
	line := baseLine
	i := 0

	for i < len(input) {
		c := input[i]

		switch {
		case c == '\n':
			line++
			i++
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '/' && i+1 < len(input) && input[i+1] == '/':
			for i < len(input) && input[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(input) && input[i+1] == '*':
			start := line
			i += 2
			for {
				if i+1 >= len(input) {
					return nil, fmt.Errorf("%w at line %d", ErrUnterminatedComment, start)
				}
				if input[i] == '*' && input[i+1] == '/' {
					i += 2
					break
				}
				if input[i] == '\n' {
					line++
				}
				i++
			}
		case c == '#':
			// Preprocessor lines pass through as host text untouched.
			for i < len(input) && input[i] != '\n' {
				i++
			}
		case c == '"' || c == '\'':
			// Literals only appear in initializers, which are skipped; a
			// ';' inside one must not terminate the declaration.
			quote := c
			i++
			for i < len(input) && input[i] != quote {
				if input[i] == '\\' && i+1 < len(input) {
					i++
				}
				if input[i] == '\n' {
					line++
				}
				i++
			}
			if i < len(input) {
				i++
			}
		case isLetter(c):
			start := i
			for i < len(input) && isIdentByte(input[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tkIdent, text: input[start:i], offset: start, line: line})
		case c >= '0' && c <= '9':
			start := i
			for i < len(input) && isIdentByte(input[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tkNumber, text: input[start:i], offset: start, line: line})
		case strings.IndexByte("*,;[]{}=()+-.&<>|!%^~?:", c) >= 0:
			tokens = append(tokens, token{kind: tkPunct, text: string(c), offset: i, line: line})
			i++
		default:
			i++
		}
	}

	tokens = append(tokens, token{kind: tkEOF, offset: len(input), line: line})

	return tokens, nil
}

func isLetter(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentByte(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9')
}
