package scanner

import (
	"fmt"
	"iter"
	"strings"
)

// ChunkIterator uses the Go 1.24 iterator pattern
type ChunkIterator iter.Seq2[Chunk, error]

// Scanner splits a mixed C / embedded-SQL source file into classified
// chunks. It understands C string and character literals, line and block
// comments, and brace nesting, so an EXEC SQL marker inside a literal or a
// comment is never taken for a directive.
type Scanner struct {
	input string
}

// New creates a Scanner over the given source text.
func New(input string) *Scanner {
	return &Scanner{input: input}
}

// Chunks returns a lazy, restartable iterator over classified chunks.
func (s *Scanner) Chunks() ChunkIterator {
	return func(yield func(Chunk, error) bool) {
		sc := &scanner{input: s.input, line: 1}
		sc.run(yield)
	}
}

// AllChunks collects every chunk into a slice. The first error stops the
// scan; a half-read final chunk is not returned.
func (s *Scanner) AllChunks() ([]Chunk, error) {
	chunks := make([]Chunk, 0, 16)

	for chunk, err := range s.Chunks() {
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}

	return chunks, nil
}

// Internal scanner implementation
type scanner struct {
	input string
	pos   int
	line  int
	depth int

	host      strings.Builder
	hostLine  int // line of the first pending host character
	hostEmpty bool
}

func (sc *scanner) run(yield func(Chunk, error) bool) {
	sc.hostLine = sc.line
	sc.hostEmpty = true

	for sc.pos < len(sc.input) {
		c := sc.input[sc.pos]

		switch {
		case c == '"' || c == '\'':
			sc.copyLiteral(c)
		case c == '/' && sc.peek(1) == '/':
			sc.copyLineComment()
		case c == '/' && sc.peek(1) == '*':
			sc.copyBlockComment()
		case c == '{':
			sc.take()
			sc.depth++
			if !sc.flushHost(yield) {
				return
			}
		case c == '}':
			sc.take()
			if sc.depth > 0 {
				sc.depth--
			}
			if !sc.flushHost(yield) {
				return
			}
		case (c == 'e' || c == 'E') && sc.atDirectiveMarker():
			if !sc.flushHost(yield) {
				return
			}
			if !sc.readDirective(yield) {
				return
			}
		default:
			sc.take()
		}
	}

	sc.flushHost(yield)
}

func (sc *scanner) peek(ahead int) byte {
	if sc.pos+ahead >= len(sc.input) {
		return 0
	}
	return sc.input[sc.pos+ahead]
}

// take copies the current character into the pending host chunk.
func (sc *scanner) take() {
	if sc.hostEmpty {
		sc.hostLine = sc.line
		sc.hostEmpty = false
	}

	c := sc.input[sc.pos]
	sc.host.WriteByte(c)
	sc.pos++

	if c == '\n' {
		sc.line++
	}
}

// copyLiteral copies a C string or character literal verbatim, honoring
// backslash escapes. An unterminated literal runs to end of file and is
// still emitted as host code; the downstream C compiler reports it.
func (sc *scanner) copyLiteral(delim byte) {
	sc.take() // opening delimiter

	for sc.pos < len(sc.input) {
		c := sc.input[sc.pos]
		if c == '\\' {
			sc.take()
			if sc.pos < len(sc.input) {
				sc.take()
			}
			continue
		}

		sc.take()

		if c == delim {
			return
		}
	}
}

func (sc *scanner) copyLineComment() {
	for sc.pos < len(sc.input) && sc.input[sc.pos] != '\n' {
		sc.take()
	}
}

func (sc *scanner) copyBlockComment() {
	sc.take() // '/'
	sc.take() // '*'

	for sc.pos < len(sc.input) {
		if sc.input[sc.pos] == '*' && sc.peek(1) == '/' {
			sc.take()
			sc.take()
			return
		}
		sc.take()
	}
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// atDirectiveMarker reports whether the input at the current position reads
// "EXEC SQL" (case-insensitive, any whitespace between the words) on a word
// boundary.
func (sc *scanner) atDirectiveMarker() bool {
	if sc.pos > 0 && isIdentChar(sc.input[sc.pos-1]) {
		return false
	}

	rest := sc.input[sc.pos:]
	if len(rest) < 8 || !strings.EqualFold(rest[:4], "exec") {
		return false
	}

	i := 4
	for i < len(rest) && (rest[i] == ' ' || rest[i] == '\t' || rest[i] == '\n' || rest[i] == '\r') {
		i++
	}
	if i == 4 || i+3 > len(rest) || !strings.EqualFold(rest[i:i+3], "sql") {
		return false
	}
	if i+3 < len(rest) && isIdentChar(rest[i+3]) {
		return false
	}

	return true
}

// readDirective consumes "EXEC SQL ... ;" and yields the classified chunk.
// The body is read raw: single-quoted SQL strings, double-quoted
// identifiers, and SQL comments may contain semicolons without terminating
// the directive.
func (sc *scanner) readDirective(yield func(Chunk, error) bool) bool {
	startLine := sc.line

	// skip "exec"
	sc.skip(4)
	sc.skipSpace()
	// skip "sql"
	sc.skip(3)

	var body strings.Builder

	for sc.pos < len(sc.input) {
		c := sc.input[sc.pos]

		switch {
		case c == ';':
			endLine := sc.line
			sc.skip(1)
			if strings.TrimSpace(body.String()) == "" {
				return yield(Chunk{}, fmt.Errorf("%w at line %d", ErrEmptyDirective, startLine))
			}
			return yield(classify(body.String(), startLine, endLine, sc.depth), nil)
		case c == '\'' || c == '"':
			sc.copyRawLiteral(&body, c)
		case c == '-' && sc.peek(1) == '-':
			for sc.pos < len(sc.input) && sc.input[sc.pos] != '\n' {
				sc.copyRaw(&body)
			}
		case c == '/' && sc.peek(1) == '*':
			sc.copyRaw(&body)
			sc.copyRaw(&body)
			for sc.pos < len(sc.input) {
				if sc.input[sc.pos] == '*' && sc.peek(1) == '/' {
					sc.copyRaw(&body)
					sc.copyRaw(&body)
					break
				}
				sc.copyRaw(&body)
			}
		default:
			sc.copyRaw(&body)
		}
	}

	return yield(Chunk{}, fmt.Errorf("%w: directive starting at line %d", ErrUnterminatedDirective, startLine))
}

func (sc *scanner) skip(n int) {
	for i := 0; i < n && sc.pos < len(sc.input); i++ {
		if sc.input[sc.pos] == '\n' {
			sc.line++
		}
		sc.pos++
	}
}

func (sc *scanner) skipSpace() {
	for sc.pos < len(sc.input) {
		c := sc.input[sc.pos]
		if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
			return
		}
		sc.skip(1)
	}
}

func (sc *scanner) copyRaw(body *strings.Builder) {
	if sc.input[sc.pos] == '\n' {
		sc.line++
	}
	body.WriteByte(sc.input[sc.pos])
	sc.pos++
}

func (sc *scanner) copyRawLiteral(body *strings.Builder, delim byte) {
	sc.copyRaw(body) // opening delimiter

	for sc.pos < len(sc.input) {
		c := sc.input[sc.pos]
		sc.copyRaw(body)

		if c == delim {
			return
		}
	}
}

// flushHost yields the pending host code chunk, if any.
func (sc *scanner) flushHost(yield func(Chunk, error) bool) bool {
	if sc.hostEmpty {
		return true
	}

	chunk := Chunk{
		Kind:    HostCode,
		Text:    sc.host.String(),
		Line:    sc.hostLine,
		EndLine: sc.line,
		Depth:   sc.depth,
	}

	sc.host.Reset()
	sc.hostEmpty = true
	sc.hostLine = sc.line

	return yield(chunk, nil)
}

// classify decides the chunk kind from the directive body.
func classify(body string, startLine, endLine, depth int) Chunk {
	trimmed := strings.TrimSpace(body)
	chunk := Chunk{Kind: SqlDirective, Text: trimmed, Line: startLine, EndLine: endLine, Depth: depth}

	fields := strings.Fields(strings.ToLower(trimmed))
	switch {
	case len(fields) == 3 && fields[0] == "begin" && fields[1] == "declare" && fields[2] == "section":
		chunk.Kind = DeclareSectionStart
		chunk.Text = ""
	case len(fields) == 3 && fields[0] == "end" && fields[1] == "declare" && fields[2] == "section":
		chunk.Kind = DeclareSectionEnd
		chunk.Text = ""
	case len(fields) >= 2 && fields[0] == "include":
		chunk.Kind = Include
		chunk.Text = strings.TrimSpace(trimmed[len("include"):])
	}

	return chunk
}
