package scanner

import "errors"

// Sentinel errors
var (
	ErrUnterminatedDirective = errors.New("embedded SQL directive is not terminated before end of file")
	ErrEmptyDirective        = errors.New("embedded SQL directive has no statement body")
)

// ChunkKind classifies a region of the input file.
type ChunkKind int

const (
	// HostCode is plain C source passed through untouched.
	HostCode ChunkKind = iota
	// DeclareSectionStart marks "EXEC SQL BEGIN DECLARE SECTION;".
	DeclareSectionStart
	// DeclareSectionEnd marks "EXEC SQL END DECLARE SECTION;".
	DeclareSectionEnd
	// SqlDirective is any other "EXEC SQL ...;" statement.
	SqlDirective
	// Include is "EXEC SQL INCLUDE name;".
	Include
)

// String returns the string representation of ChunkKind
func (k ChunkKind) String() string {
	switch k {
	case HostCode:
		return "HostCode"
	case DeclareSectionStart:
		return "DeclareSectionStart"
	case DeclareSectionEnd:
		return "DeclareSectionEnd"
	case SqlDirective:
		return "SqlDirective"
	case Include:
		return "Include"
	default:
		return "Unknown"
	}
}

// Chunk is one classified region of the source file.
//
// For HostCode chunks Text is the original source verbatim, so that
// concatenating consecutive host chunks reproduces the input byte for byte.
// For directive chunks Text is the statement body between the EXEC SQL
// marker and the terminating semicolon, with surrounding whitespace removed.
type Chunk struct {
	Kind    ChunkKind
	Text    string
	Line    int // line of the first character of the chunk
	EndLine int // line of the last character (the ';' for directives)
	Depth   int // host brace depth after this chunk
}
