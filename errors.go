package esqlc

import "errors"

// Common errors used throughout the esqlc package
var (
	// ErrConfigValidation is returned when configuration validation fails.
	ErrConfigValidation = errors.New("configuration validation failed")
	// ErrUnterminatedDeclareSection indicates BEGIN DECLARE SECTION without a matching end.
	ErrUnterminatedDeclareSection = errors.New("begin declare section without matching end declare section")
	// ErrStrayDeclareSectionEnd indicates END DECLARE SECTION without a matching begin.
	ErrStrayDeclareSectionEnd = errors.New("end declare section without matching begin declare section")
	// ErrNestedDeclareSection indicates a declare section opened inside another one.
	ErrNestedDeclareSection = errors.New("declare sections cannot nest")
	// ErrDirectiveInDeclareSection indicates an embedded SQL statement inside a declare section.
	ErrDirectiveInDeclareSection = errors.New("only declarations are allowed inside a declare section")
	// ErrIncludeNotFound indicates an EXEC SQL INCLUDE file was not found on the include path.
	ErrIncludeNotFound = errors.New("include file not found")
	// ErrIncludeCycle indicates a file includes itself, directly or through other files.
	ErrIncludeCycle = errors.New("include cycle detected")
	// ErrNotEmbeddedSQLSource indicates an input file without the expected extension.
	ErrNotEmbeddedSQLSource = errors.New("input file must have the .pgc extension")
)
