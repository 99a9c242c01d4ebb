// Package esqlc translates C source files with embedded SQL (.pgc) into
// plain C that calls the ECPG runtime library. The root package wires the
// stages together: the scanner splits a file into host code and EXEC SQL
// directives, declparser records host variables from declare sections,
// sqlparser normalizes statements and binds their host variables, and
// codegen emits the runtime calls with #line markers back to the original
// source.
package esqlc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/shibukawa/esqlc/codegen"
	"github.com/shibukawa/esqlc/declparser"
	"github.com/shibukawa/esqlc/scanner"
	"github.com/shibukawa/esqlc/sqlparser"
	"github.com/shibukawa/esqlc/symtab"
)

// Preprocessor translates embedded SQL sources according to one Config.
// It is stateless between files; each Translate call builds a fresh
// translation unit.
type Preprocessor struct {
	config *Config
	logger *zap.Logger
}

// Option configures a Preprocessor.
type Option func(*Preprocessor)

// WithLogger attaches a logger for per-statement debug output.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Preprocessor) {
		p.logger = logger
	}
}

// New creates a Preprocessor with the given configuration.
func New(config *Config, options ...Option) *Preprocessor {
	p := &Preprocessor{
		config: config,
		logger: zap.NewNop(),
	}
	for _, opt := range options {
		opt(p)
	}

	return p
}

// Translate converts one embedded SQL source to C. name is used in the
// output banner and #line markers. On error no partial output is returned.
func (p *Preprocessor) Translate(name, src string) (string, error) {
	table := symtab.New()

	gen := codegen.New(name,
		codegen.WithDefaultConnection(p.config.DefaultConnection),
		codegen.WithLineMarkers(p.config.Output.LineMarkersEnabled()),
	)

	u := &unit{
		p:         p,
		table:     table,
		decls:     declparser.New(table),
		norm:      sqlparser.New(table),
		gen:       gen,
		including: map[string]bool{},
	}

	gen.Preamble(Version, p.config.Regression)

	if err := u.processSource(name, src); err != nil {
		return "", err
	}

	return gen.String(), nil
}

// TranslateFile translates path and writes the result next to it, or into
// the configured output directory. It returns the output path.
func (p *Preprocessor) TranslateFile(path string) (string, error) {
	if !strings.EqualFold(filepath.Ext(path), ".pgc") {
		return "", fmt.Errorf("%w: %s", ErrNotEmbeddedSQLSource, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	output, err := p.Translate(path, string(data))
	if err != nil {
		return "", err
	}

	outPath := p.OutputPath(path)
	if err := os.WriteFile(outPath, []byte(output), 0o644); err != nil {
		return "", fmt.Errorf("failed to write output: %w", err)
	}

	p.logger.Info("translated file",
		zap.String("input", path),
		zap.String("output", outPath))

	return outPath, nil
}

// OutputPath maps an input path to its generated file path.
func (p *Preprocessor) OutputPath(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name := base + p.config.Output.Extension

	if p.config.OutputDir != "" {
		return filepath.Join(p.config.OutputDir, name)
	}

	return filepath.Join(filepath.Dir(path), name)
}

// resolveInclude searches the input file's directory and the configured
// include directories for an EXEC SQL INCLUDE file. The bare name is tried
// first, then name.pgc, then name.h.
func (p *Preprocessor) resolveInclude(fromDir, name string) (string, bool) {
	dirs := append([]string{fromDir}, p.config.IncludeDirs...)

	for _, dir := range dirs {
		for _, candidate := range []string{name, name + ".pgc", name + ".h"} {
			path := filepath.Join(dir, candidate)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, true
			}
		}
	}

	return "", false
}

// unit is the state of one translation: the symbol table, the accumulated
// whenever handlers, and the include chain.
type unit struct {
	p     *Preprocessor
	table *symtab.Table
	decls *declparser.Parser
	norm  *sqlparser.Normalizer
	gen   *codegen.Generator

	whenever codegen.WheneverContext
	depth    int

	// file is the marker file for the source currently being processed;
	// empty means the top-level input.
	file      string
	including map[string]bool
}

// processSource scans one source text and feeds each chunk through the
// pipeline. name is the path used for include resolution.
func (u *unit) processSource(name, src string) error {
	chunks, err := scanner.New(src).AllChunks()
	if err != nil {
		return err
	}

	i := 0
	for i < len(chunks) {
		chunk := chunks[i]

		switch chunk.Kind {
		case scanner.HostCode:
			u.gen.Host(chunk.Text, chunk.Line)
			if err := u.trackScopes(chunk.Depth); err != nil {
				return err
			}
			i++
		case scanner.DeclareSectionStart:
			next, err := u.processDeclareSection(chunks, i)
			if err != nil {
				return err
			}
			i = next
		case scanner.DeclareSectionEnd:
			return fmt.Errorf("%w at line %d", ErrStrayDeclareSectionEnd, chunk.Line)
		case scanner.Include:
			if err := u.processInclude(name, chunk); err != nil {
				return err
			}
			i++
		case scanner.SqlDirective:
			if err := u.processDirective(chunk); err != nil {
				return err
			}
			i++
		}
	}

	return nil
}

// trackScopes mirrors C brace nesting onto the symbol table so host
// variables declared inside a block go out of scope with it.
func (u *unit) trackScopes(depth int) error {
	for u.depth < depth {
		u.table.EnterScope()
		u.depth++
	}

	for u.depth > depth {
		if err := u.table.ExitScope(); err != nil {
			return err
		}
		u.depth--
	}

	return nil
}

// processDeclareSection gathers the host chunks between BEGIN and END
// DECLARE SECTION, records their declarations, and re-emits the section.
// It returns the index of the chunk after the section.
func (u *unit) processDeclareSection(chunks []scanner.Chunk, start int) (int, error) {
	open := chunks[start]

	var body strings.Builder

	bodyLine := open.EndLine

	for i := start + 1; i < len(chunks); i++ {
		chunk := chunks[i]

		switch chunk.Kind {
		case scanner.HostCode:
			if body.Len() == 0 {
				bodyLine = chunk.Line
			}
			body.WriteString(chunk.Text)
		case scanner.DeclareSectionEnd:
			text, err := u.decls.ParseSection(body.String(), bodyLine)
			if err != nil {
				return 0, err
			}

			u.gen.DeclareSection(text, bodyLine, chunk.EndLine)

			return i + 1, nil
		case scanner.DeclareSectionStart:
			return 0, fmt.Errorf("%w at line %d", ErrNestedDeclareSection, chunk.Line)
		default:
			return 0, fmt.Errorf("%w at line %d", ErrDirectiveInDeclareSection, chunk.Line)
		}
	}

	return 0, fmt.Errorf("%w: section starting at line %d", ErrUnterminatedDeclareSection, open.Line)
}

// builtinIncludes are translated to plain #include directives instead of
// being read from the include path; their headers ship with the runtime
// library.
var builtinIncludes = map[string]bool{
	"sqlca":     true,
	"sqlda":     true,
	"sql3types": true,
}

// processInclude handles EXEC SQL INCLUDE by translating the included file
// inline, with line markers naming it.
func (u *unit) processInclude(from string, chunk scanner.Chunk) error {
	name := strings.TrimSpace(chunk.Text)
	name = strings.Trim(name, "\"'<>")

	if builtinIncludes[strings.ToLower(name)] {
		u.gen.Include(name, chunk.EndLine)
		return nil
	}

	path, ok := u.p.resolveInclude(filepath.Dir(from), name)
	if !ok {
		return fmt.Errorf("%w: %s at line %d", ErrIncludeNotFound, name, chunk.Line)
	}

	if u.including[path] {
		return fmt.Errorf("%w: %s at line %d", ErrIncludeCycle, path, chunk.Line)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read include: %w", err)
	}

	u.p.logger.Debug("processing include",
		zap.String("file", path),
		zap.Int("line", chunk.Line))

	u.including[path] = true
	prev := u.file
	u.file = path
	u.gen.Remap(1, path)

	err = u.processSource(path, string(data))

	delete(u.including, path)
	u.file = prev
	u.gen.Remap(chunk.EndLine, prev)

	return err
}

// processDirective translates one EXEC SQL statement.
func (u *unit) processDirective(chunk scanner.Chunk) error {
	st, err := u.norm.Parse(chunk.Text, chunk.Line)
	if err != nil {
		return err
	}

	u.p.logger.Debug("translated statement",
		zap.String("kind", st.Kind.String()),
		zap.Int("line", st.Line),
		zap.Int("inputs", len(st.Inputs)),
		zap.Int("outputs", len(st.Outputs)))

	remap := chunk.EndLine

	switch st.Kind {
	case sqlparser.KindWhenever:
		u.whenever = u.whenever.With(st.Whenever)
		u.gen.Whenever(st, remap)

		return nil
	case sqlparser.KindTypeDef:
		text, err := u.decls.ParseSection(typedefText(st.Name, st.TypeSpec), chunk.Line)
		if err != nil {
			return err
		}

		u.gen.TypeDef(strings.TrimSpace(text), remap)

		return nil
	default:
		return u.gen.Statement(st, u.whenever, remap)
	}
}

// typedefText renders an EXEC SQL TYPE directive as a C typedef, moving
// trailing array dimensions after the introduced name where C wants them.
func typedefText(name, spec string) string {
	spec = strings.TrimSpace(spec)

	var dims []string

	for strings.HasSuffix(spec, "]") {
		open := strings.LastIndex(spec, "[")
		if open < 0 {
			break
		}
		inner := strings.TrimSpace(spec[open+1 : len(spec)-1])
		if inner != "" && !isNumeric(inner) {
			break
		}
		dims = append([]string{spec[open:]}, dims...)
		spec = strings.TrimSpace(spec[:open])
	}

	if len(dims) == 0 {
		return fmt.Sprintf("typedef %s %s ;", spec, name)
	}

	return fmt.Sprintf("typedef %s %s %s ;", spec, name, strings.Join(dims, ""))
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}

	return true
}
