// Package codegen emits the C output of the preprocessor: runtime library
// calls per embedded SQL statement, whenever condition guards, re-emitted
// declare sections, and the #line directives mapping everything back to the
// original source. The generator is read-only with respect to the symbol
// table; all statement analysis happens in sqlparser.
package codegen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shibukawa/esqlc/sqlparser"
	"github.com/shibukawa/esqlc/symtab"
)

// Sentinel errors
var (
	ErrUnsupportedBinding = errors.New("host variable type cannot be bound as a statement parameter")
	ErrUnknownCType       = errors.New("no runtime type tag for C type")
)

// Generator translates parsed statements into C output for one file.
type Generator struct {
	arena       *Arena
	defaultConn string
	currentFile string // marker file override while inside an include
	noMarkers   bool
}

// Option configures a Generator.
type Option func(*Generator)

// WithDefaultConnection routes statements without an AT clause to a named
// connection instead of the runtime default.
func WithDefaultConnection(name string) Option {
	return func(g *Generator) {
		g.defaultConn = name
	}
}

// WithLineMarkers toggles #line directive emission. Markers are on by
// default; disabling them gives output easier to read by hand.
func WithLineMarkers(enabled bool) Option {
	return func(g *Generator) {
		g.noMarkers = !enabled
	}
}

// New creates a Generator writing output attributed to the given original
// file name.
func New(file string, options ...Option) *Generator {
	g := &Generator{arena: NewArena(file)}
	for _, opt := range options {
		opt(g)
	}

	return g
}

// String renders the accumulated output.
func (g *Generator) String() string {
	return g.arena.String()
}

// Arena exposes the fragment arena for inspection.
func (g *Generator) Arena() *Arena {
	return g.arena
}

// Remap switches subsequent line markers to the given file and line. An
// empty file restores the translation unit's own file. Used when include
// processing enters and leaves an included file.
func (g *Generator) Remap(line int, file string) {
	g.currentFile = file
	g.marker(line)
}

func (g *Generator) marker(line int) {
	if g.noMarkers {
		return
	}
	g.arena.MarkerIn(line, g.currentFile)
}

// Preamble emits the processed-by banner and the runtime include block.
// In regression mode the banner omits the version so expected outputs stay
// stable across releases.
func (g *Generator) Preamble(version string, regression bool) {
	if regression {
		g.arena.Synth("/* Processed by esqlc (regression mode) */\n")
	} else {
		g.arena.Synth(fmt.Sprintf("/* Processed by esqlc %s */\n", version))
	}
	g.arena.Synth("/* These include files are added by the preprocessor */\n")
	g.arena.Synth("#include <ecpglib.h>\n")
	g.arena.Synth("#include <ecpgerrno.h>\n")
	g.arena.Synth("#include <sqlca.h>\n")
	g.arena.Synth("/* End of automatic include section */\n")
	g.marker(1)
}

// Host passes original host code through.
func (g *Generator) Host(text string, line int) {
	g.arena.Host(text, line)
}

// Include emits the #include for an EXEC SQL INCLUDE directive.
func (g *Generator) Include(name string, remapLine int) {
	name = strings.TrimSuffix(name, ".h")
	g.arena.Synth(fmt.Sprintf("#include <%s.h>\n", name))
	g.marker(remapLine)
}

// DeclareSection re-emits an analyzed declare section bracketed by the
// marker comments, with line mapping restored on both sides.
func (g *Generator) DeclareSection(text string, line, remapLine int) {
	g.arena.Synth("/* exec sql begin declare section */\n")
	g.marker(line)
	g.arena.Host(text, line)
	g.arena.Synth("/* exec sql end declare section */\n")
	g.marker(remapLine)
}

// Whenever emits the comment trace of a WHENEVER directive. The state
// change itself is carried by the WheneverContext the caller threads to
// subsequent statements.
func (g *Generator) Whenever(st *sqlparser.Statement, remapLine int) {
	g.arena.Synth(fmt.Sprintf("/* exec sql %s ; */\n", st.Text))
	g.marker(remapLine)
}

// TypeDef emits the C typedef for an EXEC SQL TYPE directive.
func (g *Generator) TypeDef(text string, remapLine int) {
	g.arena.Synth(text + "\n")
	g.marker(remapLine)
}

// Statement emits the runtime call for one statement followed by the
// active whenever guards, then remaps line numbering to the source line
// following the statement.
func (g *Generator) Statement(st *sqlparser.Statement, ctx WheneverContext, remapLine int) error {
	var call string

	switch st.Kind {
	case sqlparser.KindDeclareCursor:
		// cursor declarations generate no code until OPEN
		g.arena.Synth(fmt.Sprintf("/* %s */\n", st.Text))
		g.marker(remapLine)
		return nil
	case sqlparser.KindConnect:
		call = g.connectCall(st)
	case sqlparser.KindDisconnect:
		call = fmt.Sprintf("ECPGdisconnect(__LINE__, %q)", st.Name)
	case sqlparser.KindSetConnection:
		call = fmt.Sprintf("ECPGsetconn(__LINE__, %q)", st.Name)
	case sqlparser.KindTransaction:
		call = fmt.Sprintf("ECPGtrans(__LINE__, %s, %q)", g.connArg(st), st.Command)
	case sqlparser.KindPrepare:
		call = g.prepareCall(st)
	case sqlparser.KindDeallocate:
		call = fmt.Sprintf("ECPGdeallocate(__LINE__, %s, %q)", g.connArg(st), st.Name)
	case sqlparser.KindAllocateDescriptor:
		call = fmt.Sprintf("ECPGallocate_desc(__LINE__, %q)", st.Name)
	case sqlparser.KindDeallocateDescriptor:
		call = fmt.Sprintf("ECPGdeallocate_desc(__LINE__, %q)", st.Name)
	case sqlparser.KindGetDescriptor, sqlparser.KindSetDescriptor:
		var err error
		call, err = g.descriptorCall(st)
		if err != nil {
			return err
		}
	default:
		var err error
		call, err = g.doCall(st)
		if err != nil {
			return err
		}
	}

	g.emitGuarded(call, ctx, st.Line, remapLine)

	return nil
}

// emitGuarded writes "{ call; guards... }" with inner line markers so each
// guard maps to the statement's own source line.
func (g *Generator) emitGuarded(call string, ctx WheneverContext, line, remapLine int) {
	guards := ctx.Guards()

	var out strings.Builder

	out.WriteString("{ ")
	out.WriteString(call)
	out.WriteByte(';')

	if len(guards) == 0 {
		out.WriteString("}\n")
		g.arena.Synth(out.String())
		g.marker(remapLine)
		return
	}

	g.arena.Synth(out.String() + "\n")

	for i, guard := range guards {
		g.marker(line)
		g.arena.Synth("\n")
		if i == len(guards)-1 {
			g.arena.Synth(guard + "}\n")
		} else {
			g.arena.Synth(guard + "\n")
		}
	}

	g.marker(remapLine)
}

// connArg renders the connection argument for the generated call. An AT
// clause naming a host variable passes the variable, not a string literal.
func (g *Generator) connArg(st *sqlparser.Statement) string {
	switch {
	case st.ConnVar:
		return st.Connection
	case st.Connection != "":
		return fmt.Sprintf("%q", st.Connection)
	case g.defaultConn != "":
		return fmt.Sprintf("%q", g.defaultConn)
	default:
		return "NULL"
	}
}

func (g *Generator) connectCall(st *sqlparser.Statement) string {
	name := "NULL"
	if st.Name != "" {
		name = fmt.Sprintf("%q", st.Name)
	}

	user, passwd := st.User, st.Password
	if user == "" {
		user = "NULL"
	}
	if passwd == "" {
		passwd = "NULL"
	}

	return fmt.Sprintf("ECPGconnect(__LINE__, %s, %s, %s, %s)", st.Target, user, passwd, name)
}

func (g *Generator) prepareCall(st *sqlparser.Statement) string {
	source := fmt.Sprintf("%q", st.Text)
	if len(st.Inputs) > 0 {
		source = st.Inputs[0].Name
	}

	return fmt.Sprintf("ECPGprepare(__LINE__, %s, %q, %s)", g.connArg(st), st.Name, source)
}

// doCall renders the ECPGdo call for execute, select-into, open, close,
// fetch, and the prepared execution forms.
func (g *Generator) doCall(st *sqlparser.Statement) (string, error) {
	kind := "ECPGst_normal"
	text := fmt.Sprintf("%q", st.Text)

	switch st.Kind {
	case sqlparser.KindExecutePrepared:
		kind = "ECPGst_execute"
		text = fmt.Sprintf("%q", st.Name)
	case sqlparser.KindExecuteImmediate:
		kind = "ECPGst_exec_immediate"
		if len(st.Inputs) > 0 {
			text = st.Inputs[0].Name
			st = &sqlparser.Statement{Kind: st.Kind, Line: st.Line, Connection: st.Connection, ConnVar: st.ConnVar}
		}
	}

	var out strings.Builder

	fmt.Fprintf(&out, "ECPGdo(__LINE__, %s, %s, %s", g.connArg(st), kind, text)

	for _, bv := range st.Inputs {
		args, err := varArgs(bv)
		if err != nil {
			return "", fmt.Errorf("%s at line %d", err, st.Line)
		}
		out.WriteString(", ")
		out.WriteString(args)
	}

	out.WriteString(", ECPGt_EOIT")

	for _, bv := range st.Outputs {
		args, err := varArgs(bv)
		if err != nil {
			return "", fmt.Errorf("%s at line %d", err, st.Line)
		}
		out.WriteString(", ")
		out.WriteString(args)
	}

	out.WriteString(", ECPGt_EORT)")

	return out.String(), nil
}

// descriptorCall renders ECPGget_desc/ECPGset_desc calls. The COUNT header
// item uses the dedicated header entry points.
func (g *Generator) descriptorCall(st *sqlparser.Statement) (string, error) {
	get := st.Kind == sqlparser.KindGetDescriptor

	if st.Descriptor.Number == "" {
		// header form: single COUNT item
		if len(st.Descriptor.Items) != 1 {
			return "", fmt.Errorf("%w: descriptor header form takes a single item at line %d", ErrUnsupportedBinding, st.Line)
		}
		item := st.Descriptor.Items[0]
		if item.Field != "count" {
			return "", fmt.Errorf("%w: descriptor header item %q at line %d", ErrUnsupportedBinding, item.Field, st.Line)
		}

		entry := "ECPGget_desc_header"
		if !get {
			entry = "ECPGset_desc_header"
		}

		return fmt.Sprintf("%s(__LINE__, %q, &(%s))", entry, st.Name, item.Var.Name), nil
	}

	entry := "ECPGget_desc"
	if !get {
		entry = "ECPGset_desc"
	}

	var out strings.Builder

	fmt.Fprintf(&out, "%s(__LINE__, %q, %s", entry, st.Name, st.Descriptor.Number)

	for _, item := range st.Descriptor.Items {
		args, err := varArgs(item.Var)
		if err != nil {
			return "", fmt.Errorf("%s at line %d", err, st.Line)
		}
		fmt.Fprintf(&out, ", ECPGd_%s, %s", item.Field, args)
	}

	out.WriteString(", ECPGd_EODT)")

	return out.String(), nil
}

// varArgs renders the five-argument binding group for one bound variable:
// type tag, address, varchar length, array length, element size, followed
// by the indicator's group or the no-indicator sentinel.
func varArgs(bv sqlparser.BoundVariable) (string, error) {
	group, err := bindingGroup(bv.Name, bv.Decl.Type)
	if err != nil {
		return "", err
	}

	if bv.Indicator == nil {
		return group + ", ECPGt_NO_INDICATOR, NULL , 0L, 0L, 0L", nil
	}

	ind, err := bindingGroup(bv.Indicator.Name, bv.Indicator.Type)
	if err != nil {
		return "", err
	}

	return group + ", " + ind, nil
}

// bindingGroup renders "ECPGt_tag,addr,(long)varcharsize,(long)arrsize,size"
// from a declaration's type descriptor.
func bindingGroup(name string, desc *symtab.TypeDescriptor) (string, error) {
	switch desc.Kind {
	case symtab.Varchar:
		return fmt.Sprintf("ECPGt_varchar,&(%s),(long)%d,(long)1,sizeof(struct %s)", name, desc.MaxLen, varcharTag(name, desc)), nil

	case symtab.Scalar:
		tag, err := typeTag(desc.CType)
		if err != nil {
			return "", err
		}
		if desc.CType == "char" || desc.CType == "unsigned char" {
			return fmt.Sprintf("%s,&(%s),(long)1,(long)1,(1)*sizeof(char)", tag, name), nil
		}
		return fmt.Sprintf("%s,&(%s),(long)1,(long)1,sizeof(%s)", tag, name, desc.CType), nil

	case symtab.Pointer:
		tag, err := typeTag(desc.CType)
		if err != nil {
			return "", err
		}
		if desc.CType == "char" || desc.CType == "unsigned char" {
			return fmt.Sprintf("%s,(%s),(long)0,(long)1,(1)*sizeof(char)", tag, name), nil
		}
		return fmt.Sprintf("%s,(%s),(long)1,(long)1,sizeof(%s)", tag, name, desc.CType), nil

	case symtab.FixedArray:
		return arrayGroup(name, desc)

	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedBinding, desc)
	}
}

// arrayGroup renders the binding for array declarations. A char array is a
// string buffer: its dimension is the varchar length, not an array length.
// An array of char arrays is an array of string buffers.
func arrayGroup(name string, desc *symtab.TypeDescriptor) (string, error) {
	elem := desc.Elem

	if elem.Kind == symtab.Scalar && (elem.CType == "char" || elem.CType == "unsigned char") {
		tag, _ := typeTag(elem.CType)
		return fmt.Sprintf("%s,(%s),(long)%d,(long)1,(%d)*sizeof(char)", tag, name, desc.Length, desc.Length), nil
	}

	if elem.Kind == symtab.FixedArray && elem.Elem.Kind == symtab.Scalar &&
		(elem.Elem.CType == "char" || elem.Elem.CType == "unsigned char") {
		tag, _ := typeTag(elem.Elem.CType)
		return fmt.Sprintf("%s,(%s),(long)%d,(long)%d,(%d)*sizeof(char)", tag, name, elem.Length, desc.Length, elem.Length), nil
	}

	if elem.Kind != symtab.Scalar && elem.Kind != symtab.Varchar {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedBinding, desc)
	}

	if elem.Kind == symtab.Varchar {
		return fmt.Sprintf("ECPGt_varchar,(%s),(long)%d,(long)%d,sizeof(struct %s)", name, elem.MaxLen, desc.Length, varcharTag(name, elem)), nil
	}

	tag, err := typeTag(elem.CType)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s,(%s),(long)1,(long)%d,sizeof(%s)", tag, name, desc.Length, elem.CType), nil
}

// varcharTag returns the struct tag of a varchar's generated struct type.
// Declarations rewritten in a declare section carry the tag on the
// descriptor; the fallback covers descriptors built without one.
func varcharTag(name string, desc *symtab.TypeDescriptor) string {
	if desc.Tag != "" {
		return desc.Tag
	}

	return "varchar_" + name
}

// typeTags maps spelled C scalar types to the runtime library type tags.
var typeTags = map[string]string{
	"char":               "ECPGt_char",
	"unsigned char":      "ECPGt_unsigned_char",
	"short":              "ECPGt_short",
	"unsigned short":     "ECPGt_unsigned_short",
	"int":                "ECPGt_int",
	"unsigned int":       "ECPGt_unsigned_int",
	"long":               "ECPGt_long",
	"unsigned long":      "ECPGt_unsigned_long",
	"long long":          "ECPGt_long_long",
	"unsigned long long": "ECPGt_unsigned_long_long",
	"float":              "ECPGt_float",
	"double":             "ECPGt_double",
	"bool":               "ECPGt_bool",
}

func typeTag(ctype string) (string, error) {
	tag, ok := typeTags[ctype]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCType, ctype)
	}

	return tag, nil
}
