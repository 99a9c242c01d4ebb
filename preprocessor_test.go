package esqlc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/shibukawa/esqlc/symtab"
)

func testConfig() *Config {
	return &Config{
		InputDir: ".",
		Output:   OutputConfig{Extension: ".c"},
	}
}

func plainConfig() *Config {
	off := false
	config := testConfig()
	config.Regression = true
	config.Output.LineMarkers = &off

	return config
}

func TestTranslateMinimal(t *testing.T) {
	p := New(plainConfig())

	out, err := p.Translate("main.pgc",
		"EXEC SQL BEGIN DECLARE SECTION;\nint id;\nEXEC SQL END DECLARE SECTION;\nEXEC SQL COMMIT;\n")
	assert.NoError(t, err)

	want := `/* Processed by esqlc (regression mode) */
/* These include files are added by the preprocessor */
#include <ecpglib.h>
#include <ecpgerrno.h>
#include <sqlca.h>
/* End of automatic include section */
/* exec sql begin declare section */

int id;
/* exec sql end declare section */

{ ECPGtrans(__LINE__, NULL, "commit");}

`
	assert.Equal(t, want, out)
}

func TestTranslateFullSource(t *testing.T) {
	src := `#include <stdio.h>

EXEC SQL BEGIN DECLARE SECTION;
int id;
double total;
EXEC SQL END DECLARE SECTION;

int main(void)
{
	EXEC SQL WHENEVER SQLERROR SQLPRINT;
	EXEC SQL SELECT total INTO :total FROM orders WHERE id = :id;
	printf("%f\n", total);
	return 0;
}
`

	p := New(testConfig())

	out, err := p.Translate("main.pgc", src)
	assert.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, fmt.Sprintf("/* Processed by esqlc %s */\n", Version)))
	assert.Contains(t, out, "#line 1 \"main.pgc\"\n")
	assert.Contains(t, out, "/* exec sql begin declare section */")
	assert.Contains(t, out, "/* exec sql WHENEVER SQLERROR SQLPRINT ; */")
	assert.Contains(t, out,
		`{ ECPGdo(__LINE__, NULL, ECPGst_normal, "SELECT total FROM orders WHERE id = $1", `+
			`ECPGt_int,&(id),(long)1,(long)1,sizeof(int), ECPGt_NO_INDICATOR, NULL , 0L, 0L, 0L, `+
			`ECPGt_EOIT, `+
			`ECPGt_double,&(total),(long)1,(long)1,sizeof(double), ECPGt_NO_INDICATOR, NULL , 0L, 0L, 0L, `+
			`ECPGt_EORT);`)
	assert.Contains(t, out, "if (sqlca.sqlcode < 0) sqlprint();}")

	// host code carried through verbatim
	assert.Contains(t, out, "#include <stdio.h>")
	assert.Contains(t, out, `printf("%f\n", total);`)
}

func TestTranslateErrorDiscardsOutput(t *testing.T) {
	p := New(testConfig())

	out, err := p.Translate("main.pgc", "EXEC SQL SELECT 1 INTO :nowhere FROM t;\n")
	assert.IsError(t, err, symtab.ErrUnknownHostVariable)
	assert.Equal(t, "", out)
}

func TestDeclareSectionErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{
			name: "stray end",
			src:  "EXEC SQL END DECLARE SECTION;\n",
			want: ErrStrayDeclareSectionEnd,
		},
		{
			name: "unterminated",
			src:  "EXEC SQL BEGIN DECLARE SECTION;\nint id;\n",
			want: ErrUnterminatedDeclareSection,
		},
		{
			name: "nested",
			src:  "EXEC SQL BEGIN DECLARE SECTION;\nEXEC SQL BEGIN DECLARE SECTION;\n",
			want: ErrNestedDeclareSection,
		},
		{
			name: "directive inside",
			src:  "EXEC SQL BEGIN DECLARE SECTION;\nEXEC SQL COMMIT;\nEXEC SQL END DECLARE SECTION;\n",
			want: ErrDirectiveInDeclareSection,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(testConfig()).Translate("main.pgc", tt.src)
			assert.IsError(t, err, tt.want)
		})
	}
}

func TestBlockScopedDeclarations(t *testing.T) {
	src := `int main(void)
{
EXEC SQL BEGIN DECLARE SECTION;
int id;
EXEC SQL END DECLARE SECTION;
EXEC SQL DELETE FROM t WHERE id = :id;
}
EXEC SQL SELECT 1 INTO :id FROM t;
`

	_, err := New(testConfig()).Translate("main.pgc", src)
	assert.IsError(t, err, symtab.ErrUnknownHostVariable)
}

func TestBuiltinInclude(t *testing.T) {
	p := New(plainConfig())

	out, err := p.Translate("main.pgc", "EXEC SQL INCLUDE sqlca;\n")
	assert.NoError(t, err)
	assert.Contains(t, out, "#include <sqlca.h>\n")
}

func TestIncludeFile(t *testing.T) {
	dir := t.TempDir()

	defs := filepath.Join(dir, "defs.pgc")
	err := os.WriteFile(defs,
		[]byte("EXEC SQL BEGIN DECLARE SECTION;\nint shared_id;\nEXEC SQL END DECLARE SECTION;\n"),
		0o644)
	assert.NoError(t, err)

	main := filepath.Join(dir, "main.pgc")
	src := "EXEC SQL INCLUDE defs;\nEXEC SQL DELETE FROM t WHERE id = :shared_id;\n"

	p := New(testConfig())

	out, err := p.Translate(main, src)
	assert.NoError(t, err)

	// markers inside the include name the included file, then return
	assert.Contains(t, out, fmt.Sprintf("#line 1 %q\n", defs))
	assert.Contains(t, out, fmt.Sprintf("#line 1 %q\n", main))
	assert.Contains(t, out, "int shared_id;")
	assert.Contains(t, out, "ECPGt_int,&(shared_id)")
}

func TestIncludeNotFound(t *testing.T) {
	_, err := New(testConfig()).Translate("main.pgc", "EXEC SQL INCLUDE missing_header;\n")
	assert.IsError(t, err, ErrIncludeNotFound)
}

func TestIncludeCycle(t *testing.T) {
	dir := t.TempDir()

	a := filepath.Join(dir, "a.pgc")
	b := filepath.Join(dir, "b.pgc")
	assert.NoError(t, os.WriteFile(a, []byte("EXEC SQL INCLUDE b;\n"), 0o644))
	assert.NoError(t, os.WriteFile(b, []byte("EXEC SQL INCLUDE a;\n"), 0o644))

	_, err := New(testConfig()).Translate(a, "EXEC SQL INCLUDE b;\n")
	assert.IsError(t, err, ErrIncludeCycle)
}

func TestIncludeSearchPath(t *testing.T) {
	inc := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(inc, "common.h"),
		[]byte("EXEC SQL BEGIN DECLARE SECTION;\nint shared;\nEXEC SQL END DECLARE SECTION;\n"),
		0o644))

	config := testConfig()
	config.IncludeDirs = []string{inc}

	out, err := New(config).Translate("main.pgc", "EXEC SQL INCLUDE common;\n")
	assert.NoError(t, err)
	assert.Contains(t, out, "int shared;")
}

func TestTypeDirectiveTranslation(t *testing.T) {
	src := "EXEC SQL TYPE str IS varchar[16];\n" +
		"EXEC SQL BEGIN DECLARE SECTION;\nstr s;\nEXEC SQL END DECLARE SECTION;\n" +
		"EXEC SQL INSERT INTO t VALUES (:s);\n"

	out, err := New(plainConfig()).Translate("main.pgc", src)
	assert.NoError(t, err)

	assert.Contains(t, out, "typedef struct varchar_str { int len; char arr[ 16 ]; } str ;")
	assert.Contains(t, out, "ECPGt_varchar,&(s),(long)16,(long)1,sizeof(struct varchar_str)")
}

func TestTranslateFile(t *testing.T) {
	dir := t.TempDir()

	input := filepath.Join(dir, "query.pgc")
	assert.NoError(t, os.WriteFile(input, []byte("EXEC SQL COMMIT;\n"), 0o644))

	p := New(testConfig())

	outPath, err := p.TranslateFile(input)
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "query.c"), outPath)

	data, err := os.ReadFile(outPath)
	assert.NoError(t, err)
	assert.Contains(t, string(data), "ECPGtrans(__LINE__, NULL, \"commit\")")

	_, err = p.TranslateFile(filepath.Join(dir, "query.c"))
	assert.IsError(t, err, ErrNotEmbeddedSQLSource)
}

func TestOutputPath(t *testing.T) {
	p := New(testConfig())
	assert.Equal(t, filepath.Join("src", "query.c"), p.OutputPath(filepath.Join("src", "query.pgc")))

	config := testConfig()
	config.OutputDir = "build"
	p = New(config)
	assert.Equal(t, filepath.Join("build", "query.c"), p.OutputPath(filepath.Join("src", "query.pgc")))
}

func TestDefaultConnectionRouting(t *testing.T) {
	config := plainConfig()
	config.DefaultConnection = "main"

	out, err := New(config).Translate("main.pgc", "EXEC SQL COMMIT;\n")
	assert.NoError(t, err)
	assert.Contains(t, out, `ECPGtrans(__LINE__, "main", "commit")`)
}

func TestTypedefText(t *testing.T) {
	tests := []struct {
		name string
		spec string
		want string
	}{
		{name: "serial", spec: "int", want: "typedef int serial ;"},
		{name: "str", spec: "varchar[64]", want: "typedef varchar str [64] ;"},
		{name: "spaced", spec: "varchar [ 64 ]", want: "typedef varchar str [ 64 ] ;"},
		{name: "grid", spec: "int[2][3]", want: "typedef int grid [2][3] ;"},
	}

	names := map[string]string{"serial": "serial", "str": "str", "spaced": "str", "grid": "grid"}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, typedefText(names[tt.name], tt.spec))
		})
	}
}
