package codegen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shibukawa/esqlc/sqlparser"
	"github.com/shibukawa/esqlc/symtab"
)

func bound(name string, desc *symtab.TypeDescriptor) sqlparser.BoundVariable {
	return sqlparser.BoundVariable{
		Name: name,
		Decl: &symtab.Declaration{Name: name, Type: desc},
	}
}

func boundWithIndicator(name string, desc *symtab.TypeDescriptor, ind string, indDesc *symtab.TypeDescriptor) sqlparser.BoundVariable {
	bv := bound(name, desc)
	bv.Indicator = &symtab.Declaration{Name: ind, Type: indDesc}
	return bv
}

func TestBindingGroups(t *testing.T) {
	tests := []struct {
		name string
		bv   sqlparser.BoundVariable
		want string
	}{
		{
			name: "int scalar",
			bv:   bound("a", symtab.ScalarOf("int")),
			want: "ECPGt_int,&(a),(long)1,(long)1,sizeof(int), ECPGt_NO_INDICATOR, NULL , 0L, 0L, 0L",
		},
		{
			name: "double scalar",
			bv:   bound("total", symtab.ScalarOf("double")),
			want: "ECPGt_double,&(total),(long)1,(long)1,sizeof(double), ECPGt_NO_INDICATOR, NULL , 0L, 0L, 0L",
		},
		{
			name: "char scalar",
			bv:   bound("c", symtab.ScalarOf("char")),
			want: "ECPGt_char,&(c),(long)1,(long)1,(1)*sizeof(char), ECPGt_NO_INDICATOR, NULL , 0L, 0L, 0L",
		},
		{
			name: "char array is a string buffer",
			bv:   bound("name", symtab.ArrayOf(symtab.ScalarOf("char"), 21)),
			want: "ECPGt_char,(name),(long)21,(long)1,(21)*sizeof(char), ECPGt_NO_INDICATOR, NULL , 0L, 0L, 0L",
		},
		{
			name: "char pointer",
			bv:   bound("p", symtab.PointerTo("char")),
			want: "ECPGt_char,(p),(long)0,(long)1,(1)*sizeof(char), ECPGt_NO_INDICATOR, NULL , 0L, 0L, 0L",
		},
		{
			name: "int array with indicator array",
			bv: boundWithIndicator("amounts", symtab.ArrayOf(symtab.ScalarOf("int"), 3),
				"inds", symtab.ArrayOf(symtab.ScalarOf("int"), 3)),
			want: "ECPGt_int,(amounts),(long)1,(long)3,sizeof(int), ECPGt_int,(inds),(long)1,(long)3,sizeof(int)",
		},
		{
			name: "scalar with indicator",
			bv:   boundWithIndicator("total", symtab.ScalarOf("double"), "ind", symtab.ScalarOf("int")),
			want: "ECPGt_double,&(total),(long)1,(long)1,sizeof(double), ECPGt_int,&(ind),(long)1,(long)1,sizeof(int)",
		},
		{
			name: "varchar without tag",
			bv:   bound("v", symtab.VarcharOf(50)),
			want: "ECPGt_varchar,&(v),(long)50,(long)1,sizeof(struct varchar_v), ECPGt_NO_INDICATOR, NULL , 0L, 0L, 0L",
		},
		{
			name: "varchar typedef carries its tag",
			bv: bound("s", &symtab.TypeDescriptor{
				Kind: symtab.Varchar, MaxLen: 64, Tag: "varchar_str",
			}),
			want: "ECPGt_varchar,&(s),(long)64,(long)1,sizeof(struct varchar_str), ECPGt_NO_INDICATOR, NULL , 0L, 0L, 0L",
		},
		{
			name: "array of string buffers",
			bv:   bound("names", symtab.ArrayOf(symtab.ArrayOf(symtab.ScalarOf("char"), 30), 5)),
			want: "ECPGt_char,(names),(long)30,(long)5,(30)*sizeof(char), ECPGt_NO_INDICATOR, NULL , 0L, 0L, 0L",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := varArgs(tt.bv)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBindingGroupErrors(t *testing.T) {
	_, err := varArgs(bound("x", symtab.ScalarOf("struct tm")))
	assert.ErrorIs(t, err, ErrUnknownCType)

	_, err = varArgs(bound("rec", &symtab.TypeDescriptor{Kind: symtab.Struct, Tag: "rec"}))
	assert.ErrorIs(t, err, ErrUnsupportedBinding)
}

func TestDoCall(t *testing.T) {
	g := New("t.pgc")

	st := &sqlparser.Statement{
		Kind: sqlparser.KindExecute,
		Text: "DELETE FROM orders WHERE id = $1",
		Inputs: []sqlparser.BoundVariable{
			bound("id", symtab.ScalarOf("int")),
		},
	}

	call, err := g.doCall(st)
	require.NoError(t, err)
	assert.Equal(t,
		`ECPGdo(__LINE__, NULL, ECPGst_normal, "DELETE FROM orders WHERE id = $1", `+
			`ECPGt_int,&(id),(long)1,(long)1,sizeof(int), ECPGt_NO_INDICATOR, NULL , 0L, 0L, 0L, `+
			`ECPGt_EOIT, ECPGt_EORT)`,
		call)
}

func TestDoCallConnectionVariable(t *testing.T) {
	g := New("t.pgc")

	st := &sqlparser.Statement{
		Kind:       sqlparser.KindExecute,
		Text:       "UPDATE orders SET total = 0",
		Connection: "connptr",
		ConnVar:    true,
	}

	call, err := g.doCall(st)
	require.NoError(t, err)
	assert.Equal(t,
		`ECPGdo(__LINE__, connptr, ECPGst_normal, "UPDATE orders SET total = 0", ECPGt_EOIT, ECPGt_EORT)`,
		call)

	trans := &sqlparser.Statement{Kind: sqlparser.KindTransaction, Connection: "connptr", ConnVar: true}
	assert.Equal(t, "connptr", g.connArg(trans))
}

func TestDoCallSelectInto(t *testing.T) {
	g := New("t.pgc", WithDefaultConnection("main"))

	st := &sqlparser.Statement{
		Kind: sqlparser.KindSelectInto,
		Text: "SELECT total FROM orders WHERE id = $1",
		Inputs: []sqlparser.BoundVariable{
			bound("id", symtab.ScalarOf("int")),
		},
		Outputs: []sqlparser.BoundVariable{
			bound("total", symtab.ScalarOf("double")),
		},
	}

	call, err := g.doCall(st)
	require.NoError(t, err)
	assert.Equal(t,
		`ECPGdo(__LINE__, "main", ECPGst_normal, "SELECT total FROM orders WHERE id = $1", `+
			`ECPGt_int,&(id),(long)1,(long)1,sizeof(int), ECPGt_NO_INDICATOR, NULL , 0L, 0L, 0L, `+
			`ECPGt_EOIT, `+
			`ECPGt_double,&(total),(long)1,(long)1,sizeof(double), ECPGt_NO_INDICATOR, NULL , 0L, 0L, 0L, `+
			`ECPGt_EORT)`,
		call)
}

func TestDoCallPreparedForms(t *testing.T) {
	g := New("t.pgc")

	call, err := g.doCall(&sqlparser.Statement{
		Kind: sqlparser.KindExecutePrepared,
		Name: "st1",
	})
	require.NoError(t, err)
	assert.Equal(t, `ECPGdo(__LINE__, NULL, ECPGst_execute, "st1", ECPGt_EOIT, ECPGt_EORT)`, call)

	call, err = g.doCall(&sqlparser.Statement{
		Kind: sqlparser.KindExecuteImmediate,
		Inputs: []sqlparser.BoundVariable{
			bound("stmt", symtab.ArrayOf(symtab.ScalarOf("char"), 100)),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, `ECPGdo(__LINE__, NULL, ECPGst_exec_immediate, stmt, ECPGt_EOIT, ECPGt_EORT)`, call)
}

func TestConnectCall(t *testing.T) {
	g := New("t.pgc")

	call := g.connectCall(&sqlparser.Statement{
		Kind:   sqlparser.KindConnect,
		Target: `"testdb"`,
		User:   `"admin"`,
	})
	assert.Equal(t, `ECPGconnect(__LINE__, "testdb", "admin", NULL, NULL)`, call)

	call = g.connectCall(&sqlparser.Statement{
		Kind:     sqlparser.KindConnect,
		Target:   "target",
		Name:     "main",
		User:     "user",
		Password: "passwd",
	})
	assert.Equal(t, `ECPGconnect(__LINE__, target, user, passwd, "main")`, call)
}

func TestPrepareCall(t *testing.T) {
	g := New("t.pgc")

	call := g.prepareCall(&sqlparser.Statement{
		Kind: sqlparser.KindPrepare,
		Name: "st1",
		Text: "SELECT 1",
	})
	assert.Equal(t, `ECPGprepare(__LINE__, NULL, "st1", "SELECT 1")`, call)

	call = g.prepareCall(&sqlparser.Statement{
		Kind: sqlparser.KindPrepare,
		Name: "st2",
		Inputs: []sqlparser.BoundVariable{
			bound("stmt", symtab.ArrayOf(symtab.ScalarOf("char"), 100)),
		},
	})
	assert.Equal(t, `ECPGprepare(__LINE__, NULL, "st2", stmt)`, call)
}

func TestDescriptorCalls(t *testing.T) {
	g := New("t.pgc")

	header := &sqlparser.Statement{Kind: sqlparser.KindGetDescriptor, Name: "d"}
	header.Descriptor.Items = []sqlparser.DescriptorItem{
		{Field: "count", Var: bound("n", symtab.ScalarOf("int"))},
	}

	call, err := g.descriptorCall(header)
	require.NoError(t, err)
	assert.Equal(t, `ECPGget_desc_header(__LINE__, "d", &(n))`, call)

	get := &sqlparser.Statement{Kind: sqlparser.KindGetDescriptor, Name: "d"}
	get.Descriptor.Number = "1"
	get.Descriptor.Items = []sqlparser.DescriptorItem{
		{Field: "data", Var: bound("name", symtab.ArrayOf(symtab.ScalarOf("char"), 21))},
	}

	call, err = g.descriptorCall(get)
	require.NoError(t, err)
	assert.Equal(t,
		`ECPGget_desc(__LINE__, "d", 1, ECPGd_data, `+
			`ECPGt_char,(name),(long)21,(long)1,(21)*sizeof(char), ECPGt_NO_INDICATOR, NULL , 0L, 0L, 0L, `+
			`ECPGd_EODT)`,
		call)

	set := &sqlparser.Statement{Kind: sqlparser.KindSetDescriptor, Name: "d"}
	set.Descriptor.Number = "2"
	set.Descriptor.Items = []sqlparser.DescriptorItem{
		{Field: "data", Var: bound("id", symtab.ScalarOf("int"))},
	}

	call, err = g.descriptorCall(set)
	require.NoError(t, err)
	assert.Equal(t,
		`ECPGset_desc(__LINE__, "d", 2, ECPGd_data, `+
			`ECPGt_int,&(id),(long)1,(long)1,sizeof(int), ECPGt_NO_INDICATOR, NULL , 0L, 0L, 0L, `+
			`ECPGd_EODT)`,
		call)

	bad := &sqlparser.Statement{Kind: sqlparser.KindGetDescriptor, Name: "d"}
	bad.Descriptor.Items = []sqlparser.DescriptorItem{
		{Field: "data", Var: bound("id", symtab.ScalarOf("int"))},
	}

	_, err = g.descriptorCall(bad)
	assert.ErrorIs(t, err, ErrUnsupportedBinding)

	multi := &sqlparser.Statement{Kind: sqlparser.KindGetDescriptor, Name: "d"}
	multi.Descriptor.Items = []sqlparser.DescriptorItem{
		{Field: "count", Var: bound("n", symtab.ScalarOf("int"))},
		{Field: "count", Var: bound("id", symtab.ScalarOf("int"))},
	}

	_, err = g.descriptorCall(multi)
	assert.ErrorIs(t, err, ErrUnsupportedBinding)
}

func TestStatementWithoutGuards(t *testing.T) {
	g := New("t.pgc")

	err := g.Statement(&sqlparser.Statement{
		Kind:    sqlparser.KindTransaction,
		Command: "commit",
		Line:    12,
	}, WheneverContext{}, 13)
	require.NoError(t, err)

	assert.Equal(t, "{ ECPGtrans(__LINE__, NULL, \"commit\");}\n#line 13 \"t.pgc\"\n", g.String())
}

func TestStatementWithGuards(t *testing.T) {
	g := New("t.pgc")

	ctx := WheneverContext{}
	ctx = ctx.With(&sqlparser.WheneverClause{Condition: sqlparser.CondNotFound, Action: sqlparser.ActGoto, Target: "done"})
	ctx = ctx.With(&sqlparser.WheneverClause{Condition: sqlparser.CondSQLError, Action: sqlparser.ActSQLPrint})

	err := g.Statement(&sqlparser.Statement{
		Kind: sqlparser.KindExecute,
		Text: "DELETE FROM t",
		Line: 7,
	}, ctx, 8)
	require.NoError(t, err)

	want := "{ ECPGdo(__LINE__, NULL, ECPGst_normal, \"DELETE FROM t\", ECPGt_EOIT, ECPGt_EORT);\n" +
		"#line 7 \"t.pgc\"\n" +
		"\n" +
		"if (sqlca.sqlcode == ECPG_NOT_FOUND) goto done;\n" +
		"#line 7 \"t.pgc\"\n" +
		"\n" +
		"if (sqlca.sqlcode < 0) sqlprint();}\n" +
		"#line 8 \"t.pgc\"\n"

	assert.Equal(t, want, g.String())
}

func TestCursorDeclarationEmitsComment(t *testing.T) {
	g := New("t.pgc")

	err := g.Statement(&sqlparser.Statement{
		Kind: sqlparser.KindDeclareCursor,
		Text: "DECLARE cur CURSOR FOR SELECT 1",
		Line: 5,
	}, WheneverContext{}, 6)
	require.NoError(t, err)

	assert.Equal(t, "/* DECLARE cur CURSOR FOR SELECT 1 */\n#line 6 \"t.pgc\"\n", g.String())
}

func TestPreamble(t *testing.T) {
	g := New("t.pgc")
	g.Preamble("0.1.0", false)

	out := g.String()
	assert.True(t, strings.HasPrefix(out, "/* Processed by esqlc 0.1.0 */\n"))
	assert.Contains(t, out, "#include <ecpglib.h>\n")
	assert.Contains(t, out, "#include <sqlca.h>\n")
	assert.True(t, strings.HasSuffix(out, "#line 1 \"t.pgc\"\n"))

	g = New("t.pgc")
	g.Preamble("0.1.0", true)
	assert.True(t, strings.HasPrefix(g.String(), "/* Processed by esqlc (regression mode) */\n"))
}

func TestLineMarkersDisabled(t *testing.T) {
	g := New("t.pgc", WithLineMarkers(false))
	g.Preamble("0.1.0", false)

	err := g.Statement(&sqlparser.Statement{
		Kind:    sqlparser.KindTransaction,
		Command: "commit",
		Line:    3,
	}, WheneverContext{}, 4)
	require.NoError(t, err)

	assert.NotContains(t, g.String(), "#line")
}

func TestRemapNamesIncludedFile(t *testing.T) {
	g := New("t.pgc")

	g.Remap(1, "defs.pgc")
	g.Host("int x;\n", 1)
	g.Remap(5, "")
	g.Host("int y;\n", 5)

	assert.Equal(t,
		"#line 1 \"defs.pgc\"\nint x;\n#line 5 \"t.pgc\"\nint y;\n",
		g.String())
}

func TestConsecutiveMarkersCollapse(t *testing.T) {
	a := NewArena("t.pgc")

	a.Host("x;\n", 1)
	a.Marker(3)
	a.Marker(9)

	assert.Equal(t, "x;\n#line 9 \"t.pgc\"\n", a.String())
}

func TestMarkerAfterUnterminatedLine(t *testing.T) {
	a := NewArena("t.pgc")

	a.Host("int x;", 1)
	a.Marker(2)

	assert.Equal(t, "int x;\n#line 2 \"t.pgc\"\n", a.String())
}

func TestDisconnectAndSetConnection(t *testing.T) {
	g := New("t.pgc")

	err := g.Statement(&sqlparser.Statement{
		Kind: sqlparser.KindDisconnect,
		Name: "CURRENT",
		Line: 2,
	}, WheneverContext{}, 3)
	require.NoError(t, err)

	err = g.Statement(&sqlparser.Statement{
		Kind: sqlparser.KindSetConnection,
		Name: "main",
		Line: 3,
	}, WheneverContext{}, 4)
	require.NoError(t, err)

	out := g.String()
	assert.Contains(t, out, `{ ECPGdisconnect(__LINE__, "CURRENT");}`)
	assert.Contains(t, out, `{ ECPGsetconn(__LINE__, "main");}`)
}
