package sqlparser

import (
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/shibukawa/esqlc/symtab"
)

// testTable builds a symbol table with the host variables the statement
// tests reference.
func testTable(t *testing.T) *symtab.Table {
	t.Helper()

	table := symtab.New()

	declare := func(name string, desc *symtab.TypeDescriptor) {
		t.Helper()

		_, err := table.Declare(name, desc, 1)
		assert.NoError(t, err)
	}

	declare("id", symtab.ScalarOf("int"))
	declare("total", symtab.ScalarOf("double"))
	declare("name", symtab.ArrayOf(symtab.ScalarOf("char"), 21))
	declare("ind", symtab.ScalarOf("int"))
	declare("amounts", symtab.ArrayOf(symtab.ScalarOf("int"), 3))
	declare("inds", symtab.ArrayOf(symtab.ScalarOf("int"), 3))
	declare("stmt", symtab.ArrayOf(symtab.ScalarOf("char"), 100))
	declare("person", &symtab.TypeDescriptor{
		Kind: symtab.Struct,
		Tag:  "person",
		Fields: []symtab.Field{
			{Name: "id", Type: symtab.ScalarOf("int")},
			{Name: "name", Type: symtab.ArrayOf(symtab.ScalarOf("char"), 30)},
		},
	})

	return table
}

func TestNormalizeSelectInto(t *testing.T) {
	n := New(testTable(t))

	st, err := n.Parse("SELECT name, total INTO :name, :total FROM orders WHERE id = :id", 10)
	assert.NoError(t, err)

	assert.Equal(t, KindSelectInto, st.Kind)
	assert.Equal(t, "SELECT name, total FROM orders WHERE id = $1", st.Text)
	assert.Equal(t, 1, len(st.Inputs))
	assert.Equal(t, "id", st.Inputs[0].Name)
	assert.Equal(t, 2, len(st.Outputs))
	assert.Equal(t, "name", st.Outputs[0].Name)
	assert.Equal(t, "total", st.Outputs[1].Name)
}

func TestMarkerCountMatchesInputs(t *testing.T) {
	n := New(testTable(t))

	st, err := n.Parse("INSERT INTO orders (id, total, name) VALUES (:id, :total, :name)", 3)
	assert.NoError(t, err)

	assert.Equal(t, KindExecute, st.Kind)
	assert.Equal(t, "INSERT INTO orders (id, total, name) VALUES ($1, $2, $3)", st.Text)
	assert.Equal(t, 3, len(st.Inputs))
}

func TestIndicatorForms(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{name: "adjacent", sql: "UPDATE orders SET total = :total:ind WHERE id = :id"},
		{name: "keyword", sql: "UPDATE orders SET total = :total INDICATOR :ind WHERE id = :id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := New(testTable(t))

			st, err := n.Parse(tt.sql, 5)
			assert.NoError(t, err)

			assert.Equal(t, "UPDATE orders SET total = $1 WHERE id = $2", st.Text)
			assert.Equal(t, 2, len(st.Inputs))
			assert.NotZero(t, st.Inputs[0].Indicator)
			assert.Equal(t, "ind", st.Inputs[0].Indicator.Name)
			assert.Zero(t, st.Inputs[1].Indicator)
		})
	}
}

func TestIndicatorMustBeInteger(t *testing.T) {
	n := New(testTable(t))

	_, err := n.Parse("SELECT total INTO :total:name FROM orders", 5)
	assert.IsError(t, err, ErrTypeMismatch)
}

func TestIndicatorArrayLengthMismatch(t *testing.T) {
	table := testTable(t)
	_, err := table.Declare("shortinds", symtab.ArrayOf(symtab.ScalarOf("int"), 2), 1)
	assert.NoError(t, err)

	n := New(table)

	_, err = n.Parse("SELECT amounts INTO :amounts:shortinds FROM orders", 5)
	assert.IsError(t, err, ErrArityMismatch)

	_, err = New(table).Parse("SELECT amounts INTO :amounts:inds FROM orders", 5)
	assert.NoError(t, err)
}

func TestUndeclaredHostVariable(t *testing.T) {
	n := New(testTable(t))

	_, err := n.Parse("SELECT 1 INTO :missing FROM t", 7)
	assert.IsError(t, err, symtab.ErrUnknownHostVariable)
}

func TestStructMemberReference(t *testing.T) {
	n := New(testTable(t))

	st, err := n.Parse("INSERT INTO people VALUES (:person.id, :person.name)", 4)
	assert.NoError(t, err)

	assert.Equal(t, "INSERT INTO people VALUES ($1, $2)", st.Text)
	assert.Equal(t, "person.id", st.Inputs[0].Name)
	assert.Equal(t, "int", st.Inputs[0].Decl.Type.CType)
}

func TestHostVarInsideLiteralIgnored(t *testing.T) {
	n := New(testTable(t))

	st, err := n.Parse("INSERT INTO t VALUES (':id', :id)", 4)
	assert.NoError(t, err)

	assert.Equal(t, "INSERT INTO t VALUES (':id', $1)", st.Text)
	assert.Equal(t, 1, len(st.Inputs))
}

func TestWhitespaceCollapsing(t *testing.T) {
	n := New(testTable(t))

	st, err := n.Parse("SELECT   name\n\t\tFROM  orders   WHERE id =   :id", 4)
	assert.NoError(t, err)

	assert.Equal(t, "SELECT name FROM orders WHERE id = $1", st.Text)
}

func TestCanonicalizeIdempotent(t *testing.T) {
	texts := []string{
		"SELECT  a ,  b FROM   t WHERE x = 'keep  spaces'",
		"UPDATE t SET a = 1",
		"DELETE FROM t WHERE note = 'multi\n  line'",
		"INSERT INTO t VALUES ('café', 'naïve друг', '日本語')",
	}

	for _, text := range texts {
		once, err := Canonicalize(text)
		assert.NoError(t, err)

		twice, err := Canonicalize(once)
		assert.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

func TestLiteralsKeepUTF8(t *testing.T) {
	out, err := Canonicalize("SELECT  'café'  FROM t")
	assert.NoError(t, err)
	assert.Equal(t, "SELECT 'café' FROM t", out)

	out, err = Canonicalize(`SELECT "日本語" FROM t`)
	assert.NoError(t, err)
	assert.Equal(t, `SELECT "日本語" FROM t`, out)
}

func TestAtClause(t *testing.T) {
	n := New(testTable(t))

	st, err := n.Parse("AT conn1 UPDATE orders SET total = 0 WHERE id = :id", 4)
	assert.NoError(t, err)

	assert.Equal(t, "conn1", st.Connection)
	assert.False(t, st.ConnVar)
	assert.Equal(t, "UPDATE orders SET total = 0 WHERE id = $1", st.Text)
}

func TestAtClauseHostVariable(t *testing.T) {
	n := New(testTable(t))

	st, err := n.Parse("AT :name UPDATE orders SET total = 0 WHERE id = :id", 4)
	assert.NoError(t, err)

	assert.Equal(t, "name", st.Connection)
	assert.True(t, st.ConnVar)
	assert.Equal(t, "UPDATE orders SET total = 0 WHERE id = $1", st.Text)
	assert.Equal(t, 1, len(st.Inputs))
}

func TestAtClauseUndeclaredHostVariable(t *testing.T) {
	n := New(testTable(t))

	_, err := n.Parse("AT :nowhere COMMIT", 4)
	assert.IsError(t, err, symtab.ErrUnknownHostVariable)
}

func TestTransactionStatements(t *testing.T) {
	tests := []struct {
		text    string
		command string
	}{
		{text: "COMMIT", command: "commit"},
		{text: "ROLLBACK", command: "rollback"},
		{text: "COMMIT WORK", command: "commit work"},
		{text: "BEGIN TRANSACTION", command: "begin transaction"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			n := New(testTable(t))

			st, err := n.Parse(tt.text, 2)
			assert.NoError(t, err)
			assert.Equal(t, KindTransaction, st.Kind)
			assert.Equal(t, tt.command, st.Command)
		})
	}
}

func TestUnsupportedStatement(t *testing.T) {
	n := New(testTable(t))

	_, err := n.Parse("FROBNICATE THE DATABASE", 2)
	assert.IsError(t, err, ErrUnsupportedStatement)
}

func TestStatementKindClassification(t *testing.T) {
	tests := []struct {
		sql  string
		kind StatementKind
	}{
		{sql: "SELECT 1 FROM t", kind: KindExecute}, // no INTO, plain execute
		{sql: "SELECT total INTO :total FROM t", kind: KindSelectInto},
		{sql: "DELETE FROM t WHERE id = :id", kind: KindExecute},
		{sql: "CREATE TABLE t (id int)", kind: KindExecute},
		{sql: "CONNECT TO testdb", kind: KindConnect},
		{sql: "DISCONNECT ALL", kind: KindDisconnect},
		{sql: "SET CONNECTION TO conn2", kind: KindSetConnection},
		{sql: "ALLOCATE DESCRIPTOR d", kind: KindAllocateDescriptor},
		{sql: "DEALLOCATE DESCRIPTOR d", kind: KindDeallocateDescriptor},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			n := New(testTable(t))

			st, err := n.Parse(tt.sql, 2)
			assert.NoError(t, err)
			assert.Equal(t, tt.kind, st.Kind)
		})
	}
}
