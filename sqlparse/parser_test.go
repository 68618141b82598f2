package sqlparse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCreateTable(t *testing.T) {
	stmt, err := Parse("CREATE TABLE Phone (Name CHAR(64) NOT NULL, Number INT PRIMARY KEY Name)")
	require.NoError(t, err)
	require.NotNil(t, stmt.Create)
	require.Equal(t, "Phone", stmt.Create.Table)
	require.Len(t, stmt.Create.Columns, 2)
	require.Equal(t, "Name", stmt.Create.Columns[0].Name)
	require.True(t, stmt.Create.Columns[0].Key)
	require.False(t, stmt.Create.Columns[0].Nullable)
	require.Equal(t, "Number", stmt.Create.Columns[1].Name)
	require.True(t, stmt.Create.Columns[1].Nullable)
}

func TestParseDropTable(t *testing.T) {
	stmt, err := Parse("DROP TABLE Phone")
	require.NoError(t, err)
	require.Equal(t, "Phone", stmt.Drop.Table)
}

func TestParseAlterTableAdd(t *testing.T) {
	stmt, err := Parse("ALTER TABLE Phone ADD Extension SHORT HOLD")
	require.NoError(t, err)
	require.NotNil(t, stmt.Alter.Add)
	require.Equal(t, "Extension", stmt.Alter.Add.Name)
	require.True(t, stmt.Alter.AddHold)
}

func TestParseInsert(t *testing.T) {
	stmt, err := Parse("INSERT INTO Phone (Name, Number) VALUES (?, 123) TEMPORARY")
	require.NoError(t, err)
	require.Equal(t, "Phone", stmt.Insert.Table)
	require.Len(t, stmt.Insert.Values, 2)
	require.True(t, stmt.Insert.Values[0].Wildcard)
	require.EqualValues(t, 123, *stmt.Insert.Values[1].IntLiteral)
	require.True(t, stmt.Insert.Temporary)
}

func TestParseSelectWhereAndOrderBy(t *testing.T) {
	stmt, err := Parse("SELECT Name, Number FROM Phone WHERE Number = 5 AND Name <> 'x' ORDER BY Name")
	require.NoError(t, err)
	require.False(t, stmt.Select.Distinct)
	require.Equal(t, []string{"Name", "Number"}, stmt.Select.Columns)
	require.NotNil(t, stmt.Select.Where)
	require.Equal(t, OpAnd, *stmt.Select.Where.BinOp)
	require.Len(t, stmt.Select.OrderBy, 1)
	require.Equal(t, "Name", stmt.Select.OrderBy[0].Column)
}

func TestParseSelectStarDistinct(t *testing.T) {
	stmt, err := Parse("SELECT DISTINCT * FROM Phone")
	require.NoError(t, err)
	require.True(t, stmt.Select.Distinct)
	require.Equal(t, []string{"*"}, stmt.Select.Columns)
}

func TestParseIsNull(t *testing.T) {
	stmt, err := Parse("SELECT * FROM Phone WHERE Number IS NOT NULL")
	require.NoError(t, err)
	require.NotNil(t, stmt.Select.Where.UnaryOp)
	require.Equal(t, OpNotNull, *stmt.Select.Where.UnaryOp)
}

func TestParseUpdate(t *testing.T) {
	stmt, err := Parse("UPDATE Phone SET Number = 42 WHERE Name = 'Alice'")
	require.NoError(t, err)
	require.Len(t, stmt.Update.Assignments, 1)
	require.Equal(t, "Number", stmt.Update.Assignments[0].Column)
}

func TestParseDelete(t *testing.T) {
	stmt, err := Parse("DELETE FROM Phone WHERE Name = 'Alice'")
	require.NoError(t, err)
	require.Equal(t, "Phone", stmt.Delete.Table)
	require.NotNil(t, stmt.Delete.Where)
}

func TestStringCompareRejectsOrdering(t *testing.T) {
	_, err := Parse("SELECT * FROM Phone WHERE Name > 'x'")
	require.Error(t, err)
}

func TestTrailingGarbageRejected(t *testing.T) {
	_, err := Parse("DROP TABLE Phone Phone")
	require.Error(t, err)
}
