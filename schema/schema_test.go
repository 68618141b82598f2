package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypeFlagsInt16(t *testing.T) {
	tf := NewTypeFlags(Width16, false, false, false, false, false, false)
	require.True(t, tf.IsInt16())
	require.False(t, tf.IsInt32())
	require.False(t, tf.IsString())
	require.False(t, tf.IsBinary())
}

func TestTypeFlagsInt32(t *testing.T) {
	tf := NewTypeFlags(Width32, false, true, false, false, false, false)
	require.True(t, tf.IsInt32())
	require.True(t, tf.IsKey())
}

func TestTypeFlagsBinaryImpliesWidth16(t *testing.T) {
	tf := NewTypeFlags(Width32, true, false, true, false, false, true)
	require.Equal(t, Width16, tf.Width())
	require.False(t, tf.IsString())
	require.True(t, tf.IsBinary())
}

func TestAssignOffsetsDenseAndWidened(t *testing.T) {
	tbl := &Table{Columns: []*Column{
		{Name: "A", Type: NewTypeFlags(Width16, false, true, false, false, false, false)},
		{Name: "B", Type: NewTypeFlags(Width24, true, false, true, false, false, false)},
		{Name: "C", Type: NewTypeFlags(Width32, false, false, true, false, false, false)},
	}}
	tbl.AssignOffsets()

	for i, c := range tbl.Columns {
		require.Equal(t, i+1, c.Position)
	}
	require.Equal(t, 0, tbl.Columns[0].ByteOffset)
	require.Equal(t, 2, tbl.Columns[1].ByteOffset, "after a width-2 int")
	require.Equal(t, 5, tbl.Columns[2].ByteOffset, "after a width-2 int + width-3 string-id")
}

func TestKeyColumnsPreservesPositionOrder(t *testing.T) {
	tbl := &Table{Columns: []*Column{
		{Name: "A", Type: NewTypeFlags(Width16, false, false, false, false, false, false)},
		{Name: "B", Type: NewTypeFlags(Width16, false, true, false, false, false, false)},
		{Name: "C", Type: NewTypeFlags(Width16, false, true, false, false, false, false)},
	}}
	tbl.AssignOffsets()
	keys := tbl.KeyColumns()
	require.Len(t, keys, 2)
	require.Equal(t, "B", keys[0].Name)
	require.Equal(t, "C", keys[1].Name)
}
