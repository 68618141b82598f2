package transform_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"msidb/msidb"
	"msidb/schema"
	"msidb/storage"
	"msidb/streamname"
	"msidb/stringpool"
)

// buildTransform writes a minimal .mst-shaped container at path: an
// external string pool plus one mask-encoded row stream for table MOO,
// exercising the sparse-update and delete paths; it carries no full-row
// insert.
func buildTransform(t *testing.T, path string) {
	t.Helper()
	c, err := storage.OpenWrite(path, true)
	require.NoError(t, err)

	pool, err := stringpool.New(1252)
	require.NoError(t, err)
	cID, err := pool.Intern("c", 1, schema.Persistent)
	require.NoError(t, err)
	poolBlob, dataBlob, err := pool.Serialise()
	require.NoError(t, err)

	writeStream(t, c, "_StringPool", poolBlob)
	writeStream(t, c, "_StringData", dataBlob)

	strWidth := pool.BytesPerStrRef()

	var buf []byte
	// update row 1: set val:= "c". Only column val (position 2) is
	// non-key, so its bit is bit index 1 -> mask bit value 1<<1 = 2.
	buf = appendU16(buf, 2)
	buf = appendBiasedInt16(buf, 1) // key: id = 1 (INT is a 2-byte column)
	buf = appendStrID(buf, cID, strWidth)

	// delete row 3: mask 0, key only.
	buf = appendU16(buf, 0)
	buf = appendBiasedInt16(buf, 3)

	writeStream(t, c, streamname.EncodeTable("MOO"), buf)
	require.NoError(t, c.Commit())
}

func appendU16(b []byte, v uint16) []byte {
	out := make([]byte, 2)
	binary.LittleEndian.PutUint16(out, v)
	return append(b, out...)
}

func appendBiasedInt16(b []byte, v int16) []byte {
	out := make([]byte, 2)
	binary.LittleEndian.PutUint16(out, uint16(v)+0x8000)
	return append(b, out...)
}

func appendStrID(b []byte, id int, width int) []byte {
	out := make([]byte, width)
	v := uint32(id)
	for i := 0; i < width; i++ {
		out[i] = byte(v)
		v >>= 8
	}
	return append(b, out...)
}

func writeStream(t *testing.T, c storage.Container, name string, data []byte) {
	t.Helper()
	w, err := c.CreateStream(name)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

// TestApplyTransformUpdateAndDelete is scenario S4's update
// and delete half: MOO starts with three rows; the transform updates
// row 1's val to "c" and deletes row 3.
func TestApplyTransformUpdateAndDelete(t *testing.T) {
	dir := t.TempDir()
	hostPath := dir + "/host.msi"
	db, err := msidb.CreateDatabase(hostPath, 1252)
	require.NoError(t, err)
	require.NoError(t, db.Exec("CREATE TABLE `MOO` (`id` INT, `val` CHAR(32) PRIMARY KEY `id`)"))
	require.NoError(t, db.Exec("INSERT INTO `MOO`(`id`,`val`) VALUES (1,'a')"))
	require.NoError(t, db.Exec("INSERT INTO `MOO`(`id`,`val`) VALUES (2,'b')"))
	require.NoError(t, db.Exec("INSERT INTO `MOO`(`id`,`val`) VALUES (3,'c')"))
	require.NoError(t, db.Commit())

	mstPath := dir + "/t.mst"
	buildTransform(t, mstPath)

	db2, err := msidb.Open(hostPath, msidb.Transact)
	require.NoError(t, err)
	require.NoError(t, db2.ApplyTransform(mstPath))
	require.NoError(t, db2.Commit())

	verify, err := msidb.Open(hostPath, msidb.ReadOnly)
	require.NoError(t, err)
	q, err := verify.Prepare("SELECT id, val FROM MOO ORDER BY id")
	require.NoError(t, err)
	defer q.Close()
	require.NoError(t, q.Execute(nil))
	rows, _, err := q.Dimensions()
	require.NoError(t, err)
	require.Equal(t, 2, rows)

	r1, err := q.GetRow(1)
	require.NoError(t, err)
	require.EqualValues(t, 1, r1.GetInt(1))
	require.Equal(t, "c", r1.GetString(2))

	r2, err := q.GetRow(2)
	require.NoError(t, err)
	require.EqualValues(t, 2, r2.GetInt(1))
	require.Equal(t, "b", r2.GetString(2))
}
