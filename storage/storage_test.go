package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateCommitReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.msi")

	c, err := OpenWrite(path, true)
	require.NoError(t, err)

	w, err := c.CreateStream("Phone")
	require.NoError(t, err)
	_, err = w.Write([]byte("row-bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	sub, err := c.CreateSubstorage("Sub1")
	require.NoError(t, err)
	sw, err := sub.CreateStream("inner")
	require.NoError(t, err)
	_, err = sw.Write([]byte("inner-data"))
	require.NoError(t, err)
	require.NoError(t, sw.Close())

	require.NoError(t, c.Commit())
	require.FileExists(t, path)

	reopened, err := OpenRead(path)
	require.NoError(t, err)

	entries, err := reopened.EnumChildren()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	r, err := reopened.ReadStream("Phone")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "row-bytes", string(data))

	_ = os.Remove(path)
}

func TestRemoveMissingStream(t *testing.T) {
	c, err := OpenWrite(filepath.Join(t.TempDir(), "x.msi"), true)
	require.NoError(t, err)
	require.Error(t, c.Remove("nope"))
}
