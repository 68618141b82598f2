package summary

import (
	"testing"

	"github.com/stretchr/testify/require"

	"msidb/errs"
	"msidb/storage"
)

// TestPersistenceRoundTrip is scenario S5: seven properties
// set against an update_count of 7, persisted, reopened, and the
// eighth attempted set fails.
func TestPersistenceRoundTrip(t *testing.T) {
	si := New(7)
	require.NoError(t, si.SetString(Title, "X"))
	require.NoError(t, si.SetString(Subject, "Y"))
	require.NoError(t, si.SetString(Author, "Z"))
	require.NoError(t, si.SetString(Template, ";1033,2057"))
	require.NoError(t, si.SetString(UUID, "{11111111-2222-3333-4444-555555555555}"))
	require.NoError(t, si.SetInt(PageCount, 100))
	require.NoError(t, si.SetInt(WordCount, 0))
	require.Equal(t, 0, si.UpdateCount())

	err := si.SetString(Comments, "one too many")
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.FunctionFailed))

	path := t.TempDir() + "/si.msi"
	c, err := storage.OpenWrite(path, true)
	require.NoError(t, err)
	require.NoError(t, si.Persist(c))
	require.NoError(t, c.Commit())

	reopened, err := storage.OpenRead(path)
	require.NoError(t, err)
	loaded, err := Load(reopened)
	require.NoError(t, err)

	for _, tc := range []struct {
		id   PropertyID
		want string
	}{
		{Title, "X"},
		{Subject, "Y"},
		{Author, "Z"},
		{Template, ";1033,2057"},
		{UUID, "{11111111-2222-3333-4444-555555555555}"},
	} {
		v, ok := loaded.Get(tc.id)
		require.True(t, ok, tc.id)
		require.Equal(t, tc.want, v.String())
	}

	pc, ok := loaded.Get(PageCount)
	require.True(t, ok)
	require.EqualValues(t, 100, pc.Int())

	wc, ok := loaded.Get(WordCount)
	require.True(t, ok)
	require.EqualValues(t, 0, wc.Int())
}

func TestSetOnZeroUpdateCountFails(t *testing.T) {
	si := New(0)
	err := si.SetString(Title, "anything")
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.FunctionFailed))
}

func TestUnknownPropertyRejected(t *testing.T) {
	si := New(5)
	err := si.Set(PropertyID(999), StringValue("x"))
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.UnknownProperty))
}
