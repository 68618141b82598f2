package stringpool

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"msidb/schema"
)

func TestInternAndLookup(t *testing.T) {
	p, err := New(1252)
	require.NoError(t, err)

	id, err := p.Intern("Abe", 1, schema.Persistent)
	require.NoError(t, err)
	require.Greater(t, id, 0)

	gotID, ok := p.LookupID("Abe")
	require.True(t, ok)
	require.Equal(t, id, gotID)

	s, ok := p.LookupString(id)
	require.True(t, ok)
	require.Equal(t, "Abe", s)

	// Empty string is always id 0.
	zero, err := p.Intern("", 1, schema.Persistent)
	require.NoError(t, err)
	require.Equal(t, 0, zero)
}

// TestReuseAfterRelease is scenario S2 from: a string-id must
// be reused, with refcount reset to 1, after its sole reference is
// released and the same string is interned again.
func TestReuseAfterRelease(t *testing.T) {
	p, err := New(0)
	require.NoError(t, err)

	id, err := p.Intern("foo", 1, schema.Persistent)
	require.NoError(t, err)

	require.NoError(t, p.Release(id, schema.Persistent))
	_, ok := p.LookupID("foo")
	require.False(t, ok)

	id2, err := p.Intern("foo", 1, schema.Persistent)
	require.NoError(t, err)
	require.Equal(t, id, id2, "freed slot must be reused")

	persistent, nonpersistent := p.RefCounts(id2)
	require.Equal(t, 1, persistent)
	require.Equal(t, 0, nonpersistent)
}

func TestSerialiseRoundTrip(t *testing.T) {
	p, err := New(1252)
	require.NoError(t, err)
	_, err = p.Intern("alpha", 1, schema.Persistent)
	require.NoError(t, err)
	_, err = p.Intern("beta", 2, schema.Persistent)
	require.NoError(t, err)
	_, err = p.Intern("gamma", 1, schema.Transient)
	require.NoError(t, err)

	poolBlob, dataBlob, err := p.Serialise()
	require.NoError(t, err)

	p2, err := Deserialise(0, poolBlob, dataBlob)
	require.NoError(t, err)
	require.Equal(t, 1252, p2.Codepage())

	for _, s := range []string{"alpha", "beta", "gamma"} {
		id, ok := p.LookupID(s)
		require.True(t, ok)
		got, ok := p2.LookupString(id)
		require.True(t, ok)
		require.Equal(t, s, got)
	}
}

func TestSerialiseLongString(t *testing.T) {
	p, err := New(0)
	require.NoError(t, err)
	long := strings.Repeat("x", 70000)
	id, err := p.Intern(long, 1, schema.Persistent)
	require.NoError(t, err)

	poolBlob, dataBlob, err := p.Serialise()
	require.NoError(t, err)

	p2, err := Deserialise(0, poolBlob, dataBlob)
	require.NoError(t, err)

	got, ok := p2.LookupString(id)
	require.True(t, ok)
	require.Equal(t, long, got)
}

func TestValidCodepageWhitelist(t *testing.T) {
	require.True(t, ValidCodepage(1252))
	require.True(t, ValidCodepage(0))
	require.True(t, ValidCodepage(65001))
	require.False(t, ValidCodepage(12345))

	_, err := New(12345)
	require.Error(t, err)
}
