package record

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCapsFieldCount(t *testing.T) {
	r := New(70000)
	require.Equal(t, 65535, r.FieldCount())
}

func TestSetGetInt(t *testing.T) {
	r := New(2)
	require.NoError(t, r.SetInt(1, 42))
	require.False(t, r.IsNull(1))
	require.Equal(t, int32(42), r.GetInt(1))
	require.Equal(t, "42", r.GetString(1))
}

func TestSetEmptyStringIsNull(t *testing.T) {
	r := New(1)
	require.NoError(t, r.SetString(1, ""))
	require.True(t, r.IsNull(1))
}

func TestGetIntFromStringAndOverflow(t *testing.T) {
	r := New(4)
	require.NoError(t, r.SetString(1, "8675309"))
	require.Equal(t, int32(8675309), r.GetInt(1))

	require.NoError(t, r.SetString(2, "-5"))
	require.Equal(t, int32(-5), r.GetInt(2))

	require.NoError(t, r.SetString(3, "notanumber"))
	require.Equal(t, NullInt, r.GetInt(3))

	require.NoError(t, r.SetString(4, "4294967297"))
	require.Equal(t, int32(1), r.GetInt(4), "2^32+1 wraps modulo 2^32")
}

func TestCloneIsIndependent(t *testing.T) {
	r := New(1)
	require.NoError(t, r.SetStream(1, nil))
	require.NoError(t, r.LoadStream(1, []byte("hello")))

	clone, err := r.Clone()
	require.NoError(t, err)

	buf := make([]byte, 5)
	n, _, err := clone.SaveStream(1, buf)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(buf))

	// Original cursor must be untouched by the clone's read.
	buf2 := make([]byte, 5)
	n2, _, err := r.SaveStream(1, buf2)
	require.NoError(t, err)
	require.Equal(t, 5, n2)
	require.Equal(t, "hello", string(buf2))
}

func TestCompareField(t *testing.T) {
	a := New(1)
	b := New(1)
	require.NoError(t, a.SetInt(1, 7))
	require.NoError(t, b.SetInt(1, 7))
	require.True(t, a.CompareField(b, 1))

	require.NoError(t, b.SetInt(1, 8))
	require.False(t, a.CompareField(b, 1))

	require.NoError(t, b.SetString(1, "7"))
	require.False(t, a.CompareField(b, 1), "different kinds never compare equal")
}
