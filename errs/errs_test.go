package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapAndIs(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap("tablestore.InsertRow", FunctionFailed, cause)

	require.True(t, Is(err, FunctionFailed))
	require.False(t, Is(err, NotFound))
	require.Equal(t, FunctionFailed, KindOf(err))
	require.ErrorIs(t, err, cause)
}

func TestKindOfNilAndPlain(t *testing.T) {
	require.Equal(t, Success, KindOf(nil))
	require.Equal(t, FunctionFailed, KindOf(errors.New("plain")))
}

func TestNewHasNoCause(t *testing.T) {
	err := New("sqlparse.Parse", BadQuerySyntax)
	require.Nil(t, err.Unwrap())
	require.Contains(t, err.Error(), "BAD_QUERY_SYNTAX")
}
