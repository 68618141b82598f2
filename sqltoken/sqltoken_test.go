package sqltoken

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, s string) []Token {
	t.Helper()
	var out []Token
	for len(s) > 0 {
		tok, n := Next(s)
		require.Greater(t, n, 0, "scanner made no progress on %q", s)
		if tok.Kind != Whitespace {
			out = append(out, tok)
		}
		s = s[n:]
	}
	return out
}

func TestKeywordCaseInsensitive(t *testing.T) {
	toks := scanAll(t, "select FROM Where")
	require.Len(t, toks, 3)
	for _, tok := range toks {
		require.Equal(t, Keyword, tok.Kind)
	}
	require.Equal(t, "SELECT", toks[0].Text)
	require.Equal(t, "FROM", toks[1].Text)
	require.Equal(t, "WHERE", toks[2].Text)
}

func TestKeywordFolding(t *testing.T) {
	toks := scanAll(t, "CHARACTER INTEGER")
	require.Equal(t, "CHAR", toks[0].Text)
	require.Equal(t, "INT", toks[1].Text)
}

func TestOperators(t *testing.T) {
	toks := scanAll(t, "<= <> != < > >= =")
	kinds := []Kind{Le, Ne, Ne, Lt, Gt, Ge, Eq}
	require.Len(t, toks, len(kinds))
	for i, k := range kinds {
		require.Equal(t, k, toks[i].Kind)
	}
}

func TestBracketAndBacktickIdentifiers(t *testing.T) {
	toks := scanAll(t, "[My Col] `Other Col`")
	require.Len(t, toks, 2)
	require.Equal(t, Id, toks[0].Kind)
	require.Equal(t, "My Col", toks[0].Text)
	require.Equal(t, Id, toks[1].Kind)
	require.Equal(t, "Other Col", toks[1].Text)
}

func TestStringLiteral(t *testing.T) {
	toks := scanAll(t, "'it''s here'")
	require.Len(t, toks, 1)
	require.Equal(t, String, toks[0].Kind)
	require.Equal(t, "it's here", toks[0].Text)
}

func TestIntegerLiteral(t *testing.T) {
	toks := scanAll(t, "12345")
	require.Equal(t, Integer, toks[0].Kind)
	require.EqualValues(t, 12345, toks[0].Int)
}

func TestWildcardAndIllegal(t *testing.T) {
	toks := scanAll(t, "? #")
	require.Equal(t, Wildcard, toks[0].Kind)
	require.Equal(t, Illegal, toks[1].Kind)
}
