package streamname

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	names := []string{"Phone", "FeatureComponents", "_Tables", "a.b.c", "Weird Name!"}
	for _, n := range names {
		enc := Encode(n)
		require.Equal(t, n, Decode(enc))
	}
}

func TestEncodeTableHasMarkerPrefix(t *testing.T) {
	enc := EncodeTable("MOO")
	require.True(t, []rune(enc)[0] == tableMarker)
	require.Equal(t, "MOO", DecodeTable(enc))
}

func TestCellStreamNameNoMarker(t *testing.T) {
	name := CellStreamName("Binary", "Icon.exe")
	require.NotEqual(t, rune(tableMarker), []rune(name)[0])
	require.Equal(t, "Binary.Icon.exe", Decode(name))
}

func TestNonMimeCharsPassThrough(t *testing.T) {
	enc := Encode("a b")
	require.Equal(t, "a b", Decode(enc))
}
