// Package streamname implements the bijective stream-name encoding
// that lets identifier characters survive OLE2's restrictions on
// stream names by mapping the "mime-alphabet" into a private-use-area
// Unicode block.
package streamname

import "strings"

// mimeAlphabet is the 64-character subset that participates in the
// packed encoding: digits, letters, '.', and '_'.
const mimeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz._"

// tableMarker is U+4840, prefixed (as 3 UTF-8 bytes, 0xE4 0xA1 0x80) to
// every table stream name.
const tableMarker = '䡀'

var mimeIndex [128]int

func init() {
	for i := range mimeIndex {
		mimeIndex[i] = -1
	}
	for i, c := range mimeAlphabet {
		mimeIndex[c] = i
	}
}

func isMime(r rune) bool {
	return r >= 0 && r < 128 && mimeIndex[r] >= 0
}

// EncodeTable encodes a user table name as its on-disk stream name,
// including the 3-byte table-marker prefix.
func EncodeTable(name string) string {
	return string(tableMarker) + Encode(name)
}

// Encode encodes a non-table identifier (no marker prefix), as used for
// binary-column cell stream names and substorage names.
func Encode(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i := 0; i < len(runes); {
		c := runes[i]
		if isMime(c) {
			if i+1 < len(runes) && isMime(runes[i+1]) {
				cp := rune(0x3800 + mimeIndex[c]*64 + mimeIndex[runes[i+1]])
				b.WriteRune(cp)
				i += 2
				continue
			}
			b.WriteRune(rune(0x4800 + mimeIndex[c]))
			i++
			continue
		}
		b.WriteRune(c)
		i++
	}
	return b.String()
}

// HasTableMarker reports whether encoded begins with the table-marker
// prefix EncodeTable adds, letting a caller enumerating a container's
// raw stream names separate table streams from everything else.
func HasTableMarker(encoded string) bool {
	for _, r := range encoded {
		return r == tableMarker
	}
	return false
}

// DecodeTable is the inverse of EncodeTable: it strips the table-marker
// prefix (if present) before decoding.
func DecodeTable(encoded string) string {
	runes := []rune(encoded)
	if len(runes) > 0 && runes[0] == tableMarker {
		runes = runes[1:]
	}
	return decodeRunes(runes)
}

// Decode is the inverse of Encode.
func Decode(encoded string) string {
	return decodeRunes([]rune(encoded))
}

func decodeRunes(runes []rune) string {
	var b strings.Builder
	for _, r := range runes {
		switch {
		case r >= 0x3800 && r <= 0x47FF:
			off := int(r - 0x3800)
			b.WriteByte(mimeAlphabet[off/64])
			b.WriteByte(mimeAlphabet[off%64])
		case r >= 0x4800 && r <= 0x483F:
			b.WriteByte(mimeAlphabet[int(r-0x4800)])
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CellStreamName builds the composite stream name for a BINARY cell:
// tablename.key1[.key2...]: the components are joined with '.' and the
// whole composite, separators included, is encoded. BINARY cell streams are not table
// streams, so no marker prefix is added.
func CellStreamName(table string, keyValues ...string) string {
	parts := append([]string{table}, keyValues...)
	return Encode(strings.Join(parts, "."))
}
