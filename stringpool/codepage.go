package stringpool

import (
	"golang.org/x/text/encoding/charmap"
)

// singleByteCodepages maps the legacy single-byte Windows/ISO codepages
// in the validate-codepage whitelist to their golang.org/x/text
// transcoder. Double-byte codepages (932 Shift-JIS, 936 GBK, 949, 950,
// …) and ones x/text doesn't expose as a charmap.Charmap are not in
// this table; strings under those codepages pass through as raw UTF-8,
// which is how every string this engine itself produces is encoded.
var singleByteCodepages = map[int]*charmap.Charmap{
	437:   charmap.CodePage437,
	850:   charmap.CodePage850,
	852:   charmap.CodePage852,
	855:   charmap.CodePage855,
	860:   charmap.CodePage860,
	862:   charmap.CodePage862,
	863:   charmap.CodePage863,
	865:   charmap.CodePage865,
	866:   charmap.CodePage866,
	874:   charmap.Windows874,
	1250:  charmap.Windows1250,
	1251:  charmap.Windows1251,
	1252:  charmap.Windows1252,
	1253:  charmap.Windows1253,
	1254:  charmap.Windows1254,
	1255:  charmap.Windows1255,
	1256:  charmap.Windows1256,
	1257:  charmap.Windows1257,
	1258:  charmap.Windows1258,
	28591: charmap.ISO8859_1,
	28592: charmap.ISO8859_2,
	28593: charmap.ISO8859_3,
	28594: charmap.ISO8859_4,
	28595: charmap.ISO8859_5,
	28596: charmap.ISO8859_6,
	28597: charmap.ISO8859_7,
	28598: charmap.ISO8859_8,
	28599: charmap.ISO8859_9,
}

// encodeCodepage converts s (UTF-8, the engine's canonical in-memory
// form) to the raw bytes this codepage stores on disk.
func encodeCodepage(codepage int, s string) []byte {
	cm, ok := singleByteCodepages[codepage]
	if !ok {
		return []byte(s)
	}
	out, err := cm.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return []byte(s)
	}
	return out
}

// decodeCodepage converts raw on-disk bytes for this codepage back to
// the engine's canonical UTF-8 form.
func decodeCodepage(codepage int, raw []byte) string {
	cm, ok := singleByteCodepages[codepage]
	if !ok {
		return string(raw)
	}
	out, err := cm.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(out)
}
