// Package record implements RecordValue: the positional
// typed-field tuple used for WHERE bindings, inserted values, and
// results fetched back out of a view.
package record

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"msidb/errs"
)

// NullInt is the sentinel get_int returns for a field that is null or
// not parseable as an integer.
const NullInt int32 = -0x80000000 // 0x80000000 as a signed 32-bit value

const maxFields = 65535

type fieldKind int

const (
	kindNull fieldKind = iota
	kindInt
	kindString
	kindStream
)

type field struct {
	kind   fieldKind
	i      int32
	s      string
	stream io.ReadSeeker
}

// Record is a RecordValue: fields 1..n, with field 0 also present and
// commonly used by callers to carry a row-identity slot.
type Record struct {
	fields []field // len == n+1
}

// New allocates a Record with n+1 null fields. n is capped at 65535.
func New(n int) *Record {
	if n > maxFields {
		n = maxFields
	}
	if n < 0 {
		n = 0
	}
	return &Record{fields: make([]field, n+1)}
}

// FieldCount returns n (field 0 is not counted).
func (r *Record) FieldCount() int { return len(r.fields) - 1 }

func (r *Record) inRange(i int) bool { return i >= 0 && i < len(r.fields) }

// IsNull reports whether field i is null, including out-of-range i.
func (r *Record) IsNull(i int) bool {
	if !r.inRange(i) {
		return true
	}
	return r.fields[i].kind == kindNull
}

// SetInt replaces field i with an integer value, clearing any prior
// string or stream.
func (r *Record) SetInt(i int, v int32) error {
	if !r.inRange(i) {
		return errs.New("record.SetInt", errs.InvalidParameter)
	}
	r.fields[i] = field{kind: kindInt, i: v}
	return nil
}

// SetString sets field i to s; an empty string is stored as null.
func (r *Record) SetString(i int, s string) error {
	if !r.inRange(i) {
		return errs.New("record.SetString", errs.InvalidParameter)
	}
	if s == "" {
		r.fields[i] = field{kind: kindNull}
		return nil
	}
	r.fields[i] = field{kind: kindString, s: s}
	return nil
}

// SetNull clears field i to null.
func (r *Record) SetNull(i int) error {
	if !r.inRange(i) {
		return errs.New("record.SetNull", errs.InvalidParameter)
	}
	r.fields[i] = field{}
	return nil
}

// SetStream attaches an already-open stream to field i.
func (r *Record) SetStream(i int, rs io.ReadSeeker) error {
	if !r.inRange(i) {
		return errs.New("record.SetStream", errs.InvalidParameter)
	}
	r.fields[i] = field{kind: kindStream, stream: rs}
	return nil
}

// IsString, IsInt, IsStream report the field's current tag.
func (r *Record) IsString(i int) bool { return r.inRange(i) && r.fields[i].kind == kindString }
func (r *Record) IsInt(i int) bool    { return r.inRange(i) && r.fields[i].kind == kindInt }
func (r *Record) IsStream(i int) bool { return r.inRange(i) && r.fields[i].kind == kindStream }

// GetInt returns field i as an integer: the stored int as-is; a string
// parsed as a signed decimal with wraparound on overflow; otherwise
// NullInt.
func (r *Record) GetInt(i int) int32 {
	if !r.inRange(i) {
		return NullInt
	}
	f := &r.fields[i]
	switch f.kind {
	case kindInt:
		return f.i
	case kindString:
		if v, ok := parseWrappingInt32(f.s); ok {
			return v
		}
		return NullInt
	default:
		return NullInt
	}
}

// parseWrappingInt32 parses an optional '-' followed by decimal digits,
// wrapping modulo 2^32 on overflow rather than failing. It returns
// false only when no leading digit is present at all.
func parseWrappingInt32(s string) (int32, bool) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	if s == "" || s[0] < '0' || s[0] > '9' {
		return 0, false
	}
	var acc uint32
	for _, c := range s {
		if c < '0' || c > '9' {
			break
		}
		acc = acc*10 + uint32(c-'0')
	}
	v := int32(acc)
	if neg {
		v = -v
	}
	return v, true
}

// GetString returns field i as a string: a stored string as-is; an int
// formatted with %d; a null as "".
func (r *Record) GetString(i int) string {
	if !r.inRange(i) {
		return ""
	}
	f := &r.fields[i]
	switch f.kind {
	case kindString:
		return f.s
	case kindInt:
		return strconv.FormatInt(int64(f.i), 10)
	default:
		return ""
	}
}

// LoadStream attaches data as field i's stream content, rewound to 0.
// Passing nil data rewinds the field's existing stream instead.
func (r *Record) LoadStream(i int, data []byte) error {
	if !r.inRange(i) {
		return errs.New("record.LoadStream", errs.InvalidParameter)
	}
	if data == nil {
		f := &r.fields[i]
		if f.kind != kindStream || f.stream == nil {
			return errs.New("record.LoadStream", errs.InvalidHandle)
		}
		_, err := f.stream.Seek(0, io.SeekStart)
		return err
	}
	r.fields[i] = field{kind: kindStream, stream: bytes.NewReader(data)}
	return nil
}

// SaveStream reads up to len(buf) bytes from field i's current stream
// position. If buf is nil, it instead reports the remaining byte count
// via a dry read using Seek, without consuming the cursor.
func (r *Record) SaveStream(i int, buf []byte) (n int, remaining int, err error) {
	if !r.inRange(i) || r.fields[i].kind != kindStream {
		return 0, 0, errs.New("record.SaveStream", errs.InvalidHandle)
	}
	rs := r.fields[i].stream
	if buf == nil {
		cur, err := rs.Seek(0, io.SeekCurrent)
		if err != nil {
			return 0, 0, err
		}
		end, err := rs.Seek(0, io.SeekEnd)
		if err != nil {
			return 0, 0, err
		}
		if _, err := rs.Seek(cur, io.SeekStart); err != nil {
			return 0, 0, err
		}
		return 0, int(end - cur), nil
	}
	n, err = io.ReadFull(rs, buf)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		err = nil
	}
	return n, 0, err
}

// Clone deep-copies every field, duplicating stream readers so the
// clone's cursor is independent of the original's.
func (r *Record) Clone() (*Record, error) {
	out := &Record{fields: make([]field, len(r.fields))}
	for i, f := range r.fields {
		if f.kind == kindStream && f.stream != nil {
			data, err := io.ReadAll(f.stream)
			if err != nil {
				return nil, errs.Wrap("record.Clone", errs.FunctionFailed, err)
			}
			if _, err := f.stream.Seek(0, io.SeekStart); err != nil {
				return nil, errs.Wrap("record.Clone", errs.FunctionFailed, err)
			}
			out.fields[i] = field{kind: kindStream, stream: bytes.NewReader(data)}
			continue
		}
		out.fields[i] = f
	}
	return out, nil
}

// CompareField compares field i of r and other. Fields of different
// kinds never compare equal; streams never compare equal.
func (r *Record) CompareField(other *Record, i int) bool {
	if !r.inRange(i) || !other.inRange(i) {
		return false
	}
	a, b := r.fields[i], other.fields[i]
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case kindNull:
		return true
	case kindInt:
		return a.i == b.i
	case kindString:
		return a.s == b.s
	default:
		return false
	}
}

func (r *Record) String() string {
	parts := make([]string, len(r.fields))
	for i, f := range r.fields {
		switch f.kind {
		case kindNull:
			parts[i] = "NULL"
		case kindInt:
			parts[i] = strconv.FormatInt(int64(f.i), 10)
		case kindString:
			parts[i] = fmt.Sprintf("%q", f.s)
		case kindStream:
			parts[i] = "<stream>"
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
