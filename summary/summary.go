// Package summary implements SummaryInfo: the binary property-set
// codec for the "\5SummaryInformation" stream every database carries,
// grounded on original_source/libmsi/libmsi-summary-info.c.
package summary

import (
	"encoding/binary"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"msidb/errs"
	"msidb/storage"
)

// StreamName is the literal (unencoded — it is not a table stream and
// carries no stream-name-codec marker) name of the property set.
const StreamName = "\x05SummaryInformation"

// PropertyID enumerates the fixed set of summary properties.
type PropertyID int

const (
	Codepage    PropertyID = 1
	Title       PropertyID = 2
	Subject     PropertyID = 3
	Author      PropertyID = 4
	Keywords    PropertyID = 5
	Comments    PropertyID = 6
	Template    PropertyID = 7
	LastAuthor  PropertyID = 8
	UUID        PropertyID = 9
	EditTime    PropertyID = 10
	LastPrinted PropertyID = 11
	Created     PropertyID = 12
	LastSaved   PropertyID = 13
	PageCount   PropertyID = 14 // aka Version
	WordCount   PropertyID = 15 // aka Source
	CharCount   PropertyID = 16 // aka Restrict
	AppName     PropertyID = 18
	Security    PropertyID = 19
)

var propertyNames = map[PropertyID]string{
	Codepage: "Codepage", Title: "Title", Subject: "Subject", Author: "Author",
	Keywords: "Keywords", Comments: "Comments", Template: "Template",
	LastAuthor: "LastAuthor", UUID: "UUID", EditTime: "EditTime",
	LastPrinted: "LastPrinted", Created: "Created", LastSaved: "LastSaved",
	PageCount: "PageCount", WordCount: "WordCount", CharCount: "CharCount",
	AppName: "AppName", Security: "Security",
}

// AllProperties returns every defined property id, in ascending id
// order — the order Persist writes them and suminfo prints them.
func AllProperties() []PropertyID {
	return []PropertyID{
		Codepage, Title, Subject, Author, Keywords, Comments, Template,
		LastAuthor, UUID, EditTime, LastPrinted, Created, LastSaved,
		PageCount, WordCount, CharCount, AppName, Security,
	}
}

// PropertyName returns id's display name, e.g. for the suminfo CLI.
func PropertyName(id PropertyID) string {
	if n, ok := propertyNames[id]; ok {
		return n
	}
	return "Property(" + strconv.Itoa(int(id)) + ")"
}

// Wire type codes.
const (
	wireI2       uint32 = 2
	wireI4       uint32 = 3
	wireLPSTR    uint32 = 30
	wireFileTime uint32 = 64
)

func canonicalType(id PropertyID) (uint32, error) {
	switch id {
	case Codepage:
		return wireI2, nil
	case Title, Subject, Author, Keywords, Comments, Template, LastAuthor, UUID, AppName:
		return wireLPSTR, nil
	case EditTime, LastPrinted, Created, LastSaved:
		return wireFileTime, nil
	case PageCount, WordCount, CharCount, Security:
		return wireI4, nil
	default:
		return 0, errs.New("summary.canonicalType", errs.UnknownProperty)
	}
}

// valueKind tags which of Value's fields is live.
type valueKind int

const (
	kindNone valueKind = iota
	kindInt
	kindString
	kindTime
)

// Value is a typed summary-property value: exactly one of an integer, a
// string, or a FILETIME, matching whichever wire type the holding
// property's canonical type requires.
type Value struct {
	kind valueKind
	i    int64
	s    string
	t    time.Time
}

func IntValue(v int64) Value    { return Value{kind: kindInt, i: v} }
func StringValue(s string) Value { return Value{kind: kindString, s: s} }
func TimeValue(t time.Time) Value { return Value{kind: kindTime, t: t} }

// Int returns the value as an integer; zero if it isn't one.
func (v Value) Int() int64 { return v.i }

// Time returns the value as a time; the zero time if it isn't one.
func (v Value) Time() time.Time { return v.t }

// String renders the value for display, per-kind.
func (v Value) String() string {
	switch v.kind {
	case kindInt:
		return strconv.FormatInt(v.i, 10)
	case kindString:
		return v.s
	case kindTime:
		return v.t.UTC().Format("2006/01/02 15:04:05")
	default:
		return ""
	}
}

func (v Value) wireMatches(wt uint32) bool {
	switch wt {
	case wireI2, wireI4:
		return v.kind == kindInt
	case wireLPSTR:
		return v.kind == kindString
	case wireFileTime:
		return v.kind == kindTime
	default:
		return false
	}
}

// Info is one database's summary property set: every value that has
// been set, plus the remaining update_count budget charged against
// first-time Set calls.
type Info struct {
	props       map[PropertyID]Value
	updateCount int
}

// New creates an empty Info with updateCount first-time Set calls
// available before FunctionFailed is returned.
func New(updateCount int) *Info {
	return &Info{props: map[PropertyID]Value{}, updateCount: updateCount}
}

// Set stores v under id, failing DatatypeMismatch if v's kind doesn't
// match id's canonical wire type, or FunctionFailed if id is being set
// for the first time and updateCount has already reached zero.
func (si *Info) Set(id PropertyID, v Value) error {
	wt, err := canonicalType(id)
	if err != nil {
		return err
	}
	if !v.wireMatches(wt) {
		return errs.New("summary.Info.Set", errs.DatatypeMismatch)
	}
	if _, exists := si.props[id]; !exists {
		if si.updateCount <= 0 {
			return errs.New("summary.Info.Set", errs.FunctionFailed)
		}
		si.updateCount--
	}
	si.props[id] = v
	return nil
}

func (si *Info) SetString(id PropertyID, s string) error { return si.Set(id, StringValue(s)) }
func (si *Info) SetInt(id PropertyID, v int64) error     { return si.Set(id, IntValue(v)) }
func (si *Info) SetTime(id PropertyID, t time.Time) error { return si.Set(id, TimeValue(t)) }

// Get returns id's value, if one has been set.
func (si *Info) Get(id PropertyID) (Value, bool) {
	v, ok := si.props[id]
	return v, ok
}

// UpdateCount returns the update_count budget remaining.
func (si *Info) UpdateCount() int { return si.updateCount }

// NewPackageCode generates a fresh {GUID}-formatted package code for
// the UUID property, the way a newly authored database picks one.
func NewPackageCode() string {
	return "{" + strings.ToUpper(uuid.New().String()) + "}"
}

// filetimeEpochDiff100ns is the number of 100ns intervals between the
// FILETIME epoch (1601-01-01) and the Unix epoch: 134774 days.
const filetimeEpochDiff100ns = 134774 * 24 * 60 * 60 * 1e7

func timeToFileTime(t time.Time) uint64 {
	return uint64(t.UTC().UnixNano()/100) + filetimeEpochDiff100ns
}

func fileTimeToTime(v uint64) time.Time {
	return time.Unix(0, (int64(v)-filetimeEpochDiff100ns)*100).UTC()
}

func parseLPSTRTime(s string) (time.Time, error) {
	return time.ParseInLocation("2006/01/02 15:04:05", s, time.UTC)
}

// fmtidSummaryInformation is {F29F85E0-4FF9-1068-AB91-08002B27B3D9} in
// its on-disk byte order (Data1/2/3 little-endian, Data4 as-is).
var fmtidSummaryInformation = [16]byte{
	0xE0, 0x85, 0x9F, 0xF2,
	0xF9, 0x4F,
	0x68, 0x10,
	0xAB, 0x91, 0x08, 0x00, 0x2B, 0x27, 0xB3, 0xD9,
}

func encodeValue(wt uint32, v Value) ([]byte, error) {
	switch wt {
	case wireI2:
		data := make([]byte, 8)
		binary.LittleEndian.PutUint32(data, wireI2)
		binary.LittleEndian.PutUint32(data[4:], uint32(uint16(v.i)))
		return data, nil
	case wireI4:
		data := make([]byte, 8)
		binary.LittleEndian.PutUint32(data, wireI4)
		binary.LittleEndian.PutUint32(data[4:], uint32(int32(v.i)))
		return data, nil
	case wireLPSTR:
		raw := append([]byte(v.s), 0)
		padded := (len(raw) + 3) &^ 3
		data := make([]byte, 8+padded)
		binary.LittleEndian.PutUint32(data, wireLPSTR)
		binary.LittleEndian.PutUint32(data[4:], uint32(len(raw)))
		copy(data[8:], raw)
		return data, nil
	case wireFileTime:
		ft := timeToFileTime(v.t)
		data := make([]byte, 12)
		binary.LittleEndian.PutUint32(data, wireFileTime)
		binary.LittleEndian.PutUint32(data[4:], uint32(ft))
		binary.LittleEndian.PutUint32(data[8:], uint32(ft>>32))
		return data, nil
	default:
		return nil, errs.New("summary.encodeValue", errs.InvalidDatatype)
	}
}

// Persist writes the property set to c's "\5SummaryInformation" stream,
// using the standard OLE property-set header/section/directory/value
// layout.
func (si *Info) Persist(c storage.Container) error {
	var ids []PropertyID
	var values [][]byte
	for _, id := range AllProperties() {
		v, ok := si.props[id]
		if !ok {
			continue
		}
		wt, _ := canonicalType(id)
		data, err := encodeValue(wt, v)
		if err != nil {
			return err
		}
		ids = append(ids, id)
		values = append(values, data)
	}

	cProperties := len(ids)
	dirBytes := 8 * cProperties
	offset := 8 + dirBytes
	dir := make([]byte, dirBytes)
	var body []byte
	for i, data := range values {
		binary.LittleEndian.PutUint32(dir[i*8:], uint32(ids[i]))
		binary.LittleEndian.PutUint32(dir[i*8+4:], uint32(offset))
		body = append(body, data...)
		offset += len(data)
	}
	cbSection := uint32(offset)

	header := make([]byte, 56)
	binary.LittleEndian.PutUint16(header[0:], 0xFFFE)
	binary.LittleEndian.PutUint16(header[2:], 0)
	binary.LittleEndian.PutUint32(header[4:], 0x00020005)
	binary.LittleEndian.PutUint32(header[24:], 1)
	copy(header[28:44], fmtidSummaryInformation[:])
	binary.LittleEndian.PutUint32(header[44:], 48)
	binary.LittleEndian.PutUint32(header[48:], cbSection)
	binary.LittleEndian.PutUint32(header[52:], uint32(cProperties))

	out := make([]byte, 0, len(header)+len(dir)+len(body))
	out = append(out, header...)
	out = append(out, dir...)
	out = append(out, body...)

	w, err := c.CreateStream(StreamName)
	if err != nil {
		return errs.Wrap("summary.Info.Persist", errs.OpenFailed, err)
	}
	if _, err := w.Write(out); err != nil {
		w.Close()
		return errs.Wrap("summary.Info.Persist", errs.FunctionFailed, err)
	}
	return w.Close()
}

func cStringFrom(b []byte) string {
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

func decodeCanonical(wt uint32, rest []byte) (Value, error) {
	switch wt {
	case wireI2:
		if len(rest) < 4 {
			return Value{}, errs.New("summary.decodeCanonical", errs.InvalidData)
		}
		return IntValue(int64(int16(binary.LittleEndian.Uint32(rest)))), nil
	case wireI4:
		if len(rest) < 4 {
			return Value{}, errs.New("summary.decodeCanonical", errs.InvalidData)
		}
		return IntValue(int64(int32(binary.LittleEndian.Uint32(rest)))), nil
	case wireLPSTR:
		if len(rest) < 4 {
			return Value{}, errs.New("summary.decodeCanonical", errs.InvalidData)
		}
		length := int(binary.LittleEndian.Uint32(rest))
		if 4+length > len(rest) {
			return Value{}, errs.New("summary.decodeCanonical", errs.InvalidData)
		}
		return StringValue(cStringFrom(rest[4 : 4+length])), nil
	case wireFileTime:
		if len(rest) < 8 {
			return Value{}, errs.New("summary.decodeCanonical", errs.InvalidData)
		}
		lo := binary.LittleEndian.Uint32(rest)
		hi := binary.LittleEndian.Uint32(rest[4:])
		return TimeValue(fileTimeToTime(uint64(hi)<<32 | uint64(lo))), nil
	default:
		return Value{}, errs.New("summary.decodeCanonical", errs.InvalidDatatype)
	}
}

// decodeValue reads a property stored as wire type wt into canon, the
// property id's canonical type, coercing LPSTR-stored values into it
// and aborting on any other mismatch.
func decodeValue(wt, canon uint32, rest []byte) (Value, error) {
	if wt == canon {
		return decodeCanonical(wt, rest)
	}
	if wt != wireLPSTR {
		return Value{}, errs.New("summary.decodeValue", errs.InvalidDatatype)
	}
	if len(rest) < 4 {
		return Value{}, errs.New("summary.decodeValue", errs.InvalidData)
	}
	length := int(binary.LittleEndian.Uint32(rest))
	if 4+length > len(rest) {
		return Value{}, errs.New("summary.decodeValue", errs.InvalidData)
	}
	s := cStringFrom(rest[4 : 4+length])
	switch canon {
	case wireI2, wireI4:
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return Value{}, errs.Wrap("summary.decodeValue", errs.InvalidDatatype, err)
		}
		return IntValue(int64(n)), nil
	case wireFileTime:
		t, err := parseLPSTRTime(s)
		if err != nil {
			return Value{}, errs.Wrap("summary.decodeValue", errs.InvalidDatatype, err)
		}
		return TimeValue(t), nil
	default:
		return Value{}, errs.New("summary.decodeValue", errs.InvalidDatatype)
	}
}

// Load reads the property set out of c's "\5SummaryInformation" stream.
// It returns a NotFound-wrapped error if the stream is absent, so
// callers (msidb.Database.SummaryInfo) can tell "no summary info yet"
// apart from a corrupt stream.
func Load(c storage.Container) (*Info, error) {
	rs, err := c.ReadStream(StreamName)
	if err != nil {
		return nil, errs.Wrap("summary.Load", errs.NotFound, err)
	}
	defer rs.Close()
	raw, err := io.ReadAll(rs)
	if err != nil {
		return nil, errs.Wrap("summary.Load", errs.InvalidData, err)
	}
	if len(raw) < 56 {
		return nil, errs.New("summary.Load", errs.InvalidData)
	}
	sectionOffset := binary.LittleEndian.Uint32(raw[44:])
	if int(sectionOffset)+8 > len(raw) {
		return nil, errs.New("summary.Load", errs.InvalidData)
	}
	section := raw[sectionOffset:]
	cProperties := int(binary.LittleEndian.Uint32(section[4:]))
	dirStart := 8
	if dirStart+8*cProperties > len(section) {
		return nil, errs.New("summary.Load", errs.InvalidData)
	}

	info := New(0)
	for i := 0; i < cProperties; i++ {
		id := PropertyID(binary.LittleEndian.Uint32(section[dirStart+i*8:]))
		off := binary.LittleEndian.Uint32(section[dirStart+i*8+4:])
		if int(off)+4 > len(section) {
			return nil, errs.New("summary.Load", errs.InvalidData)
		}
		wt := binary.LittleEndian.Uint32(section[off:])
		canon, err := canonicalType(id)
		if err != nil {
			return nil, err
		}
		v, err := decodeValue(wt, canon, section[off+4:])
		if err != nil {
			return nil, err
		}
		info.props[id] = v
	}
	return info, nil
}
