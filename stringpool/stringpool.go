// Package stringpool implements the refcounted pooled string table:
// every row cell that holds a string stores a small integer string-id
// into one of these pools, and the pool's serialised form is exactly
// the bytes of the "_StringPool" / "_StringData" streams.
package stringpool

import (
	"encoding/binary"

	"github.com/google/btree"

	"msidb/errs"
	"msidb/schema"
)

// sortedItem is the btree.BTreeG element backing Pool.sorted: the
// ordered index is a strict total order by byte comparison of the
// decoded string.
type sortedItem struct {
	s  string
	id int
}

func lessItem(a, b sortedItem) bool { return a.s < b.s }

type entry struct {
	s                string
	persistentRef    int
	nonpersistentRef int
}

func (e *entry) free() bool { return e.persistentRef == 0 && e.nonpersistentRef == 0 }

// Pool is a StringPool. The zero value is not usable; use New.
type Pool struct {
	entries  []entry
	freeList []int
	codepage int
	sorted   *btree.BTreeG[sortedItem]

	// wireWidthOverride is set on Deserialise from the header's high
	// bit, so row decoding immediately after open uses the width the
	// stream was actually written with instead of Len()'s guess.
	wireWidthOverride int
}

// New creates an empty pool with entry 0 reserved as the empty string.
func New(codepage int) (*Pool, error) {
	if !ValidCodepage(codepage) {
		return nil, errs.New("stringpool.New", errs.InvalidParameter)
	}
	p := &Pool{
		entries:  []entry{{}}, // slot 0: empty string, refcount 0
		codepage: codepage,
		sorted:   btree.NewG(32, lessItem),
	}
	return p, nil
}

// Codepage returns the pool's codepage.
func (p *Pool) Codepage() int { return p.codepage }

// SetCodepage changes the pool's codepage, as the IDT importer's
// special _ForceCodepage.idt file does. It does not
// re-encode any already-interned string; the new codepage only governs
// subsequent Serialise calls.
func (p *Pool) SetCodepage(codepage int) error {
	if !ValidCodepage(codepage) {
		return errs.New("stringpool.Pool.SetCodepage", errs.InvalidParameter)
	}
	p.codepage = codepage
	return nil
}

// Intern finds s; if present, bumps the chosen refcount by delta and
// returns its id. If absent, it allocates a slot (reusing a free hole
// first) and returns the new id. The empty string always maps to id 0
// and never touches the free list or sorted index.
func (p *Pool) Intern(s string, delta int, persistence schema.Persistence) (int, error) {
	if s == "" {
		return 0, nil
	}
	if id, ok := p.LookupID(s); ok {
		p.bump(id, delta, persistence)
		return id, nil
	}

	var id int
	if n := len(p.freeList); n > 0 {
		id = p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		p.entries[id] = entry{s: s}
	} else {
		id = len(p.entries)
		p.entries = append(p.entries, entry{s: s})
	}
	p.bump(id, delta, persistence)
	p.sorted.ReplaceOrInsert(sortedItem{s: s, id: id})
	return id, nil
}

func (p *Pool) bump(id, delta int, persistence schema.Persistence) {
	e := &p.entries[id]
	if persistence == schema.Persistent {
		e.persistentRef += delta
	} else {
		e.nonpersistentRef += delta
	}
}

// LookupID does a binary search (via the btree index) for s. The empty
// string always resolves to id 0.
func (p *Pool) LookupID(s string) (int, bool) {
	if s == "" {
		return 0, true
	}
	var found int
	var ok bool
	p.sorted.AscendGreaterOrEqual(sortedItem{s: s}, func(item sortedItem) bool {
		if item.s == s {
			found, ok = item.id, true
		}
		return false
	})
	return found, ok
}

// LookupString returns the string for id, or ("", false) if the slot is
// free or out of range. id 0 always resolves to "".
func (p *Pool) LookupString(id int) (string, bool) {
	if id == 0 {
		return "", true
	}
	if id < 0 || id >= len(p.entries) {
		return "", false
	}
	e := &p.entries[id]
	if e.free() {
		return "", false
	}
	return e.s, true
}

// Release decrements the chosen refcount for id; if both reach 0 the
// slot is freed and removed from the sorted index.
func (p *Pool) Release(id int, persistence schema.Persistence) error {
	if id == 0 {
		return nil
	}
	if id < 0 || id >= len(p.entries) {
		return errs.New("stringpool.Release", errs.InvalidParameter)
	}
	e := &p.entries[id]
	if persistence == schema.Persistent {
		if e.persistentRef > 0 {
			e.persistentRef--
		}
	} else if e.nonpersistentRef > 0 {
		e.nonpersistentRef--
	}
	if e.free() {
		p.sorted.Delete(sortedItem{s: e.s})
		p.freeList = append(p.freeList, id)
		p.entries[id] = entry{}
	}
	return nil
}

// RefCounts reports the persistent and nonpersistent refcounts for id,
// used by tablestore invariant checks and tests.
func (p *Pool) RefCounts(id int) (persistent, nonpersistent int) {
	if id <= 0 || id >= len(p.entries) {
		return 0, 0
	}
	e := &p.entries[id]
	return e.persistentRef, e.nonpersistentRef
}

// Len returns the number of slots, including free ones, excluding the
// reserved empty-string slot.
func (p *Pool) Len() int { return len(p.entries) - 1 }

// BytesPerStrRef returns 2 or 3: the on-disk width of a string-id
// (LONG_STR_BYTES), determined by whether any interned id is >= 65536
// (or, right after Deserialise, by the header bit of the stream it was
// loaded from).
func (p *Pool) BytesPerStrRef() int {
	if p.wireWidthOverride != 0 {
		return p.wireWidthOverride
	}
	if len(p.entries) > 65536 {
		return 3
	}
	return 2
}

const longStrHighBit = 1 << 31

// Serialise emits the pool_blob/data_blob pair. Strings 64 KiB or
// larger are preceded by a dummy slot carrying the high 16 bits of the
// length.
func (p *Pool) Serialise() (poolBlob, dataBlob []byte, err error) {
	bytesPerStrRef := p.BytesPerStrRef()

	header := uint32(p.codepage) & 0xFFFFFF
	if bytesPerStrRef == 3 {
		header |= longStrHighBit
	}
	poolBlob = make([]byte, 4, 4+4*len(p.entries))
	binary.LittleEndian.PutUint32(poolBlob, header)

	for i := 1; i < len(p.entries); i++ {
		e := &p.entries[i]
		if e.free() {
			poolBlob = append(poolBlob, 0, 0, 0, 0)
			continue
		}
		length := len(e.s)
		if length >= 65536 {
			poolBlob = binary.LittleEndian.AppendUint16(poolBlob, 0)
			poolBlob = binary.LittleEndian.AppendUint16(poolBlob, uint16(length>>16))
		}
		refcount := e.persistentRef + e.nonpersistentRef
		poolBlob = binary.LittleEndian.AppendUint16(poolBlob, uint16(length&0xFFFF))
		poolBlob = binary.LittleEndian.AppendUint16(poolBlob, uint16(refcount))
		dataBlob = append(dataBlob, encodeCodepage(p.codepage, e.s)...)
	}
	return poolBlob, dataBlob, nil
}

// Deserialise rebuilds a Pool from the raw pool_blob/data_blob pair.
// codepageOrDefault is used only if the pool_blob is too short to carry
// a header (a defensive fallback, never hit by a well-formed stream).
func Deserialise(codepageOrDefault int, poolBlob, dataBlob []byte) (*Pool, error) {
	if len(poolBlob) < 4 {
		return New(codepageOrDefault)
	}
	header := binary.LittleEndian.Uint32(poolBlob)
	threeByteIDs := header&longStrHighBit != 0
	codepage := int(header & 0xFFFFFF)

	p, err := New(codepage)
	if err != nil {
		// A corrupt or unlisted codepage header still must not abort
		// the whole stream; fall back to raw bytes.
		p = &Pool{entries: []entry{{}}, codepage: codepage, sorted: btree.NewG(32, lessItem)}
	}
	if threeByteIDs {
		p.wireWidthOverride = 3
	} else {
		p.wireWidthOverride = 2
	}

	off := 4
	dataOff := 0
	for off+4 <= len(poolBlob) {
		lengthLo := binary.LittleEndian.Uint16(poolBlob[off:])
		refOrLenHi := binary.LittleEndian.Uint16(poolBlob[off+2:])
		off += 4

		if lengthLo == 0 && refOrLenHi != 0 {
			// Dummy high-length slot: next real slot's length is
			// extended by refOrLenHi<<16.
			if off+4 > len(poolBlob) {
				return nil, errs.New("stringpool.Deserialise", errs.InvalidData)
			}
			realLenLo := binary.LittleEndian.Uint16(poolBlob[off:])
			realRef := binary.LittleEndian.Uint16(poolBlob[off+2:])
			off += 4
			length := int(refOrLenHi)<<16 | int(realLenLo)
			if dataOff+length > len(dataBlob) {
				return nil, errs.New("stringpool.Deserialise", errs.InvalidData)
			}
			raw := dataBlob[dataOff : dataOff+length]
			dataOff += length
			s := decodeCodepage(codepage, raw)
			id := p.appendRaw(s, int(realRef))
			p.sorted.ReplaceOrInsert(sortedItem{s: s, id: id})
			continue
		}

		length := int(lengthLo)
		refcount := int(refOrLenHi)
		if length == 0 && refcount == 0 {
			p.entries = append(p.entries, entry{})
			p.freeList = append(p.freeList, len(p.entries)-1)
			continue
		}
		if dataOff+length > len(dataBlob) {
			return nil, errs.New("stringpool.Deserialise", errs.InvalidData)
		}
		raw := dataBlob[dataOff : dataOff+length]
		dataOff += length
		s := decodeCodepage(codepage, raw)
		id := p.appendRaw(s, refcount)
		p.sorted.ReplaceOrInsert(sortedItem{s: s, id: id})
	}
	return p, nil
}

// appendRaw appends a fully-formed entry and returns its id. refcount
// goes entirely into the persistent bucket (deserialised rows have no
// way to distinguish persistent from nonpersistent refs, so all
// restored refs are treated as persistent — matching the fact that only
// persistent tables are ever committed to a stream).
func (p *Pool) appendRaw(s string, refcount int) int {
	id := len(p.entries)
	p.entries = append(p.entries, entry{s: s, persistentRef: refcount})
	return id
}

// ValidCodepage reports whether codepage is in the fixed whitelist
// msitools enforces (original_source/libmsi/string.c validate_codepage).
func ValidCodepage(codepage int) bool {
	switch codepage {
	case 0, // CP_ACP
		37, 424, 437, 500, 737, 775, 850,
		852, 855, 856, 857, 860, 861, 862,
		863, 864, 865, 866, 869, 874, 875,
		878, 932, 936, 949, 950, 1006, 1026,
		1250, 1251, 1252, 1253, 1254, 1255,
		1256, 1257, 1258, 1361,
		10000, 10006, 10007, 10029, 10079, 10081,
		20127, 20866, 20932, 21866, 28591, 28592,
		28593, 28594, 28595, 28596, 28597, 28598,
		28599, 28600, 28603, 28604, 28605, 28606,
		65000, 65001:
		return true
	default:
		return false
	}
}
