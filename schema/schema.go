// Package schema describes the static shape of a table: its columns,
// their packed type flags, and the invariants attached to them. It
// holds no row data; see package tablestore for that.
package schema

import "fmt"

// Width is the on-disk byte width of a column's stored value.
type Width int

const (
	Width16 Width = 2
	Width24 Width = 3 // in-memory string-id width; never used on disk
	Width32 Width = 4
)

// TypeFlags packs a column's width and attribute bits into the single
// 16-bit integer stored in the _Columns.Type cell.
// Bits 0-7 carry the width; bits 8-15 carry the attribute flags.
type TypeFlags uint16

const (
	flagString TypeFlags = 1 << (8 + iota)
	flagKey
	flagNullable
	flagLocalizable
	flagTemporary
	flagBinary
)

// NewTypeFlags packs width and the named attributes into a TypeFlags.
// BINARY implies width 2 regardless of the width argument.
func NewTypeFlags(width Width, str, key, nullable, localizable, temporary, binary bool) TypeFlags {
	if binary {
		width = Width16
		str = false
	}
	t := TypeFlags(width & 0xFF)
	if str {
		t |= flagString
	}
	if key {
		t |= flagKey
	}
	if nullable {
		t |= flagNullable
	}
	if localizable {
		t |= flagLocalizable
	}
	if temporary {
		t |= flagTemporary
	}
	if binary {
		t |= flagBinary
	}
	return t
}

func (t TypeFlags) Width() Width       { return Width(t & 0xFF) }
func (t TypeFlags) IsString() bool     { return t&flagString != 0 }
func (t TypeFlags) IsKey() bool        { return t&flagKey != 0 }
func (t TypeFlags) IsNullable() bool   { return t&flagNullable != 0 }
func (t TypeFlags) IsLocalizable() bool { return t&flagLocalizable != 0 }
func (t TypeFlags) IsTemporary() bool  { return t&flagTemporary != 0 }
func (t TypeFlags) IsBinary() bool     { return t&flagBinary != 0 }

// IsInt16 reports whether the column is a 2-byte non-string integer.
func (t TypeFlags) IsInt16() bool { return t.Width() == Width16 && !t.IsString() && !t.IsBinary() }

// IsInt32 reports whether the column is a 4-byte non-string integer.
func (t TypeFlags) IsInt32() bool { return t.Width() == Width32 && !t.IsString() }

// StoredWidth returns the on-disk byte width for string columns, which
// differs from the in-memory width (always 3): it is whatever
// bytesPerStrRef the owning StringPool reports (2 or 3).
func (t TypeFlags) StoredWidth(bytesPerStrRef int) int {
	if t.IsString() && !t.IsBinary() {
		return bytesPerStrRef
	}
	return int(t.Width())
}

// Column is a single column descriptor. Position is 1-based and dense
// within a table; ByteOffset is the in-memory row offset (always using
// the 3-byte string-id width for STRING columns).
type Column struct {
	Table      string
	Position   int
	Name       string
	Type       TypeFlags
	ByteOffset int
	RefCount   int
}

func (c *Column) String() string {
	return fmt.Sprintf("%s.%s[#%d]", c.Table, c.Name, c.Position)
}

// Persistence classifies how long a table's rows live.
type Persistence int

const (
	Persistent Persistence = iota
	Transient
	Session
)

// Table is a column-ordered schema descriptor. It carries no rows; see
// tablestore.Table for the live, row-holding counterpart.
type Table struct {
	Name        string
	Columns     []*Column
	Persistence Persistence
	RefCount    int
}

// ColumnByName returns the column named n, or nil.
func (t *Table) ColumnByName(n string) *Column {
	for _, c := range t.Columns {
		if c.Name == n {
			return c
		}
	}
	return nil
}

// KeyColumns returns the columns participating in the primary key, in
// position order.
func (t *Table) KeyColumns() []*Column {
	var keys []*Column
	for _, c := range t.Columns {
		if c.Type.IsKey() {
			keys = append(keys, c)
		}
	}
	return keys
}

// RowWidth returns the sum of in-memory byte widths of all columns
// (string columns counted at the 3-byte in-memory string-id width).
func (t *Table) RowWidth() int {
	w := 0
	for _, c := range t.Columns {
		if c.Type.IsString() && !c.Type.IsBinary() {
			w += int(Width24)
		} else {
			w += int(c.Type.Width())
		}
	}
	return w
}

// AssignOffsets recomputes ByteOffset for every column from Position
// order.
func (t *Table) AssignOffsets() {
	off := 0
	for i, c := range t.Columns {
		c.Position = i + 1
		c.ByteOffset = off
		if c.Type.IsString() && !c.Type.IsBinary() {
			off += int(Width24)
		} else {
			off += int(c.Type.Width())
		}
	}
}

// AllTemporary reports whether every column of t is TEMPORARY.
func (t *Table) AllTemporary() bool {
	for _, c := range t.Columns {
		if !c.Type.IsTemporary() {
			return false
		}
	}
	return len(t.Columns) > 0
}

// MixedTemporaryKey reports whether t has a forbidden TEMPORARY/
// non-TEMPORARY key mix: some columns temporary, some not, and at
// least one KEY column is TEMPORARY.
func (t *Table) MixedTemporaryKey() bool {
	if t.AllTemporary() {
		return false
	}
	anyTemporary := false
	for _, c := range t.Columns {
		if c.Type.IsTemporary() {
			anyTemporary = true
		}
	}
	if !anyTemporary {
		return false
	}
	for _, c := range t.KeyColumns() {
		if c.Type.IsTemporary() {
			return true
		}
	}
	return false
}
