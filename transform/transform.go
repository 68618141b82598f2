// Package transform implements the transform engine: applying an
// external difference storage's row-level insert/update/delete deltas
// against a host TableStore. There is no single libmsi source file for
// this (msitools applies transforms through the same table.c paths a
// normal query does); the row-major mask format below follows that
// on-disk convention directly.
package transform

import (
	"encoding/binary"
	"io"
	"sort"

	"msidb/errs"
	"msidb/schema"
	"msidb/storage"
	"msidb/streamname"
	"msidb/stringpool"
	"msidb/tablestore"
)

// Apply applies the difference storage held in ext against store. It
// resolves _Tables/_Columns deltas first, so tables and columns the
// transform introduces exist before their row deltas are applied, then
// every other table's transform stream, then copies every substorage of
// ext into store's container so byte-identical child storages survive.
func Apply(store *tablestore.Store, ext storage.Container) error {
	extPool, err := loadExtPool(ext)
	if err != nil {
		return err
	}

	entries, err := ext.EnumChildren()
	if err != nil {
		return errs.Wrap("transform.Apply", errs.OpenFailed, err)
	}

	var tableNames []string
	var substorages []string
	for _, e := range entries {
		switch e.Kind {
		case storage.KindSubstorage:
			substorages = append(substorages, e.Name)
		case storage.KindStream:
			if e.Name == "_StringPool" || e.Name == "_StringData" {
				continue
			}
			if !streamname.HasTableMarker(e.Name) {
				continue
			}
			tableNames = append(tableNames, streamname.DecodeTable(e.Name))
		}
	}

	sort.Slice(tableNames, func(i, j int) bool {
		return catalogueRank(tableNames[i]) < catalogueRank(tableNames[j]) ||
			(catalogueRank(tableNames[i]) == catalogueRank(tableNames[j]) && tableNames[i] < tableNames[j])
	})

	for _, name := range tableNames {
		if err := applyTableStream(store, extPool, ext, name); err != nil {
			return err
		}
	}

	for _, name := range substorages {
		src, err := ext.CreateSubstorage(name)
		if err != nil {
			return errs.Wrap("transform.Apply", errs.OpenFailed, err)
		}
		dst, err := store.Container().CreateSubstorage(name)
		if err != nil {
			return errs.Wrap("transform.Apply", errs.OpenFailed, err)
		}
		if err := copySubstorage(src, dst); err != nil {
			return err
		}
	}
	return nil
}

// catalogueRank orders _Tables and _Columns deltas ahead of every other
// table's, since a transform that adds a table or column encodes that
// fact as ordinary rows in those two tables.
func catalogueRank(name string) int {
	switch name {
	case "_Tables":
		return 0
	case "_Columns":
		return 1
	default:
		return 2
	}
}

func loadExtPool(ext storage.Container) (*stringpool.Pool, error) {
	poolStream, err := ext.ReadStream("_StringPool")
	if err != nil {
		return stringpool.New(0)
	}
	defer poolStream.Close()
	dataStream, err := ext.ReadStream("_StringData")
	if err != nil {
		return stringpool.New(0)
	}
	defer dataStream.Close()
	poolBlob, err := io.ReadAll(poolStream)
	if err != nil {
		return nil, errs.Wrap("transform.loadExtPool", errs.InvalidData, err)
	}
	dataBlob, err := io.ReadAll(dataStream)
	if err != nil {
		return nil, errs.Wrap("transform.loadExtPool", errs.InvalidData, err)
	}
	return stringpool.Deserialise(0, poolBlob, dataBlob)
}

func cellWidth(c *schema.Column, bytesPerStrRef int) int {
	if c.Type.IsBinary() {
		return int(schema.Width16)
	}
	if c.Type.IsString() {
		return bytesPerStrRef
	}
	return int(c.Type.Width())
}

// decodeCell decodes one raw on-disk cell of width len(raw) for column c
// into the in-memory row buffer data. BINARY cells carry no inline
// value (their data lives in a separate stream, copied by
// copyIncludedBinaryStreams once the row's key is final); the bias
// convention for integer columns is universal, so their raw bytes are
// simply copied across unchanged.
func decodeCell(store *tablestore.Store, extPool *stringpool.Pool, c *schema.Column, raw []byte, data []byte) error {
	switch {
	case c.Type.IsBinary():
		return nil
	case c.Type.IsString():
		id := 0
		for i := len(raw) - 1; i >= 0; i-- {
			id = id<<8 | int(raw[i])
		}
		s, _ := extPool.LookupString(id)
		if s == "" {
			return nil
		}
		return store.SetString(c, data, s, schema.Persistent)
	default:
		copy(data[c.ByteOffset:c.ByteOffset+len(raw)], raw)
		return nil
	}
}

func nonKeyMaskAll(sc *schema.Table) uint64 {
	var m uint64
	for _, c := range sc.Columns {
		if c.Type.IsKey() {
			continue
		}
		m |= 1 << uint(c.Position-1)
	}
	return m
}

func hasBinaryColumn(sc *schema.Table) bool {
	for _, c := range sc.Columns {
		if c.Type.IsBinary() {
			return true
		}
	}
	return false
}

// copyIncludedBinaryStreams copies, from ext to store's container, the
// stream for every BINARY column of sc: the composite name it lives
// under depends only on data's decoded KEY values, so it is the same
// textual name in both containers regardless of which pool interned it.
func copyIncludedBinaryStreams(store *tablestore.Store, ext storage.Container, sc *schema.Table, data []byte) error {
	if !hasBinaryColumn(sc) {
		return nil
	}
	name := store.RowStreamName(sc, data)
	rs, err := ext.ReadStream(name)
	if err != nil {
		return nil
	}
	buf, err := io.ReadAll(rs)
	rs.Close()
	if err != nil {
		return errs.Wrap("transform.copyIncludedBinaryStreams", errs.InvalidData, err)
	}
	w, err := store.Container().CreateStream(name)
	if err != nil {
		return errs.Wrap("transform.copyIncludedBinaryStreams", errs.OpenFailed, err)
	}
	if _, err := w.Write(buf); err != nil {
		w.Close()
		return errs.Wrap("transform.copyIncludedBinaryStreams", errs.FunctionFailed, err)
	}
	return w.Close()
}

// applyTableStream walks one table's row-major mask-encoded transform
// stream and applies each row to store.
func applyTableStream(store *tablestore.Store, extPool *stringpool.Pool, ext storage.Container, name string) error {
	rs, err := ext.ReadStream(streamname.EncodeTable(name))
	if err != nil {
		return nil
	}
	raw, err := io.ReadAll(rs)
	rs.Close()
	if err != nil {
		return errs.Wrap("transform.applyTableStream", errs.InvalidData, err)
	}

	t, err := store.GetOrLoadTable(name)
	if err != nil {
		return err
	}
	sc := t.Schema
	keyCols := sc.KeyColumns()
	var nonKeyCols []*schema.Column
	for _, c := range sc.Columns {
		if !c.Type.IsKey() {
			nonKeyCols = append(nonKeyCols, c)
		}
	}
	bytesPerStrRef := extPool.BytesPerStrRef()

	off := 0
	for off+2 <= len(raw) {
		mask := binary.LittleEndian.Uint16(raw[off:])
		off += 2

		data := tablestore.NewRow(sc)
		if mask&1 != 0 {
			count := int(mask >> 8)
			if count > len(sc.Columns) {
				count = len(sc.Columns)
			}
			for i := 0; i < count; i++ {
				c := sc.Columns[i]
				w := cellWidth(c, bytesPerStrRef)
				if off+w > len(raw) {
					return errs.New("transform.applyTableStream", errs.InvalidData)
				}
				if err := decodeCell(store, extPool, c, raw[off:off+w], data); err != nil {
					return err
				}
				off += w
			}
		} else {
			for _, c := range keyCols {
				w := cellWidth(c, bytesPerStrRef)
				if off+w > len(raw) {
					return errs.New("transform.applyTableStream", errs.InvalidData)
				}
				if err := decodeCell(store, extPool, c, raw[off:off+w], data); err != nil {
					return err
				}
				off += w
			}
			for i, c := range nonKeyCols {
				bit := uint16(1) << uint(i+1)
				if mask&bit == 0 {
					continue
				}
				w := cellWidth(c, bytesPerStrRef)
				if off+w > len(raw) {
					return errs.New("transform.applyTableStream", errs.InvalidData)
				}
				if err := decodeCell(store, extPool, c, raw[off:off+w], data); err != nil {
					return err
				}
				off += w
			}
		}

		rowIdx, found := store.FindRowByKey(t, data)
		switch {
		case mask == 0:
			if found {
				if err := store.DeleteRow(t, rowIdx); err != nil {
					return err
				}
			}
			continue
		case mask&1 != 0:
			if found {
				if err := store.SetRow(t, rowIdx, data, nonKeyMaskAll(sc)); err != nil {
					return err
				}
			} else if err := store.InsertRow(t, data, -1, false); err != nil {
				return err
			}
		default:
			if found {
				var m uint64
				for i, c := range nonKeyCols {
					bit := uint16(1) << uint(i+1)
					if mask&bit != 0 {
						m |= 1 << uint(c.Position-1)
					}
				}
				if err := store.SetRow(t, rowIdx, data, m); err != nil {
					return err
				}
			} else if err := store.InsertRow(t, data, -1, false); err != nil {
				return err
			}
		}
		if err := copyIncludedBinaryStreams(store, ext, sc, data); err != nil {
			return err
		}
	}
	return nil
}

// copySubstorage recursively copies every stream and child storage of
// src into dst.
func copySubstorage(src, dst storage.Container) error {
	entries, err := src.EnumChildren()
	if err != nil {
		return errs.Wrap("transform.copySubstorage", errs.OpenFailed, err)
	}
	for _, e := range entries {
		if e.Kind == storage.KindSubstorage {
			srcChild, err := src.CreateSubstorage(e.Name)
			if err != nil {
				return errs.Wrap("transform.copySubstorage", errs.OpenFailed, err)
			}
			dstChild, err := dst.CreateSubstorage(e.Name)
			if err != nil {
				return errs.Wrap("transform.copySubstorage", errs.OpenFailed, err)
			}
			if err := copySubstorage(srcChild, dstChild); err != nil {
				return err
			}
			continue
		}
		rs, err := src.ReadStream(e.Name)
		if err != nil {
			return errs.Wrap("transform.copySubstorage", errs.OpenFailed, err)
		}
		buf, err := io.ReadAll(rs)
		rs.Close()
		if err != nil {
			return errs.Wrap("transform.copySubstorage", errs.InvalidData, err)
		}
		w, err := dst.CreateStream(e.Name)
		if err != nil {
			return errs.Wrap("transform.copySubstorage", errs.OpenFailed, err)
		}
		if _, err := w.Write(buf); err != nil {
			w.Close()
			return errs.Wrap("transform.copySubstorage", errs.FunctionFailed, err)
		}
		if err := w.Close(); err != nil {
			return errs.Wrap("transform.copySubstorage", errs.FunctionFailed, err)
		}
	}
	return nil
}
