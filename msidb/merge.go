package msidb

import (
	"io"

	"msidb/errs"
	"msidb/schema"
	"msidb/tablestore"
)

// Merge implements the merge operation: every row of src's
// user tables is copied into db. A table absent from db is created and
// copied wholesale. A row whose KEY already exists in db is left alone
// if its non-key fields agree with src's; if they differ, it is counted
// as a conflict rather than overwritten, and errorTable ends up holding
// one row per conflicted table: (Table: s72 KEY, NumRowMergeConflicts: i2).
func (db *Database) Merge(src *Database, errorTable string) error {
	conflicts := map[string]int{}
	for _, name := range src.Store.TableNames() {
		if name == "_Tables" || name == "_Columns" {
			continue
		}
		srcTable, err := src.Store.GetOrLoadTable(name)
		if err != nil {
			return err
		}
		if err := db.mergeTable(src, srcTable, conflicts); err != nil {
			return err
		}
	}
	if len(conflicts) == 0 {
		return nil
	}
	db.dirty = true
	return db.writeMergeErrors(errorTable, conflicts)
}

func (db *Database) mergeTable(src *Database, srcTable *tablestore.Table, conflicts map[string]int) error {
	name := srcTable.Schema.Name
	if !db.Store.TableExists(name) {
		cols := make([]*schema.Column, len(srcTable.Schema.Columns))
		for i, c := range srcTable.Schema.Columns {
			cp := *c
			cols[i] = &cp
		}
		if err := db.Store.CreateTable(name, cols, srcTable.Schema.Persistence); err != nil {
			return err
		}
	}
	dstTable, err := db.Store.GetOrLoadTable(name)
	if err != nil {
		return err
	}
	if err := compatibleSchema(dstTable.Schema, srcTable.Schema); err != nil {
		return err
	}

	for _, row := range srcTable.Rows {
		data, err := copyRowData(src.Store, db.Store, dstTable.Schema, row.Data)
		if err != nil {
			return err
		}
		if idx, found := db.Store.FindRowByKey(dstTable, data); found {
			if !nonKeyEqual(dstTable.Schema, dstTable.Rows[idx].Data, data) {
				conflicts[name]++
			}
			continue
		}
		if err := db.Store.InsertRow(dstTable, data, -1, false); err != nil {
			return err
		}
		if err := copyBinaryCell(src.Store, db.Store, dstTable.Schema, data); err != nil {
			return err
		}
	}
	db.dirty = true
	return nil
}

// compatibleSchema requires every one of src's columns to exist in dst,
// in the same position, with the same width/key/string-ness: a schema
// mismatch aborts with DATATYPE_MISMATCH.
func compatibleSchema(dst, src *schema.Table) error {
	if len(dst.Columns) < len(src.Columns) {
		return errs.New("msidb.Database.Merge", errs.DatatypeMismatch)
	}
	for i, sc := range src.Columns {
		dc := dst.Columns[i]
		if dc.Name != sc.Name ||
			dc.Type.IsKey() != sc.Type.IsKey() ||
			dc.Type.IsString() != sc.Type.IsString() ||
			dc.Type.Width() != sc.Type.Width() {
			return errs.New("msidb.Database.Merge", errs.DatatypeMismatch)
		}
	}
	return nil
}

// copyRowData re-encodes srcData (in src's pool) into a fresh row for
// dst's store, interning any string cell into dst's pool.
func copyRowData(srcStore, dstStore *tablestore.Store, sc *schema.Table, srcData []byte) ([]byte, error) {
	dstData := tablestore.NewRow(sc)
	for _, c := range sc.Columns {
		switch {
		case c.Type.IsBinary():
			continue
		case c.Type.IsString():
			s, ok := srcStore.GetString(c, srcData)
			if !ok || s == "" {
				continue
			}
			if err := dstStore.SetString(c, dstData, s, schema.Persistent); err != nil {
				return nil, err
			}
		default:
			v, null := tablestore.GetInt(c, srcData)
			if !null {
				tablestore.SetInt(c, dstData, v, false)
			}
		}
	}
	return dstData, nil
}

// nonKeyEqual compares every non-key, non-binary column of two rows
// that are both already encoded against the same (dst) pool, so a raw
// byte comparison per column is valid.
func nonKeyEqual(sc *schema.Table, a, b []byte) bool {
	for _, c := range sc.Columns {
		if c.Type.IsKey() || c.Type.IsBinary() {
			continue
		}
		width := int(c.Type.Width())
		if c.Type.IsString() {
			width = int(schema.Width24)
		}
		for i := 0; i < width; i++ {
			if a[c.ByteOffset+i] != b[c.ByteOffset+i] {
				return false
			}
		}
	}
	return true
}

func hasBinaryColumn(sc *schema.Table) bool {
	for _, c := range sc.Columns {
		if c.Type.IsBinary() {
			return true
		}
	}
	return false
}

// copyBinaryCell copies the BINARY-column stream (if any) attached to a
// freshly inserted row from src's container to dst's, keyed by the
// composite name both containers compute identically from the row's
// (now dst-pool-encoded) KEY values.
func copyBinaryCell(srcStore, dstStore *tablestore.Store, sc *schema.Table, dstData []byte) error {
	if !hasBinaryColumn(sc) {
		return nil
	}
	name := dstStore.RowStreamName(sc, dstData)
	rs, err := srcStore.Container().ReadStream(name)
	if err != nil {
		return nil
	}
	buf, err := io.ReadAll(rs)
	rs.Close()
	if err != nil {
		return errs.Wrap("msidb.copyBinaryCell", errs.InvalidData, err)
	}
	w, err := dstStore.Container().CreateStream(name)
	if err != nil {
		return errs.Wrap("msidb.copyBinaryCell", errs.OpenFailed, err)
	}
	if _, err := w.Write(buf); err != nil {
		w.Close()
		return errs.Wrap("msidb.copyBinaryCell", errs.FunctionFailed, err)
	}
	return w.Close()
}

func (db *Database) writeMergeErrors(tableName string, conflicts map[string]int) error {
	if !db.Store.TableExists(tableName) {
		cols := []*schema.Column{
			{Name: "Table", Type: schema.NewTypeFlags(schema.Width24, true, true, false, false, false, false)},
			{Name: "NumRowMergeConflicts", Type: schema.NewTypeFlags(schema.Width16, false, false, false, false, false, false)},
		}
		if err := db.Store.CreateTable(tableName, cols, schema.Persistent); err != nil {
			return err
		}
	}
	t, err := db.Store.GetOrLoadTable(tableName)
	if err != nil {
		return err
	}
	for name, count := range conflicts {
		data := tablestore.NewRow(t.Schema)
		if err := db.Store.SetString(t.Schema.Columns[0], data, name, schema.Persistent); err != nil {
			return err
		}
		tablestore.SetInt(t.Schema.Columns[1], data, int64(count), false)
		if err := db.Store.InsertRow(t, data, -1, false); err != nil {
			return err
		}
	}
	return nil
}
