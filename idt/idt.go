// Package idt implements the tab-delimited IDT table export/import
// format. There is no dedicated IDT source file in the kept
// original_source excerpt (the closest analogue is the original's
// tools/msiinfo.c export path); the line layout below follows that
// tool's output directly.
package idt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"msidb/errs"
	"msidb/schema"
	"msidb/tablestore"
)

func escapeNull(s string) string   { return strings.ReplaceAll(s, "\x00", "\x11\x19") }
func unescapeNull(s string) string { return strings.ReplaceAll(s, "\x11\x19", "\x00") }

// typeLetter returns the single letter of a column's IDT type code:
// s/S string, l/L localisable string, i/I integer, v/V object, with the
// uppercase variant meaning nullable; g/j are the TEMPORARY variants and
// do not distinguish a string/int/object base for them.
func typeLetter(t schema.TypeFlags) byte {
	nullable := t.IsNullable()
	switch {
	case t.IsTemporary():
		if nullable {
			return 'j'
		}
		return 'g'
	case t.IsBinary():
		if nullable {
			return 'V'
		}
		return 'v'
	case t.IsString():
		base := byte('s')
		if t.IsLocalizable() {
			base = 'l'
		}
		if nullable {
			base -= 32
		}
		return base
	default:
		if nullable {
			return 'I'
		}
		return 'i'
	}
}

// typeCode renders a column's IDT header-line type descriptor. Integer
// columns carry their real storage width (2 or 4); string/object
// columns carry 0, since schema.Column has no notion of
// a declared CHAR(n) length distinct from on-disk storage width — this
// engine's schema model simply doesn't retain one to round-trip.
func typeCode(c *schema.Column) string {
	width := 0
	if !c.Type.IsString() && !c.Type.IsBinary() {
		width = int(c.Type.Width())
	}
	return fmt.Sprintf("%c%d", typeLetter(c.Type), width)
}

func writeIDTLine(w *bufio.Writer, fields []string) {
	w.WriteString(strings.Join(fields, "\t"))
	w.WriteString("\r\n")
}

// ExportTable writes tableName's IDT representation to w. If binDir is
// non-empty, every BINARY cell's stream content is also written to
// binDir/tableName/<row>.ibd, and that filename is what appears in the
// cell.
func ExportTable(store *tablestore.Store, tableName string, w io.Writer, binDir string) error {
	t, err := store.GetOrLoadTable(tableName)
	if err != nil {
		return err
	}
	sc := t.Schema
	bw := bufio.NewWriter(w)

	names := make([]string, len(sc.Columns))
	types := make([]string, len(sc.Columns))
	for i, c := range sc.Columns {
		names[i] = c.Name
		types[i] = typeCode(c)
	}
	writeIDTLine(bw, names)
	writeIDTLine(bw, types)

	keyLine := []string{sc.Name}
	for _, c := range sc.KeyColumns() {
		keyLine = append(keyLine, c.Name)
	}
	writeIDTLine(bw, keyLine)

	for rowIdx, row := range t.Rows {
		cells := make([]string, len(sc.Columns))
		for i, c := range sc.Columns {
			cell, err := exportCell(store, t, c, row.Data, rowIdx, binDir)
			if err != nil {
				return err
			}
			cells[i] = cell
		}
		writeIDTLine(bw, cells)
	}
	return bw.Flush()
}

func exportCell(store *tablestore.Store, t *tablestore.Table, c *schema.Column, data []byte, rowIdx int, binDir string) (string, error) {
	switch {
	case c.Type.IsBinary():
		return exportBinaryCell(store, t, c, data, rowIdx, binDir)
	case c.Type.IsString():
		s, _ := store.GetString(c, data)
		return escapeNull(s), nil
	default:
		v, null := tablestore.GetInt(c, data)
		if null {
			return "", nil
		}
		return strconv.FormatInt(v, 10), nil
	}
}

func exportBinaryCell(store *tablestore.Store, t *tablestore.Table, c *schema.Column, data []byte, rowIdx int, binDir string) (string, error) {
	name := store.RowStreamName(t.Schema, data)
	rs, err := store.Container().ReadStream(name)
	if err != nil {
		return "", nil
	}
	defer rs.Close()
	buf, err := io.ReadAll(rs)
	if err != nil {
		return "", errs.Wrap("idt.exportBinaryCell", errs.FunctionFailed, err)
	}
	filename := fmt.Sprintf("%d.ibd", rowIdx)
	if binDir != "" {
		dir := filepath.Join(binDir, t.Schema.Name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", errs.Wrap("idt.exportBinaryCell", errs.FunctionFailed, err)
		}
		if err := os.WriteFile(filepath.Join(dir, filename), buf, 0o644); err != nil {
			return "", errs.Wrap("idt.exportBinaryCell", errs.FunctionFailed, err)
		}
	}
	return filename, nil
}

func parseColumnSpec(name, code string, key bool) (*schema.Column, error) {
	if code == "" {
		return nil, errs.New("idt.parseColumnSpec", errs.InvalidData)
	}
	letter := code[0]
	width, _ := strconv.Atoi(code[1:])
	nullable := letter >= 'A' && letter <= 'Z'
	lower := letter
	if nullable {
		lower += 32
	}

	var typ schema.TypeFlags
	switch lower {
	case 's':
		typ = schema.NewTypeFlags(schema.Width24, true, key, nullable, false, false, false)
	case 'l':
		typ = schema.NewTypeFlags(schema.Width24, true, key, nullable, true, false, false)
	case 'i':
		w := schema.Width16
		if width == 4 {
			w = schema.Width32
		}
		typ = schema.NewTypeFlags(w, false, key, nullable, false, false, false)
	case 'v':
		typ = schema.NewTypeFlags(schema.Width16, false, key, nullable, false, false, true)
	case 'g', 'j':
		typ = schema.NewTypeFlags(schema.Width24, true, key, nullable || lower == 'j', false, true, false)
	default:
		return nil, errs.New("idt.parseColumnSpec", errs.InvalidData)
	}
	return &schema.Column{Name: name, Type: typ}, nil
}

// ImportTable reads an IDT file's contents from r and creates (or, if
// it already exists, repopulates) the table it describes in store. If
// the file is the special _ForceCodepage.idt form, it instead changes
// store's pool codepage and returns "_ForceCodepage". binDir, if
// non-empty, is where BINARY cell files named in the data are read
// from, under binDir/<table>/.
func ImportTable(store *tablestore.Store, r io.Reader, binDir string) (string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	var lines []string
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return "", errs.Wrap("idt.ImportTable", errs.InvalidData, err)
	}
	if len(lines) < 3 {
		return "", errs.New("idt.ImportTable", errs.InvalidData)
	}

	if parts := strings.Split(lines[2], "\t"); len(parts) == 2 && parts[1] == "_ForceCodepage" {
		cp, err := strconv.Atoi(parts[0])
		if err != nil {
			return "", errs.Wrap("idt.ImportTable", errs.InvalidData, err)
		}
		return "_ForceCodepage", store.Pool.SetCodepage(cp)
	}

	names := strings.Split(lines[0], "\t")
	typeCodes := strings.Split(lines[1], "\t")
	if len(names) != len(typeCodes) {
		return "", errs.New("idt.ImportTable", errs.InvalidData)
	}
	third := strings.Split(lines[2], "\t")
	tableName := third[0]
	keyNames := map[string]bool{}
	for _, k := range third[1:] {
		keyNames[k] = true
	}

	var t *tablestore.Table
	if store.TableExists(tableName) {
		var err error
		t, err = store.GetOrLoadTable(tableName)
		if err != nil {
			return "", err
		}
	} else {
		cols := make([]*schema.Column, len(names))
		for i, name := range names {
			c, err := parseColumnSpec(name, typeCodes[i], keyNames[name])
			if err != nil {
				return "", err
			}
			cols[i] = c
		}
		if err := store.CreateTable(tableName, cols, schema.Persistent); err != nil {
			return "", err
		}
		var err error
		t, err = store.GetOrLoadTable(tableName)
		if err != nil {
			return "", err
		}
	}

	for _, line := range lines[3:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != len(t.Schema.Columns) {
			return "", errs.New("idt.ImportTable", errs.InvalidData)
		}
		data := tablestore.NewRow(t.Schema)
		for i, c := range t.Schema.Columns {
			if err := decodeIDTCell(store, c, fields[i], data); err != nil {
				return "", err
			}
		}
		if err := store.InsertRow(t, data, -1, false); err != nil {
			return "", err
		}
		if err := importBinaryCells(store, t, data, fields, binDir); err != nil {
			return "", err
		}
	}
	return tableName, nil
}

// decodeIDTCell parses one tab-delimited field for column c into row
// buffer data. BINARY cells hold only a filename, resolved separately
// by importBinaryCells once every non-BINARY cell has been written.
func decodeIDTCell(store *tablestore.Store, c *schema.Column, raw string, data []byte) error {
	switch {
	case c.Type.IsBinary():
		return nil
	case c.Type.IsString():
		if raw == "" {
			return nil
		}
		return store.SetString(c, data, unescapeNull(raw), schema.Persistent)
	default:
		if raw == "" {
			return nil
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return errs.Wrap("idt.decodeIDTCell", errs.InvalidData, err)
		}
		tablestore.SetInt(c, data, v, false)
		return nil
	}
}

func importBinaryCells(store *tablestore.Store, t *tablestore.Table, data []byte, fields []string, binDir string) error {
	for i, c := range t.Schema.Columns {
		if !c.Type.IsBinary() || fields[i] == "" || binDir == "" {
			continue
		}
		path := filepath.Join(binDir, t.Schema.Name, fields[i])
		buf, err := os.ReadFile(path)
		if err != nil {
			return errs.Wrap("idt.importBinaryCells", errs.FunctionFailed, err)
		}
		name := store.RowStreamName(t.Schema, data)
		w, err := store.Container().CreateStream(name)
		if err != nil {
			return errs.Wrap("idt.importBinaryCells", errs.OpenFailed, err)
		}
		if _, err := w.Write(buf); err != nil {
			w.Close()
			return errs.Wrap("idt.importBinaryCells", errs.FunctionFailed, err)
		}
		if err := w.Close(); err != nil {
			return errs.Wrap("idt.importBinaryCells", errs.FunctionFailed, err)
		}
	}
	return nil
}
