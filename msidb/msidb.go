// Package msidb implements the database facade: the open, query,
// commit, transform, and merge lifecycle built over package view's
// pipeline, grounded on cmd/smf/main.go's top-level
// parse-diff-generate-apply orchestration shape, adapted here to
// open-compile-execute-commit.
package msidb

import (
	"io"
	"os"

	"msidb/errs"
	"msidb/storage"
	"msidb/stringpool"
	"msidb/summary"
	"msidb/tablestore"
	"msidb/transform"
)

// Mode is one of the four database open modes.
type Mode int

const (
	ReadOnly Mode = iota
	Transact
	Create
	Direct
)

// Database is the root facade: it owns the StringPool and TableStore
// for one container.
type Database struct {
	Store     *tablestore.Store
	Pool      *stringpool.Pool
	container storage.Container
	mode      Mode
	path      string
	dirty     bool
	summary   *summary.Info
}

// defaultSummaryUpdateCount is the update_count a freshly created
// database's summary property set starts with, before any property has
// been set once.
const defaultSummaryUpdateCount = 20

// Open loads an existing container in the given mode.
func Open(path string, mode Mode) (*Database, error) {
	var c storage.Container
	var err error
	switch mode {
	case ReadOnly, Transact:
		c, err = storage.OpenRead(path)
	case Direct:
		c, err = storage.OpenWrite(path, false)
	default:
		return nil, errs.New("msidb.Open", errs.InvalidParameter)
	}
	if err != nil {
		return nil, errs.Wrap("msidb.Open", errs.OpenFailed, err)
	}
	return newDatabase(path, mode, c)
}

// CreateDatabase starts a brand-new, empty container at path with the
// given string-table codepage. A Create database that is never
// committed must not leave a file behind; callers that abandon one
// should call Discard.
func CreateDatabase(path string, codepage int) (*Database, error) {
	c, err := storage.OpenWrite(path, true)
	if err != nil {
		return nil, errs.Wrap("msidb.CreateDatabase", errs.OpenFailed, err)
	}
	pool, err := stringpool.New(codepage)
	if err != nil {
		return nil, err
	}
	store, err := tablestore.Open(c, pool)
	if err != nil {
		return nil, err
	}
	db := &Database{Store: store, Pool: pool, container: c, mode: Create, path: path, dirty: true}
	return db, nil
}

func newDatabase(path string, mode Mode, c storage.Container) (*Database, error) {
	pool, err := loadPool(c)
	if err != nil {
		return nil, err
	}
	store, err := tablestore.Open(c, pool)
	if err != nil {
		return nil, err
	}
	return &Database{Store: store, Pool: pool, container: c, mode: mode, path: path}, nil
}

func loadPool(c storage.Container) (*stringpool.Pool, error) {
	poolStream, err := c.ReadStream("_StringPool")
	if err != nil {
		return stringpool.New(0)
	}
	defer poolStream.Close()
	dataStream, err := c.ReadStream("_StringData")
	if err != nil {
		return stringpool.New(0)
	}
	defer dataStream.Close()
	poolBlob, err := readAll(poolStream)
	if err != nil {
		return nil, errs.Wrap("msidb.loadPool", errs.InvalidData, err)
	}
	dataBlob, err := readAll(dataStream)
	if err != nil {
		return nil, errs.Wrap("msidb.loadPool", errs.InvalidData, err)
	}
	return stringpool.Deserialise(0, poolBlob, dataBlob)
}

func readAll(r storage.ReadableStream) ([]byte, error) { return io.ReadAll(r) }

// Container exposes the underlying StorageIO boundary for callers (the
// CLI's streams/suminfo subcommands) that need raw access.
func (db *Database) Container() storage.Container { return db.container }

// SummaryInfo returns this database's summary property set, loading it
// from "\5SummaryInformation" the first time it's asked for, or
// starting a fresh one if the database has none yet.
func (db *Database) SummaryInfo() (*summary.Info, error) {
	if db.summary == nil {
		info, err := summary.Load(db.container)
		if err != nil {
			if !errs.Is(err, errs.NotFound) {
				return nil, err
			}
			info = summary.New(defaultSummaryUpdateCount)
		}
		db.summary = info
	}
	return db.summary, nil
}

// ApplyTransform opens the .mst (or .mtx) file at path as a difference
// storage and applies it against this database via package transform.
func (db *Database) ApplyTransform(path string) error {
	ext, err := storage.OpenRead(path)
	if err != nil {
		return errs.Wrap("msidb.Database.ApplyTransform", errs.OpenFailed, err)
	}
	if err := transform.Apply(db.Store, ext); err != nil {
		return err
	}
	db.dirty = true
	return nil
}

// Prepare parses and compiles a SQL statement into an executable Query.
func (db *Database) Prepare(sql string) (*Query, error) {
	return prepare(db, sql)
}

// Exec prepares and immediately executes a statement with no bound
// parameters, a convenience wrapper over Prepare+Execute used for
// schema statements (CREATE/DROP/ALTER) that never take wildcards.
func (db *Database) Exec(sql string) error {
	q, err := db.Prepare(sql)
	if err != nil {
		return err
	}
	defer q.Close()
	if err := q.Execute(nil); err != nil {
		return err
	}
	db.dirty = true
	return nil
}

// Commit flushes StringPool, commits every dirty table, and finalises
// the container. ReadOnly databases refuse to commit.
func (db *Database) Commit() error {
	if db.mode == ReadOnly {
		return errs.New("msidb.Database.Commit", errs.FunctionFailed)
	}
	poolBlob, dataBlob, err := db.Pool.Serialise()
	if err != nil {
		return err
	}
	if err := writeStream(db.container, "_StringPool", poolBlob); err != nil {
		return err
	}
	if err := writeStream(db.container, "_StringData", dataBlob); err != nil {
		return err
	}
	if err := db.Store.Commit(); err != nil {
		return err
	}
	if db.summary != nil {
		if err := db.summary.Persist(db.container); err != nil {
			return err
		}
	}
	if err := db.container.Commit(); err != nil {
		return errs.Wrap("msidb.Database.Commit", errs.FunctionFailed, err)
	}
	db.dirty = false
	return nil
}

func writeStream(c storage.Container, name string, data []byte) error {
	w, err := c.CreateStream(name)
	if err != nil {
		return errs.Wrap("msidb.writeStream", errs.OpenFailed, err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return errs.Wrap("msidb.writeStream", errs.FunctionFailed, err)
	}
	return w.Close()
}

// Discard abandons a Create database that was never committed: the
// underlying file, if Commit ever ran partially, is removed, since a
// Create that is never committed must not leave a file behind.
func (db *Database) Discard() error {
	if db.mode != Create {
		return nil
	}
	if err := os.Remove(db.path); err != nil && !os.IsNotExist(err) {
		return errs.Wrap("msidb.Database.Discard", errs.FunctionFailed, err)
	}
	return nil
}
