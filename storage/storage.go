// Package storage defines the StorageIO capability boundary and
// provides a minimal zip-backed reference implementation.
//
// The real OLE2 compound-file container is explicitly out of scope for
// this engine: the core only ever talks to the Container
// interface below, passing it the encoded stream names from package
// streamname and treating its contents as opaque bytes. The adapter in
// this package exists so the facade and its tests have a concrete,
// runnable backing store; it is not a compliant OLE2 reader/writer.
package storage

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"strings"

	"msidb/errs"
)

// EntryKind distinguishes a stream from a substorage when enumerating a
// Container's children.
type EntryKind int

const (
	KindStream EntryKind = iota
	KindSubstorage
)

// Entry is one child of a Container, as returned by EnumChildren.
type Entry struct {
	Name string
	Kind EntryKind
}

// ReadableStream is a stream opened for reading: seekable so record
// field cursors (package record) can rewind, closable so callers can
// release any backing resource.
type ReadableStream interface {
	io.Reader
	io.Seeker
	io.Closer
}

// WritableStream is a stream opened for writing; its contents become
// visible to the container only once Close is called.
type WritableStream interface {
	io.Writer
	io.Closer
}

// Container is the StorageIO capability: the sole boundary between the
// relational engine and the underlying compound file.
type Container interface {
	EnumChildren() ([]Entry, error)
	ReadStream(name string) (ReadableStream, error)
	CreateStream(name string) (WritableStream, error)
	CreateSubstorage(name string) (Container, error)
	Remove(name string) error
	Commit() error
	SetClass(clsid [16]byte) error
}

type node struct {
	isStorage bool
	data      []byte
	children  map[string]*node
}

func newStorageNode() *node { return &node{isStorage: true, children: map[string]*node{}} }

// memContainer is the in-memory tree backing the zip-file reference
// adapter. root holds the path and clsid; every substorage shares the
// same root so Commit() from any level flushes the whole tree.
type memContainer struct {
	root *node
	self *node
	path string
	// clsid is tracked on the root only; non-root SetClass calls are
	// accepted but have no effect, matching OLE2's single root clsid.
	clsid *[16]byte
}

// OpenRead opens path for read-only access, parsing its zip contents
// into the in-memory tree.
func OpenRead(path string) (Container, error) {
	return openZip(path, false)
}

// OpenWrite opens path for read-write access. If truncate is true, or
// the file does not yet exist, it starts from an empty tree.
func OpenWrite(path string, truncate bool) (Container, error) {
	if truncate {
		root := newStorageNode()
		return &memContainer{root: root, self: root, path: path, clsid: new([16]byte)}, nil
	}
	if _, err := os.Stat(path); err != nil {
		root := newStorageNode()
		return &memContainer{root: root, self: root, path: path, clsid: new([16]byte)}, nil
	}
	return openZip(path, true)
}

func openZip(path string, writable bool) (Container, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, errs.Wrap("storage.Open", errs.OpenFailed, err)
	}
	defer r.Close()

	root := newStorageNode()
	for _, f := range r.File {
		parts := strings.Split(strings.TrimSuffix(f.Name, "/"), "/")
		cur := root
		for i, part := range parts {
			last := i == len(parts)-1
			if last && !strings.HasSuffix(f.Name, "/") {
				rc, err := f.Open()
				if err != nil {
					return nil, errs.Wrap("storage.Open", errs.OpenFailed, err)
				}
				data, err := io.ReadAll(rc)
				rc.Close()
				if err != nil {
					return nil, errs.Wrap("storage.Open", errs.OpenFailed, err)
				}
				cur.children[part] = &node{data: data}
				continue
			}
			child, ok := cur.children[part]
			if !ok || !child.isStorage {
				child = newStorageNode()
				cur.children[part] = child
			}
			cur = child
		}
	}
	return &memContainer{root: root, self: root, path: path, clsid: new([16]byte)}, nil
}

func (c *memContainer) EnumChildren() ([]Entry, error) {
	entries := make([]Entry, 0, len(c.self.children))
	for name, n := range c.self.children {
		kind := KindStream
		if n.isStorage {
			kind = KindSubstorage
		}
		entries = append(entries, Entry{Name: name, Kind: kind})
	}
	return entries, nil
}

type readableBytes struct {
	*bytes.Reader
}

func (readableBytes) Close() error { return nil }

func (c *memContainer) ReadStream(name string) (ReadableStream, error) {
	n, ok := c.self.children[name]
	if !ok || n.isStorage {
		return nil, errs.New("storage.ReadStream", errs.NotFound)
	}
	return readableBytes{bytes.NewReader(n.data)}, nil
}

type writableBuffer struct {
	buf  bytes.Buffer
	name string
	self *node
}

func (w *writableBuffer) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *writableBuffer) Close() error {
	w.self.children[w.name] = &node{data: w.buf.Bytes()}
	return nil
}

func (c *memContainer) CreateStream(name string) (WritableStream, error) {
	return &writableBuffer{name: name, self: c.self}, nil
}

func (c *memContainer) CreateSubstorage(name string) (Container, error) {
	n, ok := c.self.children[name]
	if !ok {
		n = newStorageNode()
		c.self.children[name] = n
	} else if !n.isStorage {
		return nil, errs.New("storage.CreateSubstorage", errs.InvalidParameter)
	}
	return &memContainer{root: c.root, self: n, path: c.path, clsid: c.clsid}, nil
}

func (c *memContainer) Remove(name string) error {
	if _, ok := c.self.children[name]; !ok {
		return errs.New("storage.Remove", errs.NotFound)
	}
	delete(c.self.children, name)
	return nil
}

func (c *memContainer) SetClass(clsid [16]byte) error {
	*c.clsid = clsid
	return nil
}

// Commit serialises the whole tree (from the root, regardless of which
// substorage level Commit was called on) to the zip file at path.
func (c *memContainer) Commit() error {
	f, err := os.Create(c.path)
	if err != nil {
		return errs.Wrap("storage.Commit", errs.OpenFailed, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	if err := writeNode(zw, "", c.root); err != nil {
		zw.Close()
		return errs.Wrap("storage.Commit", errs.FunctionFailed, err)
	}
	return zw.Close()
}

func writeNode(zw *zip.Writer, prefix string, n *node) error {
	for name, child := range n.children {
		full := name
		if prefix != "" {
			full = prefix + "/" + name
		}
		if child.isStorage {
			if err := writeNode(zw, full, child); err != nil {
				return err
			}
			continue
		}
		w, err := zw.Create(full)
		if err != nil {
			return err
		}
		if _, err := w.Write(child.data); err != nil {
			return err
		}
	}
	return nil
}
