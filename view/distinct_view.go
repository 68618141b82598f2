package view

import (
	"io"

	"msidb/errs"
	"msidb/record"
)

// DistinctView deduplicates a parent's rows by building a trie of
// per-column values during Execute.
type DistinctView struct {
	unsupported
	Parent View

	translate []int // translate[i] = parent row index of the i-th distinct row
}

func NewDistinctView(parent View) *DistinctView {
	return &DistinctView{unsupported: unsupported{op: "view.DistinctView"}, Parent: parent}
}

type trieNode struct {
	children map[uint32]*trieNode
	done     bool
}

func newTrieNode() *trieNode { return &trieNode{children: map[uint32]*trieNode{}} }

// Execute walks every parent row through a trie keyed by that row's
// column values; the first row to complete a unique path is kept.
func (v *DistinctView) Execute(bindings *record.Record) error {
	if err := v.Parent.Execute(bindings); err != nil {
		return err
	}
	rows, cols, err := v.Parent.Dimensions()
	if err != nil {
		return err
	}
	root := newTrieNode()
	v.translate = nil
	for r := 0; r < rows; r++ {
		node := root
		for c := 1; c <= cols; c++ {
			val, err := v.Parent.FetchInt(r, c)
			if err != nil {
				return err
			}
			child, ok := node.children[val]
			if !ok {
				child = newTrieNode()
				node.children[val] = child
			}
			node = child
		}
		if node.done {
			continue
		}
		node.done = true
		v.translate = append(v.translate, r)
	}
	return nil
}

func (v *DistinctView) Close() error { return v.Parent.Close() }

func (v *DistinctView) Dimensions() (int, int, error) {
	_, cols, err := v.Parent.Dimensions()
	if err != nil {
		return 0, 0, err
	}
	return len(v.translate), cols, nil
}

func (v *DistinctView) ColumnInfo(n int) (ColumnInfo, error) { return v.Parent.ColumnInfo(n) }

func (v *DistinctView) indirect(row int) (int, error) {
	if row < 0 || row >= len(v.translate) {
		return 0, errs.New("view.DistinctView.indirect", errs.InvalidParameter)
	}
	return v.translate[row], nil
}

func (v *DistinctView) FetchInt(row, col int) (uint32, error) {
	r, err := v.indirect(row)
	if err != nil {
		return 0, err
	}
	return v.Parent.FetchInt(r, col)
}

func (v *DistinctView) FetchStream(row, col int) (io.ReadSeeker, error) {
	r, err := v.indirect(row)
	if err != nil {
		return nil, err
	}
	return v.Parent.FetchStream(r, col)
}

func (v *DistinctView) GetRow(row int) (*record.Record, error) {
	r, err := v.indirect(row)
	if err != nil {
		return nil, err
	}
	return v.Parent.GetRow(r)
}
