package view

import "msidb/record"

// DeleteView executes its WhereView, then deletes every row it
// produced.
type DeleteView struct {
	unsupported
	Where *WhereView
}

func NewDeleteView(where *WhereView) *DeleteView {
	return &DeleteView{unsupported: unsupported{op: "view.DeleteView"}, Where: where}
}

func (v *DeleteView) Execute(bindings *record.Record) error {
	if err := v.Where.Execute(bindings); err != nil {
		return err
	}
	rows, _, err := v.Where.Dimensions()
	if err != nil {
		return err
	}
	// Delete from the highest row index down: DeleteRow shifts
	// subsequent rows up, which would otherwise invalidate indices still
	// to be visited.
	for r := rows - 1; r >= 0; r-- {
		if err := v.Where.DeleteRow(r); err != nil {
			return err
		}
	}
	return nil
}

func (v *DeleteView) Close() error { return v.Where.Close() }
