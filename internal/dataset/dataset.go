// Package dataset implements the append-only logging core: creating a
// dataset with its header once, and appending one record per call by
// loading the stored table, adding the record as the last row and saving
// the combined table back through the store's atomic replace.
//
// Every append rereads and rewrites the whole table, so the cost of an
// append grows with the size of the dataset.
package dataset

import (
	"github.com/zakazai/tracklog/internal/storage"
	"github.com/zakazai/tracklog/internal/types"
)

// Ensure creates dataset name with the given header if the store has no
// backing store for it. An existing dataset is left as is, whatever its
// columns.
func Ensure(s storage.Store, name string, columns []string) error {
	exists, err := s.Exists(name)
	if err != nil {
		return &types.IOError{Op: "check", Dataset: name, Err: err}
	}
	if exists {
		return nil
	}

	if err := s.Save(types.NewTable(name, columns)); err != nil {
		return &types.IOError{Op: "create", Dataset: name, Err: err}
	}
	return nil
}

// Append adds rec as the last row of dataset name. A missing dataset is
// created with the record's keys as header. Keys unknown to the stored
// header become new columns, empty for the earlier rows.
//
// A stored table that cannot be read fails with *types.DataLoadError and a
// failed write with *types.DataPersistError; in both cases the stored
// content is unchanged.
func Append(s storage.Store, rec types.Record, name string) error {
	if rec.Len() == 0 {
		return types.ErrEmptyRecord
	}

	exists, err := s.Exists(name)
	if err != nil {
		return &types.IOError{Op: "check", Dataset: name, Err: err}
	}

	table := types.NewTable(name, nil)
	if exists {
		table, err = s.Load(name)
		if err != nil {
			return &types.DataLoadError{Dataset: name, Err: err}
		}
	}

	if err := s.Save(Combine(table, rec)); err != nil {
		return &types.DataPersistError{Dataset: name, Err: err}
	}
	return nil
}

// Combine returns a new table holding the rows of t followed by rec. The
// header is t's columns followed by rec's keys missing from it, in record
// order. t is not modified.
func Combine(t *types.Table, rec types.Record) *types.Table {
	out := t.Clone()
	for _, key := range rec.Keys() {
		if out.ColumnIndex(key) < 0 {
			out.Columns = append(out.Columns, key)
		}
	}
	out.Normalize()

	row := make(types.Row, len(out.Columns))
	for _, f := range rec.Fields() {
		row[out.ColumnIndex(f.Name)] = types.NormalizeValue(f.Value)
	}
	out.Rows = append(out.Rows, row)
	return out
}
