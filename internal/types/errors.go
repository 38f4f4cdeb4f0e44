package types

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by a store's Load for a dataset with no backing store
	ErrNotFound = errors.New("dataset not found")

	// ErrEmptyRecord is returned when appending a record without fields
	ErrEmptyRecord = errors.New("record has no fields")

	// ErrInvalidName is returned for dataset names that cannot map to storage
	ErrInvalidName = errors.New("invalid dataset name")
)

// IOError means the backing store could not be checked or written
type IOError struct {
	Op      string
	Dataset string
	Err     error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s dataset %s: %v", e.Op, e.Dataset, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// DataLoadError means the backing store exists but its content is not a valid table
type DataLoadError struct {
	Dataset string
	Err     error
}

func (e *DataLoadError) Error() string {
	return fmt.Sprintf("load dataset %s: %v", e.Dataset, e.Err)
}

func (e *DataLoadError) Unwrap() error { return e.Err }

// DataPersistError means the combined table could not be written back.
// The previous content of the store is left intact.
type DataPersistError struct {
	Dataset string
	Err     error
}

func (e *DataPersistError) Error() string {
	return fmt.Sprintf("persist dataset %s: %v", e.Dataset, e.Err)
}

func (e *DataPersistError) Unwrap() error { return e.Err }
