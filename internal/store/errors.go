package store

import "fmt"

// StorageError wraps a store failure with the operation and table involved.
type StorageError struct {
	Op    string
	Table string
	Err   error
}

func (e *StorageError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("store %s on %s: %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError creates a StorageError for the given operation and table.
func NewStorageError(op, table string, err error) *StorageError {
	return &StorageError{Op: op, Table: table, Err: err}
}
