package ingest

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField marks an absent mandatory field.
	ErrMissingField = errors.New("missing mandatory field")
	// ErrNotObject marks an entry that should be an object but is not.
	ErrNotObject = errors.New("entry is not an object")
	// ErrDuplicateNode marks a node id seen twice in one document.
	ErrDuplicateNode = errors.New("duplicate node id")
)

// NodeError describes a malformed instance entry. The entry and its whole
// subtree are skipped.
type NodeError struct {
	Key    string
	NodeID int
	Field  string
	Err    error
}

func (e *NodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("instance %q: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("instance %q: %s: %v", e.Key, e.Field, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

type fieldError struct {
	field string
	err   error
}

func (e *fieldError) Error() string { return e.field + ": " + e.err.Error() }

func (e *fieldError) Unwrap() error { return e.err }

func missing(field string) error { return &fieldError{field: field, err: ErrMissingField} }

func notObject(field string) error { return &fieldError{field: field, err: ErrNotObject} }
