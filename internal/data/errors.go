// Package data provides DB models and stores.
package data

import "errors"

var (
	// ErrNotFound is returned when no document matches.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicate is returned when a unique index rejects a write.
	ErrDuplicate = errors.New("duplicate key")
	// ErrStateChanged is returned when a conditional update matched nothing
	// because the document changed since it was read.
	ErrStateChanged = errors.New("document changed concurrently")
	// ErrLocked is returned when an advisory lock is held by someone else.
	ErrLocked = errors.New("resource locked")
)
