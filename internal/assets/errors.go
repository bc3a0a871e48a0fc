package assets

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidType is returned for declared types other than png/jpeg/jpg.
	ErrInvalidType = errors.New("invalid asset type: only png and jpeg images are accepted")
	// ErrTooLarge is returned when the payload exceeds the size limit.
	ErrTooLarge = errors.New("asset too large")
	// ErrObjectNotFound is returned by backends for unknown object names.
	ErrObjectNotFound = errors.New("object not found")
)

// StorageError wraps a backend failure during list, delete, write or lock.
// A failed upload may already have removed the previous asset.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("asset storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
