package storage

import (
	"errors"
	"fmt"
)

// ErrStorage matches any *StorageError via errors.Is.
var ErrStorage = errors.New("storage error")

// StorageError reports a medium that cannot be read, written or parsed.
type StorageError struct {
	Op      string // "append", "read", "retention", ...
	Path    string
	Corrupt bool
	Err     error
}

func (e *StorageError) Error() string {
	msg := fmt.Sprintf("storage %s failed", e.Op)
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Corrupt {
		msg += ": log is corrupt"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrStorage) match.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// Wrap returns err as a *StorageError unless it already is one or is nil.
func Wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var sErr *StorageError
	if errors.As(err, &sErr) {
		return err
	}
	return &StorageError{Op: op, Path: path, Err: err}
}
