package service

import (
	"errors"
	"fmt"
)

var (
	// ErrStorage matches every *StorageError through errors.Is.
	ErrStorage            = errors.New("subscription log storage failure")
	ErrEmptySnapshot      = errors.New("refusing to reconcile against an empty snapshot")
	ErrSweepInProgress    = errors.New("another reconciliation sweep holds the lock")
	ErrLockTimeout        = errors.New("timed out waiting for the subscription log lock")
	ErrInvalidObservation = errors.New("observation needs an email and a subscription id")
)

// StorageError wraps a failure to read or write the send log. Callers must not
// read it as "no record": that would send the same email twice.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("subscription log %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func storageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
