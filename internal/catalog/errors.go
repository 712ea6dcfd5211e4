package catalog

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching against the typed errors below.
var (
	ErrValidation = errors.New("validation failed")
	ErrPermission = errors.New("permission denied")
	ErrNotFound   = errors.New("not found")
	ErrRange      = errors.New("index out of range")
	ErrStorage    = errors.New("storage failure")
	ErrGate       = errors.New("gate evaluation failed")
)

// ValidationError reports malformed input; the operation was not attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Code() string { return "VALIDATION" }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// PermissionError reports a non-admin attempting an admin operation.
type PermissionError struct {
	UserID int64
	Op     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission: user %d may not %s", e.UserID, e.Op)
}

func (e *PermissionError) Code() string { return "PERMISSION" }
func (e *PermissionError) Is(target error) bool { return target == ErrPermission }

// NotFoundError reports a reference to a missing media item.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("media item %d not found", e.ID)
}

func (e *NotFoundError) Code() string { return "NOT_FOUND" }
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// RangeError reports a positional index outside [0, Count).
type RangeError struct {
	Category string
	Index    int
	Count    int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("index %d out of range for %q (%d items)", e.Index, e.Category, e.Count)
}

func (e *RangeError) Code() string { return "RANGE" }
func (e *RangeError) Is(target error) bool { return target == ErrRange }

// StorageError wraps a failure of the durable store. Operations are never
// retried automatically.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
func (e *StorageError) Code() string { return "STORAGE" }
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// GateEvaluationError reports a failed membership query. It is never treated
// as a grant.
type GateEvaluationError struct {
	Channel string
	UserID  int64
	Err     error
}

func (e *GateEvaluationError) Error() string {
	return fmt.Sprintf("gate: membership of %d in %s: %v", e.UserID, e.Channel, e.Err)
}

func (e *GateEvaluationError) Unwrap() error { return e.Err }
func (e *GateEvaluationError) Code() string { return "GATE_EVALUATION" }
func (e *GateEvaluationError) Is(target error) bool { return target == ErrGate }

// Storage wraps err as a StorageError for op. A nil err stays nil.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
