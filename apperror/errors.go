package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
)

// ValidationError rejects a request before any side effect happens.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// TransferError means a part upload failed or was aborted. The destination key
// holds no committed parts by the time this is returned.
type TransferError struct {
	Key string
	Err error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer failed for %s: %v", e.Key, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

func NewTransferError(key string, err error) *TransferError {
	return &TransferError{Key: key, Err: err}
}

func IsTransfer(err error) bool {
	var te *TransferError
	return errors.As(err, &te)
}

// ConsistencyError means the object store and the metadata store may disagree
// and an operator should look. The metadata record is always left intact.
type ConsistencyError struct {
	Key string
	Err error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency violation on %s: %v", e.Key, e.Err)
}

func (e *ConsistencyError) Unwrap() error { return e.Err }

func NewConsistencyError(key string, err error) *ConsistencyError {
	return &ConsistencyError{Key: key, Err: err}
}

func IsConsistency(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}
