package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFormat is returned when an upload is not JSON or lacks a
	// transactionList array.
	ErrInvalidFormat = errors.New("invalid JSON format")

	// ErrInvalidRecord wraps every per-record validation failure.
	ErrInvalidRecord = errors.New("invalid transaction record")

	// ErrEmptyTransactionKey is returned for records without a combinedKey.
	ErrEmptyTransactionKey = errors.New("combinedKey is empty")

	// ErrInvalidDate is returned when originalDate cannot be parsed.
	ErrInvalidDate = errors.New("originalDate is not a valid date")

	// ErrInvalidAmount is returned when a record carries no usable amount.
	ErrInvalidAmount = errors.New("amount is missing")
)

// RecordError reports which record of an upload failed validation.
type RecordError struct {
	Index int
	Key   string
	Err   error
}

func (e *RecordError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("record %d (%s): %v", e.Index, e.Key, e.Err)
	}
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e *RecordError) Unwrap() []error {
	return []error{ErrInvalidRecord, e.Err}
}
