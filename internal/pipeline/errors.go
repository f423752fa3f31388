package pipeline

import (
	"errors"
	"fmt"

	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/event"
)

// Error codes surfaced in the error block of a failed result.
const (
	// CodeValidationFailed: an event is missing a required field.
	CodeValidationFailed = "VALIDATION_ERROR"
	// CodeLookupFailed: the batched record lookup could not complete.
	// The name is historical, from the MySQL-only deployment; it covers
	// whatever driver backs the record store.
	CodeLookupFailed = "MYSQL_CHECK_FAILED"
	// CodeWriteFailed: persisting outcomes failed after sends happened.
	CodeWriteFailed = "DB_WRITE_FAILED"
	// CodeExecutionFailed: anything that does not map to a typed error.
	CodeExecutionFailed = "EXECUTION_FAILED"
)

// Stage names identify where a fatal failure happened. They follow the
// coarse phases of a run: the lookup, the send-and-record phase, and
// everything around them.
const (
	StageDedupCheck = "deduplication_check"
	StagePixelSend  = "pixel_send"
	StageExecution  = "execution"
)

// LookupError is a fatal failure of the batched record lookup. Nothing
// has been sent and nothing has been written when it surfaces.
type LookupError struct {
	IDs int // distinct identifiers in the failed lookup
	Err error
}

// Error implements the error interface.
func (e *LookupError) Error() string {
	return fmt.Sprintf("deduplication lookup for %d ids failed: %v", e.IDs, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *LookupError) Unwrap() error { return e.Err }

// IsLookupError checks if an error is a LookupError.
func IsLookupError(err error) bool {
	var lookupErr *LookupError
	return errors.As(err, &lookupErr)
}

// MutationError is a fatal record-store write failure. Sends have
// already happened when it surfaces, so the batch sits in a
// sent-but-unrecorded state until an operator reconciles it; the
// Inserted and Updated counts say how far the writes got.
type MutationError struct {
	Inserted int
	Updated  int
	Err      error
}

// Error implements the error interface.
func (e *MutationError) Error() string {
	return fmt.Sprintf("record write failed after %d inserts and %d updates: %v",
		e.Inserted, e.Updated, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *MutationError) Unwrap() error { return e.Err }

// IsMutationError checks if an error is a MutationError.
func IsMutationError(err error) bool {
	var mutationErr *MutationError
	return errors.As(err, &mutationErr)
}

// classifyFailure maps a fatal error to the code, stage and details
// rendered in the error block of a failed result.
func classifyFailure(err error) (code, stage string, details any) {
	var verr *event.ValidationError
	if errors.As(err, &verr) {
		return CodeValidationFailed, StageExecution, map[string]any{
			"item_index":      verr.Index,
			"field":           verr.Field,
			"required_fields": verr.Required,
		}
	}
	var lerr *LookupError
	if errors.As(err, &lerr) {
		return CodeLookupFailed, StageDedupCheck, map[string]any{
			"ids": lerr.IDs,
		}
	}
	var merr *MutationError
	if errors.As(err, &merr) {
		return CodeWriteFailed, StagePixelSend, map[string]any{
			"inserted": merr.Inserted,
			"updated":  merr.Updated,
		}
	}
	return CodeExecutionFailed, StageExecution, nil
}
