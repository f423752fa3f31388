package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/pipeline"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Run failure (validation, lookup or write errors)
	ExitCommandError = 2 // Command error (bad flags, unreadable input, config)
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// writeResult renders a run result in the requested format. JSON output
// is the full report; text is a condensed human-readable view of it.
func writeResult(w io.Writer, format string, res *pipeline.Result) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	return writeResultText(w, res)
}

func writeResultText(w io.Writer, res *pipeline.Result) error {
	ex := res.Execution
	fmt.Fprintf(w, "Run %s\n", ex.RunID)
	fmt.Fprintf(w, "  script: %s  database: %s\n", ex.ScriptID, ex.Database)
	fmt.Fprintf(w, "  started: %s  duration: %dms\n", ex.StartedAt.Format(time.RFC3339), ex.DurationMS)

	if res.Error != nil {
		fmt.Fprintf(w, "  FAILED [%s] at %s: %s\n", res.Error.Code, res.Error.Stage, res.Error.Message)
	}

	switch s := res.Summary.(type) {
	case pipeline.Summary:
		fmt.Fprintf(w, "  input: %d  new: %d  duplicates: %d  updated: %d\n",
			s.TotalInput, s.NewItems, s.ExactDuplicates, s.UpdatedItems)
		fmt.Fprintf(w, "  pixel: %d sent, %d ok, %d failed\n",
			s.SentToPixel, s.PixelSuccess, s.PixelFailed)
		fmt.Fprintf(w, "  store: %d inserted, %d updated\n", s.DBInserted, s.DBUpdated)
	case pipeline.DryRunSummary:
		fmt.Fprintf(w, "  input: %d  new: %d  duplicates: %d  updated: %d\n",
			s.TotalInput, s.NewItems, s.ExactDuplicates, s.UpdatedItems)
		fmt.Fprintf(w, "  dry run: %d would be sent\n", s.WouldSendToPixel)
	case pipeline.ErrorSummary:
		fmt.Fprintf(w, "  input: %d  processed: %d\n", s.TotalInput, s.Processed)
	}

	return nil
}
