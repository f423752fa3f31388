package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/pipeline"
)

func TestExitError(t *testing.T) {
	err := NewExitError(ExitCommandError, "bad flags")
	assert.Equal(t, "bad flags", err.Error())
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	wrapped := WrapExitError(ExitFailure, "run failed", errors.New("boom"))
	assert.Equal(t, "run failed: boom", wrapped.Error())
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
	assert.EqualError(t, errors.Unwrap(wrapped), "boom")
}

func TestGetExitCodePlainError(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("anything")))
}

func TestGetExitCodeWrappedDeep(t *testing.T) {
	inner := NewExitError(ExitCommandError, "config missing")
	outer := fmt.Errorf("while starting: %w", inner)
	assert.Equal(t, ExitCommandError, GetExitCode(outer))
}

func sampleResult() *pipeline.Result {
	return &pipeline.Result{
		Execution: pipeline.Execution{
			Success:    true,
			RunID:      "run-0001",
			ScriptID:   "rz-main",
			Database:   "affiliates",
			StartedAt:  time.Date(2026, 8, 21, 7, 41, 5, 0, time.UTC),
			DurationMS: 42,
		},
		Summary: pipeline.Summary{
			TotalInput:      4,
			NewItems:        2,
			ExactDuplicates: 1,
			UpdatedItems:    1,
			SentToPixel:     3,
			PixelSuccess:    3,
			DBInserted:      2,
			DBUpdated:       1,
		},
	}
}

func TestWriteResultJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, writeResult(buf, "json", sampleResult()))

	var decoded struct {
		Execution struct {
			RunID string `json:"run_id"`
		} `json:"execution"`
		Summary map[string]any `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-0001", decoded.Execution.RunID)
	assert.Equal(t, float64(2), decoded.Summary["new_items"])
}

func TestWriteResultText(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, writeResult(buf, "text", sampleResult()))

	out := buf.String()
	assert.Contains(t, out, "Run run-0001")
	assert.Contains(t, out, "script: rz-main")
	assert.Contains(t, out, "input: 4  new: 2  duplicates: 1  updated: 1")
	assert.Contains(t, out, "pixel: 3 sent, 3 ok, 0 failed")
	assert.Contains(t, out, "store: 2 inserted, 1 updated")
}

func TestWriteResultTextDryRun(t *testing.T) {
	res := sampleResult()
	res.Summary = pipeline.DryRunSummary{
		TotalInput:       3,
		NewItems:         1,
		ExactDuplicates:  1,
		UpdatedItems:     1,
		WouldSendToPixel: 2,
		Status:           pipeline.StatusDryRunSkipped,
	}

	buf := &bytes.Buffer{}
	require.NoError(t, writeResult(buf, "text", res))
	assert.Contains(t, buf.String(), "dry run: 2 would be sent")
}

func TestWriteResultTextError(t *testing.T) {
	res := sampleResult()
	res.Execution.Success = false
	res.Error = &pipeline.ErrorInfo{
		Code:    pipeline.CodeLookupFailed,
		Message: "deduplication lookup for 3 ids failed: connection refused",
		Stage:   pipeline.StageDedupCheck,
	}
	res.Summary = pipeline.ErrorSummary{TotalInput: 3}

	buf := &bytes.Buffer{}
	require.NoError(t, writeResult(buf, "text", res))

	out := buf.String()
	assert.Contains(t, out, "FAILED [MYSQL_CHECK_FAILED] at deduplication_check")
	assert.Contains(t, out, "input: 3  processed: 0")
}
