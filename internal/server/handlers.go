package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/event"
	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/metrics"
	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/pipeline"
)

// maxRunBody bounds the POST /v1/runs request body.
const maxRunBody = 10 << 20 // 10 MiB

// runRequest is the POST /v1/runs body. The pointer flags distinguish
// "not set" from an explicit false, so the server defaults apply only
// when the caller stayed silent.
type runRequest struct {
	Events          json.RawMessage `json:"events"`
	DryRun          *bool           `json:"dry_run"`
	SkipDedup       *bool           `json:"skip_dedup"`
	IncludePayloads *bool           `json:"include_payloads"`
}

// handleRun executes one pipeline run and writes its result report.
// The report body is the same in every outcome; only the status code
// distinguishes success (200), rejected input (422) and fatal
// failures (500).
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRunBody)

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "parse request: "+err.Error())
		return
	}
	if len(req.Events) == 0 {
		writeError(w, http.StatusBadRequest, "events is required")
		return
	}

	events, err := event.DecodeBatch(req.Events)
	if err != nil {
		writeError(w, http.StatusBadRequest, "decode events: "+err.Error())
		return
	}

	cfg := s.base
	if req.DryRun != nil {
		cfg.DryRun = *req.DryRun
	}
	if req.SkipDedup != nil {
		cfg.SkipDedup = *req.SkipDedup
	}
	if req.IncludePayloads != nil {
		cfg.IncludePayloads = *req.IncludePayloads
	}

	p, err := pipeline.New(cfg, s.caps.Source, s.caps.Sender, s.caps.Writer)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	res, runErr := p.Run(r.Context(), events)
	metrics.ObserveRun(res)

	status := http.StatusOK
	if runErr != nil {
		var verr *event.ValidationError
		if errors.As(runErr, &verr) {
			status = http.StatusUnprocessableEntity
		} else {
			status = http.StatusInternalServerError
		}
		s.logger.Error("run failed",
			"request_id", RequestID(r.Context()),
			"run_id", res.Execution.RunID,
			"error", runErr,
		)
	}

	writeJSON(w, status, res)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
