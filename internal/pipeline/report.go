package pipeline

import (
	"time"

	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/event"
)

// StatusDryRunSkipped is the summary status of a dry run: everything
// was classified, nothing was sent or written.
const StatusDryRunSkipped = "DRY_RUN_SKIPPED"

// newItemsSampleCap bounds the new_items_sample detail list so reports
// stay readable for large batches.
const newItemsSampleCap = 5

// Result is the single report produced by one pipeline invocation.
//
// Summary and Metrics vary by mode: a normal run carries Summary and
// Metrics, a dry run carries DryRunSummary and DryRunMetrics, a fatal
// failure carries ErrorSummary with the Error block set. Details are
// present for normal and dry runs, absent on fatal failures.
type Result struct {
	Execution Execution  `json:"execution"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Summary   any        `json:"summary"`
	Details   *Details   `json:"details,omitempty"`
	Metrics   any        `json:"metrics,omitempty"`
}

// Execution describes the invocation itself, independent of outcome.
type Execution struct {
	Success    bool      `json:"success"`
	RunID      string    `json:"run_id"`
	ScriptID   string    `json:"script_id"`
	Database   string    `json:"database"`
	DryRun     bool      `json:"dry_run"`
	SkipDedup  bool      `json:"skip_dedup"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
}

// ErrorInfo is the error block of a failed result.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	Stage   string `json:"stage"`
}

// Summary holds the counters of a completed normal run.
type Summary struct {
	TotalInput      int `json:"total_input"`
	NewItems        int `json:"new_items"`
	ExactDuplicates int `json:"exact_duplicates"`
	UpdatedItems    int `json:"updated_items"`
	SentToPixel     int `json:"sent_to_pixel"`
	PixelSuccess    int `json:"pixel_success"`
	PixelFailed     int `json:"pixel_failed"`
	DBInserted      int `json:"db_inserted"`
	DBUpdated       int `json:"db_updated"`
}

// DryRunSummary holds the counters of a dry run. Nothing was sent, so
// the send counter is prospective.
type DryRunSummary struct {
	TotalInput       int    `json:"total_input"`
	NewItems         int    `json:"new_items"`
	ExactDuplicates  int    `json:"exact_duplicates"`
	UpdatedItems     int    `json:"updated_items"`
	WouldSendToPixel int    `json:"would_send_to_pixel"`
	Status           string `json:"status"`
}

// ErrorSummary is the summary of a fatally failed run. Processed is
// always zero: a fatal error means no event completed the pipeline.
type ErrorSummary struct {
	TotalInput int `json:"total_input"`
	Processed  int `json:"processed"`
}

// Metrics holds per-stage wall-clock timings of a normal run.
type Metrics struct {
	MySQLCheckMS int64 `json:"mysql_check_ms"`
	PixelSendMS  int64 `json:"pixel_send_ms"`
	DBWriteMS    int64 `json:"db_write_ms"`
}

// DryRunMetrics holds the only timing a dry run has: the lookup.
type DryRunMetrics struct {
	MySQLCheckMS int64 `json:"mysql_check_ms"`
}

// Details carries the per-event breakdown of a run. Slices are always
// non-nil so they render as [] rather than null.
type Details struct {
	ExactDuplicates []DuplicateDetail `json:"exact_duplicates"`
	UpdatedItems    []UpdatedDetail   `json:"updated_items"`
	FailedSends     []FailedSend      `json:"failed_sends"`
	NewItemsSample  []NewItemSample   `json:"new_items_sample"`
}

// DuplicateDetail is one exact duplicate that was skipped.
type DuplicateDetail struct {
	TrxID            string    `json:"trx_id"`
	Event            string    `json:"event"`
	Amount           float64   `json:"amount"`
	CommissionAmount float64   `json:"commission_amount"`
	FirstSeen        time.Time `json:"first_seen"`
}

// ChangeSet is the before/after view of an updated conversion.
type ChangeSet struct {
	OldAmount     float64   `json:"old_amount"`
	NewAmount     float64   `json:"new_amount"`
	OldCommission float64   `json:"old_commission"`
	NewCommission float64   `json:"new_commission"`
	FirstSeen     time.Time `json:"first_seen"`
}

// UpdatedDetail is one conversion whose amounts changed since it was
// first recorded.
type UpdatedDetail struct {
	TrxID   string    `json:"trx_id"`
	Event   string    `json:"event"`
	Changes ChangeSet `json:"changes"`
}

// FailedSend is one dispatch that the endpoint rejected or that failed
// in transport. WasUpdate distinguishes a failed amount correction from
// a failed first send; Changes is set only for the former. Payload is
// populated only when the run was configured to include payloads.
type FailedSend struct {
	TrxID     string     `json:"trx_id"`
	Event     string     `json:"event"`
	Error     string     `json:"error"`
	WasUpdate bool       `json:"was_update"`
	Changes   *ChangeSet `json:"changes,omitempty"`
	Payload   string     `json:"payload,omitempty"`
}

// NewItemSample is one of the first few new conversions, kept so a
// reader can eyeball what a batch contained without the full input.
type NewItemSample struct {
	TrxID            string  `json:"trx_id"`
	Event            string  `json:"event"`
	Amount           float64 `json:"amount"`
	CommissionAmount float64 `json:"commission_amount"`
}

// buildResult assembles the report for a completed normal run.
func (rs *runState) buildResult(finished time.Time) *Result {
	summary := Summary{
		TotalInput: len(rs.events),
		DBInserted: rs.inserted,
		DBUpdated:  rs.updated,
	}
	for _, it := range rs.items {
		switch it.match.Class() {
		case event.ClassNew:
			summary.NewItems++
		case event.ClassDuplicate:
			summary.ExactDuplicates++
		case event.ClassUpdated:
			summary.UpdatedItems++
		}
		if it.outcome == nil {
			continue
		}
		summary.SentToPixel++
		if it.outcome.err != nil {
			summary.PixelFailed++
		} else {
			summary.PixelSuccess++
		}
	}

	return &Result{
		Execution: rs.execution(true, finished),
		Summary:   summary,
		Details:   rs.buildDetails(),
		Metrics: Metrics{
			MySQLCheckMS: rs.lookupMS,
			PixelSendMS:  rs.sendMS,
			DBWriteMS:    rs.writeMS,
		},
	}
}

// buildDryRunResult assembles the report for a dry run, after
// classification and before any send or write would have happened.
func (rs *runState) buildDryRunResult(finished time.Time) *Result {
	summary := DryRunSummary{
		TotalInput: len(rs.events),
		Status:     StatusDryRunSkipped,
	}
	for _, it := range rs.items {
		switch it.match.Class() {
		case event.ClassNew:
			summary.NewItems++
		case event.ClassDuplicate:
			summary.ExactDuplicates++
		case event.ClassUpdated:
			summary.UpdatedItems++
		}
	}
	summary.WouldSendToPixel = summary.NewItems + summary.UpdatedItems

	return &Result{
		Execution: rs.execution(true, finished),
		Summary:   summary,
		Details:   rs.buildDetails(),
		Metrics:   DryRunMetrics{MySQLCheckMS: rs.lookupMS},
	}
}

// buildErrorResult assembles the report for a fatally failed run. The
// typed error decides the code, stage and details of the error block.
func (rs *runState) buildErrorResult(finished time.Time, err error) *Result {
	code, stage, details := classifyFailure(err)
	return &Result{
		Execution: rs.execution(false, finished),
		Error: &ErrorInfo{
			Code:    code,
			Message: err.Error(),
			Details: details,
			Stage:   stage,
		},
		Summary: ErrorSummary{
			TotalInput: len(rs.events),
			Processed:  0,
		},
	}
}

func (rs *runState) execution(success bool, finished time.Time) Execution {
	return Execution{
		Success:    success,
		RunID:      rs.runID,
		ScriptID:   rs.cfg.ScriptID,
		Database:   rs.cfg.Database,
		DryRun:     rs.cfg.DryRun,
		SkipDedup:  rs.cfg.SkipDedup,
		StartedAt:  rs.started,
		DurationMS: finished.Sub(rs.started).Milliseconds(),
	}
}

func (rs *runState) buildDetails() *Details {
	d := &Details{
		ExactDuplicates: []DuplicateDetail{},
		UpdatedItems:    []UpdatedDetail{},
		FailedSends:     []FailedSend{},
		NewItemsSample:  []NewItemSample{},
	}
	for _, it := range rs.items {
		switch m := it.match.(type) {
		case event.DuplicateMatch:
			d.ExactDuplicates = append(d.ExactDuplicates, DuplicateDetail{
				TrxID:            it.ev.TrxID,
				Event:            it.ev.EventType,
				Amount:           it.ev.Amount.Float64(),
				CommissionAmount: it.ev.CommissionAmount.Float64(),
				FirstSeen:        m.Prior.CreatedAt,
			})
		case event.UpdatedMatch:
			d.UpdatedItems = append(d.UpdatedItems, UpdatedDetail{
				TrxID:   it.ev.TrxID,
				Event:   it.ev.EventType,
				Changes: changeSet(it.ev, m.Prior),
			})
		case event.NewMatch:
			if len(d.NewItemsSample) < newItemsSampleCap {
				d.NewItemsSample = append(d.NewItemsSample, NewItemSample{
					TrxID:            it.ev.TrxID,
					Event:            it.ev.EventType,
					Amount:           it.ev.Amount.Float64(),
					CommissionAmount: it.ev.CommissionAmount.Float64(),
				})
			}
		}

		if it.outcome != nil && it.outcome.err != nil {
			failed := FailedSend{
				TrxID: it.ev.TrxID,
				Event: it.ev.EventType,
				Error: it.outcome.err.Error(),
			}
			if upd, ok := it.match.(event.UpdatedMatch); ok {
				failed.WasUpdate = true
				cs := changeSet(it.ev, upd.Prior)
				failed.Changes = &cs
			}
			if rs.cfg.IncludePayloads && len(it.outcome.payload) > 0 {
				failed.Payload = string(it.outcome.payload)
			}
			d.FailedSends = append(d.FailedSends, failed)
		}
	}
	return d
}

func changeSet(ev event.Event, prior event.Record) ChangeSet {
	return ChangeSet{
		OldAmount:     prior.Amount,
		NewAmount:     ev.Amount.Float64(),
		OldCommission: prior.CommissionAmount,
		NewCommission: ev.CommissionAmount.Float64(),
		FirstSeen:     prior.CreatedAt,
	}
}
