package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/event"
)

var tracer = otel.Tracer("pixel-sender/pipeline")

// RecordSource resolves stored records for a set of transaction
// identifiers in one round trip. Implemented by store.Store.
type RecordSource interface {
	LookupConversions(ctx context.Context, ids []string) ([]event.Record, error)
}

// Sender posts one encoded payload to the tracking endpoint.
// Implemented by pixel.Client.
type Sender interface {
	Send(ctx context.Context, payload []byte) error
}

// RecordWriter persists dispatch outcomes. Implemented by store.Store.
type RecordWriter interface {
	InsertConversions(ctx context.Context, rows []event.Record) error
	UpdateConversion(ctx context.Context, trxID string, amount, commission float64, at time.Time) error
}

// Config carries the per-installation settings of a pipeline.
type Config struct {
	// ScriptID tags outgoing payloads with the installation.
	ScriptID string
	// Database is the record-store name echoed in reports.
	Database string
	// DryRun stops after classification; nothing is sent or written.
	DryRun bool
	// SkipDedup bypasses the lookup and treats every event as new.
	SkipDedup bool
	// IncludePayloads copies the posted payload into failed-send
	// details. Off by default; payloads carry customer identifiers.
	IncludePayloads bool
}

// Pipeline runs conversion batches through validate, reconcile,
// dispatch, mutate and report. One Pipeline is safe to reuse across
// runs; each Run call is independent.
type Pipeline struct {
	cfg    Config
	src    RecordSource
	sender Sender
	writer RecordWriter
	runIDs RunIDGenerator
	now    func() time.Time
}

// Option allows configuration of pipeline parameters.
type Option func(*Pipeline)

// WithRunIDGenerator swaps the run id source. Tests use FixedGenerator
// for deterministic reports.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(p *Pipeline) {
		p.runIDs = g
	}
}

// WithNow swaps the time source. Tests use a fixed clock so timings and
// timestamps are deterministic.
func WithNow(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New creates a Pipeline over the given capabilities. Capabilities a
// mode never touches may be nil: the source when skip-dedup is set, the
// sender and writer in dry-run mode. Everything the mode will touch
// must be present, checked here rather than mid-run.
func New(cfg Config, src RecordSource, sender Sender, writer RecordWriter, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		cfg:    cfg,
		src:    src,
		sender: sender,
		writer: writer,
		runIDs: UUIDv7Generator{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	if !cfg.SkipDedup && p.src == nil {
		return nil, fmt.Errorf("record source is required unless skip-dedup is set")
	}
	if !cfg.DryRun {
		if p.sender == nil {
			return nil, fmt.Errorf("pixel sender is required for live runs")
		}
		if p.writer == nil {
			return nil, fmt.Errorf("record writer is required for live runs")
		}
	}
	return p, nil
}

// runState accumulates everything one invocation produces. It exists
// for the duration of a single Run call.
type runState struct {
	cfg     Config
	runID   string
	started time.Time
	events  []event.Event
	items   []item

	lookupMS int64
	sendMS   int64
	writeMS  int64
	inserted int
	updated  int
}

// item pairs one input event with its classification and, once
// dispatched, its send outcome. outcome stays nil for exact duplicates
// and for dry runs.
type item struct {
	ev      event.Event
	match   event.Match
	outcome *sendOutcome
}

type sendOutcome struct {
	err     error // nil on success
	payload []byte
}

// Run takes one batch through the pipeline and returns its report.
//
// Run never returns a nil Result. When the returned error is non-nil
// the Result is error-shaped: the same typed error rendered as a
// report, so callers can print it and still branch on the failure.
// Per-event send failures are not errors here; they are recorded in
// the Result and the run completes normally.
func (p *Pipeline) Run(ctx context.Context, events []event.Event) (*Result, error) {
	rs := &runState{
		cfg:     p.cfg,
		runID:   p.runIDs.Generate(),
		started: p.now(),
		events:  events,
	}

	ctx, span := tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run.id", rs.runID),
		attribute.Int("events.total", len(events)),
		attribute.Bool("run.dry_run", p.cfg.DryRun),
		attribute.Bool("run.skip_dedup", p.cfg.SkipDedup),
	))
	defer span.End()

	slog.Info("run starting",
		"run_id", rs.runID,
		"events", len(events),
		"dry_run", p.cfg.DryRun,
		"skip_dedup", p.cfg.SkipDedup,
	)

	if err := event.ValidateBatch(events); err != nil {
		slog.Error("batch validation failed",
			"run_id", rs.runID,
			"error", err,
		)
		return rs.buildErrorResult(p.now(), err), err
	}

	if err := p.reconcile(ctx, rs); err != nil {
		slog.Error("deduplication lookup failed",
			"run_id", rs.runID,
			"error", err,
		)
		return rs.buildErrorResult(p.now(), err), err
	}

	if p.cfg.DryRun {
		res := rs.buildDryRunResult(p.now())
		summary := res.Summary.(DryRunSummary)
		slog.Info("dry run complete",
			"run_id", rs.runID,
			"new", summary.NewItems,
			"duplicates", summary.ExactDuplicates,
			"updated", summary.UpdatedItems,
			"would_send", summary.WouldSendToPixel,
		)
		return res, nil
	}

	p.dispatch(ctx, rs)

	if err := p.applyMutations(ctx, rs); err != nil {
		slog.Error("record write failed",
			"run_id", rs.runID,
			"inserted", rs.inserted,
			"updated", rs.updated,
			"error", err,
		)
		return rs.buildErrorResult(p.now(), err), err
	}

	res := rs.buildResult(p.now())
	summary := res.Summary.(Summary)
	slog.Info("run complete",
		"run_id", rs.runID,
		"new", summary.NewItems,
		"duplicates", summary.ExactDuplicates,
		"updated", summary.UpdatedItems,
		"pixel_success", summary.PixelSuccess,
		"pixel_failed", summary.PixelFailed,
		"db_inserted", summary.DBInserted,
		"db_updated", summary.DBUpdated,
		"duration_ms", res.Execution.DurationMS,
	)
	return res, nil
}
