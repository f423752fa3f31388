package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/event"
	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/pixel"
)

// dispatch posts new and updated events to the pixel endpoint, one at a
// time, strictly in input order. Exact duplicates are skipped; they
// already reached the endpoint in an earlier run.
//
// A failed send never stops the batch: the failure is recorded on the
// item and dispatch moves to the next event. Endpoint rejections and
// transport errors are recorded the same way; they differ only in the
// recorded message.
func (p *Pipeline) dispatch(ctx context.Context, rs *runState) {
	toSend := 0
	for _, it := range rs.items {
		if it.match.Class() != event.ClassDuplicate {
			toSend++
		}
	}

	ctx, span := tracer.Start(ctx, "pixel.dispatch", trace.WithAttributes(
		attribute.Int("dispatch.events", toSend),
	))
	defer span.End()

	start := p.now()
	success, failed := 0, 0
	for i := range rs.items {
		it := &rs.items[i]
		if it.match.Class() == event.ClassDuplicate {
			continue
		}

		payload, err := pixel.BuildPayload(it.ev, p.cfg.ScriptID, p.now())
		if err != nil {
			it.outcome = &sendOutcome{err: fmt.Errorf("build payload: %w", err)}
			failed++
			slog.Warn("payload build failed",
				"run_id", rs.runID,
				"trx_id", it.ev.TrxID,
				"error", err,
			)
			continue
		}

		if err := p.sender.Send(ctx, payload); err != nil {
			it.outcome = &sendOutcome{err: err, payload: payload}
			failed++
			slog.Warn("pixel send failed",
				"run_id", rs.runID,
				"trx_id", it.ev.TrxID,
				"classification", it.match.Class(),
				"error", err,
			)
			continue
		}

		it.outcome = &sendOutcome{payload: payload}
		success++
		slog.Debug("pixel send ok",
			"run_id", rs.runID,
			"trx_id", it.ev.TrxID,
			"classification", it.match.Class(),
		)
	}
	rs.sendMS = p.now().Sub(start).Milliseconds()

	span.SetAttributes(
		attribute.Int("dispatch.success", success),
		attribute.Int("dispatch.failed", failed),
	)
}
