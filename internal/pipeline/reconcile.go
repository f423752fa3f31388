package pipeline

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/event"
)

// reconcile classifies every event against stored state. All distinct
// identifiers go to the store in a single batched lookup; there is
// never one query per event. With skip-dedup set the store is not
// touched at all and every event classifies as new.
//
// Returns *LookupError on store failure; items are left untouched in
// that case so the caller can still render an error report.
func (p *Pipeline) reconcile(ctx context.Context, rs *runState) error {
	ctx, span := tracer.Start(ctx, "dedup.lookup")
	defer span.End()

	rs.items = make([]item, len(rs.events))
	for i, ev := range rs.events {
		rs.items[i] = item{ev: ev, match: event.NewMatch{}}
	}

	if p.cfg.SkipDedup || len(rs.events) == 0 {
		span.SetAttributes(attribute.Bool("dedup.skipped", true))
		return nil
	}

	ids := distinctIDs(rs.events)
	lookupStart := p.now()
	records, err := p.src.LookupConversions(ctx, ids)
	rs.lookupMS = p.now().Sub(lookupStart).Milliseconds()
	if err != nil {
		return &LookupError{IDs: len(ids), Err: err}
	}

	prior := make(map[string]event.Record, len(records))
	for _, rec := range records {
		prior[rec.TrxID] = rec
	}
	for i := range rs.items {
		if rec, ok := prior[rs.items[i].ev.TrxID]; ok {
			rs.items[i].match = event.Classify(rs.items[i].ev, &rec)
		}
	}

	span.SetAttributes(
		attribute.Int("dedup.distinct_ids", len(ids)),
		attribute.Int("dedup.known", len(records)),
	)
	return nil
}

// distinctIDs returns the unique transaction identifiers in first-seen
// order. Repeated identifiers within one batch are looked up once.
func distinctIDs(events []event.Event) []string {
	seen := make(map[string]struct{}, len(events))
	ids := make([]string, 0, len(events))
	for _, ev := range events {
		if _, ok := seen[ev.TrxID]; ok {
			continue
		}
		seen[ev.TrxID] = struct{}{}
		ids = append(ids, ev.TrxID)
	}
	return ids
}
