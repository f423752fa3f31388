package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/event"
)

// updatePlan is one pending amount correction.
type updatePlan struct {
	trxID      string
	amount     float64
	commission float64
}

// buildPlan turns successful sends into pending mutations: one insert
// row per new identifier, one update per updated event.
//
// A batch can carry the same new identifier more than once. Each
// occurrence was dispatched, but the insert keeps a single row per
// identifier, holding the amounts of the last successful occurrence in
// input order. Anything else would trip the primary key on a batch the
// endpoint already accepted. Updates are not collapsed; they replay in
// order and the last one wins in the store anyway.
func buildPlan(rs *runState, at time.Time) ([]event.Record, []updatePlan) {
	var inserts []event.Record
	var updates []updatePlan
	pos := make(map[string]int)

	for _, it := range rs.items {
		if it.outcome == nil || it.outcome.err != nil {
			continue
		}
		switch it.match.Class() {
		case event.ClassNew:
			rec := event.Record{
				TrxID:            it.ev.TrxID,
				Amount:           it.ev.Amount.Float64(),
				CommissionAmount: it.ev.CommissionAmount.Float64(),
				Source:           event.SourceTag,
				CreatedAt:        at,
			}
			if idx, ok := pos[rec.TrxID]; ok {
				inserts[idx] = rec
			} else {
				pos[rec.TrxID] = len(inserts)
				inserts = append(inserts, rec)
			}
		case event.ClassUpdated:
			updates = append(updates, updatePlan{
				trxID:      it.ev.TrxID,
				amount:     it.ev.Amount.Float64(),
				commission: it.ev.CommissionAmount.Float64(),
			})
		}
	}
	return inserts, updates
}

// applyMutations persists the outcomes of successful sends: one batched
// insert for new identifiers, then one update per changed identifier.
//
// Any write failure aborts the run with *MutationError. By then the
// sends have happened, so the error carries how far the writes got;
// an operator reconciles the rest from the logs.
func (p *Pipeline) applyMutations(ctx context.Context, rs *runState) error {
	ctx, span := tracer.Start(ctx, "db.write")
	defer span.End()

	// One write time for the whole phase: inserted rows and refreshed
	// rows carry the same instant.
	at := p.now()
	inserts, updates := buildPlan(rs, at)

	start := p.now()
	defer func() {
		rs.writeMS = p.now().Sub(start).Milliseconds()
	}()

	if len(inserts) > 0 {
		if err := p.writer.InsertConversions(ctx, inserts); err != nil {
			return &MutationError{Inserted: 0, Updated: 0, Err: err}
		}
		rs.inserted = len(inserts)
	}

	for _, u := range updates {
		if err := p.writer.UpdateConversion(ctx, u.trxID, u.amount, u.commission, at); err != nil {
			return &MutationError{Inserted: rs.inserted, Updated: rs.updated, Err: err}
		}
		rs.updated++
	}

	span.SetAttributes(
		attribute.Int("db.inserted", rs.inserted),
		attribute.Int("db.updated", rs.updated),
	)
	return nil
}
