// Package pipeline implements the conversion forwarding pipeline.
//
// One invocation takes a batch of inbound conversion events through five
// stages and produces exactly one Result:
//
//  1. Validate: every event must carry the required identity fields.
//     The batch is rejected whole on the first violation.
//  2. Reconcile: a single batched lookup fetches stored records for all
//     distinct transaction identifiers, then each event is classified
//     as new, duplicate or updated. Exact duplicates leave the pipeline
//     here.
//  3. Dispatch: payloads for new and updated events are posted to the
//     pixel endpoint one at a time, in input order. A failed send never
//     stops the batch; the failure is recorded and dispatch moves on.
//  4. Mutate: successful sends are persisted in one batched insert for
//     new identifiers plus one update per changed identifier. The
//     insert carries no conflict clause, so a race with a concurrent
//     run surfaces as a constraint error instead of silent data loss.
//  5. Report: counts, per-classification details, and stage timings are
//     assembled into the Result.
//
// ARCHITECTURE:
//
// The pipeline is single-threaded for determinism. Events are processed
// strictly in input order at every stage; no stage reorders, retries or
// parallelizes. Given the same input batch, stored state and endpoint
// behavior, two runs produce identical results.
//
// Run never returns a nil Result. Fatal failures (validation, lookup,
// mutation) return both a populated error-shaped Result and the typed
// error, so callers can render the report and still branch on the
// failure.
//
// Dry-run mode stops after stage 2 and reports what would be sent.
// Skip-dedup mode bypasses the lookup and treats every event as new;
// the loud-insert invariant above is the backstop that keeps replayed
// input from corrupting stored amounts.
package pipeline
