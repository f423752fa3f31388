package pipeline

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/event"
)

// testStart is the fixed clock used across pipeline tests so run
// timestamps and durations are deterministic.
var testStart = time.Date(2026, 8, 21, 7, 41, 5, 123000000, time.UTC)

// firstSeen is the stored-record timestamp used by seeded fixtures.
var firstSeen = time.Date(2024, 2, 28, 9, 30, 0, 0, time.UTC)

func fixedNow() time.Time { return testStart }

// fakeSource is an in-memory RecordSource that records every lookup.
type fakeSource struct {
	records []event.Record
	err     error
	calls   [][]string
}

func (f *fakeSource) LookupConversions(_ context.Context, ids []string) ([]event.Record, error) {
	copied := make([]string, len(ids))
	copy(copied, ids)
	f.calls = append(f.calls, copied)

	if f.err != nil {
		return nil, f.err
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := []event.Record{}
	for _, rec := range f.records {
		if _, ok := want[rec.TrxID]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// sentPayload is the slice of the wire envelope the fakes care about.
type sentPayload struct {
	Track    string `json:"track"`
	Time     string `json:"time"`
	SentTime string `json:"senttime"`
	TrxID    string `json:"trx_id"`
	Event    string `json:"event"`
	Token    string `json:"token"`
}

// fakeSender records every payload and fails the transaction ids it was
// told to fail.
type fakeSender struct {
	failTrx map[string]error
	sent    []sentPayload
	raw     [][]byte
}

func (f *fakeSender) Send(_ context.Context, payload []byte) error {
	var p sentPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	f.sent = append(f.sent, p)
	f.raw = append(f.raw, payload)

	if err, ok := f.failTrx[p.TrxID]; ok {
		return err
	}
	return nil
}

func (f *fakeSender) sentIDs() []string {
	ids := make([]string, 0, len(f.sent))
	for _, p := range f.sent {
		ids = append(ids, p.TrxID)
	}
	return ids
}

type updateCall struct {
	trxID      string
	amount     float64
	commission float64
	at         time.Time
}

// fakeWriter records inserts and updates and can fail either.
type fakeWriter struct {
	inserts     [][]event.Record
	updates     []updateCall
	insertErr   error
	updateErrOn string // trx id whose update fails
	updateErr   error
}

func (f *fakeWriter) InsertConversions(_ context.Context, rows []event.Record) error {
	copied := make([]event.Record, len(rows))
	copy(copied, rows)
	f.inserts = append(f.inserts, copied)

	if f.insertErr != nil {
		return f.insertErr
	}
	return nil
}

func (f *fakeWriter) UpdateConversion(_ context.Context, trxID string, amount, commission float64, at time.Time) error {
	f.updates = append(f.updates, updateCall{trxID: trxID, amount: amount, commission: commission, at: at})
	if f.updateErrOn == trxID {
		return f.updateErr
	}
	return nil
}

func (f *fakeWriter) insertedIDs() []string {
	var ids []string
	for _, batch := range f.inserts {
		for _, rec := range batch {
			ids = append(ids, rec.TrxID)
		}
	}
	return ids
}

// storedRecord builds a seeded record with the fixture first-seen time.
func storedRecord(trxID string, amount, commission float64) event.Record {
	return event.Record{
		TrxID:            trxID,
		Amount:           amount,
		CommissionAmount: commission,
		Source:           event.SourceTag,
		CreatedAt:        firstSeen,
	}
}

// saleEvent builds a complete inbound event with the given identity and
// amounts.
func saleEvent(trxID string, amount, commission float64) event.Event {
	return event.Event{
		Date:             "2024-03-01 10:00:00",
		Token:            "84121",
		EventType:        "sale",
		TrxID:            trxID,
		IOID:             "io-77",
		Amount:           event.Number(amount),
		CommissionAmount: event.Number(commission),
		Currency:         "usd",
		ParentAPICall:    "parent:xyz;fico:ABC123",
	}
}

func testConfig() Config {
	return Config{
		ScriptID: "rz-main",
		Database: "affiliates",
	}
}

// newTestPipeline wires a pipeline with fixed run ids and a fixed clock.
func newTestPipeline(t *testing.T, cfg Config, src RecordSource, sender Sender, writer RecordWriter) *Pipeline {
	t.Helper()

	p, err := New(cfg, src, sender, writer,
		WithRunIDGenerator(NewFixedGenerator("run-0001")),
		WithNow(fixedNow),
	)
	require.NoError(t, err)
	return p
}
