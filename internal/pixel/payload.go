// Package pixel builds tracking payloads and posts them to the
// third-party pixel endpoint.
package pixel

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/currency"

	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/event"
)

// sentTimeLayout renders UTC timestamps with millisecond precision, the
// only form the endpoint accepts for senttime.
const sentTimeLayout = "2006-01-02T15:04:05.000Z"

// Payload is the wire envelope for one conversion. Field order is part
// of the contract; do not reorder.
type Payload struct {
	Track    string `json:"track"`
	Time     string `json:"time"`
	SentTime string `json:"senttime"`
	Params   Params `json:"params"`
	TrxID    string `json:"trx_id"`
	Event    string `json:"event"`
	Token    string `json:"token"`
	Data     string `json:"data"`
}

// Params carries the monetary block of the envelope.
type Params struct {
	CommissionAmount float64 `json:"commission_amount"`
	Currency         string  `json:"currency"`
	Amount           float64 `json:"amount"`
	IOID             string  `json:"io_id"`
}

// callContext is serialized into the Data field as a nested JSON string,
// not as an embedded object. Fico is a pointer so an absent reference
// renders as null rather than "".
type callContext struct {
	ParentAPICall string  `json:"parent_api_call"`
	ScriptID      string  `json:"script_id"`
	Fico          *string `json:"fico"`
}

// BuildPayload renders one event into the wire envelope. The event date
// passes through verbatim; sentAt is normalized to UTC. scriptID tags
// the payload with the installation that produced it.
func BuildPayload(ev event.Event, scriptID string, sentAt time.Time) ([]byte, error) {
	cc := callContext{
		ParentAPICall: ev.ParentAPICall,
		ScriptID:      scriptID,
	}
	if fico, ok := ficoRef(ev.ParentAPICall); ok {
		cc.Fico = &fico
	}
	data, err := json.Marshal(cc)
	if err != nil {
		return nil, fmt.Errorf("encode call context for %s: %w", ev.TrxID, err)
	}

	p := Payload{
		Track:    "event",
		Time:     ev.Date,
		SentTime: sentAt.UTC().Format(sentTimeLayout),
		Params: Params{
			CommissionAmount: ev.CommissionAmount.Float64(),
			Currency:         normalizeCurrency(ev.Currency),
			Amount:           ev.Amount.Float64(),
			IOID:             ev.IOID,
		},
		TrxID: ev.TrxID,
		Event: strings.ToLower(ev.EventType),
		Token: ev.Token.String(),
		Data:  string(data),
	}
	out, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload for %s: %w", ev.TrxID, err)
	}
	return out, nil
}

// ficoRef extracts the credit-reference token from a parent call chain:
// everything after the first "fico:" marker. A chain that mentions fico
// without the marker colon carries no extractable value.
func ficoRef(ref string) (string, bool) {
	if !strings.Contains(ref, "fico") {
		return "", false
	}
	_, after, found := strings.Cut(ref, "fico:")
	if !found {
		return "", false
	}
	return after, true
}

// normalizeCurrency maps recognized ISO 4217 codes to their canonical
// uppercase form. Unrecognized codes pass through uppercased so the
// endpoint sees whatever the producer meant.
func normalizeCurrency(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	if unit, err := currency.ParseISO(code); err == nil {
		return unit.String()
	}
	return strings.ToUpper(code)
}
