package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SourceTag marks every record written by this pipeline. Rows created by
// other producers keep their own source and are never touched here.
const SourceTag = "ryze_pixel"

// StringOrNumber decodes a JSON string or a bare JSON number into a
// string. Producers upstream are loosely typed and send tokens both
// ways; the wire contract downstream wants a string either way.
type StringOrNumber string

// UnmarshalJSON implements json.Unmarshaler.
func (s *StringOrNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = StringOrNumber(v)
		return nil
	}
	// Bare number: keep the literal digits rather than round-tripping
	// through float64, so large identifiers survive intact.
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return fmt.Errorf("value %s is neither a string nor a number", data)
	}
	*s = StringOrNumber(data)
	return nil
}

// String returns the decoded value.
func (s StringOrNumber) String() string { return string(s) }

// Number decodes a JSON number or a numeric string into a float64.
// "100.00", 100 and 100.0 all decode to the same value; comparisons on
// Number are therefore numeric, never textual.
type Number float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		v = strings.TrimSpace(v)
		if v == "" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("value %q is not numeric", v)
		}
		*n = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// Float64 returns the decoded value.
func (n Number) Float64() float64 { return float64(n) }

// Event is one inbound conversion as produced upstream. Field types are
// tolerant on purpose; see StringOrNumber and Number.
type Event struct {
	Date             string         `json:"date"`
	Token            StringOrNumber `json:"token"`
	EventType        string         `json:"event"`
	TrxID            string         `json:"trx_id"`
	IOID             string         `json:"io_id"`
	CommissionAmount Number         `json:"commission_amount"`
	Amount           Number         `json:"amount"`
	Currency         string         `json:"currency"`
	ParentAPICall    string         `json:"parent_api_call"`
}

// Record is one stored conversion row, keyed by transaction identifier.
type Record struct {
	TrxID            string    `json:"trx_id" db:"trx_id"`
	Amount           float64   `json:"amount" db:"amount"`
	CommissionAmount float64   `json:"commission_amount" db:"commission_amount"`
	Source           string    `json:"source" db:"source"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// SameAmounts reports whether the event carries the same amount and
// commission the record already holds.
func SameAmounts(ev Event, rec Record) bool {
	return ev.Amount.Float64() == rec.Amount &&
		ev.CommissionAmount.Float64() == rec.CommissionAmount
}
