package event

import "fmt"

// requiredFields is the inbound contract: every event must carry a
// non-empty value for each of these, checked in this order.
var requiredFields = []string{"date", "token", "event", "trx_id", "io_id"}

// RequiredFields returns the field names every inbound event must carry.
func RequiredFields() []string {
	out := make([]string, len(requiredFields))
	copy(out, requiredFields)
	return out
}

// ValidationError reports the first event in a batch that is missing a
// required field. Index is the zero-based position in the input.
type ValidationError struct {
	Index    int
	Field    string
	Required []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("event %d is missing required field %q", e.Index, e.Field)
}

// ValidateBatch checks every event against the required-field contract
// and returns a *ValidationError for the first violation, in input
// order. A valid batch returns nil. An empty batch is valid.
func ValidateBatch(events []Event) error {
	for i, ev := range events {
		if field, ok := missingField(ev); ok {
			return &ValidationError{Index: i, Field: field, Required: RequiredFields()}
		}
	}
	return nil
}

func missingField(ev Event) (string, bool) {
	for _, field := range requiredFields {
		var present bool
		switch field {
		case "date":
			present = ev.Date != ""
		case "token":
			present = ev.Token != ""
		case "event":
			present = ev.EventType != ""
		case "trx_id":
			present = ev.TrxID != ""
		case "io_id":
			present = ev.IOID != ""
		}
		if !present {
			return field, true
		}
	}
	return "", false
}
