package event

import (
	"encoding/json"
	"fmt"
)

// DecodeBatch parses a JSON array of events. Two shapes are accepted:
// a plain array of event objects, and the wrapped workflow-item shape
// where each element nests the event under a "json" key. The two may
// be mixed within one array; elements without a "json" key are taken
// as bare events.
func DecodeBatch(data []byte) ([]Event, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("input is not a JSON array: %w", err)
	}
	events := make([]Event, 0, len(raw))
	for i, elem := range raw {
		var wrapper struct {
			JSON json.RawMessage `json:"json"`
		}
		if err := json.Unmarshal(elem, &wrapper); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		body := elem
		if len(wrapper.JSON) > 0 {
			body = wrapper.JSON
		}
		var ev Event
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}
