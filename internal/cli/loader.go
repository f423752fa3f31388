package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/ohadcohen11/n8n-ryze-pixel-sender/internal/event"
)

// LoadEvents reads a conversion batch from the file at path, or from
// stdin when path is "-". The batch may be a plain array of events or
// the wrapped item form produced by workflow exports.
func LoadEvents(path string, stdin io.Reader) ([]event.Event, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
	} else {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	}

	events, err := event.DecodeBatch(data)
	if err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return events, nil
}
