package event

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEvent() Event {
	return Event{
		Date:      "2024-03-01 10:00:00",
		Token:     "84121",
		EventType: "sale",
		TrxID:     "order-1001",
		IOID:      "io-77",
	}
}

func TestValidateBatch(t *testing.T) {
	t.Run("empty batch is valid", func(t *testing.T) {
		assert.NoError(t, ValidateBatch(nil))
	})

	t.Run("complete events pass", func(t *testing.T) {
		assert.NoError(t, ValidateBatch([]Event{validEvent(), validEvent()}))
	})

	t.Run("amounts are not required", func(t *testing.T) {
		ev := validEvent()
		ev.Amount = 0
		ev.CommissionAmount = 0
		ev.Currency = ""
		assert.NoError(t, ValidateBatch([]Event{ev}))
	})

	tests := []struct {
		field string
		strip func(*Event)
	}{
		{field: "date", strip: func(ev *Event) { ev.Date = "" }},
		{field: "token", strip: func(ev *Event) { ev.Token = "" }},
		{field: "event", strip: func(ev *Event) { ev.EventType = "" }},
		{field: "trx_id", strip: func(ev *Event) { ev.TrxID = "" }},
		{field: "io_id", strip: func(ev *Event) { ev.IOID = "" }},
	}
	for _, tt := range tests {
		t.Run("missing "+tt.field, func(t *testing.T) {
			bad := validEvent()
			tt.strip(&bad)
			err := ValidateBatch([]Event{validEvent(), bad})

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, 1, verr.Index)
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, RequiredFields(), verr.Required)
		})
	}

	t.Run("first violation wins", func(t *testing.T) {
		first := validEvent()
		first.TrxID = ""
		second := validEvent()
		second.Date = ""
		err := ValidateBatch([]Event{first, second})

		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, 0, verr.Index)
		assert.Equal(t, "trx_id", verr.Field)
	})
}
