package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	firstSeen := time.Date(2024, 2, 28, 9, 30, 0, 0, time.UTC)
	prior := Record{
		TrxID:            "order-1001",
		Amount:           125,
		CommissionAmount: 12.5,
		Source:           SourceTag,
		CreatedAt:        firstSeen,
	}

	t.Run("no prior record is new", func(t *testing.T) {
		m := Classify(Event{TrxID: "order-1001", Amount: 125}, nil)
		assert.Equal(t, ClassNew, m.Class())
		_, ok := m.(NewMatch)
		assert.True(t, ok)
	})

	t.Run("matching amounts is duplicate", func(t *testing.T) {
		ev := Event{TrxID: "order-1001", Amount: 125, CommissionAmount: 12.5}
		m := Classify(ev, &prior)
		require.Equal(t, ClassDuplicate, m.Class())
		dup, ok := m.(DuplicateMatch)
		require.True(t, ok)
		assert.Equal(t, prior, dup.Prior)
	})

	t.Run("changed amount is updated", func(t *testing.T) {
		ev := Event{TrxID: "order-1001", Amount: 150, CommissionAmount: 12.5}
		m := Classify(ev, &prior)
		require.Equal(t, ClassUpdated, m.Class())
		upd, ok := m.(UpdatedMatch)
		require.True(t, ok)
		assert.Equal(t, firstSeen, upd.Prior.CreatedAt)
	})

	t.Run("changed commission is updated", func(t *testing.T) {
		ev := Event{TrxID: "order-1001", Amount: 125, CommissionAmount: 20}
		m := Classify(ev, &prior)
		assert.Equal(t, ClassUpdated, m.Class())
	})

	t.Run("only amounts decide the class", func(t *testing.T) {
		ev := Event{
			TrxID:            "order-1001",
			Token:            "99999",
			EventType:        "Refund",
			Currency:         "eur",
			Amount:           125,
			CommissionAmount: 12.5,
		}
		m := Classify(ev, &prior)
		assert.Equal(t, ClassDuplicate, m.Class(),
			"token, event type and currency never enter the comparison")
	})
}
