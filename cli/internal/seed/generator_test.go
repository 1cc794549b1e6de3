package seed

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/telhawk-sentinel/common/models"
)

func TestGenerator_EventsAreValid(t *testing.T) {
	g := New(42, 3)
	require.Len(t, g.Hosts(), 3)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	events := g.Events(50, now)
	require.Len(t, events, 50)

	for _, ev := range events {
		require.NoError(t, ev.Validate())
		assert.Equal(t, models.EventTypeProcessCreation, ev.EventType)
		assert.Contains(t, g.Hosts(), ev.Hostname)
		assert.True(t, strings.HasPrefix(ev.Details, "Process '"))
		assert.Contains(t, ev.Details, "' launched by '")

		stored, err := ev.Stored()
		require.NoError(t, err)
		assert.False(t, stored.Timestamp.After(now))
		assert.False(t, stored.Timestamp.Before(now.Add(-time.Hour)))
	}
}

func TestGenerator_Deterministic(t *testing.T) {
	now := time.Now()
	a := New(7, 2).Events(5, now)
	b := New(7, 2).Events(5, now)
	assert.Equal(t, a, b)
}

func TestGenerator_MinimumOneHost(t *testing.T) {
	g := New(1, 0)
	assert.Len(t, g.Hosts(), 1)
}
