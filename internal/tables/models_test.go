package tables

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyStatus(t *testing.T) {
	now := time.Date(2024, 3, 4, 19, 30, 0, 0, time.UTC)

	t.Run("occupied opens a session", func(t *testing.T) {
		table := &Table{Number: "T1", Status: "available"}

		old := table.ApplyStatus("occupied", "Order placed", now)

		assert.Equal(t, "available", old)
		assert.Equal(t, "occupied", table.Status)
		assert.Equal(t, "Order placed", table.StatusChangeReason)
		require.NotNil(t, table.StatusChangedAt)
		assert.Equal(t, now, *table.StatusChangedAt)
		require.NotNil(t, table.SessionStartTime)
		assert.Equal(t, now, *table.SessionStartTime)
	})

	t.Run("existing session is kept", func(t *testing.T) {
		start := now.Add(-time.Hour)
		table := &Table{Status: "reserved", SessionStartTime: &start}

		table.ApplyStatus("occupied", "", now)

		assert.Equal(t, start, *table.SessionStartTime)
	})

	t.Run("available closes the session", func(t *testing.T) {
		start := now.Add(-time.Hour)
		table := &Table{Status: "cleaning", SessionStartTime: &start, CurrentOrder: "o1"}

		table.ApplyStatus("available", "Cleaned", now)

		assert.Nil(t, table.SessionStartTime)
		assert.Empty(t, table.CurrentOrder)
	})
}

func TestClone(t *testing.T) {
	start := time.Now()
	orig := &Table{Number: "T1", Features: []string{"window"}, SessionStartTime: &start}

	c := orig.Clone()
	c.Features[0] = "booth"
	*c.SessionStartTime = start.Add(time.Hour)

	assert.Equal(t, "window", orig.Features[0])
	assert.Equal(t, start, *orig.SessionStartTime)
}
