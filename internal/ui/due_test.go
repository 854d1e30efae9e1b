package ui

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simpletodo/internal/storage"
)

func TestFormatDue(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		due  time.Time
		want string
	}{
		{"today", time.Date(2026, 5, 1, 18, 30, 0, 0, time.UTC), "today 18:30"},
		{"tomorrow", time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC), "tomorrow 09:00"},
		{"yesterday", time.Date(2026, 4, 30, 23, 59, 0, 0, time.UTC), "yesterday 23:59"},
		{"later", time.Date(2026, 6, 10, 8, 0, 0, 0, time.UTC), "2026-06-10 08:00"},
		{"across year", time.Date(2025, 12, 31, 8, 0, 0, 0, time.UTC), "2025-12-31 08:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDue(storage.Millis(tt.due), now))
		})
	}
}

func TestRelativeDue(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "2 hours from now", relativeDue(storage.Millis(now.Add(2*time.Hour)), now))
	assert.Equal(t, "3 days ago", relativeDue(storage.Millis(now.Add(-72*time.Hour)), now))
}

func TestParseDue(t *testing.T) {
	t.Run("empty clears", func(t *testing.T) {
		ms, err := ParseDue("", time.UTC)
		require.NoError(t, err)
		assert.Zero(t, ms)
	})

	t.Run("date and time", func(t *testing.T) {
		ms, err := ParseDue("2026-05-01 14:05", time.UTC)
		require.NoError(t, err)
		assert.Equal(t, storage.Millis(time.Date(2026, 5, 1, 14, 5, 0, 0, time.UTC)), ms)
	})

	t.Run("date only", func(t *testing.T) {
		ms, err := ParseDue("2026-05-01", time.UTC)
		require.NoError(t, err)
		assert.Equal(t, storage.Millis(time.Date(2026, 5, 1, defaultDueHour, 0, 0, 0, time.UTC)), ms)
	})

	t.Run("date only on a DST change", func(t *testing.T) {
		ny, err := time.LoadLocation("America/New_York")
		require.NoError(t, err)

		ms, err := ParseDue("2026-03-08", ny)
		require.NoError(t, err)
		got := time.UnixMilli(ms).In(ny)
		assert.Equal(t, defaultDueHour, got.Hour())
		assert.Equal(t, 0, got.Minute())
		assert.Equal(t, 8, got.Day())
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := ParseDue("next tuesday", time.UTC)
		assert.Error(t, err)
	})
}
