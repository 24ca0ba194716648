package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntervals(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw    string
		every  time.Duration
		source string
	}{
		{"3600", time.Hour, "seconds"},
		{" 60 ", time.Minute, "seconds"},
		{"55m", 55 * time.Minute, "duration"},
		{"2h30m", 150 * time.Minute, "duration"},
		{"01:30", 90 * time.Minute, "hhmm"},
		{"interval:00:05", 5 * time.Minute, "hhmm"},
		{"every:1500ms", time.Second, "duration"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			c, err := Parse(tt.raw, nil)
			require.NoError(t, err)
			assert.Equal(t, KindInterval, c.Kind)
			assert.Equal(t, tt.every, c.Every)
			assert.Equal(t, tt.source, c.Source)
		})
	}
}

func TestParseCron(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"0 * * * *", "*/30 * * * * *", "@hourly", "@every 1h", "cron:15 9 * * 1"} {
		c, err := Parse(raw, time.UTC)
		require.NoError(t, err, raw)
		assert.Equal(t, KindCron, c.Kind, raw)
		assert.False(t, c.IsZero())
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "0", "0s", "soon", "00:60", "61 * * * *", "cron:", "interval:"} {
		_, err := Parse(raw, nil)
		assert.Error(t, err, raw)
	}
}

func TestIntervalDueUsesGreaterOrEqual(t *testing.T) {
	t.Parallel()
	c := Every(time.Hour)
	last := time.Unix(1_000, 0)

	assert.False(t, c.Due(last, last.Add(time.Hour-time.Second)))
	assert.True(t, c.Due(last, last.Add(time.Hour)))
	assert.True(t, c.Due(last, last.Add(2*time.Hour)))
	assert.Equal(t, "1h0m0s", c.String())
}

func TestCronDue(t *testing.T) {
	t.Parallel()
	c, err := Parse("@hourly", time.UTC)
	require.NoError(t, err)

	last := time.Date(2024, 1, 1, 10, 15, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC), c.Next(last))
	assert.False(t, c.Due(last, last.Add(44*time.Minute)))
	assert.True(t, c.Due(last, last.Add(45*time.Minute)))
}

func TestZeroCadenceNeverDue(t *testing.T) {
	t.Parallel()
	var c Cadence
	assert.True(t, c.IsZero())
	assert.False(t, c.Due(time.Time{}, time.Now()))
}
