package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDue_NeverRanFlow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 30, 0, time.UTC)

	// Every-minute schedule: the occurrence at 12:00:00 falls inside the
	// one-minute lookback window.
	assert.True(t, IsDue("* * * * *", nil, now))

	// 12:00 is a */5 boundary, so a brand-new flow fires on the spot.
	assert.True(t, IsDue("*/5 * * * *", nil, now))

	// Same for a daily noon schedule created moments after noon.
	assert.True(t, IsDue("0 12 * * *", nil, now))

	// Two minutes past the boundary the next occurrence is 12:05.
	later := time.Date(2025, 6, 1, 12, 2, 30, 0, time.UTC)
	assert.False(t, IsDue("*/5 * * * *", nil, later))
}

func TestIsDue_FiveMinuteBoundary(t *testing.T) {
	lastRun := time.Date(2025, 1, 1, 11, 55, 0, 0, time.UTC)

	// The occurrence after 11:55 is 12:00.
	assert.True(t, IsDue("*/5 * * * *", &lastRun, time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)))
	assert.False(t, IsDue("*/5 * * * *", &lastRun, time.Date(2025, 1, 1, 11, 56, 0, 0, time.UTC)))
}

func TestIsDue_DailySchedule(t *testing.T) {
	lastRun := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)

	// Noon has arrived since the last run.
	now := time.Date(2025, 6, 1, 12, 0, 5, 0, time.UTC)
	assert.True(t, IsDue("0 12 * * *", &lastRun, now))

	// Already ran at noon today; next occurrence is tomorrow.
	ranAtNoon := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now = time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	assert.False(t, IsDue("0 12 * * *", &ranAtNoon, now))
}

func TestIsDue_EveryMinuteAfterRun(t *testing.T) {
	lastRun := time.Date(2025, 6, 1, 12, 0, 10, 0, time.UTC)

	// Next occurrence after 12:00:10 is 12:01:00.
	assert.False(t, IsDue("* * * * *", &lastRun, time.Date(2025, 6, 1, 12, 0, 40, 0, time.UTC)))
	assert.True(t, IsDue("* * * * *", &lastRun, time.Date(2025, 6, 1, 12, 1, 0, 0, time.UTC)))
}

func TestIsDue_NonUTCInputs(t *testing.T) {
	est := time.FixedZone("EST", -5*60*60)

	// 07:00 EST is 12:00 UTC; the comparison must happen in UTC.
	lastRun := time.Date(2025, 6, 1, 6, 0, 0, 0, est)
	now := time.Date(2025, 6, 1, 7, 0, 5, 0, est)
	assert.True(t, IsDue("0 12 * * *", &lastRun, now))
}

func TestIsDue_UnparseableExpressionNeverDue(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 30, 0, time.UTC)

	assert.False(t, IsDue("not a cron", nil, now))
	assert.False(t, IsDue("", nil, now))

	// Six fields means a seconds-resolution expression, which the 5-field
	// parser rejects.
	assert.False(t, IsDue("0 0 12 * * *", nil, now))
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate("*/5 * * * *"))
	require.NoError(t, Validate("0 12 * * 1-5"))

	assert.Error(t, Validate("61 * * * *"))
	assert.Error(t, Validate("* * * *"))
	assert.Error(t, Validate("bogus"))
}
