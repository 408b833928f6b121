package streak

import (
	"testing"
	"time"

	"hearth-backend/internal/models"

	"github.com/stretchr/testify/assert"
)

// Count reports active days, not a consecutive run. Keep this until the
// product decides whether a gap should reset it.
func TestCount_DistinctDaysNotRows(t *testing.T) {
	checkins := []models.DailyCheckin{
		{CoupleID: "c", UserID: "a", CheckinDate: "2026-03-01"},
		{CoupleID: "c", UserID: "a", CheckinDate: "2026-03-02"},
		{CoupleID: "c", UserID: "b", CheckinDate: "2026-03-02"},
	}
	assert.Equal(t, 2, Count(checkins))
}

func TestCount_GapsStillCount(t *testing.T) {
	checkins := []models.DailyCheckin{
		{UserID: "a", CheckinDate: "2026-03-01"},
		{UserID: "b", CheckinDate: "2026-03-05"},
		{UserID: "a", CheckinDate: "2026-03-09"},
	}
	assert.Equal(t, 3, Count(checkins))
	assert.Zero(t, Count(nil))
}

func TestToday_UsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)

	now := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-01", Today(now, time.UTC))
	assert.Equal(t, "2026-03-02", Today(now, tokyo))
}

func TestDaysTogether(t *testing.T) {
	matched := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)

	assert.Zero(t, DaysTogether(nil, matched, time.UTC))
	assert.Equal(t, 1, DaysTogether(&matched, matched.Add(30*time.Minute), time.UTC))
	assert.Equal(t, 2, DaysTogether(&matched, matched.Add(2*time.Hour), time.UTC))
	assert.Equal(t, 31, DaysTogether(&matched, time.Date(2026, 3, 31, 8, 0, 0, 0, time.UTC), time.UTC))
	assert.Zero(t, DaysTogether(&matched, matched.Add(-48*time.Hour), time.UTC))
}
