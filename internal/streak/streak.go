// Package streak computes engagement metrics from daily check-ins.
package streak

import (
	"time"

	"hearth-backend/internal/models"
)

// DateLayout is the calendar date format used for check-ins
const DateLayout = time.DateOnly

// Count returns the number of distinct days on which either partner checked in.
// Gaps between days do not reset the count.
func Count(checkins []models.DailyCheckin) int {
	days := make(map[string]struct{}, len(checkins))
	for _, c := range checkins {
		days[c.CheckinDate] = struct{}{}
	}
	return len(days)
}

// Today formats now as a calendar date in loc
func Today(now time.Time, loc *time.Location) string {
	return now.In(loc).Format(DateLayout)
}

// DaysTogether counts calendar days since the couple matched, the match day being day one.
// It returns zero before partners are matched.
func DaysTogether(matchedAt *time.Time, now time.Time, loc *time.Location) int {
	if matchedAt == nil {
		return 0
	}
	start := truncateDay(matchedAt.In(loc))
	end := truncateDay(now.In(loc))
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24+0.5) + 1
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
