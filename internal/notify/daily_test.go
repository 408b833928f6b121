package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextRun(t *testing.T) {
	loc := time.FixedZone("EST", -5*60*60)

	before := time.Date(2026, 3, 1, 12, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 3, 1, 20, 0, 0, 0, loc), NextRun(before, 20, loc))

	exactly := time.Date(2026, 3, 1, 20, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 3, 2, 20, 0, 0, 0, loc), NextRun(exactly, 20, loc))

	// 02:00 UTC is still the previous evening in EST
	utc := time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 20, 0, 0, 0, loc), NextRun(utc, 20, loc))

	monthEnd := time.Date(2026, 3, 31, 23, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 4, 1, 20, 0, 0, 0, loc), NextRun(monthEnd, 20, loc))
}

func TestScheduleDaily_CancelStopsJob(t *testing.T) {
	ran := make(chan struct{}, 1)
	cancel := ScheduleDaily(context.Background(), 3, time.UTC, func(context.Context) { ran <- struct{}{} })
	cancel()

	select {
	case <-ran:
		t.Fatal("job ran after cancel")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestLogNotifier(t *testing.T) {
	err := LogNotifier{}.Notify(context.Background(), "u1", Notification{Title: "Hi", Kind: KindMessage})
	assert.NoError(t, err)
}
