package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// NextRun returns the next time at hour:00 in loc strictly after now
func NextRun(now time.Time, hour int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, 0, 0, 0, loc)
	}
	return next
}

// ScheduleDaily runs fn every day at hour in loc until the returned cancel
// is called or ctx is done.
func ScheduleDaily(ctx context.Context, hour int, loc *time.Location, fn func(ctx context.Context)) (cancel func()) {
	ctx, cancel = context.WithCancel(ctx)
	go func() {
		for {
			wait := time.Until(NextRun(time.Now(), hour, loc))
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				log.Info().Int("hour", hour).Msg("Running daily notification job")
				fn(ctx)
			}
		}
	}()
	return cancel
}
