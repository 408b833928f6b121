// Package mood derives the creature's display mood.
package mood

import (
	"time"
)

// Mood is the creature's displayed emotional state
type Mood string

const (
	Happy   Mood = "happy"
	Sad     Mood = "sad"
	Sleepy  Mood = "sleepy"
	Excited Mood = "excited"
	Loved   Mood = "loved"
)

// Rules configures derivation thresholds
type Rules struct {
	NeglectAfter    time.Duration
	NightStartHour  int
	NightEndHour    int
	ExcitedTapCount int
}

// DefaultRules matches the shipped app behavior
func DefaultRules() Rules {
	return Rules{
		NeglectAfter:    24 * time.Hour,
		NightStartHour:  21,
		NightEndHour:    6,
		ExcitedTapCount: 20,
	}
}

// Inputs are the values a mood is derived from. Now must already be in the
// couple's local timezone.
type Inputs struct {
	Now          time.Time
	LastPettedAt *time.Time
	TapsToday    int
	Override     Mood
}

// Derive evaluates the rules in priority order, first match wins.
// A creature that was never petted is not considered neglected.
func (r Rules) Derive(in Inputs) Mood {
	if in.Override != "" {
		return in.Override
	}
	if in.LastPettedAt != nil && in.Now.Sub(*in.LastPettedAt) >= r.NeglectAfter {
		return Sad
	}
	if r.IsNight(in.Now.Hour()) {
		return Sleepy
	}
	if in.TapsToday > r.ExcitedTapCount {
		return Excited
	}
	return Happy
}

// IsNight reports whether hour falls in the night window, which may wrap midnight
func (r Rules) IsNight(hour int) bool {
	if r.NightStartHour == r.NightEndHour {
		return false
	}
	if r.NightStartHour < r.NightEndHour {
		return hour >= r.NightStartHour && hour < r.NightEndHour
	}
	return hour >= r.NightStartHour || hour < r.NightEndHour
}
