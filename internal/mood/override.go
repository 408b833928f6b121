package mood

import (
	"sync"
	"time"
)

// Event is a discrete interaction that briefly overrides the derived mood
type Event string

const (
	EventPet      Event = "pet"
	EventMessage  Event = "message"
	EventSurprise Event = "surprise"
)

// Reaction is the override an event produces
type Reaction struct {
	Mood     Mood
	Duration time.Duration
}

// Reactions maps events to their overrides
var Reactions = map[Event]Reaction{
	EventPet:      {Mood: Loved, Duration: 3 * time.Second},
	EventMessage:  {Mood: Excited, Duration: 5 * time.Second},
	EventSurprise: {Mood: Excited, Duration: 10 * time.Second},
}

type override struct {
	mood  Mood
	timer *time.Timer
	gen   uint64
}

// Overrides keeps transient moods per couple in memory. Expired entries
// clear themselves and call onExpire with the couple ID.
type Overrides struct {
	mu       sync.Mutex
	active   map[string]*override
	gen      uint64
	onExpire func(coupleID string)
}

// NewOverrides creates an empty registry
func NewOverrides(onExpire func(coupleID string)) *Overrides {
	return &Overrides{
		active:   make(map[string]*override),
		onExpire: onExpire,
	}
}

// Set activates m for d, replacing any override already running for the couple
func (o *Overrides) Set(coupleID string, m Mood, d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if prev, ok := o.active[coupleID]; ok {
		prev.timer.Stop()
	}
	o.gen++
	gen := o.gen
	entry := &override{mood: m, gen: gen}
	entry.timer = time.AfterFunc(d, func() { o.expire(coupleID, gen) })
	o.active[coupleID] = entry
}

// Trigger activates the reaction registered for ev
func (o *Overrides) Trigger(coupleID string, ev Event) (Mood, bool) {
	r, ok := Reactions[ev]
	if !ok {
		return "", false
	}
	o.Set(coupleID, r.Mood, r.Duration)
	return r.Mood, true
}

// Active returns the running override for the couple
func (o *Overrides) Active(coupleID string) (Mood, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	entry, ok := o.active[coupleID]
	if !ok {
		return "", false
	}
	return entry.mood, true
}

// Stop cancels every pending timer
func (o *Overrides) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, entry := range o.active {
		entry.timer.Stop()
		delete(o.active, id)
	}
}

func (o *Overrides) expire(coupleID string, gen uint64) {
	o.mu.Lock()
	entry, ok := o.active[coupleID]
	if !ok || entry.gen != gen {
		o.mu.Unlock()
		return
	}
	delete(o.active, coupleID)
	o.mu.Unlock()

	if o.onExpire != nil {
		o.onExpire(coupleID)
	}
}
