package health

import (
	"sync"
	"time"

	"sigfuse/internal/logger"
)

type State int

const (
	StateHealthy State = iota
	StateDegraded
	StateDown
)

func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateDown:
		return "down"
	default:
		return "unknown"
	}
}

// Options tunes the per-provider state machine. FailureThreshold is the number
// of consecutive failures before a provider is marked down; Cooldown is how
// long a down provider is skipped before a single probe is allowed.
type Options struct {
	FailureThreshold int
	Cooldown         time.Duration
}

func (o Options) withDefaults() Options {
	if o.FailureThreshold <= 0 {
		o.FailureThreshold = 3
	}
	if o.Cooldown <= 0 {
		o.Cooldown = 5 * time.Minute
	}
	return o
}

type entry struct {
	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	lastSuccess         time.Time
	lastFailure         time.Time
	probing             bool
}

// ProviderHealth is a read-only snapshot of one provider's state.
type ProviderHealth struct {
	Provider            string
	State               State
	ConsecutiveFailures int
	LastSuccess         time.Time
	LastFailure         time.Time
}

// Tracker keeps one state machine per provider id. Entries carry their own
// mutex so concurrent updates to unrelated providers never serialize; the
// outer lock only guards map growth. State is process-wide and in-memory: a
// restart resets everything, which only costs fallback ordering, not
// correctness.
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]*entry
	opts    Options
	clock   func() time.Time
}

func NewTracker(opts Options) *Tracker {
	return &Tracker{
		entries: make(map[string]*entry),
		opts:    opts.withDefaults(),
		clock:   time.Now,
	}
}

// SetClock injects a clock for tests.
func (t *Tracker) SetClock(clock func() time.Time) {
	if clock != nil {
		t.clock = clock
	}
}

func (t *Tracker) entryFor(id string) *entry {
	t.mu.RLock()
	e, ok := t.entries[id]
	t.mu.RUnlock()
	if ok {
		return e
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok = t.entries[id]; ok {
		return e
	}
	e = &entry{state: StateHealthy}
	t.entries[id] = e
	return e
}

// Eligible reports whether a provider should be dispatched to. Down providers
// are skipped until the cooldown elapses, after which exactly one probe is let
// through; the probe's outcome (recorded via RecordSuccess/RecordFailure)
// decides what happens next.
func (t *Tracker) Eligible(id string) bool {
	e := t.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateDown {
		return true
	}
	if e.probing {
		return false
	}
	if t.clock().Sub(e.lastFailure) >= t.opts.Cooldown {
		e.probing = true
		return true
	}
	return false
}

// State returns the current state without mutating anything.
func (t *Tracker) State(id string) State {
	e := t.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// RecordSuccess fully resets the provider to healthy. A single success is
// enough; there is no gradual recovery at this request volume.
func (t *Tracker) RecordSuccess(id string) {
	e := t.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.state
	e.state = StateHealthy
	e.consecutiveFailures = 0
	e.lastSuccess = t.clock()
	e.probing = false
	if prev != StateHealthy {
		logger.Infof("provider %s recovered: %s -> healthy", id, prev)
	}
}

// RecordFailure increments the consecutive-failure count and transitions
// healthy -> degraded -> down as the threshold is crossed.
func (t *Tracker) RecordFailure(id string) {
	e := t.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.consecutiveFailures++
	e.lastFailure = t.clock()
	e.probing = false

	prev := e.state
	switch {
	case e.consecutiveFailures >= t.opts.FailureThreshold:
		e.state = StateDown
	case e.consecutiveFailures >= 1:
		if e.state == StateHealthy {
			e.state = StateDegraded
		}
	}
	if e.state != prev {
		logger.Warnf("provider %s state change: %s -> %s (failures=%d/%d)",
			id, prev, e.state, e.consecutiveFailures, t.opts.FailureThreshold)
	}
}

// Snapshot returns the current health of every tracked provider.
func (t *Tracker) Snapshot() []ProviderHealth {
	t.mu.RLock()
	ids := make([]string, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	t.mu.RUnlock()

	out := make([]ProviderHealth, 0, len(ids))
	for _, id := range ids {
		e := t.entryFor(id)
		e.mu.Lock()
		out = append(out, ProviderHealth{
			Provider:            id,
			State:               e.state,
			ConsecutiveFailures: e.consecutiveFailures,
			LastSuccess:         e.lastSuccess,
			LastFailure:         e.lastFailure,
		})
		e.mu.Unlock()
	}
	return out
}
