package sourcecache

import (
	"fmt"
	"sync"
	"time"

	"github.com/janekbaraniewski/aiusage/internal/core"
)

type State string

const (
	StateNoCache State = "no_cache"
	StateCached  State = "cached"
	StateStale   State = "stale"
	StateUnknown State = "unknown"
)

// LastKnownGood keeps the most recent successful records of one adapter and
// hands out degraded copies of them when a live fetch fails.
type LastKnownGood struct {
	mu       sync.Mutex
	records  []core.UsageRecord
	storedAt time.Time
	state    State
}

func NewLastKnownGood() *LastKnownGood {
	return &LastKnownGood{state: StateNoCache}
}

func (c *LastKnownGood) Store(records []core.UsageRecord, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = core.CloneRecords(records)
	c.storedAt = now
	c.state = StateCached
}

// Invalidate drops the cache after a fetch found no usable quota data.
func (c *LastKnownGood) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = nil
	c.storedAt = time.Time{}
	c.state = StateNoCache
}

func (c *LastKnownGood) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Fallback returns degraded copies of the cached records. With nothing cached
// it returns nil and StateNoCache. When every cached reset time has passed the
// numbers are dropped and the records say usage is unknown.
func (c *LastKnownGood) Fallback(now time.Time) ([]core.UsageRecord, State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.records) == 0 {
		return nil, StateNoCache
	}

	age := formatAge(now.Sub(c.storedAt))
	elapsed := allResetsElapsed(c.records, now)

	out := core.CloneRecords(c.records)
	for i := range out {
		r := &out[i]
		if elapsed {
			r.State = core.StateUnknown
			r.PercentageRemaining = 0
			r.AmountUsed = 0
			r.AmountAvailable = 0
			r.NextResetTime = nil
			r.Details = nil
			r.Description = fmt.Sprintf("Usage unknown (quota window reset, last refreshed %s ago)", age)
			continue
		}
		r.State = core.StateStale
		r.Description = fmt.Sprintf("%s (last refreshed %s ago)", r.Description, age)
	}

	if elapsed {
		c.state = StateUnknown
	} else {
		c.state = StateStale
	}
	return out, c.state
}

// allResetsElapsed is false when no record carries a reset time, because then
// nothing says the cached numbers expired.
func allResetsElapsed(records []core.UsageRecord, now time.Time) bool {
	seen := false
	for _, r := range records {
		for _, t := range r.ResetTimes() {
			seen = true
			if t.After(now) {
				return false
			}
		}
	}
	return seen
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "<1m"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}
