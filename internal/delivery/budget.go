package delivery

import (
	"sync"
	"time"
)

// Budget tracks the social channel's local posting allowance across rolling
// hour and day windows. The external free-tier quota is far smaller than
// ingestion volume, so the worker, not the sink, is the rate-limiting control
// point. State is explicit and the clock injectable so tests can simulate
// time and run workers in isolation.
type Budget struct {
	mu        sync.Mutex
	perHour   int
	perDay    int
	hourStart time.Time
	dayStart  time.Time
	hourCount int
	dayCount  int
	now       func() time.Time
}

// NewBudget builds a tracker; a non-positive limit means that window is
// unlimited. now may be nil (defaults to time.Now).
func NewBudget(perHour, perDay int, now func() time.Time) *Budget {
	if now == nil {
		now = time.Now
	}
	t := now()
	return &Budget{
		perHour:   perHour,
		perDay:    perDay,
		hourStart: t,
		dayStart:  t,
		now:       now,
	}
}

// Allow reports whether another post fits inside both windows.
func (b *Budget) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roll()

	if b.perHour > 0 && b.hourCount >= b.perHour {
		return false
	}
	if b.perDay > 0 && b.dayCount >= b.perDay {
		return false
	}
	return true
}

// Record notes one successful post against both windows.
func (b *Budget) Record() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roll()
	b.hourCount++
	b.dayCount++
}

// ExhaustHour burns the remaining hourly allowance. Called when the sink
// itself reports rate limiting, so the worker backs off for the rest of the
// window instead of hammering a quota that is already gone.
func (b *Budget) ExhaustHour() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roll()
	if b.perHour > 0 {
		b.hourCount = b.perHour
	}
}

func (b *Budget) roll() {
	t := b.now()
	if t.Sub(b.hourStart) >= time.Hour {
		b.hourStart = t
		b.hourCount = 0
	}
	if t.Sub(b.dayStart) >= 24*time.Hour {
		b.dayStart = t
		b.dayCount = 0
	}
}
