package delivery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock advances only when the test says so.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestBudgetHourlyLimit(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: factoryNow}
	budget := NewBudget(1, 2, clock.now)

	assert.True(t, budget.Allow())
	budget.Record()
	assert.False(t, budget.Allow(), "hourly limit of 1 reached")

	clock.advance(time.Hour)
	assert.True(t, budget.Allow(), "hour window rolled")
}

func TestBudgetDailyLimit(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: factoryNow}
	budget := NewBudget(1, 2, clock.now)

	budget.Record()
	clock.advance(time.Hour)
	budget.Record()
	clock.advance(time.Hour)
	assert.False(t, budget.Allow(), "daily limit of 2 reached even with hour budget left")

	clock.advance(23 * time.Hour)
	assert.True(t, budget.Allow(), "day window rolled")
}

func TestBudgetExhaustHour(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: factoryNow}
	budget := NewBudget(3, 10, clock.now)

	assert.True(t, budget.Allow())
	budget.ExhaustHour()
	assert.False(t, budget.Allow(), "remaining hourly allowance burned")

	clock.advance(time.Hour)
	assert.True(t, budget.Allow())
}

func TestBudgetUnlimitedWindows(t *testing.T) {
	t.Parallel()

	budget := NewBudget(0, 0, func() time.Time { return factoryNow })
	for i := 0; i < 50; i++ {
		assert.True(t, budget.Allow())
		budget.Record()
	}
}
