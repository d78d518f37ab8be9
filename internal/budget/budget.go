// Package budget enforces per-run and daily spend limits.
package budget

import (
	"errors"
	"sync"
	"time"
)

// ErrBudgetExceeded indicates a commit would push spend past the run
// limit or the daily cap. The ledger is left unchanged.
var ErrBudgetExceeded = errors.New("budget exceeded")

// DailyCounter is the process-wide daily spend total. The counter resets
// lazily at each UTC day change: the boundary is checked on access, not
// by a background timer. A single counter is shared by all runs and must
// be injected into each Ledger at construction.
type DailyCounter struct {
	mu    sync.Mutex
	cap   float64
	spent float64
	day   string
	now   func() time.Time
}

// NewDailyCounter creates a daily counter with the given cap in EUR.
// A cap of zero or less means unlimited.
func NewDailyCounter(cap float64) *DailyCounter {
	return &DailyCounter{cap: cap, now: time.Now}
}

// SetClock overrides the counter's clock. Used in tests to cross the
// UTC midnight boundary deterministically.
func (c *DailyCounter) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now != nil {
		c.now = now
	}
}

// resetIfStaleLocked zeroes the counter when the UTC day has changed
// since the last access. Caller must hold c.mu.
func (c *DailyCounter) resetIfStaleLocked() {
	today := c.now().UTC().Format("2006-01-02")
	if c.day != today {
		c.day = today
		c.spent = 0
	}
}

// Remaining returns the spend still available today, or a negative
// value when the cap is unlimited.
func (c *DailyCounter) Remaining() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetIfStaleLocked()
	if c.cap <= 0 {
		return -1
	}
	return c.cap - c.spent
}

// Spent returns today's committed spend.
func (c *DailyCounter) Spent() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetIfStaleLocked()
	return c.spent
}

// fits reports whether amount fits under the cap without mutating.
func (c *DailyCounter) fits(amount float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetIfStaleLocked()
	return c.cap <= 0 || c.spent+amount <= c.cap
}

// tryAdd atomically adds amount when it fits under the cap. Returns
// false, leaving the counter unchanged, when it does not.
func (c *DailyCounter) tryAdd(amount float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetIfStaleLocked()
	if c.cap > 0 && c.spent+amount > c.cap {
		return false
	}
	c.spent += amount
	return true
}

// Ledger tracks committed cost for one run against the run's budget
// limit and the shared daily counter.
type Ledger struct {
	mu        sync.Mutex
	limit     float64
	spent     float64
	daily     *DailyCounter
	committed map[string]float64
}

// NewLedger creates a ledger for one run. A limit of zero or less means
// the run is bounded only by the daily cap.
func NewLedger(limit float64, daily *DailyCounter) *Ledger {
	return &Ledger{
		limit:     limit,
		daily:     daily,
		committed: make(map[string]float64),
	}
}

// Reserve is an optimistic pre-check: it reports whether amount fits
// under both the remaining run budget and the remaining daily cap. It
// never mutates state.
func (l *Ledger) Reserve(amount float64) bool {
	if amount < 0 {
		amount = 0
	}
	l.mu.Lock()
	fits := l.limit <= 0 || l.spent+amount <= l.limit
	l.mu.Unlock()
	if !fits {
		return false
	}
	return l.daily.fits(amount)
}

// Commit atomically deducts the actual cost from both the run-scoped
// and day-scoped counters. Commits are idempotent per task ID: a second
// commit for the same task is a no-op, guarding against duplicate
// completion signals. Returns ErrBudgetExceeded, leaving all counters
// unchanged, when the cost does not fit.
func (l *Ledger) Commit(taskID string, cost float64) error {
	if cost < 0 {
		cost = 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, done := l.committed[taskID]; done {
		return nil
	}
	if l.limit > 0 && l.spent+cost > l.limit {
		return ErrBudgetExceeded
	}
	if !l.daily.tryAdd(cost) {
		return ErrBudgetExceeded
	}

	l.spent += cost
	l.committed[taskID] = cost
	return nil
}

// Spent returns the total committed cost for the run.
func (l *Ledger) Spent() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.spent
}

// Remaining returns the run budget still available, or a negative value
// when the run limit is unlimited.
func (l *Ledger) Remaining() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.limit <= 0 {
		return -1
	}
	return l.limit - l.spent
}

// Limit returns the run budget limit.
func (l *Ledger) Limit() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limit
}

// DailyRemaining returns the spend still available today under the
// shared daily cap.
func (l *Ledger) DailyRemaining() float64 {
	return l.daily.Remaining()
}
