// Package quota tracks monthly API usage against per-service limits.
// Counters reset lazily: a counter read in a new calendar month starts
// from zero, and old months are never carried forward.
package quota

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrExhausted signals that a service has no remaining quota. Callers use
// it as a routing signal to move down the fallback chain, never as a
// hard failure.
var ErrExhausted = errors.New("quota exhausted")

// Unlimited marks a service with no monthly cap.
const Unlimited = -1

// DefaultLimits returns the monthly caps for the free search tiers.
func DefaultLimits() map[string]int {
	return map[string]int{
		"brave":  2000,
		"tavily": 100,
	}
}

// Counter is one service's usage within one period.
type Counter struct {
	Service string `json:"service"`
	Period  string `json:"period"`
	Used    int    `json:"used"`
	Limit   int    `json:"limit"`
}

// ServiceStatus is the status-endpoint view of one service.
type ServiceStatus struct {
	Used      int  `json:"used"`
	Limit     int  `json:"limit"`
	Remaining int  `json:"remaining"`
	Exceeded  bool `json:"exceeded"`
}

// Snapshot is the full quota state for the current period.
type Snapshot struct {
	Period   string                   `json:"period"`
	Services map[string]ServiceStatus `json:"services"`
}

// Ledger serializes quota checks and increments over a Store. The clock
// is injectable so month rollover is testable.
type Ledger struct {
	mu     sync.Mutex
	store  Store
	limits map[string]int
	now    func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// NewLedger creates a ledger over store. Services absent from limits are
// unlimited but still counted.
func NewLedger(store Store, limits map[string]int, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		limits: limits,
		now:    time.Now,
	}
	if l.limits == nil {
		l.limits = DefaultLimits()
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// period is the month key counters are scoped to.
func (l *Ledger) period() string {
	return l.now().Format("2006-01")
}

func (l *Ledger) limit(service string) int {
	if lim, ok := l.limits[service]; ok {
		return lim
	}
	return Unlimited
}

// CanUse reports whether service has remaining quota this month.
func (l *Ledger) CanUse(service string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.canUseLocked(service)
}

func (l *Ledger) canUseLocked(service string) bool {
	lim := l.limit(service)
	if lim == Unlimited {
		return true
	}
	used, err := l.store.Get(service, l.period())
	if err != nil {
		// An unreadable store should not block every request.
		return true
	}
	return used < lim
}

// RecordUse charges one unit against service. The increment is persisted
// before RecordUse returns. Charging past the limit is allowed; CanUse is
// the gate, RecordUse is the meter.
func (l *Ledger) RecordUse(service string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	period := l.period()
	used, err := l.store.Get(service, period)
	if err != nil {
		return fmt.Errorf("quota read %s: %w", service, err)
	}
	if err := l.store.Set(service, period, used+1); err != nil {
		return fmt.Errorf("quota write %s: %w", service, err)
	}
	return nil
}

// Remaining returns the unused quota for service, or Unlimited.
func (l *Ledger) Remaining(service string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim := l.limit(service)
	if lim == Unlimited {
		return Unlimited
	}
	used, err := l.store.Get(service, l.period())
	if err != nil {
		return lim
	}
	if used >= lim {
		return 0
	}
	return lim - used
}

// Counter returns the full counter for service in the current period.
func (l *Ledger) Counter(service string) Counter {
	l.mu.Lock()
	defer l.mu.Unlock()

	period := l.period()
	used, _ := l.store.Get(service, period)
	return Counter{
		Service: service,
		Period:  period,
		Used:    used,
		Limit:   l.limit(service),
	}
}

// Status returns the snapshot served by the status endpoint. Only limited
// services appear; unlimited counters are reported by their own callers.
func (l *Ledger) Status() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	period := l.period()
	snap := Snapshot{
		Period:   period,
		Services: make(map[string]ServiceStatus, len(l.limits)),
	}
	for service, lim := range l.limits {
		used, _ := l.store.Get(service, period)
		remaining := lim - used
		if remaining < 0 {
			remaining = 0
		}
		snap.Services[service] = ServiceStatus{
			Used:      used,
			Limit:     lim,
			Remaining: remaining,
			Exceeded:  used >= lim,
		}
	}
	return snap
}
