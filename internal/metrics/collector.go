// Package metrics aggregates pipeline events into per-provider
// statistics for the metrics endpoint.
package metrics

import (
	"sync"
	"time"

	"github.com/normanking/relay/internal/bus"
)

// ProviderStats accumulates routing outcomes for one provider.
type ProviderStats struct {
	Attempts       int   `json:"attempts"`
	Successes      int   `json:"successes"`
	Failures       int   `json:"failures"`
	TotalLatencyMs int64 `json:"total_latency_ms"`
}

// AvgLatencyMs is the mean successful-call latency.
func (p ProviderStats) AvgLatencyMs() int64 {
	if p.Successes == 0 {
		return 0
	}
	return p.TotalLatencyMs / int64(p.Successes)
}

// Snapshot is a point-in-time view of the collected metrics.
type Snapshot struct {
	StartedAt    time.Time                `json:"started_at"`
	Requests     int                      `json:"requests"`
	Fallbacks    int                      `json:"fallbacks"`
	SearchTiers  map[string]int           `json:"search_tiers,omitempty"`
	Intents      map[string]int           `json:"intents,omitempty"`
	Providers    map[string]ProviderStats `json:"providers,omitempty"`
	AvgLatencyMs map[string]int64         `json:"avg_latency_ms,omitempty"`
}

// Collector subscribes to the event bus and aggregates statistics.
type Collector struct {
	mu          sync.Mutex
	startedAt   time.Time
	requests    int
	fallbacks   int
	searchTiers map[string]int
	intents     map[string]int
	providers   map[string]*ProviderStats

	subs []bus.SubscriptionID
	bus  *bus.Bus
}

// NewCollector creates a collector attached to eventBus. A nil bus
// yields an inert collector.
func NewCollector(eventBus *bus.Bus) *Collector {
	c := &Collector{
		startedAt:   time.Now(),
		searchTiers: make(map[string]int),
		intents:     make(map[string]int),
		providers:   make(map[string]*ProviderStats),
		bus:         eventBus,
	}
	if eventBus == nil {
		return c
	}

	for _, et := range []bus.EventType{
		bus.EventProviderAttempt,
		bus.EventProviderSuccess,
		bus.EventProviderFailure,
		bus.EventFallbackUsed,
		bus.EventSearchTier,
		bus.EventPipelineDone,
	} {
		c.subs = append(c.subs, eventBus.Subscribe(et, c.handle))
	}
	return c
}

func (c *Collector) handle(e bus.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e.Type {
	case bus.EventProviderAttempt:
		c.provider(e.Provider).Attempts++
	case bus.EventProviderSuccess:
		p := c.provider(e.Provider)
		p.Successes++
		p.TotalLatencyMs += e.DurationMs
	case bus.EventProviderFailure:
		c.provider(e.Provider).Failures++
	case bus.EventFallbackUsed:
		c.fallbacks++
	case bus.EventSearchTier:
		c.searchTiers[e.Tier]++
	case bus.EventPipelineDone:
		c.requests++
		if e.Intent != "" {
			c.intents[e.Intent]++
		}
	}
}

func (c *Collector) provider(name string) *ProviderStats {
	if name == "" {
		name = "unknown"
	}
	p, ok := c.providers[name]
	if !ok {
		p = &ProviderStats{}
		c.providers[name] = p
	}
	return p
}

// Snapshot returns a copy of the current statistics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		StartedAt:    c.startedAt,
		Requests:     c.requests,
		Fallbacks:    c.fallbacks,
		SearchTiers:  make(map[string]int, len(c.searchTiers)),
		Intents:      make(map[string]int, len(c.intents)),
		Providers:    make(map[string]ProviderStats, len(c.providers)),
		AvgLatencyMs: make(map[string]int64, len(c.providers)),
	}
	for k, v := range c.searchTiers {
		snap.SearchTiers[k] = v
	}
	for k, v := range c.intents {
		snap.Intents[k] = v
	}
	for k, v := range c.providers {
		snap.Providers[k] = *v
		snap.AvgLatencyMs[k] = v.AvgLatencyMs()
	}
	return snap
}

// Stop detaches the collector from the bus.
func (c *Collector) Stop() {
	if c.bus == nil {
		return
	}
	for _, id := range c.subs {
		c.bus.Unsubscribe(id)
	}
	c.subs = nil
}
