package llm

import (
	"sort"
	"sync"
)

// Capability describes what class of request a provider handles well.
type Capability string

const (
	CapFast      Capability = "fast"
	CapReasoning Capability = "reasoning"
	CapVision    Capability = "vision"
	CapCoding    Capability = "coding"
	CapGeneral   Capability = "general"
)

// Descriptor is the registry's view of one provider: identity, preference
// rank, declared capabilities, and advisory health. Health never gates
// routing; it only informs the status endpoint and logs.
type Descriptor struct {
	ID           string              `json:"id"`
	Rank         int                 `json:"rank"`
	Capabilities map[Capability]bool `json:"capabilities"`
	Configured   bool                `json:"configured"`
	Healthy      bool                `json:"healthy"`
}

// entry pairs a descriptor with its live provider.
type entry struct {
	desc     Descriptor
	provider Provider
}

// Registry holds the configured providers and their descriptors.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
	}
}

// Register adds a provider with its rank and capabilities. Configured is
// read from the provider itself; health starts optimistic.
func (r *Registry) Register(p Provider, rank int, caps ...Capability) {
	capSet := make(map[Capability]bool, len(caps))
	for _, c := range caps {
		capSet[c] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[p.Name()] = &entry{
		desc: Descriptor{
			ID:           p.Name(),
			Rank:         rank,
			Capabilities: capSet,
			Configured:   p.Available(),
			Healthy:      true,
		},
		provider: p,
	}
}

// Get returns the provider for an id, or nil if absent.
func (r *Registry) Get(id string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[id]; ok {
		return e.provider
	}
	return nil
}

// Describe returns the descriptor for an id.
func (r *Registry) Describe(id string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return Descriptor{}, false
	}
	return e.desc, true
}

// Descriptors returns all descriptors sorted by rank.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}

// Configured returns the ids of providers that report themselves usable,
// sorted by rank.
func (r *Registry) Configured() []string {
	var ids []string
	for _, d := range r.Descriptors() {
		if d.Configured {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

// MarkHealthy records a successful call against a provider.
func (r *Registry) MarkHealthy(id string) {
	r.setHealth(id, true)
}

// MarkUnhealthy records a failed call against a provider.
func (r *Registry) MarkUnhealthy(id string) {
	r.setHealth(id, false)
}

func (r *Registry) setHealth(id string, healthy bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.desc.Healthy = healthy
	}
}
