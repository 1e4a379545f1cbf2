package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/normanking/relay/internal/bus"
	"github.com/normanking/relay/internal/llm"
	"github.com/normanking/relay/internal/quota"
	"github.com/normanking/relay/internal/search"
)

// SearchGateway is the slice of the search package the router needs.
type SearchGateway interface {
	Search(ctx context.Context, query string, count int) search.Response
	Available() bool
}

// defaultCapabilityPriority maps each tier to its preferred providers,
// best first. Only configured providers are ever attempted.
var defaultCapabilityPriority = map[llm.Capability][]string{
	llm.CapFast:      {"groq", "gemini", "openrouter", "ollama"},
	llm.CapReasoning: {"gemini", "openrouter", "groq", "ollama"},
	llm.CapVision:    {"gemini", "openrouter", "ollama"},
	llm.CapCoding:    {"groq", "gemini", "openrouter", "ollama"},
	llm.CapGeneral:   {"gemini", "groq", "openrouter", "ollama"},
}

// defaultFallbackOrder is the global retry order, distinct from the
// per-capability primary order.
var defaultFallbackOrder = []string{"gemini", "groq", "openrouter", "ollama"}

// defaultCallTimeout bounds each individual provider attempt.
const defaultCallTimeout = 45 * time.Second

// Router routes inference requests across the registered providers.
type Router struct {
	registry *llm.Registry
	quota    *quota.Ledger
	gateway  SearchGateway
	events   *bus.Bus

	// quotaServices maps provider id to the quota service charged per
	// attempt. Providers absent from the map are not metered.
	quotaServices map[string]string

	capabilityPriority map[llm.Capability][]string
	fallbackOrder      []string
	callTimeout        time.Duration
}

// Option configures a Router.
type Option func(*Router)

// WithSearchGateway wires a search gateway for evidence splicing.
func WithSearchGateway(gw SearchGateway) Option {
	return func(r *Router) { r.gateway = gw }
}

// WithQuotaServices sets the provider-to-quota-service mapping.
func WithQuotaServices(m map[string]string) Option {
	return func(r *Router) { r.quotaServices = m }
}

// WithCallTimeout bounds each provider attempt.
func WithCallTimeout(d time.Duration) Option {
	return func(r *Router) { r.callTimeout = d }
}

// WithFallbackOrder overrides the global fallback order.
func WithFallbackOrder(order []string) Option {
	return func(r *Router) { r.fallbackOrder = order }
}

// WithEventBus publishes routing outcomes for observers such as the
// metrics collector.
func WithEventBus(b *bus.Bus) Option {
	return func(r *Router) { r.events = b }
}

// New creates a Router over the given registry and quota ledger.
func New(registry *llm.Registry, ledger *quota.Ledger, opts ...Option) *Router {
	r := &Router{
		registry:           registry,
		quota:              ledger,
		quotaServices:      map[string]string{},
		capabilityPriority: defaultCapabilityPriority,
		fallbackOrder:      defaultFallbackOrder,
		callTimeout:        defaultCallTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Generate produces an InferenceResult for req. It never returns a Go
// error: when every provider in the fallback chain fails, the result
// carries an apology text and Err is set for the caller to inspect.
func (r *Router) Generate(ctx context.Context, req *InferenceRequest) *InferenceResult {
	systemInstructions := req.SystemInstructions
	capability := req.Capability

	if capability == "" {
		c := Classify(req.Message)
		capability = c.Capability

		if c.SearchIndicated && r.gateway != nil {
			if block := r.searchEvidence(ctx, req.Message); block != "" {
				systemInstructions = spliceEvidence(systemInstructions, block)
			}
			// Synthesis over evidence is a reasoning-tier job.
			capability = llm.CapReasoning
		}
	}

	selected := req.ForceProvider
	if selected == "" {
		selected = r.selectProvider(capability)
	}
	if selected == "" {
		log.Error().Str("capability", string(capability)).Msg("no configured provider")
		return &InferenceResult{
			Text:         apologyText,
			Provider:     "none",
			Model:        "none",
			UsedFallback: true,
			Err:          fmt.Errorf("no configured provider for capability %q", capability),
		}
	}

	// Primary attempt, then exactly one attempt per remaining provider
	// in the global fallback order.
	chain := []string{selected}
	for _, id := range r.fallbackOrder {
		if id != selected {
			chain = append(chain, id)
		}
	}

	var lastErr error
	for _, id := range chain {
		provider := r.registry.Get(id)
		if provider == nil || !provider.Available() {
			continue
		}

		r.publish(bus.Event{Type: bus.EventProviderAttempt, Provider: id, Capability: string(capability)})
		started := time.Now()

		resp, err := r.attempt(ctx, provider, capability, req, systemInstructions)
		if err != nil {
			lastErr = err
			r.registry.MarkUnhealthy(id)
			r.publish(bus.Event{Type: bus.EventProviderFailure, Provider: id, Error: err.Error()})
			log.Warn().Err(err).Str("provider", id).Msg("provider attempt failed")
			continue
		}

		r.registry.MarkHealthy(id)
		r.publish(bus.Event{
			Type:       bus.EventProviderSuccess,
			Provider:   id,
			Model:      resp.Model,
			DurationMs: time.Since(started).Milliseconds(),
		})
		if id != selected {
			r.publish(bus.Event{Type: bus.EventFallbackUsed, Provider: id})
		}
		return &InferenceResult{
			Text:         resp.Content,
			Provider:     id,
			Model:        resp.Model,
			UsedFallback: id != selected,
		}
	}

	log.Error().Err(lastErr).Msg("all providers failed")
	return &InferenceResult{
		Text:         apologyText,
		Provider:     "none",
		Model:        "none",
		UsedFallback: true,
		Err:          fmt.Errorf("all providers failed: %w", lastErr),
	}
}

// attempt runs a single bounded provider call, charging the provider's
// quota service whether or not the call succeeds.
func (r *Router) attempt(ctx context.Context, provider llm.Provider, capability llm.Capability, req *InferenceRequest, systemInstructions string) (*llm.ChatResponse, error) {
	if service, ok := r.quotaServices[provider.Name()]; ok {
		if err := r.quota.RecordUse(service); err != nil {
			log.Warn().Err(err).Str("service", service).Msg("record provider usage")
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	model := ""
	if capability == llm.CapReasoning {
		if rm, ok := provider.(interface{ ReasoningModel() string }); ok {
			model = rm.ReasoningModel()
		}
	}

	messages := append([]llm.Message{}, req.History...)
	messages = append(messages, llm.Message{Role: "user", Content: req.Message})

	return provider.Chat(callCtx, &llm.ChatRequest{
		Model:        model,
		SystemPrompt: systemInstructions,
		Messages:     messages,
	})
}

// selectProvider returns the first configured provider in the
// capability's priority list.
func (r *Router) selectProvider(capability llm.Capability) string {
	order, ok := r.capabilityPriority[capability]
	if !ok {
		order = r.capabilityPriority[llm.CapGeneral]
	}
	for _, id := range order {
		if d, ok := r.registry.Describe(id); ok && d.Configured {
			return id
		}
	}
	return ""
}

// searchEvidence runs the gateway and renders the hits as a numbered
// evidence block. An empty string means nothing usable came back.
func (r *Router) searchEvidence(ctx context.Context, query string) string {
	resp := r.gateway.Search(ctx, query, 5)
	if !resp.Success || len(resp.Results) == 0 {
		return ""
	}

	var b strings.Builder
	for i, res := range resp.Results {
		fmt.Fprintf(&b, "%d. %s", i+1, res.Title)
		if res.URL != "" {
			fmt.Fprintf(&b, " (%s)", res.URL)
		}
		b.WriteString("\n")
		if res.Description != "" {
			fmt.Fprintf(&b, "   %s\n", res.Description)
		}
	}
	return b.String()
}

// spliceEvidence appends the labeled evidence block to the system
// instructions.
func spliceEvidence(systemInstructions, block string) string {
	labeled := "WEB SEARCH EVIDENCE (ground your answer in these results and cite them where relevant):\n" + block
	if systemInstructions == "" {
		return labeled
	}
	return systemInstructions + "\n\n" + labeled
}

// Status reports the registry descriptors for the status endpoint.
func (r *Router) Status() []llm.Descriptor {
	return r.registry.Descriptors()
}

// Registry exposes the underlying provider registry.
func (r *Router) Registry() *llm.Registry {
	return r.registry
}

func (r *Router) publish(ev bus.Event) {
	if r.events != nil {
		r.events.Publish(ev)
	}
}
