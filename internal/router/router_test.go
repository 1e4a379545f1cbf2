package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/relay/internal/bus"
	"github.com/normanking/relay/internal/llm"
	"github.com/normanking/relay/internal/quota"
	"github.com/normanking/relay/internal/search"
)

type fakeProvider struct {
	name    string
	content string
	err     error
	calls   int
	lastReq *llm.ChatRequest
}

func (f *fakeProvider) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Content: f.content, Model: f.name + "-model"}, nil
}

func (f *fakeProvider) Name() string    { return f.name }
func (f *fakeProvider) Available() bool { return true }

type fakeGateway struct {
	resp      search.Response
	available bool
	calls     int
}

func (f *fakeGateway) Search(ctx context.Context, query string, count int) search.Response {
	f.calls++
	return f.resp
}

func (f *fakeGateway) Available() bool { return f.available }

func testLedger() *quota.Ledger {
	return quota.NewLedger(quota.NewMemoryStore(), nil,
		quota.WithClock(func() time.Time {
			return time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
		}))
}

func newTestRouter(t *testing.T, providers []*fakeProvider, opts ...Option) (*Router, *quota.Ledger) {
	t.Helper()
	reg := llm.NewRegistry()
	var order []string
	for i, p := range providers {
		reg.Register(p, i+1, llm.CapGeneral, llm.CapReasoning, llm.CapFast)
		order = append(order, p.name)
	}
	ledger := testLedger()
	opts = append(opts, WithFallbackOrder(order))
	r := New(reg, ledger, opts...)
	// Primary selection should follow registration order in tests.
	r.capabilityPriority = map[llm.Capability][]string{
		llm.CapGeneral:   order,
		llm.CapReasoning: order,
		llm.CapFast:      order,
		llm.CapVision:    order,
	}
	return r, ledger
}

func TestGeneratePrimarySucceeds(t *testing.T) {
	a := &fakeProvider{name: "alpha", content: "hi"}
	b := &fakeProvider{name: "beta", content: "unused"}
	r, _ := newTestRouter(t, []*fakeProvider{a, b})

	res := r.Generate(context.Background(), &InferenceRequest{Message: "tell me about turtles"})

	require.NoError(t, res.Err)
	assert.Equal(t, "hi", res.Text)
	assert.Equal(t, "alpha", res.Provider)
	assert.False(t, res.UsedFallback)
	assert.Equal(t, 0, b.calls)
}

func TestGenerateFallsBack(t *testing.T) {
	a := &fakeProvider{name: "alpha", err: errors.New("rate limited")}
	b := &fakeProvider{name: "beta", content: "rescued"}
	r, _ := newTestRouter(t, []*fakeProvider{a, b})

	res := r.Generate(context.Background(), &InferenceRequest{Message: "tell me about turtles"})

	require.NoError(t, res.Err)
	assert.Equal(t, "rescued", res.Text)
	assert.Equal(t, "beta", res.Provider)
	assert.True(t, res.UsedFallback)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestGenerateAllFail(t *testing.T) {
	a := &fakeProvider{name: "alpha", err: errors.New("down")}
	b := &fakeProvider{name: "beta", err: errors.New("also down")}
	r, _ := newTestRouter(t, []*fakeProvider{a, b})

	res := r.Generate(context.Background(), &InferenceRequest{Message: "anything"})

	// Never a Go error to the caller; the apology carries the error.
	require.NotNil(t, res)
	assert.Error(t, res.Err)
	assert.Equal(t, apologyText, res.Text)
	assert.Equal(t, "none", res.Provider)
	assert.True(t, res.UsedFallback)
	// Exactly one attempt per provider in the chain.
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestGenerateChargesQuotaPerAttempt(t *testing.T) {
	a := &fakeProvider{name: "alpha", err: errors.New("down")}
	b := &fakeProvider{name: "beta", content: "ok"}
	r, ledger := newTestRouter(t, []*fakeProvider{a, b},
		WithQuotaServices(map[string]string{"alpha": "alpha-api", "beta": "beta-api"}))

	r.Generate(context.Background(), &InferenceRequest{Message: "anything"})

	// Failed attempts are charged just like successful ones.
	assert.Equal(t, 1, ledger.Counter("alpha-api").Used)
	assert.Equal(t, 1, ledger.Counter("beta-api").Used)
}

func TestGenerateForceProvider(t *testing.T) {
	a := &fakeProvider{name: "alpha", content: "from alpha"}
	b := &fakeProvider{name: "beta", content: "from beta"}
	r, _ := newTestRouter(t, []*fakeProvider{a, b})

	res := r.Generate(context.Background(), &InferenceRequest{
		Message:       "anything",
		ForceProvider: "beta",
	})

	assert.Equal(t, "beta", res.Provider)
	assert.False(t, res.UsedFallback)
	assert.Equal(t, 0, a.calls)
}

func TestGenerateForceProviderFallsBack(t *testing.T) {
	a := &fakeProvider{name: "alpha", content: "from alpha"}
	b := &fakeProvider{name: "beta", err: errors.New("down")}
	r, _ := newTestRouter(t, []*fakeProvider{a, b})

	res := r.Generate(context.Background(), &InferenceRequest{
		Message:       "anything",
		ForceProvider: "beta",
	})

	// A forced provider pins only the first attempt; on failure the
	// chain continues through the remaining providers.
	require.NoError(t, res.Err)
	assert.Equal(t, "alpha", res.Provider)
	assert.True(t, res.UsedFallback)
	assert.Equal(t, 1, b.calls)
}

func TestGenerateSearchSplice(t *testing.T) {
	a := &fakeProvider{name: "alpha", content: "grounded answer"}
	gw := &fakeGateway{
		available: true,
		resp: search.Response{
			Success: true,
			Results: []search.Result{
				{Title: "Go 1.25 released", URL: "https://go.dev/blog", Description: "release notes"},
			},
		},
	}
	r, _ := newTestRouter(t, []*fakeProvider{a}, WithSearchGateway(gw))

	res := r.Generate(context.Background(), &InferenceRequest{
		Message:            "what is the latest go release",
		SystemInstructions: "You are terse.",
	})

	require.NoError(t, res.Err)
	assert.Equal(t, 1, gw.calls)
	require.NotNil(t, a.lastReq)
	assert.Contains(t, a.lastReq.SystemPrompt, "You are terse.")
	assert.Contains(t, a.lastReq.SystemPrompt, "WEB SEARCH EVIDENCE")
	assert.Contains(t, a.lastReq.SystemPrompt, "Go 1.25 released")
}

func TestGenerateCapabilityHintSkipsSearch(t *testing.T) {
	a := &fakeProvider{name: "alpha", content: "ok"}
	gw := &fakeGateway{available: true}
	r, _ := newTestRouter(t, []*fakeProvider{a}, WithSearchGateway(gw))

	// An explicit capability pins the tier and bypasses classification.
	r.Generate(context.Background(), &InferenceRequest{
		Message:    "what is the latest go release",
		Capability: llm.CapFast,
	})

	assert.Equal(t, 0, gw.calls)
}

func TestGenerateHistoryPrecedesMessage(t *testing.T) {
	a := &fakeProvider{name: "alpha", content: "ok"}
	r, _ := newTestRouter(t, []*fakeProvider{a})

	r.Generate(context.Background(), &InferenceRequest{
		Message: "and now?",
		History: []llm.Message{
			{Role: "user", Content: "earlier question"},
			{Role: "assistant", Content: "earlier answer"},
		},
	})

	require.NotNil(t, a.lastReq)
	require.Len(t, a.lastReq.Messages, 3)
	assert.Equal(t, "earlier question", a.lastReq.Messages[0].Content)
	assert.Equal(t, "and now?", a.lastReq.Messages[2].Content)
}

func TestGeneratePublishesEvents(t *testing.T) {
	a := &fakeProvider{name: "alpha", err: errors.New("rate limited")}
	b := &fakeProvider{name: "beta", content: "rescued"}
	events := bus.NewWithHistory(50)
	r, _ := newTestRouter(t, []*fakeProvider{a, b}, WithEventBus(events))

	r.Generate(context.Background(), &InferenceRequest{Message: "anything"})

	var types []bus.EventType
	for _, ev := range events.History() {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []bus.EventType{
		bus.EventProviderAttempt,
		bus.EventProviderFailure,
		bus.EventProviderAttempt,
		bus.EventProviderSuccess,
		bus.EventFallbackUsed,
	}, types)

	failure := events.History()[1]
	assert.Equal(t, "alpha", failure.Provider)
	assert.Contains(t, failure.Error, "rate limited")

	fallback := events.History()[4]
	assert.Equal(t, "beta", fallback.Provider)
}

func TestGenerateNoConfiguredProviders(t *testing.T) {
	r := New(llm.NewRegistry(), testLedger())

	res := r.Generate(context.Background(), &InferenceRequest{Message: "hello"})

	assert.Error(t, res.Err)
	assert.Equal(t, apologyText, res.Text)
	assert.Equal(t, "none", res.Provider)
}
