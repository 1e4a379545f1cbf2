// Package orchestrator sequences one user request through the full
// pipeline: intent classification, specialist dispatch, quality review,
// cross-verification, fact-checking, and background persistence. The
// stages run in a fixed linear order; per-intent skip rules decide
// which of them run at all.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/normanking/relay/internal/agents"
	"github.com/normanking/relay/internal/bus"
	"github.com/normanking/relay/internal/llm"
	"github.com/normanking/relay/internal/logging"
	"github.com/normanking/relay/internal/memory"
	"github.com/normanking/relay/internal/search"
)

// Stage names one pipeline state. Transitions are linear, never back.
type Stage string

const (
	StageReceived   Stage = "received"
	StageClassified Stage = "classified"
	StageDispatched Stage = "dispatched"
	StageReviewed   Stage = "reviewed"
	StageVerified   Stage = "verified"
	StagePersisted  Stage = "persisted"
	StageDone       Stage = "done"
)

// highStakesIntents get a second opinion from an opposing provider.
var highStakesIntents = map[agents.Intent]bool{
	agents.IntentWellness:   true,
	agents.IntentProtection: true,
	agents.IntentResearch:   true,
}

// lowRiskIntents skip the Critic and the Fact-Checker: deterministic
// or templated content.
var lowRiskIntents = map[agents.Intent]bool{
	agents.IntentGeneral: true,
	agents.IntentTool:    true,
}

const (
	memoryWindow   = 5
	persistTimeout = 10 * time.Second
)

// ExchangeStore is the persistence slice the pipeline consumes.
type ExchangeStore interface {
	AppendExchange(ctx context.Context, userID, userMessage, assistantMessage string, meta memory.Metadata) (string, error)
	RecentMessages(ctx context.Context, userID string, n int) ([]llm.Message, error)
}

// Request is one inbound query.
type Request struct {
	Message     string
	UserID      string
	History     []llm.Message // caller-supplied short-term context
	VerifyFacts bool
}

// Outcome is the finalized pipeline result. Reviewed is always true:
// the quality gate edits drafts, it never blocks them. Verified is true
// only when a verification stage actually ran and passed.
type Outcome struct {
	Response   string
	Intent     agents.Intent
	AgentUsed  string
	Provider   string
	Sources    []search.Result
	Reviewed   bool
	Verified   bool
	Confidence float64
}

// pipelineContext is the per-request scratch state. Created at entry,
// discarded at exit; the detached persistence task copies the fields it
// needs instead of holding the whole context.
type pipelineContext struct {
	stage    Stage
	memory   []llm.Message
	intent   agents.Intent
	agent    agents.Agent
	draft    agents.Result
	review   agents.Review
	verdict  agents.Verification
	factScan agents.FactCheck
}

func (pc *pipelineContext) advance(stage Stage) {
	pc.stage = stage
	log.Debug().Str("stage", string(stage)).Msg("pipeline transition")
}

// Config wires the orchestrator's collaborators.
type Config struct {
	Generator agents.Generator
	Gateway   agents.SearchGateway
	Providers agents.ProviderLister
	Store     ExchangeStore
	Events    *bus.Bus
}

// Orchestrator is the top-level coordinator.
type Orchestrator struct {
	gen        agents.Generator
	dispatcher *agents.Dispatcher
	critic     *agents.Critic
	verifier   *agents.CrossVerifier
	facts      *agents.FactChecker
	store      ExchangeStore
	events     *bus.Bus

	persistWG sync.WaitGroup
}

// New builds the pipeline around one generator.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		gen:        cfg.Generator,
		dispatcher: agents.NewDispatcher(cfg.Generator, cfg.Gateway),
		critic:     agents.NewCritic(cfg.Generator),
		verifier:   agents.NewCrossVerifier(cfg.Generator, cfg.Providers),
		facts:      agents.NewFactChecker(cfg.Generator, cfg.Gateway),
		store:      cfg.Store,
		events:     cfg.Events,
	}
}

// Process runs one request through the pipeline and returns the
// finalized outcome. It never returns an error: every internal failure
// has already been degraded to answer text by an earlier layer.
func (o *Orchestrator) Process(ctx context.Context, req Request) Outcome {
	started := time.Now()
	pc := &pipelineContext{}
	pc.advance(StageReceived)

	if o.store != nil && req.UserID != "" {
		mem, err := o.store.RecentMessages(ctx, req.UserID, memoryWindow)
		if err != nil {
			log.Warn().Err(err).Str("user", req.UserID).Msg("memory retrieval failed")
		} else {
			pc.memory = mem
		}
	}

	pc.intent = o.classify(ctx, req.Message)
	pc.advance(StageClassified)

	pc.agent = o.dispatcher.For(pc.intent)
	pc.draft = pc.agent.Handle(ctx, req.Message, &agents.Context{
		UserID:  req.UserID,
		Memory:  pc.memory,
		History: req.History,
	})
	pc.advance(StageDispatched)

	response := pc.draft.Text
	sources := pc.draft.Sources
	verified := false
	confidence := 1.0

	if !lowRiskIntents[pc.intent] {
		pc.review = o.critic.Review(ctx, req.Message, response, pc.intent, pc.draft.Success)
		response = pc.review.Text
	}
	pc.advance(StageReviewed)

	if highStakesIntents[pc.intent] {
		pc.verdict = o.verifier.Verify(ctx, req.Message, response, pc.draft.Provider)
		response = pc.verdict.Text
		verified = pc.verdict.Verified
	}

	if req.VerifyFacts && !lowRiskIntents[pc.intent] {
		pc.factScan = o.facts.Check(ctx, req.Message, response)
		response = pc.factScan.Text
		confidence = pc.factScan.Confidence
		verified = verified || pc.factScan.Verified
		sources = append(sources, pc.factScan.Sources...)
	}
	pc.advance(StageVerified)

	o.persist(ctx, req, pc.intent, pc.draft.Provider, response, verified, confidence)
	pc.advance(StagePersisted)

	pc.advance(StageDone)
	if o.events != nil {
		o.events.Publish(bus.Event{
			Type:         bus.EventPipelineDone,
			Intent:       string(pc.intent),
			Provider:     pc.draft.Provider,
			UsedFallback: pc.draft.UsedFallback,
			DurationMs:   time.Since(started).Milliseconds(),
		})
	}
	return Outcome{
		Response:   response,
		Intent:     pc.intent,
		AgentUsed:  pc.agent.Name(),
		Provider:   pc.draft.Provider,
		Sources:    sources,
		Reviewed:   true,
		Verified:   verified,
		Confidence: confidence,
	}
}

// persist schedules the exchange write as a detached task. The write
// outlives the request: its context survives caller cancellation, and
// failure is logged, never surfaced.
func (o *Orchestrator) persist(parent context.Context, req Request, intent agents.Intent, provider, response string, verified bool, confidence float64) {
	if o.store == nil || req.UserID == "" {
		return
	}

	o.persistWG.Add(1)
	go func() {
		defer o.persistWG.Done()

		ctx, cancel := logging.DetachContextWithTimeout(parent, persistTimeout)
		defer cancel()

		_, err := o.store.AppendExchange(ctx, req.UserID, req.Message, response, memory.Metadata{
			Intent:     string(intent),
			Provider:   provider,
			Verified:   verified,
			Confidence: confidence,
		})
		if err != nil {
			log.Error().Err(err).Str("user", req.UserID).Msg("exchange persistence failed")
		}
	}()
}

// Flush blocks until all detached persistence tasks finish. Intended
// for shutdown and tests.
func (o *Orchestrator) Flush() {
	o.persistWG.Wait()
}

// Agents lists the registered specialists for the status endpoint.
func (o *Orchestrator) Agents() []string {
	return o.dispatcher.Names()
}
