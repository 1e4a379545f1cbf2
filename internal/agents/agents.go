// Package agents holds the intent specialists and the quality gate that
// reviews their drafts. A specialist turns one user message into a draft
// answer; it never calls the quality gate itself and never returns a raw
// error: failures become a human-readable message with Success false.
package agents

import (
	"context"
	"sort"

	"github.com/normanking/relay/internal/llm"
	"github.com/normanking/relay/internal/router"
	"github.com/normanking/relay/internal/search"
)

// Intent labels the classified purpose of a user message.
type Intent string

const (
	IntentGeneral    Intent = "general"
	IntentWellness   Intent = "wellness"
	IntentProtection Intent = "protection"
	IntentTool       Intent = "tool"
	IntentSearch     Intent = "search"
	IntentResearch   Intent = "research"
	IntentAnalysis   Intent = "analysis"
)

// ValidIntents is the closed set an intent classifier may produce.
var ValidIntents = map[Intent]bool{
	IntentGeneral:    true,
	IntentWellness:   true,
	IntentProtection: true,
	IntentTool:       true,
	IntentSearch:     true,
	IntentResearch:   true,
	IntentAnalysis:   true,
}

// Context carries the per-request state a specialist may use.
type Context struct {
	UserID  string
	Memory  []llm.Message // retrieved long-term history
	History []llm.Message // short-term conversation
}

// Result is a specialist's draft. Sources are present only when web
// evidence backed the draft.
type Result struct {
	Text         string
	Success      bool
	Provider     string
	UsedFallback bool
	Sources      []search.Result
}

// Generator is the slice of the model router that agents consume.
type Generator interface {
	Generate(ctx context.Context, req *router.InferenceRequest) *router.InferenceResult
}

// Agent produces a draft answer for one message.
type Agent interface {
	Name() string
	Intent() Intent
	Handle(ctx context.Context, message string, pc *Context) Result
}

// Dispatcher maps intents to specialists. Unknown intents resolve to the
// general agent.
type Dispatcher struct {
	agents  map[Intent]Agent
	general Agent
}

// NewDispatcher builds the static intent-to-specialist table.
func NewDispatcher(gen Generator, gateway SearchGateway) *Dispatcher {
	general := newPromptAgent("General Assistant", IntentGeneral, generalPrompt, llm.CapFast, gen)
	d := &Dispatcher{
		general: general,
		agents: map[Intent]Agent{
			IntentGeneral:    general,
			IntentWellness:   newPromptAgent("Wellness Expert", IntentWellness, wellnessPrompt, llm.CapGeneral, gen),
			IntentProtection: newPromptAgent("Health Protection Guide", IntentProtection, protectionPrompt, llm.CapGeneral, gen),
			IntentAnalysis:   newPromptAgent("Data Analyst", IntentAnalysis, analystPrompt, llm.CapReasoning, gen),
			IntentTool:       NewToolAgent(gen),
			IntentSearch:     NewSearchAgent(gen, gateway),
			IntentResearch:   NewResearchAgent(gen, gateway),
		},
	}
	return d
}

// For returns the specialist for an intent.
func (d *Dispatcher) For(intent Intent) Agent {
	if a, ok := d.agents[intent]; ok {
		return a
	}
	return d.general
}

// Names lists the registered specialists, sorted by intent.
func (d *Dispatcher) Names() []string {
	intents := make([]string, 0, len(d.agents))
	for intent := range d.agents {
		intents = append(intents, string(intent))
	}
	sort.Strings(intents)

	names := make([]string, 0, len(intents))
	for _, intent := range intents {
		names = append(names, d.agents[Intent(intent)].Name())
	}
	return names
}

// promptAgent is a thin specialist: a distinct system prompt over the
// model router, nothing else.
type promptAgent struct {
	name         string
	intent       Intent
	systemPrompt string
	capability   llm.Capability
	gen          Generator
}

func newPromptAgent(name string, intent Intent, prompt string, cap llm.Capability, gen Generator) *promptAgent {
	return &promptAgent{
		name:         name,
		intent:       intent,
		systemPrompt: prompt,
		capability:   cap,
		gen:          gen,
	}
}

func (a *promptAgent) Name() string   { return a.name }
func (a *promptAgent) Intent() Intent { return a.intent }

func (a *promptAgent) Handle(ctx context.Context, message string, pc *Context) Result {
	instructions := a.systemPrompt
	if pc != nil && len(pc.Memory) > 0 {
		instructions += "\n\nRelevant context from past conversations:\n" + renderMessages(pc.Memory)
	}

	req := &router.InferenceRequest{
		Message:            message,
		SystemInstructions: instructions,
		Capability:         a.capability,
	}
	if pc != nil {
		req.History = pc.History
	}

	res := a.gen.Generate(ctx, req)
	return Result{
		Text:         res.Text,
		Success:      res.Err == nil,
		Provider:     res.Provider,
		UsedFallback: res.UsedFallback,
	}
}

// truncate caps s at max runes. Slicing by runes rather than bytes
// keeps multi-byte characters intact.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// renderMessages flattens chat messages into a bulleted context block.
func renderMessages(msgs []llm.Message) string {
	out := ""
	for _, m := range msgs {
		out += "- " + m.Role + ": " + m.Content + "\n"
	}
	return out
}
