package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/normanking/relay/internal/llm"
	"github.com/normanking/relay/internal/router"
	"github.com/normanking/relay/internal/search"
)

const researchSystemPrompt = `You are a PhD-level research scientist.
Your process is rigorous, skeptical, and exhaustive. You do not settle
for surface-level answers: you verify claims, seek contradictions, and
synthesize cross-domain knowledge. Your reports are dense with insight,
clear in structure, and backed by data.`

// maxResearchSteps bounds the research loop to keep quota spend sane.
const maxResearchSteps = 4

// ResearchAgent runs the multi-step deep-research workflow: plan
// sub-questions, search each, extract insights, then synthesize one
// report.
type ResearchAgent struct {
	gen     Generator
	gateway SearchGateway
}

// NewResearchAgent creates the deep-research specialist.
func NewResearchAgent(gen Generator, gateway SearchGateway) *ResearchAgent {
	return &ResearchAgent{gen: gen, gateway: gateway}
}

func (a *ResearchAgent) Name() string   { return "Deep Research Agent" }
func (a *ResearchAgent) Intent() Intent { return IntentResearch }

func (a *ResearchAgent) Handle(ctx context.Context, message string, pc *Context) Result {
	steps := a.plan(ctx, message)

	var sections []string
	var sources []search.Result
	if a.gateway != nil {
		for _, step := range steps {
			resp := a.gateway.Search(ctx, step.query, 3)
			if len(resp.Results) == 0 {
				continue
			}
			for i, r := range resp.Results {
				if i == 2 {
					break
				}
				sources = append(sources, r)
			}

			insights := a.extractInsights(ctx, step.query, resp.Results)
			sections = append(sections, fmt.Sprintf("## %s\n%s", step.focus, insights))
		}
	}

	report := a.synthesize(ctx, message, sections)
	if report.Err != nil {
		return Result{
			Text:    "I wasn't able to complete the research report right now. Please try again.",
			Success: false,
			Sources: dedupeSources(sources),
		}
	}

	return Result{
		Text:         report.Text,
		Success:      true,
		Provider:     report.Provider,
		UsedFallback: report.UsedFallback,
		Sources:      dedupeSources(sources),
	}
}

type researchStep struct {
	focus string
	query string
}

// plan asks a fast model for sub-questions. A failed or unparseable plan
// degrades to researching the original question directly.
func (a *ResearchAgent) plan(ctx context.Context, topic string) []researchStep {
	prompt := fmt.Sprintf(`Create a research plan for: %q

Produce up to %d research steps. For each step output exactly two lines:
FOCUS: <short section heading>
QUERY: <web search query>`, topic, maxResearchSteps)

	res := a.gen.Generate(ctx, &router.InferenceRequest{
		Message:    prompt,
		Capability: llm.CapFast,
	})
	if res.Err != nil {
		return []researchStep{{focus: "Overview", query: topic}}
	}

	var steps []researchStep
	var current researchStep
	for _, line := range strings.Split(res.Text, "\n") {
		line = strings.TrimSpace(line)
		if after, ok := strings.CutPrefix(line, "FOCUS:"); ok {
			current.focus = strings.TrimSpace(after)
		} else if after, ok := strings.CutPrefix(line, "QUERY:"); ok {
			current.query = strings.TrimSpace(after)
			if current.focus != "" && current.query != "" {
				steps = append(steps, current)
				current = researchStep{}
			}
		}
		if len(steps) == maxResearchSteps {
			break
		}
	}
	if len(steps) == 0 {
		return []researchStep{{focus: "Overview", query: topic}}
	}
	return steps
}

func (a *ResearchAgent) extractInsights(ctx context.Context, query string, results []search.Result) string {
	prompt := fmt.Sprintf(`Research question: %s

Evidence:
%s

Extract the key insights relevant to the question, as dense bullet
points. Note contradictions between sources explicitly.`, query, formatSourcesForLLM(results))

	res := a.gen.Generate(ctx, &router.InferenceRequest{
		Message:    prompt,
		Capability: llm.CapFast,
	})
	if res.Err != nil {
		return formatFallbackResponse(results)
	}
	return res.Text
}

func (a *ResearchAgent) synthesize(ctx context.Context, topic string, sections []string) *router.InferenceResult {
	body := "No web evidence was gathered; write from established knowledge and say so."
	if len(sections) > 0 {
		body = strings.Join(sections, "\n\n")
	}

	prompt := fmt.Sprintf(`Write a comprehensive research report on: %s

Gathered findings:

%s

Structure the report with an executive summary, the key findings by
theme, open questions, and a conclusion. Be rigorous and cite the
findings above rather than inventing new facts.`, topic, body)

	return a.gen.Generate(ctx, &router.InferenceRequest{
		Message:            prompt,
		SystemInstructions: researchSystemPrompt,
		Capability:         llm.CapReasoning,
	})
}

func dedupeSources(sources []search.Result) []search.Result {
	seen := map[string]bool{}
	var out []search.Result
	for _, s := range sources {
		if s.URL == "" || seen[s.URL] {
			continue
		}
		seen[s.URL] = true
		out = append(out, s)
	}
	return out
}
