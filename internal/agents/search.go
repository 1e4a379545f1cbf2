package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/normanking/relay/internal/llm"
	"github.com/normanking/relay/internal/router"
	"github.com/normanking/relay/internal/search"
)

// SearchGateway is the slice of the search package the agents consume.
type SearchGateway interface {
	Search(ctx context.Context, query string, count int) search.Response
	SearchNews(ctx context.Context, query string, count int) search.Response
	Available() bool
}

const searchSynthesisPrompt = `You are a research assistant with access to real-time web information.
Synthesize web search results into clear, accurate, well-cited answers.

Guidelines:
1. Cite sources using [1], [2], etc.
2. Be objective: present facts, not opinions
3. Highlight key findings with bullet points
4. Note conflicting information if sources disagree
5. Keep responses concise but comprehensive

If asked about health or medical topics, remind users to consult
professionals. Acknowledge if search results are limited.`

var newsIndicators = []string{
	"news", "latest", "today", "yesterday", "recent", "breaking",
	"current", "update", "happening", "this week", "this month",
}

// SearchAgent answers real-time queries: web search first, then LLM
// synthesis over the hits with citations.
type SearchAgent struct {
	gen     Generator
	gateway SearchGateway
}

// NewSearchAgent creates the search specialist.
func NewSearchAgent(gen Generator, gateway SearchGateway) *SearchAgent {
	return &SearchAgent{gen: gen, gateway: gateway}
}

func (a *SearchAgent) Name() string   { return "Search Agent" }
func (a *SearchAgent) Intent() Intent { return IntentSearch }

// Handle searches and synthesizes. Without a gateway the agent degrades
// to a plain model answer rather than failing.
func (a *SearchAgent) Handle(ctx context.Context, message string, pc *Context) Result {
	if a.gateway == nil {
		res := a.gen.Generate(ctx, &router.InferenceRequest{Message: message})
		return Result{Text: res.Text, Success: res.Err == nil, Provider: res.Provider, UsedFallback: res.UsedFallback}
	}

	var resp search.Response
	if isNewsQuery(message) {
		resp = a.gateway.SearchNews(ctx, message, 5)
	} else {
		resp = a.gateway.Search(ctx, message, 5)
	}

	if len(resp.Results) == 0 {
		return Result{
			Text:    "I couldn't find relevant information for your query. Please try rephrasing or make the query more specific.",
			Success: false,
		}
	}

	synthesis := fmt.Sprintf(`Based on these search results, provide a comprehensive answer to the user's query.

USER QUERY: %s

SEARCH RESULTS:
%s

Synthesize the information into a clear, helpful response. Cite sources
using [1], [2], etc. Be concise but complete.`, message, formatSourcesForLLM(resp.Results))

	res := a.gen.Generate(ctx, &router.InferenceRequest{
		Message:            synthesis,
		SystemInstructions: searchSynthesisPrompt,
		Capability:         llm.CapReasoning,
	})
	if res.Err != nil {
		// Raw results beat no answer.
		return Result{
			Text:    formatFallbackResponse(resp.Results),
			Success: true,
			Sources: citableSources(resp.Results),
		}
	}

	return Result{
		Text:         res.Text,
		Success:      true,
		Provider:     res.Provider,
		UsedFallback: res.UsedFallback,
		Sources:      citableSources(resp.Results),
	}
}

func isNewsQuery(query string) bool {
	lower := strings.ToLower(query)
	for _, ind := range newsIndicators {
		if strings.Contains(lower, ind) {
			return true
		}
	}
	return false
}

func formatSourcesForLLM(results []search.Result) string {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s\n%s\nSource: %s\n\n", i+1, r.Title, truncate(r.Description, 500), r.URL)
	}
	return b.String()
}

func formatFallbackResponse(results []search.Result) string {
	var b strings.Builder
	b.WriteString("Here's what I found:\n\n")
	for i, r := range results {
		if i == 5 {
			break
		}
		fmt.Fprintf(&b, "**[%d] %s**\n%s\n\n", i+1, r.Title, truncate(r.Description, 200))
	}
	return b.String()
}

// citableSources keeps only results a user could follow.
func citableSources(results []search.Result) []search.Result {
	var out []search.Result
	for _, r := range results {
		if r.URL != "" {
			out = append(out, r)
		}
	}
	return out
}
