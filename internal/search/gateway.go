package search

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/normanking/relay/internal/bus"
	"github.com/normanking/relay/internal/llm"
	"github.com/normanking/relay/internal/quota"
)

// Searcher is a web search backend.
type Searcher interface {
	Search(ctx context.Context, query string, count int) ([]Result, error)
	Configured() bool
}

// NewsSearcher is a backend that also serves a news cluster.
type NewsSearcher interface {
	Searcher
	SearchNews(ctx context.Context, query string, count int) ([]Result, error)
}

const knowledgePrompt = `The user asked: %s

IMPORTANT: You don't have access to real-time web search right now.
Answer based on your training knowledge. Be honest about limitations.

If the question requires very recent information:
- Acknowledge you may not have the latest data
- Provide what you know from your training
- Suggest the user verify with current sources

Provide a helpful, accurate response:`

// Gateway runs the tiered search chain. Tier order is fixed: Brave,
// Tavily, then the knowledge fallback. A tier is skipped when it is
// unconfigured or its monthly quota is spent; the knowledge tier always
// answers, so Search never returns an error.
type Gateway struct {
	brave     NewsSearcher
	tavily    Searcher
	quota     *quota.Ledger
	knowledge llm.Provider
	events    *bus.Bus
}

// NewGateway wires the search tiers. knowledge is the provider used for
// the final fallback; without one the fallback tier reports failure
// instead of answering.
func NewGateway(brave NewsSearcher, tavily Searcher, ledger *quota.Ledger, knowledge llm.Provider) *Gateway {
	return &Gateway{
		brave:     brave,
		tavily:    tavily,
		quota:     ledger,
		knowledge: knowledge,
	}
}

// SetEventBus enables tier-usage events for observers such as the
// metrics collector.
func (g *Gateway) SetEventBus(b *bus.Bus) {
	g.events = b
}

// Available reports whether any real web tier can currently serve.
func (g *Gateway) Available() bool {
	return (g.brave.Configured() && g.quota.CanUse("brave")) ||
		(g.tavily.Configured() && g.quota.CanUse("tavily"))
}

// Search walks the tier chain for query. The first tier producing at
// least one result wins.
func (g *Gateway) Search(ctx context.Context, query string, count int) Response {
	if g.brave.Configured() && g.quota.CanUse("brave") {
		results, err := g.brave.Search(ctx, query, count)
		if err != nil {
			log.Warn().Err(err).Msg("brave search failed")
		} else {
			g.charge("brave")
		}
		if err == nil && len(results) > 0 {
			return Response{
				Results: results,
				Source:  "brave",
				Count:   len(results),
				Query:   query,
				Success: true,
			}
		}
	}

	if g.tavily.Configured() && g.quota.CanUse("tavily") {
		results, err := g.tavily.Search(ctx, query, count)
		if err != nil {
			log.Warn().Err(err).Msg("tavily search failed")
		} else {
			g.charge("tavily")
		}
		if err == nil && len(results) > 0 {
			return Response{
				Results: results,
				Source:  "tavily",
				Count:   len(results),
				Query:   query,
				Success: true,
			}
		}
	}

	log.Info().Str("query", query).Msg("web tiers unavailable, using knowledge fallback")
	return g.knowledgeFallback(ctx, query)
}

// SearchNews serves news queries from the Brave news cluster. There is no
// Tavily news tier; an unusable Brave goes straight to the knowledge
// fallback.
func (g *Gateway) SearchNews(ctx context.Context, query string, count int) Response {
	if !g.brave.Configured() || !g.quota.CanUse("brave") {
		return g.knowledgeFallback(ctx, "latest news about "+query)
	}

	results, err := g.brave.SearchNews(ctx, query, count)
	if err != nil {
		log.Warn().Err(err).Msg("brave news search failed")
	} else {
		g.charge("brave")
	}
	if err != nil || len(results) == 0 {
		return g.knowledgeFallback(ctx, "latest news about "+query)
	}

	return Response{
		Results: results,
		Source:  "brave_news",
		Count:   len(results),
		Query:   query,
		Success: true,
	}
}

// knowledgeFallback answers from the LLM's training knowledge. Usage is
// counted but never limited.
func (g *Gateway) knowledgeFallback(ctx context.Context, query string) Response {
	if g.knowledge == nil {
		log.Error().Str("query", query).Msg("no knowledge provider wired")
		return Response{
			Source:     "knowledge",
			Query:      query,
			IsFallback: true,
		}
	}

	if err := g.quota.RecordUse("knowledge"); err != nil {
		log.Warn().Err(err).Msg("record knowledge usage")
	}
	if g.events != nil {
		g.events.Publish(bus.Event{Type: bus.EventSearchTier, Tier: "knowledge"})
	}

	resp, err := g.knowledge.Chat(ctx, &llm.ChatRequest{
		SystemPrompt: "You are a helpful assistant. Answer based on your knowledge.",
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf(knowledgePrompt, query)},
		},
	})
	if err != nil {
		log.Error().Err(err).Msg("knowledge fallback failed")
		return Response{
			Source:     "knowledge",
			Query:      query,
			IsFallback: true,
		}
	}

	return Response{
		Results: []Result{{
			Title:        "AI Knowledge Response",
			Description:  resp.Content,
			Source:       "knowledge",
			IsAIFallback: true,
		}},
		Source:     "knowledge",
		Count:      1,
		Query:      query,
		Success:    true,
		IsFallback: true,
	}
}

// charge records one quota unit for a tier that served a request.
func (g *Gateway) charge(service string) {
	if err := g.quota.RecordUse(service); err != nil {
		log.Warn().Err(err).Str("service", service).Msg("record search usage")
	}
	if g.events != nil {
		g.events.Publish(bus.Event{Type: bus.EventSearchTier, Tier: service})
	}
}
