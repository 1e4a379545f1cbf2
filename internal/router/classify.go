package router

import (
	"strings"

	"github.com/normanking/relay/internal/llm"
)

// Classification is the outcome of scanning a message: the capability
// tier to route to, plus whether the message wants live web evidence.
type Classification struct {
	Capability      llm.Capability
	SearchIndicated bool
	Complex         bool
}

// rule pairs a predicate with the capability it selects. Rules are
// evaluated in order; the first hit wins.
type rule struct {
	capability llm.Capability
	match      func(msg string) bool
}

var (
	visionKeywords = []string{
		"image", "picture", "photo", "screenshot", "diagram", "chart in",
	}
	reasoningKeywords = []string{
		"why", "prove", "derive", "solve", "equation", "step by step",
		"logic", "math", "theorem", "algorithm",
	}
	searchKeywords = []string{
		"latest", "news", "today", "current", "recent", "right now",
		"this week", "search", "look up", "price of", "weather",
	}
	fastKeywords = []string{
		"quick", "briefly", "tl;dr", "tldr", "in one sentence",
		"short answer", "one word",
	}

	// Analytical verbs upgrade any category to reasoning.
	complexVerbs = []string{
		"analyze", "compare", "evaluate", "design", "create", "plan",
	}
)

// complexWordThreshold is the message length, in words, past which a
// request is treated as complex regardless of keywords.
const complexWordThreshold = 50

// classifyRules is the ordered decision table. Vision outranks
// reasoning, which outranks search, which outranks fast.
var classifyRules = []rule{
	{llm.CapVision, containsAny(visionKeywords)},
	{llm.CapReasoning, containsAny(reasoningKeywords)},
	// Search requests land on the reasoning tier: synthesizing over
	// evidence is never a fast-model job. The search flag itself is
	// carried separately.
	{llm.CapReasoning, containsAny(searchKeywords)},
	{llm.CapFast, containsAny(fastKeywords)},
}

func containsAny(keywords []string) func(string) bool {
	return func(msg string) bool {
		for _, kw := range keywords {
			if strings.Contains(msg, kw) {
				return true
			}
		}
		return false
	}
}

// Classify scans message and resolves its capability tier. Search
// indication is reported separately because the caller may or may not
// have a search gateway wired; when it does, search requests are
// upgraded to the reasoning tier after evidence is spliced in.
func Classify(message string) Classification {
	lower := strings.ToLower(message)

	c := Classification{Capability: llm.CapGeneral}
	for _, r := range classifyRules {
		if r.match(lower) {
			c.Capability = r.capability
			break
		}
	}
	c.SearchIndicated = containsAny(searchKeywords)(lower)

	// Secondary complexity signal, independent of keyword category.
	words := len(strings.Fields(message))
	if words > complexWordThreshold {
		c.Complex = true
	} else {
		for _, verb := range complexVerbs {
			if strings.Contains(lower, verb) {
				c.Complex = true
				break
			}
		}
	}
	if c.Complex && c.Capability != llm.CapVision {
		c.Capability = llm.CapReasoning
	}

	return c
}
