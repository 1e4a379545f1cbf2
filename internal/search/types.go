// Package search provides web search with quota-aware tiering: Brave
// first, Tavily second, and an LLM knowledge answer when no web tier can
// serve. Every tier returns the same Response shape so callers never
// branch on where results came from.
package search

// Result is one search hit, normalized across backends.
type Result struct {
	Title        string  `json:"title"`
	URL          string  `json:"url"`
	Description  string  `json:"description"`
	Source       string  `json:"source"`
	Published    string  `json:"published,omitempty"`
	Publisher    string  `json:"publisher,omitempty"`
	Score        float64 `json:"score,omitempty"`
	IsAIFallback bool    `json:"is_ai_fallback,omitempty"`
}

// Response is the uniform reply from any tier.
type Response struct {
	Results    []Result `json:"results"`
	Source     string   `json:"source"`
	Count      int      `json:"count"`
	Query      string   `json:"query"`
	Success    bool     `json:"success"`
	IsFallback bool     `json:"is_fallback"`
}
