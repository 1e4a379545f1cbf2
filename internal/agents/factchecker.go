package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/normanking/relay/internal/llm"
	"github.com/normanking/relay/internal/router"
	"github.com/normanking/relay/internal/search"
)

// Per-claim confidence by evidence verdict.
const (
	confidenceSupported    = 0.9
	confidenceContradicted = 0.1
	confidenceUnclear      = 0.5
	confidenceSearchFailed = 0.3

	// confidenceNoClaims applies when the draft had nothing verifiable.
	confidenceNoClaims = 0.95

	// confidenceDefault applies when claims existed but none were checked.
	confidenceDefault = 0.8

	// rewriteThreshold is the confidence below which the draft is
	// rewritten once.
	rewriteThreshold = 0.6
)

const maxClaims = 5
const maxVerifiedClaims = 3

const unverifiedNote = "\n\nNote: some claims in this response could not be verified."

// ClaimCheck records one claim's verification.
type ClaimCheck struct {
	Claim      string
	Verified   bool
	Confidence float64
	Evidence   string
}

// FactCheck is the Fact-Checker's outcome for one draft.
type FactCheck struct {
	Text          string
	Confidence    float64
	Verified      bool
	ClaimsChecked int
	Checks        []ClaimCheck
	Sources       []search.Result
}

// FactChecker verifies factual claims in a draft against web evidence
// and rewrites the draft when confidence falls too low.
type FactChecker struct {
	gen     Generator
	gateway SearchGateway
}

// NewFactChecker creates the fact-checking stage.
func NewFactChecker(gen Generator, gateway SearchGateway) *FactChecker {
	return &FactChecker{gen: gen, gateway: gateway}
}

// Check verifies draft in the context of the original query.
func (f *FactChecker) Check(ctx context.Context, originalQuery, draft string) FactCheck {
	claims := f.extractClaims(ctx, draft)
	if len(claims) == 0 {
		return FactCheck{
			Text:       draft,
			Confidence: confidenceNoClaims,
			Verified:   true,
		}
	}

	var checks []ClaimCheck
	var sources []search.Result
	for i, claim := range claims {
		if i == maxVerifiedClaims {
			break
		}
		check, claimSources := f.verifyClaim(ctx, claim, originalQuery)
		checks = append(checks, check)
		sources = append(sources, claimSources...)
	}

	confidence := meanConfidence(checks)
	verified := confidence >= rewriteThreshold

	text := draft
	if !verified {
		text = f.rewrite(ctx, originalQuery, draft, checks)
	}

	return FactCheck{
		Text:          text,
		Confidence:    confidence,
		Verified:      verified,
		ClaimsChecked: len(claims),
		Checks:        checks,
		Sources:       dedupeSources(sources),
	}
}

// extractClaims pulls up to five verifiable factual claims from a draft.
func (f *FactChecker) extractClaims(ctx context.Context, draft string) []string {
	prompt := fmt.Sprintf(`Extract ONLY the verifiable factual claims from this response.
Ignore opinions, recommendations, or general statements.

Response: %s

List each claim on a new line. Maximum %d claims.
Claims:`, draft, maxClaims)

	res := f.gen.Generate(ctx, &router.InferenceRequest{
		Message:            prompt,
		SystemInstructions: "You extract factual claims. Be concise.",
		Capability:         llm.CapFast,
	})
	if res.Err != nil {
		log.Warn().Err(res.Err).Msg("claim extraction failed")
		return nil
	}

	var claims []string
	for _, line := range strings.Split(res.Text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		claims = append(claims, line)
		if len(claims) == maxClaims {
			break
		}
	}
	return claims
}

// verifyClaim searches for evidence and asks a model to classify it.
func (f *FactChecker) verifyClaim(ctx context.Context, claim, queryContext string) (ClaimCheck, []search.Result) {
	searchQuery := truncate(claim+" "+queryContext, 100)

	resp := f.gateway.Search(ctx, searchQuery, 3)
	if !resp.Success || len(resp.Results) == 0 {
		return ClaimCheck{
			Claim:      claim,
			Confidence: confidenceSearchFailed,
			Evidence:   "no search results found",
		}, nil
	}

	var evidence strings.Builder
	for i, r := range resp.Results {
		if i == 3 {
			break
		}
		fmt.Fprintf(&evidence, "- %s: %s\n", r.Title, truncate(r.Description, 200))
	}

	prompt := fmt.Sprintf(`Claim: %s

Evidence from web search:
%s

Does the evidence support this claim? Answer with:
- SUPPORTED: evidence clearly supports the claim
- CONTRADICTED: evidence contradicts the claim
- UNCLEAR: not enough evidence or mixed results

Answer:`, claim, evidence.String())

	res := f.gen.Generate(ctx, &router.InferenceRequest{
		Message:            prompt,
		SystemInstructions: "You verify claims against evidence. Be strict.",
		Capability:         llm.CapFast,
	})
	if res.Err != nil {
		return ClaimCheck{
			Claim:      claim,
			Confidence: confidenceSearchFailed,
			Evidence:   "verification call failed",
		}, resp.Results
	}

	verdict := strings.ToLower(res.Text)
	check := ClaimCheck{Claim: claim, Evidence: evidence.String()}
	switch {
	case strings.Contains(verdict, "supported"):
		check.Verified = true
		check.Confidence = confidenceSupported
	case strings.Contains(verdict, "contradicted"):
		check.Confidence = confidenceContradicted
	default:
		check.Confidence = confidenceUnclear
	}
	return check, resp.Results
}

// rewrite asks once for a corrected draft; a failed rewrite appends an
// unverified note rather than silently keeping a low-confidence draft.
func (f *FactChecker) rewrite(ctx context.Context, query, draft string, checks []ClaimCheck) string {
	var corrections strings.Builder
	for _, c := range checks {
		if !c.Verified {
			fmt.Fprintf(&corrections, "- Claim %q is not well-supported. Evidence: %s\n", c.Claim, c.Evidence)
		}
	}
	if corrections.Len() == 0 {
		corrections.WriteString("Some claims need revision.")
	}

	prompt := fmt.Sprintf(`Original query: %s

Original response: %s

Issues found:
%s

Rewrite the response to be more accurate. Remove or soften unsupported
claims while preserving the helpful tone.

Revised response:`, query, draft, corrections.String())

	res := f.gen.Generate(ctx, &router.InferenceRequest{
		Message:            prompt,
		SystemInstructions: "You are a fact-checker. Rewrite responses to be accurate and honest about limitations.",
		Capability:         llm.CapReasoning,
	})
	if res.Err != nil {
		log.Warn().Err(res.Err).Msg("fact-check rewrite failed")
		return draft + unverifiedNote
	}
	return res.Text
}

func meanConfidence(checks []ClaimCheck) float64 {
	if len(checks) == 0 {
		return confidenceDefault
	}
	var sum float64
	for _, c := range checks {
		sum += c.Confidence
	}
	return sum / float64(len(checks))
}
