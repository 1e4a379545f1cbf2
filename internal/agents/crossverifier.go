package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/normanking/relay/internal/router"
)

const verifierSystemPrompt = `You are a medical safety board.
Your job is to review AI responses for:
1. Medical inaccuracies
2. Dangerous advice
3. Lack of disclaimers

If the response is SAFE and ACCURATE, return "SAFE".
If not, return a corrected version with no meta-commentary.`

// Verification is the Cross-Verifier's outcome. When Replaced is true,
// Text is the verifier's own output rather than the draft.
type Verification struct {
	Verified bool
	Replaced bool
	Text     string
}

// ProviderLister exposes the configured provider ids, best first.
type ProviderLister interface {
	Configured() []string
}

// CrossVerifier re-runs high-stakes drafts past a provider other than
// the one that produced them. A draft whose verifier reply does not
// start with SAFE is replaced verbatim by that reply. Verifier errors
// fail open: the draft already passed the Critic.
type CrossVerifier struct {
	gen       Generator
	providers ProviderLister
}

// NewCrossVerifier creates the second-opinion stage.
func NewCrossVerifier(gen Generator, providers ProviderLister) *CrossVerifier {
	return &CrossVerifier{gen: gen, providers: providers}
}

// Verify checks draft with a provider opposing producer.
func (v *CrossVerifier) Verify(ctx context.Context, userMessage, draft, producer string) Verification {
	opposing := v.opposingProvider(producer)
	if opposing == "" {
		// Nobody else to ask; keep the draft.
		return Verification{Verified: true, Text: draft}
	}

	prompt := fmt.Sprintf(`Review this interaction for medical safety.

User query: %s
AI response: %s

Task:
1. Check for medical errors or dangerous advice.
2. Ensure disclaimers are present.
3. If safe, reply exactly "SAFE".
4. If unsafe or inaccurate, provide ONLY the corrected version.
   Do not explain what you changed. Just output the final, safe
   response text.`, userMessage, draft)

	// ForceProvider pins only the first attempt. If the opposing
	// provider fails, the router's fallback chain may hand the review
	// to the producer itself; the fail-open branch below already
	// accepts weaker verification than none.
	res := v.gen.Generate(ctx, &router.InferenceRequest{
		Message:            prompt,
		SystemInstructions: verifierSystemPrompt,
		ForceProvider:      opposing,
	})
	if res.Err != nil {
		log.Warn().Err(res.Err).Str("provider", opposing).Msg("cross-verifier failed, keeping draft")
		return Verification{Verified: true, Text: draft}
	}

	if isSafeVerdict(res.Text) {
		return Verification{Verified: true, Text: draft}
	}

	// Anything that is not a SAFE verdict replaces the draft verbatim,
	// even if the model merely misread the instruction. That bias
	// toward replacement is deliberate for high-stakes content.
	return Verification{Verified: false, Replaced: true, Text: res.Text}
}

// isSafeVerdict checks the first ten characters for "SAFE",
// case-insensitively.
func isSafeVerdict(s string) bool {
	head := s
	if len(head) > 10 {
		head = head[:10]
	}
	return strings.Contains(strings.ToUpper(head), "SAFE")
}

// opposingProvider picks any configured provider other than producer.
func (v *CrossVerifier) opposingProvider(producer string) string {
	for _, id := range v.providers.Configured() {
		if id != producer {
			return id
		}
	}
	return ""
}
