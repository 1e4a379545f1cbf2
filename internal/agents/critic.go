package agents

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/normanking/relay/internal/llm"
	"github.com/normanking/relay/internal/router"
)

const criticSystemPrompt = `You are a quality reviewer for health and wellness responses.

Review the draft response and check for:
1. Accuracy: is the information factually correct?
2. Safety: does it avoid harmful medical or financial advice?
3. Completeness: does it fully answer the user's question?
4. Tone: is it warm, supportive, and culturally appropriate?
5. Disclaimers: for health/insurance topics, are proper disclaimers included?

Response format:
APPROVED: [yes/no]
ISSUES: [list any problems found]
IMPROVED: [if not approved, provide the improved version]

Rejection criteria:
- Specific medical diagnoses
- Guaranteed claims about health outcomes
- Specific financial product recommendations without disclaimer`

const criticDisclaimer = "\n\n_Disclaimer: This is general guidance. Please consult a qualified professional for personalized advice._"

// Review is the Critic's verdict. Approved is always true: the Critic
// edits drafts, it never blocks them.
type Review struct {
	Approved bool
	Text     string
	Notes    string
}

// Critic reviews drafts before delivery. Low-risk drafts are approved
// without a model call.
type Critic struct {
	gen Generator
}

// NewCritic creates the reviewer.
func NewCritic(gen Generator) *Critic {
	return &Critic{gen: gen}
}

// Review runs the quality check for one draft. toolSuccess matters only
// for tool intents: a successful calculation is deterministic output and
// needs no review.
func (c *Critic) Review(ctx context.Context, userMessage, draft string, intent Intent, toolSuccess bool) Review {
	if intent == IntentGeneral {
		return Review{Approved: true, Text: draft, Notes: "general query, auto-approved"}
	}
	if intent == IntentTool && toolSuccess {
		return Review{Approved: true, Text: draft, Notes: "tool calculation, auto-approved"}
	}

	prompt := "User asked: " + userMessage + "\n\nDraft response:\n" + draft +
		"\n\nReview this response for accuracy, safety, and appropriateness."

	res := c.gen.Generate(ctx, &router.InferenceRequest{
		Message:            prompt,
		SystemInstructions: criticSystemPrompt,
		Capability:         llm.CapFast,
	})
	if res.Err != nil {
		// A broken reviewer must not block delivery.
		log.Warn().Err(res.Err).Msg("critic review failed")
		return Review{Approved: true, Text: draft, Notes: "reviewer unavailable"}
	}

	if strings.Contains(strings.ToLower(res.Text), "approved: yes") {
		return Review{Approved: true, Text: draft, Notes: "passed quality review"}
	}

	if _, improved, ok := strings.Cut(res.Text, "IMPROVED:"); ok {
		improved = strings.TrimSpace(improved)
		if improved != "" {
			return Review{Approved: true, Text: improved, Notes: "improved by reviewer"}
		}
	}

	return Review{Approved: true, Text: draft + criticDisclaimer, Notes: "added disclaimer"}
}
