package agents

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/relay/internal/router"
	"github.com/normanking/relay/internal/search"
)

type stubLister struct {
	ids []string
}

func (s *stubLister) Configured() []string { return s.ids }

func TestCriticAutoApproves(t *testing.T) {
	gen := &scriptedGen{}
	critic := NewCritic(gen)

	tests := []struct {
		name        string
		intent      Intent
		toolSuccess bool
	}{
		{"general query", IntentGeneral, false},
		{"successful tool run", IntentTool, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rev := critic.Review(context.Background(), "hi", "draft", tt.intent, tt.toolSuccess)
			assert.True(t, rev.Approved)
			assert.Equal(t, "draft", rev.Text)
		})
	}
	assert.Empty(t, gen.reqs, "auto-approval must not call a model")
}

func TestCriticApprovedVerdictKeepsDraft(t *testing.T) {
	gen := &scriptedGen{responses: []*router.InferenceResult{
		text("APPROVED: yes\nISSUES: none"),
	}}
	rev := NewCritic(gen).Review(context.Background(), "q", "draft", IntentWellness, false)

	assert.True(t, rev.Approved)
	assert.Equal(t, "draft", rev.Text)
}

func TestCriticExtractsImprovedVersion(t *testing.T) {
	gen := &scriptedGen{responses: []*router.InferenceResult{
		text("APPROVED: no\nISSUES: missing disclaimer\nIMPROVED: better draft with disclaimer"),
	}}
	rev := NewCritic(gen).Review(context.Background(), "q", "draft", IntentWellness, false)

	assert.True(t, rev.Approved)
	assert.Equal(t, "better draft with disclaimer", rev.Text)
}

func TestCriticAppendsDisclaimerWhenNoImprovement(t *testing.T) {
	gen := &scriptedGen{responses: []*router.InferenceResult{
		text("APPROVED: no\nISSUES: vague"),
	}}
	rev := NewCritic(gen).Review(context.Background(), "q", "draft", IntentWellness, false)

	assert.True(t, rev.Approved)
	assert.True(t, strings.HasPrefix(rev.Text, "draft"))
	assert.Contains(t, rev.Text, "Disclaimer")
}

func TestCriticFailsOpen(t *testing.T) {
	gen := &scriptedGen{responses: []*router.InferenceResult{failed("down")}}
	rev := NewCritic(gen).Review(context.Background(), "q", "draft", IntentWellness, false)

	assert.True(t, rev.Approved)
	assert.Equal(t, "draft", rev.Text)
}

func TestCriticIdempotentOnApprovedDraft(t *testing.T) {
	gen := &scriptedGen{responses: []*router.InferenceResult{
		text("APPROVED: yes"),
		text("APPROVED: yes"),
	}}
	critic := NewCritic(gen)

	first := critic.Review(context.Background(), "q", "draft", IntentWellness, false)
	second := critic.Review(context.Background(), "q", first.Text, IntentWellness, false)

	assert.Equal(t, first.Text, second.Text)
}

func TestCrossVerifierSafeVerdictKeepsDraft(t *testing.T) {
	tests := []struct {
		name    string
		verdict string
	}{
		{"exact", "SAFE"},
		{"lowercase", "safe"},
		{"padded", "  SAFE - looks good"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &scriptedGen{responses: []*router.InferenceResult{text(tt.verdict)}}
			v := NewCrossVerifier(gen, &stubLister{ids: []string{"gemini", "groq"}})

			out := v.Verify(context.Background(), "q", "draft", "gemini")

			assert.True(t, out.Verified)
			assert.False(t, out.Replaced)
			assert.Equal(t, "draft", out.Text)
		})
	}
}

func TestCrossVerifierReplacesDraftVerbatim(t *testing.T) {
	gen := &scriptedGen{responses: []*router.InferenceResult{
		text("A corrected response with proper disclaimers."),
	}}
	v := NewCrossVerifier(gen, &stubLister{ids: []string{"gemini", "groq"}})

	out := v.Verify(context.Background(), "q", "draft", "gemini")

	assert.False(t, out.Verified)
	assert.True(t, out.Replaced)
	assert.Equal(t, "A corrected response with proper disclaimers.", out.Text)
}

func TestCrossVerifierPicksOpposingProvider(t *testing.T) {
	gen := &scriptedGen{responses: []*router.InferenceResult{text("SAFE")}}
	v := NewCrossVerifier(gen, &stubLister{ids: []string{"gemini", "groq"}})

	v.Verify(context.Background(), "q", "draft", "gemini")

	require.Len(t, gen.reqs, 1)
	assert.Equal(t, "groq", gen.reqs[0].ForceProvider)
}

func TestCrossVerifierNoOpposingProvider(t *testing.T) {
	gen := &scriptedGen{}
	v := NewCrossVerifier(gen, &stubLister{ids: []string{"gemini"}})

	out := v.Verify(context.Background(), "q", "draft", "gemini")

	assert.True(t, out.Verified)
	assert.Equal(t, "draft", out.Text)
	assert.Empty(t, gen.reqs)
}

func TestCrossVerifierFailsOpen(t *testing.T) {
	gen := &scriptedGen{responses: []*router.InferenceResult{failed("down")}}
	v := NewCrossVerifier(gen, &stubLister{ids: []string{"gemini", "groq"}})

	out := v.Verify(context.Background(), "q", "draft", "gemini")

	assert.True(t, out.Verified)
	assert.Equal(t, "draft", out.Text)
}

func TestFactCheckerNoClaims(t *testing.T) {
	gen := &scriptedGen{responses: []*router.InferenceResult{text("")}}
	fc := NewFactChecker(gen, &stubGateway{})

	out := fc.Check(context.Background(), "q", "Namaste! How can I help?")

	assert.True(t, out.Verified)
	assert.InDelta(t, 0.95, out.Confidence, 1e-9)
	assert.Equal(t, "Namaste! How can I help?", out.Text)
	assert.Zero(t, out.ClaimsChecked)
}

func TestFactCheckerSupportedClaims(t *testing.T) {
	gw := &stubGateway{resp: search.Response{
		Success: true,
		Results: []search.Result{{Title: "study", URL: "https://example.com", Description: "evidence"}},
	}}
	gen := &scriptedGen{responses: []*router.InferenceResult{
		text("Walking burns calories\nWater is essential\nSleep matters"),
		text("SUPPORTED"),
		text("SUPPORTED"),
		text("CONTRADICTED"),
	}}
	fc := NewFactChecker(gen, gw)

	out := fc.Check(context.Background(), "q", "the draft")

	// (0.9 + 0.9 + 0.1) / 3 is just above the rewrite threshold.
	assert.InDelta(t, 0.6333, out.Confidence, 0.001)
	assert.True(t, out.Verified)
	assert.Equal(t, "the draft", out.Text)
	assert.Equal(t, 3, out.ClaimsChecked)
	require.Len(t, out.Checks, 3)
	assert.True(t, out.Checks[0].Verified)
	assert.False(t, out.Checks[2].Verified)
}

func TestFactCheckerRewritesLowConfidenceDraft(t *testing.T) {
	gw := &stubGateway{resp: search.Response{
		Success: true,
		Results: []search.Result{{Title: "study", URL: "https://example.com", Description: "evidence"}},
	}}
	gen := &scriptedGen{responses: []*router.InferenceResult{
		text("Vaccines cause X\nY cures Z"),
		text("CONTRADICTED"),
		text("UNCLEAR"),
		text("a corrected draft"),
	}}
	fc := NewFactChecker(gen, gw)

	out := fc.Check(context.Background(), "q", "the draft")

	assert.InDelta(t, 0.3, out.Confidence, 1e-9)
	assert.False(t, out.Verified)
	assert.Equal(t, "a corrected draft", out.Text)
}

func TestFactCheckerSearchFailureAppendsNote(t *testing.T) {
	gen := &scriptedGen{responses: []*router.InferenceResult{
		text("One claim"),
		failed("down"), // rewrite attempt fails too
	}}
	fc := NewFactChecker(gen, &stubGateway{resp: search.Response{Success: false}})

	out := fc.Check(context.Background(), "q", "the draft")

	assert.InDelta(t, 0.3, out.Confidence, 1e-9)
	assert.False(t, out.Verified)
	assert.Equal(t, "the draft"+unverifiedNote, out.Text)
}

func TestFactCheckerVerifiesAtMostThreeClaims(t *testing.T) {
	gw := &stubGateway{resp: search.Response{
		Success: true,
		Results: []search.Result{{Title: "t", URL: "https://example.com", Description: "d"}},
	}}
	gen := &scriptedGen{responses: []*router.InferenceResult{
		text("c1\nc2\nc3\nc4\nc5"),
		text("SUPPORTED"),
		text("SUPPORTED"),
		text("SUPPORTED"),
	}}
	fc := NewFactChecker(gen, gw)

	out := fc.Check(context.Background(), "q", "draft")

	assert.Equal(t, 5, out.ClaimsChecked)
	assert.Len(t, out.Checks, 3)
	assert.Equal(t, 3, gw.calls)
}
