// Package router selects an LLM provider for each request and hides
// provider failure behind a fixed fallback chain. Callers always get an
// InferenceResult back; the router never returns a Go error.
package router

import (
	"github.com/normanking/relay/internal/llm"
)

// InferenceRequest describes one generation call. Immutable per call.
type InferenceRequest struct {
	Message            string
	SystemInstructions string
	History            []llm.Message

	// Capability pins the tier; empty means classify from the message.
	Capability llm.Capability

	// ForceProvider bypasses selection entirely when set.
	ForceProvider string
}

// InferenceResult is what every Generate call returns. Err is carried
// in-struct so a total provider outage still produces a usable result.
type InferenceResult struct {
	Text         string
	Provider     string
	Model        string
	UsedFallback bool
	Err          error
}

// apologyText is the degraded-mode answer when every provider fails.
const apologyText = "I apologize, but I'm having trouble connecting to my AI services. Please try again in a moment."
