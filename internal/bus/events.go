// Package bus provides the event distribution system that connects the
// inference router to observers such as the metrics collector. It
// provides thread-safe pub/sub with wildcard support and event history.
package bus

import "time"

// EventType labels one pipeline event.
type EventType string

const (
	// Provider routing events
	EventProviderAttempt EventType = "provider_attempt"
	EventProviderSuccess EventType = "provider_success"
	EventProviderFailure EventType = "provider_failure"
	EventFallbackUsed    EventType = "fallback_used"

	// Search gateway events
	EventSearchTier EventType = "search_tier"

	// Pipeline events
	EventPipelineDone EventType = "pipeline_done"
)

// Event is one occurrence flowing through the bus.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`

	// Provider context
	Provider   string `json:"provider,omitempty"`
	Model      string `json:"model,omitempty"`
	Capability string `json:"capability,omitempty"`

	// Search context
	Tier string `json:"tier,omitempty"`

	// Pipeline context
	Intent       string `json:"intent,omitempty"`
	UsedFallback bool   `json:"used_fallback,omitempty"`

	DurationMs int64  `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`
}
