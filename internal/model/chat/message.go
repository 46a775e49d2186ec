package chat

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Confidence is the coarse trust label shown next to an assistant answer.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Metadata carries per-message bookkeeping that the UI toggles or displays.
type Metadata struct {
	TokenCount int   `json:"tokenCount,omitempty"`
	LatencyMS  int64 `json:"latencyMs,omitempty"`
	Flagged    bool  `json:"flagged,omitempty"`
	Saved      bool  `json:"saved,omitempty"`
}

// Message is a single turn. Content grows while IsStreaming is set and is
// frozen once the stream finishes.
type Message struct {
	ID          string     `json:"id"`
	Role        Role       `json:"role"`
	Content     string     `json:"content"`
	CreatedAt   time.Time  `json:"timestamp"`
	Sources     []Source   `json:"sources,omitempty"`
	Confidence  Confidence `json:"confidence,omitempty"`
	IsStreaming bool       `json:"isStreaming"`
	Metadata    *Metadata  `json:"metadata,omitempty"`
}

// Finalized reports whether the message is no longer being streamed into.
func (m Message) Finalized() bool {
	return !m.IsStreaming
}
