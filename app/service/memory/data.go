package memory

import "time"

const (
	// WindowSize is how many recent messages stay verbatim in context.
	WindowSize = 20
	// SummaryThreshold is the message count that triggers summarization.
	SummaryThreshold = 40
	// summaryTail is how many summaries the context exposes.
	summaryTail = 2
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"sessionId"`
}

type Summary struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"sessionId"`
	// Messages held when the summary was produced
	MessageCount int `json:"messageCount"`
}

// Context is the only view exposed to prompt construction.
type Context struct {
	RecentMessages []Message
	Summaries      []Summary
	TotalMessages  int
}
