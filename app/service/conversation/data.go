package conversation

import "errors"

// Participant is a virtual speaker in the conversation, supplied by the
// caller per turn. Name must be unique within one conversation.
type Participant struct {
	Name        string `json:"name" validate:"required"`
	Identity    string `json:"identity" validate:"required"`
	Personality string `json:"personality,omitempty"`
}

// HistoryEntry is one displayed turn as the caller stores it.
type HistoryEntry struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// Turn is a parsed director line.
type Turn struct {
	Speaker string `json:"speaker"`
	Message string `json:"message"`
}

var (
	// ErrTurnInProgress means GenerateResponse was re-entered while a
	// turn was outstanding.
	ErrTurnInProgress = errors.New("turn already in progress")
	// ErrConversationStopped means the conversation was abandoned and
	// refuses further turns.
	ErrConversationStopped = errors.New("conversation stopped")
	// ErrProvidersExhausted means the active provider and its fallback
	// both failed.
	ErrProvidersExhausted = errors.New("all providers exhausted")
	// ErrSummarization wraps a failed summary call. Non-fatal, the
	// manager degrades and keeps going.
	ErrSummarization = errors.New("summarization failed")
)
