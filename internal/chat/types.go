package chat

import "time"

// Message is one conversational turn. Messages are appended in order and
// never mutated, reordered, or deleted individually.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is a persisted conversation thread. UserEmail is empty for
// guest sessions, which no account links back to.
type Session struct {
	SessionID string    `json:"session_id"`
	UserEmail string    `json:"user_email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Messages  []Message `json:"messages"`
}

// Preview is the session-list projection: the first user-authored message
// truncated for display, plus counts.
type Preview struct {
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	Preview      string    `json:"preview"`
	MessageCount int       `json:"message_count"`
}

// PromptMessage is the reduced shape handed to the assistant client:
// timestamps are stripped for prompt assembly.
type PromptMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
