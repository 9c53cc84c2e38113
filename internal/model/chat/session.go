package chat

import "time"

// SessionState tracks where a conversation is in the persona lifecycle.
type SessionState string

const (
	// StateAwaitingPersona means the next message names the figure to summon.
	StateAwaitingPersona SessionState = "awaiting_persona"
	// StateActive means a persona is established and messages are conversation.
	StateActive SessionState = "active"
)

// Session captures a transient anonymous conversation. Persona is empty
// exactly while the session is awaiting a persona name.
type Session struct {
	ID           string       `json:"id"`
	Persona      string       `json:"persona,omitempty"`
	SystemPrompt string       `json:"-"`
	State        SessionState `json:"state"`
	CreatedAt    time.Time    `json:"createdAt"`
}
