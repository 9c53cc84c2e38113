package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/zhaokun/timetavern/backend/internal/model/chat"
	"github.com/zhaokun/timetavern/backend/internal/service/ai"
)

// ErrSessionNotFound is returned for operations against unknown sessions.
var ErrSessionNotFound = errors.New("session not found")

// Completer issues one chat completion over a full conversation history.
type Completer interface {
	Complete(ctx context.Context, history []chat.Message) (string, error)
}

// BioFetcher resolves a short biography for a persona name, best effort.
type BioFetcher interface {
	Fetch(ctx context.Context, name string) string
}

// ProgressFunc receives placeholder text before a slow step of a turn, so the
// transport can show a progress indicator and later overwrite it with the
// final outcome. A nil ProgressFunc is allowed.
type ProgressFunc func(text string)

// User-facing texts shared by every transport.
const (
	// WelcomeText is sent when a conversation starts.
	WelcomeText = "Welcome to Time-Travel Bot! Tell me the name of any historical or contemporary public figure, and I'll let you chat with them in their own voice. Type `switch <another name>` at any time to change persona."
	// UsageHint is shown when the switch command has no target.
	UsageHint = "Usage: switch Marie Curie"
	// SwitchAck acknowledges a switch; the next message names the new persona.
	SwitchAck = "🔄 Okay, who would you like to speak with now?"
	// ReadyText is shown once a persona has been resolved.
	ReadyText = "Great! Ask your first question."
	// ThinkingText is the placeholder shown while a completion is pending.
	ThinkingText = "Thinking…"
)

// SummoningText is the placeholder shown while a persona is being resolved.
func SummoningText(name string) string {
	return fmt.Sprintf("🕰️ Summoning %s… one moment.", name)
}

// TurnKind discriminates the outcome of one processed user message.
type TurnKind string

const (
	TurnUsage           TurnKind = "usage"
	TurnSwitched        TurnKind = "switched"
	TurnPersonaResolved TurnKind = "persona_resolved"
	TurnReply           TurnKind = "reply"
	TurnError           TurnKind = "error"
)

// Turn is the transport-neutral result of HandleMessage.
type Turn struct {
	Kind    TurnKind
	Persona string // set when Kind == TurnPersonaResolved
	Reply   string // final text shown to the user
	Err     string // upstream detail when Kind == TurnError
}

// Service owns all conversation state and drives the persona state machine.
// Each session moves between awaiting-persona and active; its history lives
// alongside it, keyed by session id.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
	messages map[string][]chat.Message

	bio       BioFetcher
	completer Completer
}

// NewService bootstraps the in-memory chat service.
func NewService(bio BioFetcher, completer Completer) *Service {
	return &Service{
		sessions:  make(map[string]chat.Session),
		messages:  make(map[string][]chat.Message),
		bio:       bio,
		completer: completer,
	}
}

// CreateSession provisions an anonymous session awaiting its first persona.
func (s *Service) CreateSession(_ context.Context) chat.Session {
	session := chat.Session{
		ID:        uuid.NewString(),
		State:     chat.StateAwaitingPersona,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.messages[session.ID] = []chat.Message{}
	s.mu.Unlock()

	return session
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// LoadTranscript returns a copy of the stored messages for the session.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

// HandleMessage processes one incoming user message against the session's
// current state and returns the resulting turn. Only ErrSessionNotFound is
// returned as an error; everything else, including completion failures, is
// reported through the Turn so transports render it in-conversation.
func (s *Service) HandleMessage(ctx context.Context, sessionID, text string, progress ProgressFunc) (Turn, error) {
	text = strings.TrimSpace(text)

	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return Turn{}, ErrSessionNotFound
	}

	if target, isCommand := parseSwitch(text); isCommand {
		if target == "" {
			return Turn{Kind: TurnUsage, Reply: UsageHint}, nil
		}
		// The target itself is discarded: switching always returns to the
		// awaiting state and the next message supplies the new name.
		s.reset(sessionID)
		return Turn{Kind: TurnSwitched, Reply: SwitchAck}, nil
	}

	if session.State == chat.StateAwaitingPersona {
		return s.resolvePersona(ctx, sessionID, text, progress), nil
	}

	return s.converse(ctx, sessionID, text, progress), nil
}

// parseSwitch reports whether text is a switch command, and if so the raw
// argument after the command word. Matching is prefix-based and
// case-insensitive, mirroring the command surface contract.
func parseSwitch(text string) (target string, isCommand bool) {
	if !strings.HasPrefix(strings.ToLower(text), "switch") {
		return "", false
	}

	parts := strings.SplitN(text, " ", 2)
	if len(parts) == 1 {
		return "", true
	}
	return strings.TrimSpace(parts[1]), true
}

// resolvePersona turns the raw message into a persona name, fetches its
// biography and seeds the history with the built system prompt. No completion
// call happens on this turn.
//
// Title-casing is applied uniformly ("marie curie" -> "Marie Curie"); stylized
// capitalization such as "eBay" is knowingly mangled. Known limitation.
func (s *Service) resolvePersona(ctx context.Context, sessionID, text string, progress ProgressFunc) Turn {
	name := cases.Title(language.English).String(text)
	if progress != nil {
		progress(SummoningText(name))
	}

	bio := s.bio.Fetch(ctx, name)
	systemPrompt := ai.BuildSystemPrompt(name, bio)

	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return Turn{Kind: TurnError, Err: ErrSessionNotFound.Error(), Reply: ErrSessionNotFound.Error()}
	}
	session.Persona = name
	session.SystemPrompt = systemPrompt
	session.State = chat.StateActive
	s.sessions[sessionID] = session
	s.messages[sessionID] = []chat.Message{newMessage(sessionID, chat.RoleSystem, systemPrompt)}
	s.mu.Unlock()

	return Turn{Kind: TurnPersonaResolved, Persona: name, Reply: ReadyText}
}

// converse appends the user entry, requests a completion over the full
// history, and appends the assistant reply on success. On failure the
// dangling user entry stays in place for the next turn's context and the
// session remains active so the user may simply resend.
func (s *Service) converse(ctx context.Context, sessionID, text string, progress ProgressFunc) Turn {
	userMsg := newMessage(sessionID, chat.RoleUser, text)

	s.mu.Lock()
	s.messages[sessionID] = append(s.messages[sessionID], userMsg)
	history := make([]chat.Message, len(s.messages[sessionID]))
	copy(history, s.messages[sessionID])
	s.mu.Unlock()

	if progress != nil {
		progress(ThinkingText)
	}

	reply, err := s.completer.Complete(ctx, history)
	if err != nil {
		return Turn{
			Kind:  TurnError,
			Err:   err.Error(),
			Reply: fmt.Sprintf("❗ Error from model: %v", err),
		}
	}

	s.mu.Lock()
	s.messages[sessionID] = append(s.messages[sessionID], newMessage(sessionID, chat.RoleAssistant, reply))
	s.mu.Unlock()

	return Turn{Kind: TurnReply, Reply: reply}
}

// reset clears persona, prompt and history, returning the session to the
// awaiting state.
func (s *Service) reset(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	session.Persona = ""
	session.SystemPrompt = ""
	session.State = chat.StateAwaitingPersona
	s.sessions[sessionID] = session
	s.messages[sessionID] = []chat.Message{}
}

func newMessage(sessionID string, role chat.Role, content string) chat.Message {
	return chat.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}
