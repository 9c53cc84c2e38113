package ai

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhaokun/timetavern/backend/internal/config"
	"github.com/zhaokun/timetavern/backend/internal/model/chat"
)

// CompletionError wraps the upstream failure detail of a completion call so
// callers can surface it verbatim in the conversation.
type CompletionError struct {
	Err error
}

func (e *CompletionError) Error() string { return e.Err.Error() }

func (e *CompletionError) Unwrap() error { return e.Err }

// Service wraps a single chat-completion backend behind a compiled chain.
// Exactly one backend is selected at startup; the service is agnostic to
// which one it talks to.
type Service struct {
	chatModel model.ChatModel
	cfg       config.AIConfig
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates the completion service for the configured backend.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		cfg:       cfg,
		chain:     runnable,
	}, nil
}

// Backend reports which completion API the service was wired to.
func (s *Service) Backend() config.Backend {
	return s.cfg.Backend
}

// Complete runs one completion over the full conversation history. The
// history must begin with the system entry and end with the newest user
// entry. Any failure, including an empty reply, comes back as a
// *CompletionError; there are no retries.
func (s *Service) Complete(ctx context.Context, history []chat.Message) (string, error) {
	input, err := buildChainInput(history)
	if err != nil {
		return "", &CompletionError{Err: err}
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", &CompletionError{Err: err}
	}
	if response == nil || response.Content == "" {
		return "", &CompletionError{Err: errors.New("completion returned no content")}
	}

	log.Printf("[ai] completion via %s model=%s history=%d reply=%d chars",
		s.cfg.Backend, s.cfg.Model, len(history), len(response.Content))
	return response.Content, nil
}

// buildChainInput splits the ordered history into the template slots: the
// leading system entry, the intermediate turns, and the trailing user query.
func buildChainInput(history []chat.Message) (map[string]any, error) {
	if len(history) < 2 {
		return nil, errors.New("history must contain a system entry and a user query")
	}
	if history[0].Role != chat.RoleSystem {
		return nil, errors.New("history must begin with a system entry")
	}

	last := history[len(history)-1]
	if last.Role != chat.RoleUser {
		return nil, errors.New("history must end with a user entry")
	}

	middle := history[1 : len(history)-1]
	msgs := make([]*schema.Message, 0, len(middle))
	for _, m := range middle {
		switch m.Role {
		case chat.RoleUser:
			msgs = append(msgs, schema.UserMessage(m.Content))
		case chat.RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(m.Content, nil))
		}
	}

	return map[string]any{
		"system":  history[0].Content,
		"history": msgs,
		"query":   last.Content,
	}, nil
}
