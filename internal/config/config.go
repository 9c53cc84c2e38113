package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every setting the service reads at startup.
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Bio    BioConfig
}

// Load reads configuration from environment variables. It fails when no
// completion credential is present; the process must not start without one.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	bio, err := loadBioConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai, Bio: bio}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Allow passing ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// Backend names which of the two interchangeable completion APIs is in use.
type Backend string

const (
	BackendOpenAI Backend = "openai"
	BackendGemini Backend = "gemini"
)

const (
	defaultModel  = "gemini-2.0-flash"
	openAIBaseURL = "https://api.openai.com/v1"
	// Gemini exposes an OpenAI-compatible surface under an alternate base URL.
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
)

// AIConfig is the backend descriptor resolved once at startup: which
// completion API to talk to, with what key, endpoint and model.
type AIConfig struct {
	Backend     Backend
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float32
	TopP        *float32
	MaxTokens   *int
}

// ErrNoCredentials signals that neither completion API key is configured.
var ErrNoCredentials = errors.New("no completion credentials: set OPENAI_API_KEY or GEMINI_API_KEY")

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloat32Env("LLM_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloat32Env("LLM_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("LLM_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	cfg := AIConfig{
		Model:       getEnvOrDefault("LLM_MODEL", defaultModel),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}

	openAIKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	geminiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))

	switch {
	case openAIKey != "":
		cfg.Backend = BackendOpenAI
		cfg.APIKey = openAIKey
		cfg.BaseURL = openAIBaseURL
	case geminiKey != "":
		cfg.Backend = BackendGemini
		cfg.APIKey = geminiKey
		cfg.BaseURL = geminiBaseURL
	default:
		return AIConfig{}, ErrNoCredentials
	}

	return cfg, nil
}

// NewChatModel builds a chat model instance for the configured backend. The
// two backends share the OpenAI chat-completion wire format, so a single
// component covers both.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if c.APIKey == "" {
		return nil, ErrNoCredentials
	}

	return openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL:     c.BaseURL,
		APIKey:      c.APIKey,
		Model:       c.Model,
		Temperature: c.Temperature,
		TopP:        c.TopP,
		MaxTokens:   c.MaxTokens,
	})
}

// BioConfig describes the biography summary service.
type BioConfig struct {
	BaseURL string
	Timeout int // seconds
}

func loadBioConfig() (BioConfig, error) {
	timeoutSeconds := 6
	if override, err := parseOptionalIntEnv("BIO_TIMEOUT"); err != nil {
		return BioConfig{}, err
	} else if override != nil {
		if *override < 1 {
			timeoutSeconds = 1
		} else {
			timeoutSeconds = *override
		}
	}

	return BioConfig{
		BaseURL: getEnvOrDefault("BIO_BASE_URL", "https://en.wikipedia.org/api/rest_v1"),
		Timeout: timeoutSeconds,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalFloat32Env(key string) (*float32, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	result := float32(val)
	return &result, nil
}
