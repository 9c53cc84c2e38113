package config

import (
	"errors"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "OPENAI_API_KEY", "GEMINI_API_KEY", "LLM_MODEL",
		"LLM_TEMPERATURE", "LLM_TOP_P", "LLM_MAX_TOKENS",
		"BIO_BASE_URL", "BIO_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadRequiresCredentials(t *testing.T) {
	clearEnv(t)

	if _, err := Load(); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}

func TestLoadOpenAIBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.AI.Backend != BackendOpenAI {
		t.Fatalf("unexpected backend: %s", cfg.AI.Backend)
	}
	if cfg.AI.BaseURL != "https://api.openai.com/v1" {
		t.Fatalf("unexpected base URL: %s", cfg.AI.BaseURL)
	}
	if cfg.AI.Model != "gemini-2.0-flash" {
		t.Fatalf("unexpected default model: %s", cfg.AI.Model)
	}
}

func TestLoadGeminiBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "g-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.AI.Backend != BackendGemini {
		t.Fatalf("unexpected backend: %s", cfg.AI.Backend)
	}
	if cfg.AI.BaseURL != "https://generativelanguage.googleapis.com/v1beta/openai/" {
		t.Fatalf("unexpected base URL: %s", cfg.AI.BaseURL)
	}
}

func TestLoadOpenAITakesPrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GEMINI_API_KEY", "g-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.AI.Backend != BackendOpenAI {
		t.Fatalf("OPENAI_API_KEY must win when both keys are set, got %s", cfg.AI.Backend)
	}
}

func TestLoadModelOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "g-test")
	t.Setenv("LLM_MODEL", "gpt-4o-mini")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.AI.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected model: %s", cfg.AI.Model)
	}
}

func TestLoadTuningParameters(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("LLM_TEMPERATURE", "0.7")
	t.Setenv("LLM_MAX_TOKENS", "512")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.AI.Temperature == nil || *cfg.AI.Temperature != 0.7 {
		t.Fatalf("unexpected temperature: %v", cfg.AI.Temperature)
	}
	if cfg.AI.MaxTokens == nil || *cfg.AI.MaxTokens != 512 {
		t.Fatalf("unexpected max tokens: %v", cfg.AI.MaxTokens)
	}
	if cfg.AI.TopP != nil {
		t.Fatalf("unset top_p must stay nil, got %v", cfg.AI.TopP)
	}
}

func TestLoadInvalidTuningParameter(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("LLM_MAX_TOKENS", "many")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-numeric LLM_MAX_TOKENS")
	}
}

func TestServerConfigPortForms(t *testing.T) {
	tests := []struct {
		port    string
		want    string
		wantErr bool
	}{
		{"", ":8080", false},
		{"9090", ":9090", false},
		{":9090", ":9090", false},
		{"127.0.0.1:9090", "127.0.0.1:9090", false},
		{"bad port", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.port, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("OPENAI_API_KEY", "sk-test")
			t.Setenv("PORT", tc.port)

			cfg, err := Load()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load err: %v", err)
			}
			if cfg.Server.Addr != tc.want {
				t.Fatalf("unexpected addr: got %s want %s", cfg.Server.Addr, tc.want)
			}
		})
	}
}

func TestBioConfigDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Bio.BaseURL != "https://en.wikipedia.org/api/rest_v1" {
		t.Fatalf("unexpected bio base URL: %s", cfg.Bio.BaseURL)
	}
	if cfg.Bio.Timeout != 6 {
		t.Fatalf("unexpected bio timeout: %d", cfg.Bio.Timeout)
	}
}
