package bio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zhaokun/timetavern/backend/internal/config"
)

// Fetcher resolves a figure's short biography from a REST summary service.
type Fetcher struct {
	baseURL string
	client  *http.Client
}

// NewFetcher builds a fetcher with the configured endpoint and a short fixed
// timeout, so a slow lookup cannot stall a conversation for long.
func NewFetcher(cfg config.BioConfig) *Fetcher {
	return &Fetcher{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
	}
}

// Fetch returns the summary extract for name, or "" when anything goes wrong.
// A missing biography degrades persona quality but must never block the chat,
// so every failure path collapses to the empty string.
func (f *Fetcher) Fetch(ctx context.Context, name string) string {
	endpoint := fmt.Sprintf("%s/page/summary/%s", f.baseURL, url.PathEscape(name))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ""
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return ""
	}

	var payload struct {
		Extract string `json:"extract"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return ""
	}

	return payload.Extract
}
