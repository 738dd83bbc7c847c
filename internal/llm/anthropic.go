// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

// DefaultAnthropicURL is the Messages API endpoint.
const DefaultAnthropicURL = "https://api.anthropic.com/v1/messages"

const defaultAnthropicModel = "claude-3-5-haiku-latest"

// Anthropic calls the Claude Messages API for completions.
type Anthropic struct {
	APIKey  string
	Model   string
	BaseURL string
	Client  *http.Client
	Limiter *rate.Limiter
}

var _ Completer = (*Anthropic)(nil)

// claudeRequest is the request body for the Claude Messages API.
type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	System      string          `json:"system,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
	Messages    []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// claudeResponse is the response body from the Claude Messages API.
type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Configured reports whether an API key is set.
func (a *Anthropic) Configured() bool {
	return strings.TrimSpace(a.APIKey) != ""
}

// Complete sends one message and returns the concatenated text blocks.
func (a *Anthropic) Complete(ctx context.Context, prompt string, p Params) (string, error) {
	if !a.Configured() {
		return "", ErrNotConfigured
	}
	model := a.Model
	// The shared default model name belongs to OpenAI.
	if model == "" || strings.HasPrefix(model, "gpt-") {
		model = defaultAnthropicModel
	}
	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	bodyBytes, err := json.Marshal(claudeRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		System:      p.System,
		Temperature: p.Temperature,
		Messages:    []claudeMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := a.BaseURL
	if url == "" {
		url = DefaultAnthropicURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	if err := wait(ctx, a.Limiter); err != nil {
		return "", err
	}

	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &StatusError{Provider: "Claude", Status: resp.StatusCode, Body: string(body)}
	}

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return "", fmt.Errorf("decoding Claude response: %w", err)
	}

	var sb strings.Builder
	for _, block := range cResp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("no text content in Claude API response")
	}
	return text, nil
}
