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

	"github.com/pdiddy/miranda/internal/httputil"
)

// Default OpenAI settings.
const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultChatModel     = "gpt-4o-mini"
	DefaultEmbedModel    = "text-embedding-3-small"
)

// OpenAI calls the chat completions and embeddings endpoints.
type OpenAI struct {
	APIKey     string
	BaseURL    string
	Model      string
	EmbedModel string
	MaxRetries int
	Client     *http.Client
	Limiter    *rate.Limiter
}

var (
	_ Completer = (*OpenAI)(nil)
	_ Embedder  = (*OpenAI)(nil)
)

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Configured reports whether an API key is set.
func (o *OpenAI) Configured() bool {
	return strings.TrimSpace(o.APIKey) != ""
}

func (o *OpenAI) baseURL() string {
	if o.BaseURL != "" {
		return strings.TrimRight(o.BaseURL, "/")
	}
	return DefaultOpenAIBaseURL
}

func (o *OpenAI) client() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	return http.DefaultClient
}

// Complete runs one chat completion. It is never retried.
func (o *OpenAI) Complete(ctx context.Context, prompt string, p Params) (string, error) {
	if !o.Configured() {
		return "", ErrNotConfigured
	}
	model := o.Model
	if model == "" {
		model = DefaultChatModel
	}

	var messages []chatMessage
	if p.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: p.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	req, err := o.newRequest(ctx, "/chat/completions", chatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
	})
	if err != nil {
		return "", err
	}
	if err := wait(ctx, o.Limiter); err != nil {
		return "", err
	}

	resp, err := o.client().Do(req)
	if err != nil {
		return "", fmt.Errorf("calling OpenAI API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading OpenAI response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Provider: "OpenAI", Status: resp.StatusCode, Body: string(body)}
	}

	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return "", fmt.Errorf("decoding OpenAI response: %w", err)
	}
	if cr.Error != nil {
		return "", fmt.Errorf("OpenAI error: %s", cr.Error.Message)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("OpenAI API returned no choices")
	}
	text := strings.TrimSpace(cr.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("OpenAI API returned empty content")
	}
	return text, nil
}

// Embed returns one vector per text, in input order. HTTP 429 responses are
// retried with backoff.
func (o *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if !o.Configured() {
		return nil, ErrNotConfigured
	}
	if len(texts) == 0 {
		return nil, nil
	}
	model := o.EmbedModel
	if model == "" {
		model = DefaultEmbedModel
	}

	req, err := o.newRequest(ctx, "/embeddings", embeddingRequest{Model: model, Input: texts})
	if err != nil {
		return nil, err
	}
	if err := wait(ctx, o.Limiter); err != nil {
		return nil, err
	}

	resp, err := httputil.DoWithRetry(ctx, o.client(), req, o.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("calling OpenAI embeddings API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading OpenAI response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Provider: "OpenAI", Status: resp.StatusCode, Body: string(body)}
	}

	var er embeddingResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return nil, fmt.Errorf("decoding OpenAI embeddings: %w", err)
	}
	if er.Error != nil {
		return nil, fmt.Errorf("OpenAI error: %s", er.Error.Message)
	}

	out := make([][]float32, len(texts))
	for _, d := range er.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("OpenAI embeddings: index %d out of range", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("OpenAI embeddings: missing vector for input %d", i)
		}
	}
	return out, nil
}

func (o *OpenAI) newRequest(ctx context.Context, path string, payload any) (*http.Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL()+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.APIKey)
	return req, nil
}
