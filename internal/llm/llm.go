// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm adapts the completion and embedding APIs used by the index and
// the generation orchestrator.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/miranda/pkg/types"
)

// ErrNotConfigured is returned by providers constructed without a credential.
var ErrNotConfigured = errors.New("llm: API key is not configured")

// ErrUnauthorized matches a StatusError whose provider rejected the
// credential (HTTP 401 or 403).
var ErrUnauthorized = errors.New("llm: API key was rejected")

// IsCredential reports whether err comes from a missing or rejected API key.
// Such failures are setup problems, not failures of the input.
func IsCredential(err error) bool {
	return errors.Is(err, ErrNotConfigured) || errors.Is(err, ErrUnauthorized)
}

// Params tune one completion call.
type Params struct {
	System      string
	MaxTokens   int
	Temperature float64
}

// Completer produces text from a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string, p Params) (string, error)
	// Configured reports whether a credential is present. Callers check it
	// before doing any work so a missing key is reported up front.
	Configured() bool
}

// Embedder produces one vector per input text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Configured() bool
}

// StatusError is a non-2xx provider response.
type StatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API returned %d: %s", e.Provider, e.Status, e.Body)
}

// Is lets errors.Is(err, ErrUnauthorized) match credential rejections.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized &&
		(e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden)
}

const defaultTimeout = 60 * time.Second

// New builds the completer and embedder selected by cfg. Providers without a
// key are still returned; they report Configured() == false.
func New(cfg types.AIConfig) (Completer, Embedder) {
	client := &http.Client{Timeout: cfg.Timeout}
	if cfg.Timeout <= 0 {
		client.Timeout = defaultTimeout
	}
	limiter := newLimiter(cfg.RequestsPerSecond)

	embedKey := cfg.EmbedAPIKey
	if embedKey == "" && cfg.Provider != types.ProviderAnthropic {
		embedKey = cfg.APIKey
	}
	embedBase := cfg.BaseURL
	if cfg.Provider == types.ProviderAnthropic {
		embedBase = ""
	}
	embedder := &OpenAI{
		APIKey:     embedKey,
		BaseURL:    embedBase,
		EmbedModel: cfg.EmbedModel,
		MaxRetries: cfg.MaxRetries,
		Client:     client,
		Limiter:    limiter,
	}

	if cfg.Provider == types.ProviderAnthropic {
		return &Anthropic{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Client:  client,
			Limiter: limiter,
		}, embedder
	}
	return &OpenAI{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		EmbedModel: cfg.EmbedModel,
		MaxRetries: cfg.MaxRetries,
		Client:     client,
		Limiter:    limiter,
	}, embedder
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func wait(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	if err := l.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}
	return nil
}
