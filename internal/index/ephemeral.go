// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/miranda/internal/apperr"
	"github.com/pdiddy/miranda/internal/engine"
	"github.com/pdiddy/miranda/internal/llm"
	"github.com/pdiddy/miranda/pkg/types"
)

// maxEphemeralText caps the text accepted by QueryText, in bytes.
const maxEphemeralText = 1 << 20

// QueryText indexes text into a throwaway scope, answers query against it,
// and removes the scope. It is a connectivity check for the providers that
// touches no project.
func (s *Service) QueryText(ctx context.Context, text, query string, mode types.QueryMode) (types.QueryResult, error) {
	const op = "index.QueryText"

	if strings.TrimSpace(text) == "" {
		return types.QueryResult{}, apperr.Validation(op, "text is required")
	}
	if len(text) > maxEphemeralText {
		return types.QueryResult{}, apperr.PayloadTooLarge(op, int64(len(text)), maxEphemeralText)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		query = "What is this document about?"
	}
	if mode == "" {
		mode = types.ModeHybrid
	}
	if !mode.Valid() {
		return types.QueryResult{}, apperr.Validation(op, "unknown query mode %q", mode)
	}
	if !s.Configured() {
		return types.QueryResult{}, apperr.Configuration(op, "OpenAI API key not configured")
	}

	dir, err := os.MkdirTemp(s.scopes.Root(), ".ephemeral-")
	if err != nil {
		return types.QueryResult{}, apperr.Indexing(op, "creating temporary scope", err)
	}
	defer os.RemoveAll(dir)

	h, err := engine.Open(dir, engine.Options{
		Embedder:     s.embedder,
		Completer:    s.completer,
		ChunkSize:    s.cfg.ChunkSize,
		ChunkOverlap: s.cfg.ChunkOverlap,
	})
	if err != nil {
		return types.QueryResult{}, apperr.Indexing(op, "opening temporary scope", err)
	}
	defer h.Close()

	if _, err := h.Insert(ctx, "text", text); err != nil {
		return types.QueryResult{}, classify(op, "indexing text", err)
	}
	ans, err := h.Query(ctx, query, mode, s.cfg.TopK)
	if err != nil {
		return types.QueryResult{}, classify(op, "query failed", err)
	}
	return types.QueryResult{
		Query:        query,
		Mode:         mode,
		Answer:       ans.Text,
		ResultLength: utf8.RuneCountInString(ans.Text),
		Confidence:   ans.Confidence,
		Sources:      ans.Passages,
	}, nil
}

func classify(op, msg string, err error) error {
	if llm.IsCredential(err) {
		return credentialErr(op, err)
	}
	return apperr.Indexing(op, msg, err)
}
