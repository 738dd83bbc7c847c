// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_RedactsCredentials(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := FromZap(zap.New(core))

	log.Info("provider configured", "provider", "openai", "api_key", "sk-live-123", "Authorization", "Bearer x")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "openai", fields["provider"])
	assert.Equal(t, "[REDACTED]", fields["api_key"])
	assert.Equal(t, "[REDACTED]", fields["Authorization"])
}

func TestLogger_WithCarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := FromZap(zap.New(core)).With("project_id", "prj_1")

	log.Debug("indexed", "document_id", "doc_1")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "prj_1", entries[0].ContextMap()["project_id"])
	assert.Equal(t, "doc_1", entries[0].ContextMap()["document_id"])
}

func TestSanitize_OddLength(t *testing.T) {
	out := sanitize([]any{"a", 1, "dangling"})
	assert.Equal(t, []any{"a", 1, "dangling"}, out)
}
