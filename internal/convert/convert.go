// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns stored document bytes into indexable text. Text
// documents pass through unchanged; binary documents (PDF, DOCX, and other
// office formats) go through a pluggable Converter backend.
package convert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/miranda/pkg/types"
)

// ErrNoConverter is returned for binary documents when no backend is
// configured.
var ErrNoConverter = errors.New("no converter configured for binary documents")

// Converter transforms a binary document into Markdown text. Different
// backends (markitdown, pandoc, pdftotext) implement this interface.
type Converter interface {
	// Convert reads content, named filename, and returns Markdown.
	Convert(ctx context.Context, filename string, content []byte) (string, error)
}

// Text returns the indexable text of doc. Text documents must be valid
// UTF-8; binary documents need a non-nil Converter.
func Text(ctx context.Context, c Converter, doc types.Document, content []byte) (string, error) {
	if !doc.Binary {
		if !utf8.Valid(content) {
			return "", fmt.Errorf("document %s is not valid UTF-8", doc.Filename)
		}
		return stripFrontmatter(string(content)), nil
	}
	if c == nil {
		return "", fmt.Errorf("converting %s (%s): %w", doc.Filename, doc.ContentType, ErrNoConverter)
	}
	text, err := c.Convert(ctx, doc.Filename, content)
	if err != nil {
		return "", fmt.Errorf("converting %s: %w", doc.Filename, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("converting %s: no text extracted", doc.Filename)
	}
	return text, nil
}

// stripFrontmatter drops a leading YAML frontmatter block so metadata keys
// are not indexed as prose.
func stripFrontmatter(s string) string {
	if !strings.HasPrefix(s, "---\n") {
		return s
	}
	rest := s[len("---\n"):]
	end := strings.Index(rest, "\n---\n")
	if end < 0 {
		return s
	}
	return strings.TrimLeft(rest[end+len("\n---\n"):], "\n")
}
