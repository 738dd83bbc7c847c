// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export renders generated content for download in Markdown, plain
// text, YAML, or JSON.
package export

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/miranda/internal/apperr"
	"github.com/pdiddy/miranda/pkg/types"
)

// Format is an export file format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatYAML     Format = "yaml"
	FormatJSON     Format = "json"
)

// Formats lists the supported formats.
var Formats = []Format{FormatMarkdown, FormatText, FormatYAML, FormatJSON}

// ParseFormat resolves a format name or file extension. Empty means
// markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt":
		return FormatText, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	}
	return "", apperr.Validation("export.ParseFormat", "unknown export format %q; expected markdown, text, yaml, or json", s)
}

// Ext returns the file extension of f, without the dot.
func (f Format) Ext() string {
	switch f {
	case FormatText:
		return "txt"
	case FormatYAML:
		return "yaml"
	case FormatJSON:
		return "json"
	default:
		return "md"
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatText:
		return "text/plain; charset=utf-8"
	case FormatYAML:
		return "application/yaml"
	case FormatJSON:
		return "application/json"
	default:
		return "text/markdown; charset=utf-8"
	}
}

// Document is the structured export of one generated content record.
type Document struct {
	Project      string         `json:"project" yaml:"project"`
	ProjectID    string         `json:"project_id" yaml:"project_id"`
	Template     types.Template `json:"template" yaml:"template"`
	ContentID    string         `json:"content_id" yaml:"content_id"`
	BrainstormID string         `json:"brainstorm_id" yaml:"brainstorm_id"`
	Format       types.Template `json:"format" yaml:"format"`
	Length       types.Length   `json:"length" yaml:"length"`
	Tone         types.Tone     `json:"tone" yaml:"tone"`
	WordCount    int            `json:"word_count" yaml:"word_count"`
	CreatedAt    time.Time      `json:"created_at" yaml:"created_at"`
	Content      string         `json:"content" yaml:"content"`
}

// Render returns c rendered in format f.
func Render(p types.Project, c types.GeneratedContent, f Format) ([]byte, error) {
	switch f {
	case FormatMarkdown:
		return []byte(markdown(p, c)), nil
	case FormatText:
		return []byte(strings.TrimSpace(c.Text) + "\n"), nil
	case FormatYAML:
		data, err := yaml.Marshal(document(p, c))
		if err != nil {
			return nil, fmt.Errorf("marshaling YAML: %w", err)
		}
		return data, nil
	case FormatJSON:
		data, err := json.MarshalIndent(document(p, c), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling JSON: %w", err)
		}
		return append(data, '\n'), nil
	}
	return nil, apperr.Validation("export.Render", "unknown export format %q", f)
}

func document(p types.Project, c types.GeneratedContent) Document {
	return Document{
		Project:      p.Name,
		ProjectID:    p.ID,
		Template:     p.Template,
		ContentID:    c.ID,
		BrainstormID: c.BrainstormID,
		Format:       c.Format,
		Length:       c.Length,
		Tone:         c.Tone,
		WordCount:    c.WordCount,
		CreatedAt:    c.CreatedAt,
		Content:      c.Text,
	}
}

// markdown writes a YAML frontmatter block followed by the content body.
func markdown(p types.Project, c types.GeneratedContent) string {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "project: %q\n", p.Name)
	fmt.Fprintf(&b, "format: %s\n", c.Format)
	fmt.Fprintf(&b, "length: %s\n", c.Length)
	fmt.Fprintf(&b, "tone: %s\n", c.Tone)
	fmt.Fprintf(&b, "word_count: %d\n", c.WordCount)
	fmt.Fprintf(&b, "created_at: %s\n", c.CreatedAt.UTC().Format(time.RFC3339))
	b.WriteString("---\n\n")
	b.WriteString(strings.TrimSpace(c.Text))
	b.WriteString("\n")
	return b.String()
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Filename returns a download filename such as "demo-screenplay-gen_ab12cd34.md".
func Filename(p types.Project, c types.GeneratedContent, f Format) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(p.Name), "-"), "-")
	if slug == "" {
		slug = "project"
	}
	id := c.ID
	if len(id) > 12 {
		id = id[:12]
	}
	return fmt.Sprintf("%s-%s-%s.%s", slug, c.Format, id, f.Ext())
}
