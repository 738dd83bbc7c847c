// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	"github.com/pdiddy/miranda/pkg/types"
)

var funcs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

// brainstormPromptTmpl asks for a numbered list of ideas.
var brainstormPromptTmpl = template.Must(template.New("brainstorm").Funcs(funcs).Parse(`You are a creative development partner for a {{.Template}} project named "{{.Project}}".
{{if .Description}}
Project description: {{.Description}}
{{end}}
Brainstorm fresh, specific ideas for the writer.

Context: {{.Context}}
Focus: {{.Focus}}
Tone: {{.Tone}}
{{if .Passages}}
Ground the ideas in this material from the project's documents:
{{range $i, $p := .Passages}}
[{{inc $i}}]{{if $p.Heading}} {{$p.Heading}}{{end}}
{{$p.Content}}
{{end}}{{end}}
Respond with a numbered list of {{.Count}} ideas, one idea per line, in the form "1. idea". Do not add any text before or after the list.
`))

// writePromptTmpl asks for drafted content built on a brainstorm.
var writePromptTmpl = template.Must(template.New("write").Funcs(funcs).Parse(`Write {{.FormatGuide}}

Project: {{.Project}}{{if .Description}} ({{.Description}}){{end}}
Tone: {{.Tone}}
Length: about {{.Words}} words ({{.Length}}).

Build on these brainstormed ideas (focus: {{.Focus}}):
{{range $i, $idea := .Ideas}}{{inc $i}}. {{$idea}}
{{end}}{{range .Tables}}
Reference data from table "{{.Name}}":
{{.Markdown}}{{end}}{{if .Passages}}
Reference material from the project's documents:
{{range $i, $p := .Passages}}
[{{inc $i}}]{{if $p.Heading}} {{$p.Heading}}{{end}}
{{$p.Content}}
{{end}}{{end}}
Use the reference data and material where relevant and do not contradict it. Respond with the text only.
`))

// systemPrompts set the voice of the model per project template.
var systemPrompts = map[types.Template]string{
	types.TemplateScreenplay: "You are an experienced screenwriter. You write in standard screenplay format with scene headings, action lines, character cues, and dialogue.",
	types.TemplateAcademic:   "You are a careful academic writer. You write structured, well-argued prose with headings and precise language.",
	types.TemplateBusiness:   "You are a senior business writer. You write clear, structured documents with headings, concise paragraphs, and actionable recommendations.",
}

var formatGuides = map[types.Template]string{
	types.TemplateScreenplay: "a screenplay scene in standard format (FADE IN, scene headings, action, dialogue).",
	types.TemplateAcademic:   "an academic section in Markdown with an introduction, body headings, and a conclusion.",
	types.TemplateBusiness:   "a business document in Markdown with an executive summary, recommendations, and next steps.",
}

// ideaCount is the number of ideas requested from a brainstorm.
const ideaCount = 5

type tableBlock struct {
	Name     string
	Markdown string
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

// listMarker matches a leading list marker: "1.", "2)", "-", "*", or "•".
var listMarker = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s+`)

// parseIdeas extracts list items from a model response. When the response
// has no list markers every non-empty line counts as one idea.
func parseIdeas(text string) []string {
	var listed, plain []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if loc := listMarker.FindStringIndex(line); loc != nil {
			if idea := cleanIdea(line[loc[1]:]); idea != "" {
				listed = append(listed, idea)
			}
			continue
		}
		plain = append(plain, cleanIdea(trimmed))
	}
	if len(listed) > 0 {
		return listed
	}
	return plain
}

func cleanIdea(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "**", "")
	return strings.TrimSpace(s)
}

// tableMarkdown renders a table as a Markdown pipe table.
func tableMarkdown(t types.Table) string {
	var b strings.Builder
	b.WriteString("|")
	for _, c := range t.Columns {
		b.WriteString(" " + escapeCell(c.Name) + " |")
	}
	b.WriteString("\n|")
	for range t.Columns {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, row := range t.Rows {
		b.WriteString("|")
		for _, c := range t.Columns {
			b.WriteString(" " + escapeCell(cellText(row[c.Name])) + " |")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// wordCount counts whitespace-separated words.
func wordCount(s string) int {
	return len(strings.Fields(s))
}
