// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"strings"
	"unicode"
)

type section struct {
	heading string
	body    string
}

// chunk is one indexed passage.
type chunk struct {
	seq     int
	heading string
	text    string
}

// chunkByHeadings splits Markdown into sections at heading boundaries
// (#, ##, or ###). Each section carries the heading text and the body up to
// the next heading.
func chunkByHeadings(content string) []section {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	var sections []section
	currentHeading := ""
	var bodyLines []string

	flush := func() {
		body := strings.TrimSpace(strings.Join(bodyLines, "\n"))
		if body != "" {
			sections = append(sections, section{heading: currentHeading, body: body})
		} else if currentHeading != "" {
			sections = append(sections, section{heading: currentHeading, body: currentHeading})
		}
		bodyLines = nil
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if isHeading(trimmed) {
			flush()
			currentHeading = stripHeadingPrefix(trimmed)
			continue
		}
		bodyLines = append(bodyLines, line)
	}

	flush()
	return sections
}

func isHeading(line string) bool {
	return strings.HasPrefix(line, "# ") || strings.HasPrefix(line, "## ") || strings.HasPrefix(line, "### ")
}

func stripHeadingPrefix(line string) string {
	return strings.TrimSpace(strings.TrimLeft(line, "#"))
}

// splitText cuts text into pieces of at most size runes, each starting
// overlap runes before the previous cut. Cuts prefer whitespace.
func splitText(text string, size, overlap int) []string {
	runes := []rune(text)
	if size <= 0 || len(runes) <= size {
		return []string{text}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var out []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			out = append(out, strings.TrimSpace(string(runes[start:])))
			break
		}
		cut := end
		for i := end; i > start+size/2; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}
		out = append(out, strings.TrimSpace(string(runes[start:cut])))
		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return out
}

// chunkText produces the passages of a document in order.
func chunkText(text string, size, overlap int) []chunk {
	var out []chunk
	for _, sec := range chunkByHeadings(text) {
		for _, piece := range splitText(sec.body, size, overlap) {
			if piece == "" {
				continue
			}
			out = append(out, chunk{seq: len(out), heading: sec.heading, text: piece})
		}
	}
	return out
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true,
	"by": true, "for": true, "from": true, "how": true, "in": true, "is": true, "it": true,
	"of": true, "on": true, "or": true, "that": true, "the": true, "this": true, "to": true,
	"was": true, "what": true, "when": true, "where": true, "which": true, "who": true,
	"why": true, "with": true, "does": true, "do": true, "about": true,
}

// terms lowercases text and returns its distinct content words.
func terms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	var out []string
	for _, f := range fields {
		if len([]rune(f)) < 2 || stopwords[f] || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
