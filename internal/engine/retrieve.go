// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"text/template"
	"unicode"

	"github.com/pdiddy/miranda/internal/llm"
	"github.com/pdiddy/miranda/pkg/types"
)

// rrfK is the reciprocal-rank fusion constant.
const rrfK = 60

// candidateLimit bounds the rows fetched from the full-text index.
const candidateLimit = 200

// Answer is a synthesized response with the passages it was built from.
type Answer struct {
	Text       string
	Passages   []types.Passage
	Confidence float64
}

type scored struct {
	rowid int64
	p     types.Passage
}

// Retrieve returns the top k passages for text. docIDs, when non-empty,
// restricts the search to those documents.
func (h *Handle) Retrieve(ctx context.Context, text string, k int, mode types.QueryMode, docIDs []string) ([]types.Passage, error) {
	if k <= 0 {
		k = defaultTopK
	}
	if mode == "" {
		mode = types.ModeHybrid
	}
	if (mode == types.ModeNaive || mode == types.ModeHybrid) && !h.vectorsEnabled() {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal:
		hits, err := h.keywordSearch(ctx, text, docIDs)
		if err != nil {
			return nil, err
		}
		return top(hits, k), nil
	case types.ModeNaive:
		hits, err := h.vectorSearch(ctx, text, docIDs)
		if err != nil {
			return nil, err
		}
		return top(hits, k), nil
	case types.ModeHybrid:
		kw, err := h.keywordSearch(ctx, text, docIDs)
		if err != nil {
			return nil, err
		}
		vec, err := h.vectorSearch(ctx, text, docIDs)
		if err != nil {
			return nil, err
		}
		return top(fuse(kw, vec), k), nil
	default:
		return nil, fmt.Errorf("unknown query mode %q", mode)
	}
}

// keywordSearch ranks passages matching any query term by a BM25-style
// score computed over the candidate set.
func (h *Handle) keywordSearch(ctx context.Context, text string, docIDs []string) ([]scored, error) {
	qterms := terms(text)
	if len(qterms) == 0 {
		return nil, nil
	}
	quoted := make([]string, len(qterms))
	for i, t := range qterms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}

	query := `SELECT c.rowid, c.doc_id, c.seq, COALESCE(c.heading, ''), c.body
		FROM chunks_fts JOIN chunks c ON c.rowid = chunks_fts.rowid
		WHERE chunks_fts MATCH ?`
	args := []any{strings.Join(quoted, " OR ")}
	if len(docIDs) > 0 {
		query += ` AND c.doc_id IN (` + placeholders(len(docIDs)) + `)`
		for _, id := range docIDs {
			args = append(args, id)
		}
	}
	query += ` LIMIT ?`
	args = append(args, candidateLimit)

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("full-text search: %w", err)
	}
	defer rows.Close()

	var hits []scored
	for rows.Next() {
		var s scored
		if err := rows.Scan(&s.rowid, &s.p.DocumentID, &s.p.Seq, &s.p.Heading, &s.p.Content); err != nil {
			return nil, fmt.Errorf("scanning passage: %w", err)
		}
		hits = append(hits, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading passages: %w", err)
	}

	scoreKeywords(hits, qterms)
	return hits, nil
}

// scoreKeywords assigns each hit a saturated term-frequency score weighted
// by inverse document frequency within the candidates, normalised to (0,1].
func scoreKeywords(hits []scored, qterms []string) {
	if len(hits) == 0 {
		return
	}
	docTerms := make([]map[string]int, len(hits))
	df := make(map[string]int, len(qterms))
	for i, h := range hits {
		counts := make(map[string]int)
		for _, t := range strings.FieldsFunc(strings.ToLower(h.p.Heading+" "+h.p.Content), notWordRune) {
			counts[t]++
		}
		docTerms[i] = counts
		for _, q := range qterms {
			if counts[q] > 0 {
				df[q]++
			}
		}
	}
	n := float64(len(hits))
	var best float64
	for i := range hits {
		var s float64
		for _, q := range qterms {
			tf := float64(docTerms[i][q])
			if tf == 0 {
				continue
			}
			idf := math.Log(1 + (n-float64(df[q])+0.5)/(float64(df[q])+0.5))
			s += idf * (tf * 2.2) / (tf + 1.2)
		}
		hits[i].p.Score = s
		if s > best {
			best = s
		}
	}
	if best > 0 {
		for i := range hits {
			hits[i].p.Score /= best
			// Scale by query coverage so one weak match is not reported as certain.
			hits[i].p.Score *= coverage(docTerms[i], qterms)
		}
	}
}

func coverage(counts map[string]int, qterms []string) float64 {
	matched := 0
	for _, q := range qterms {
		if counts[q] > 0 {
			matched++
		}
	}
	return float64(matched) / float64(len(qterms))
}

func notWordRune(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// vectorSearch ranks passages by cosine similarity to the query embedding.
func (h *Handle) vectorSearch(ctx context.Context, text string, docIDs []string) ([]scored, error) {
	vecs, err := h.opts.Embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedding query: got %d vectors", len(vecs))
	}
	qv := vecs[0]

	query := `SELECT rowid, doc_id, seq, COALESCE(heading, ''), body, embedding FROM chunks WHERE embedding IS NOT NULL`
	var args []any
	if len(docIDs) > 0 {
		query += ` AND doc_id IN (` + placeholders(len(docIDs)) + `)`
		for _, id := range docIDs {
			args = append(args, id)
		}
	}
	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var hits []scored
	for rows.Next() {
		var s scored
		var blob []byte
		if err := rows.Scan(&s.rowid, &s.p.DocumentID, &s.p.Seq, &s.p.Heading, &s.p.Content, &blob); err != nil {
			return nil, fmt.Errorf("scanning passage: %w", err)
		}
		s.p.Score = math.Max(0, cosine(qv, decodeVector(blob)))
		hits = append(hits, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading passages: %w", err)
	}
	return hits, nil
}

// fuse merges keyword and vector rankings with reciprocal-rank fusion.
// Scores are normalised so a passage ranked first by both lists scores 1.
func fuse(kw, vec []scored) []scored {
	sortScored(kw)
	sortScored(vec)
	merged := make(map[int64]*scored)
	add := func(list []scored) {
		for rank, s := range list {
			contrib := 1.0 / float64(rrfK+rank+1)
			if m, ok := merged[s.rowid]; ok {
				m.p.Score += contrib
				continue
			}
			c := s
			c.p.Score = contrib
			merged[s.rowid] = &c
		}
	}
	add(kw)
	add(vec)

	ceiling := 2.0 / float64(rrfK+1)
	out := make([]scored, 0, len(merged))
	for _, s := range merged {
		s.p.Score /= ceiling
		out = append(out, *s)
	}
	return out
}

func sortScored(list []scored) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].p.Score == list[j].p.Score {
			return list[i].rowid < list[j].rowid
		}
		return list[i].p.Score > list[j].p.Score
	})
}

func top(list []scored, k int) []types.Passage {
	sortScored(list)
	if len(list) > k {
		list = list[:k]
	}
	out := make([]types.Passage, 0, len(list))
	for _, s := range list {
		if s.p.Score <= 0 {
			continue
		}
		out = append(out, s.p)
	}
	return out
}

var answerPromptTmpl = template.Must(template.New("answer").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`Answer the question using only the context passages below. If the passages do not contain the answer, say so plainly. Do not invent facts.

{{if .Passages}}Context passages:
{{range $i, $p := .Passages}}
[{{inc $i}}]{{if $p.Heading}} {{$p.Heading}}{{end}}
{{$p.Content}}
{{end}}{{else}}No context passages matched the question.
{{end}}
Question: {{.Question}}
`))

// Query retrieves passages for text and asks the completer to answer from
// them. It returns ErrEmpty when the scope holds no passages.
func (h *Handle) Query(ctx context.Context, text string, mode types.QueryMode, k int) (Answer, error) {
	n, err := h.Count(ctx)
	if err != nil {
		return Answer{}, err
	}
	if n == 0 {
		return Answer{}, ErrEmpty
	}
	if h.opts.Completer == nil {
		return Answer{}, fmt.Errorf("no completer configured for synthesis")
	}

	passages, err := h.Retrieve(ctx, text, k, mode, nil)
	if err != nil {
		return Answer{}, err
	}

	prompt, err := renderAnswerPrompt(text, passages)
	if err != nil {
		return Answer{}, fmt.Errorf("rendering prompt: %w", err)
	}
	out, err := h.opts.Completer.Complete(ctx, prompt, llm.Params{Temperature: 0.2})
	if err != nil {
		return Answer{}, fmt.Errorf("synthesizing answer: %w", err)
	}

	var confidence float64
	if len(passages) > 0 {
		confidence = math.Min(1, passages[0].Score)
	}
	return Answer{Text: out, Passages: passages, Confidence: confidence}, nil
}

func renderAnswerPrompt(question string, passages []types.Passage) (string, error) {
	var buf bytes.Buffer
	err := answerPromptTmpl.Execute(&buf, struct {
		Question string
		Passages []types.Passage
	}{Question: question, Passages: passages})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
