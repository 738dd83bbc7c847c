// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package generate runs the two-stage brainstorm and write flow. Each
// request moves through received, context_assembled, and model_invoked
// before it completes or fails. A request calls the model once and stores
// its record only after the call succeeds, so failures never leave partial
// records behind.
package generate

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/miranda/internal/apperr"
	"github.com/pdiddy/miranda/internal/llm"
	"github.com/pdiddy/miranda/internal/logging"
	"github.com/pdiddy/miranda/internal/project"
	"github.com/pdiddy/miranda/pkg/types"
)

// Defaults applied to empty brainstorm and write fields.
const (
	DefaultContext    = "General brainstorming session"
	DefaultFocus      = "Creative development"
	DefaultTone       = types.ToneNeutral
	DefaultLength     = types.LengthScene
	DefaultPromptTone = types.ToneProfessional
)

// maxFieldLen caps the free-text brainstorm fields, in characters.
const maxFieldLen = 2000

const defaultTopK = 4

// Searcher retrieves passages from a project's indexed documents.
type Searcher interface {
	Search(ctx context.Context, projectID, text string, k int, bucketIDs []string) ([]types.Passage, error)
}

// Orchestrator runs generation requests against one store.
type Orchestrator struct {
	store     *project.Store
	index     Searcher
	completer llm.Completer
	log       *logging.Logger
}

// New creates an Orchestrator. index may be nil, which disables document
// enrichment.
func New(store *project.Store, index Searcher, completer llm.Completer, log *logging.Logger) *Orchestrator {
	if log == nil {
		log = logging.Nop()
	}
	return &Orchestrator{
		store:     store,
		index:     index,
		completer: completer,
		log:       log.With("component", "generate"),
	}
}

// Configured reports whether the LLM credential is present.
func (o *Orchestrator) Configured() bool {
	return o.completer != nil && o.completer.Configured()
}

// BrainstormInput is a brainstorm request. Empty fields take the package
// defaults.
type BrainstormInput struct {
	ProjectID string
	Context   string
	Focus     string
	Tone      types.Tone

	// UseDocuments enriches the prompt with passages retrieved by Focus.
	UseDocuments bool

	// TopK bounds the passages used for enrichment.
	TopK int
}

func (in *BrainstormInput) normalize(op string) error {
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	if in.ProjectID == "" {
		return apperr.Validation(op, "project_id is required")
	}
	in.Context = strings.TrimSpace(in.Context)
	if in.Context == "" {
		in.Context = DefaultContext
	}
	in.Focus = strings.TrimSpace(in.Focus)
	if in.Focus == "" {
		in.Focus = DefaultFocus
	}
	if utf8.RuneCountInString(in.Context) > maxFieldLen || utf8.RuneCountInString(in.Focus) > maxFieldLen {
		return apperr.Validation(op, "context and focus must be at most %d characters", maxFieldLen)
	}
	if in.Tone == "" {
		in.Tone = DefaultTone
	}
	if !in.Tone.Valid() {
		return apperr.Validation(op, "unknown tone %q", in.Tone)
	}
	if in.TopK <= 0 {
		in.TopK = defaultTopK
	}
	return nil
}

// Brainstorm generates a list of ideas and stores them as a new Brainstorm.
func (o *Orchestrator) Brainstorm(ctx context.Context, in BrainstormInput) (types.Brainstorm, error) {
	const op = "generate.Brainstorm"
	r := newRun(o.log, "brainstorm", in.ProjectID)

	if err := in.normalize(op); err != nil {
		return types.Brainstorm{}, r.fail(err)
	}
	if !o.Configured() {
		return types.Brainstorm{}, r.fail(apperr.Configuration(op, "LLM API key not configured"))
	}
	p, err := o.store.GetProject(ctx, in.ProjectID)
	if err != nil {
		return types.Brainstorm{}, r.fail(err)
	}

	var passages []types.Passage
	if in.UseDocuments {
		passages, err = o.enrich(ctx, p.ID, in.Focus, in.TopK, nil)
		if err != nil {
			return types.Brainstorm{}, r.fail(err)
		}
	}
	prompt, err := render(brainstormPromptTmpl, struct {
		Project, Description, Context, Focus string
		Template                             types.Template
		Tone                                 types.Tone
		Passages                             []types.Passage
		Count                                int
	}{
		Project: p.Name, Description: p.Description, Context: in.Context, Focus: in.Focus,
		Template: p.Template, Tone: in.Tone, Passages: passages, Count: ideaCount,
	})
	if err != nil {
		return types.Brainstorm{}, r.fail(apperr.E(apperr.KindInternal, op, "building prompt", err))
	}
	r.advance(StateContextAssembled)

	r.advance(StateModelInvoked)
	out, err := o.completer.Complete(ctx, prompt, llm.Params{
		System:      systemPrompts[p.Template],
		MaxTokens:   1024,
		Temperature: 0.8,
	})
	if err != nil {
		return types.Brainstorm{}, r.fail(providerErr(op, "brainstorm generation failed", err))
	}
	ideas := parseIdeas(out)
	if len(ideas) == 0 {
		return types.Brainstorm{}, r.fail(apperr.Generation(op, "model returned no ideas", nil))
	}

	b, err := o.store.PutBrainstorm(ctx, types.Brainstorm{
		ProjectID: p.ID,
		Context:   in.Context,
		Focus:     in.Focus,
		Tone:      in.Tone,
		Ideas:     ideas,
		Sources:   sourceIDs(passages),
	})
	if err != nil {
		return types.Brainstorm{}, r.fail(err)
	}
	r.complete("brainstorm_id", b.ID, "ideas", len(ideas), "passages", len(passages))
	return b, nil
}

// WriteInput is a write request. Empty Format takes the project template.
type WriteInput struct {
	ProjectID       string
	BrainstormID    string
	Format          types.Template
	Length          types.Length
	Tone            types.Tone
	SelectedTables  []string
	SelectedBuckets []string

	// TopK bounds the passages used for enrichment.
	TopK int
}

func (in *WriteInput) normalize(op string) error {
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	if in.ProjectID == "" {
		return apperr.Validation(op, "project_id is required")
	}
	in.BrainstormID = strings.TrimSpace(in.BrainstormID)
	if in.BrainstormID == "" {
		return apperr.Validation(op, "brainstorm_id is required")
	}
	if in.Format != "" && !in.Format.Valid() {
		return apperr.Validation(op, "unknown format %q; expected screenplay, academic, or business", in.Format)
	}
	if in.Length == "" {
		in.Length = DefaultLength
	}
	if !in.Length.Valid() {
		return apperr.Validation(op, "unknown length %q; expected scene, short, medium, or long", in.Length)
	}
	if in.Tone == "" {
		in.Tone = DefaultPromptTone
	}
	if !in.Tone.Valid() {
		return apperr.Validation(op, "unknown tone %q", in.Tone)
	}
	in.SelectedTables = dedupe(in.SelectedTables)
	in.SelectedBuckets = dedupe(in.SelectedBuckets)
	if in.TopK <= 0 {
		in.TopK = defaultTopK
	}
	return nil
}

// Write drafts content from a brainstorm and stores it as a new
// GeneratedContent. The brainstorm is never modified.
func (o *Orchestrator) Write(ctx context.Context, in WriteInput) (types.GeneratedContent, error) {
	const op = "generate.Write"
	r := newRun(o.log, "write", in.ProjectID)

	if err := in.normalize(op); err != nil {
		return types.GeneratedContent{}, r.fail(err)
	}
	if !o.Configured() {
		return types.GeneratedContent{}, r.fail(apperr.Configuration(op, "LLM API key not configured"))
	}
	p, err := o.store.GetProject(ctx, in.ProjectID)
	if err != nil {
		return types.GeneratedContent{}, r.fail(err)
	}
	b, err := o.store.GetBrainstorm(ctx, p.ID, in.BrainstormID)
	if err != nil {
		return types.GeneratedContent{}, r.fail(err)
	}
	format := in.Format
	if format == "" {
		format = p.Template
	}

	tables := make([]tableBlock, 0, len(in.SelectedTables))
	for _, id := range in.SelectedTables {
		t, err := o.store.GetTable(ctx, p.ID, id)
		if err != nil {
			return types.GeneratedContent{}, r.fail(err)
		}
		tables = append(tables, tableBlock{Name: t.Name, Markdown: tableMarkdown(t)})
	}
	for _, id := range in.SelectedBuckets {
		bk, err := o.store.GetBucket(ctx, id)
		if err != nil || bk.ProjectID != p.ID {
			return types.GeneratedContent{}, r.fail(apperr.NotFound(op, "bucket %s not found in project %s", id, p.ID))
		}
	}

	var passages []types.Passage
	if len(in.SelectedBuckets) > 0 {
		seed := b.Focus
		if len(b.Ideas) > 0 {
			seed += " " + strings.Join(b.Ideas, " ")
		}
		passages, err = o.enrich(ctx, p.ID, seed, in.TopK, in.SelectedBuckets)
		if err != nil {
			return types.GeneratedContent{}, r.fail(err)
		}
	}

	prompt, err := render(writePromptTmpl, struct {
		FormatGuide, Project, Description, Focus string
		Tone                                     types.Tone
		Length                                   types.Length
		Words                                    int
		Ideas                                    []string
		Tables                                   []tableBlock
		Passages                                 []types.Passage
	}{
		FormatGuide: formatGuides[format], Project: p.Name, Description: p.Description, Focus: b.Focus,
		Tone: in.Tone, Length: in.Length, Words: in.Length.TargetWords(),
		Ideas: b.Ideas, Tables: tables, Passages: passages,
	})
	if err != nil {
		return types.GeneratedContent{}, r.fail(apperr.E(apperr.KindInternal, op, "building prompt", err))
	}
	r.advance(StateContextAssembled)

	r.advance(StateModelInvoked)
	out, err := o.completer.Complete(ctx, prompt, llm.Params{
		System:      systemPrompts[format],
		MaxTokens:   maxTokens(in.Length),
		Temperature: 0.7,
	})
	if err != nil {
		return types.GeneratedContent{}, r.fail(providerErr(op, "content generation failed", err))
	}
	text := strings.TrimSpace(out)
	if text == "" {
		return types.GeneratedContent{}, r.fail(apperr.Generation(op, "model returned empty content", nil))
	}

	c, err := o.store.PutContent(ctx, types.GeneratedContent{
		ProjectID:       p.ID,
		BrainstormID:    b.ID,
		Format:          format,
		Length:          in.Length,
		Tone:            in.Tone,
		SelectedTables:  in.SelectedTables,
		SelectedBuckets: in.SelectedBuckets,
		Text:            text,
		WordCount:       wordCount(text),
		ContextUsed:     len(tables) > 0 || len(passages) > 0,
	})
	if err != nil {
		return types.GeneratedContent{}, r.fail(err)
	}
	r.complete("content_id", c.ID, "brainstorm_id", b.ID, "words", c.WordCount)
	return c, nil
}

// enrich returns passages for seed, or none when the project has nothing
// indexed yet.
func (o *Orchestrator) enrich(ctx context.Context, projectID, seed string, k int, buckets []string) ([]types.Passage, error) {
	if o.index == nil {
		return nil, nil
	}
	passages, err := o.index.Search(ctx, projectID, seed, k, buckets)
	if apperr.Is(err, apperr.KindEmptyIndex) {
		return nil, nil
	}
	return passages, err
}

// providerErr classifies a failed model call.
func providerErr(op, msg string, err error) error {
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		return apperr.Configuration(op, "LLM API key not configured")
	case errors.Is(err, llm.ErrUnauthorized):
		return apperr.E(apperr.KindConfiguration, op, "LLM provider rejected the API key", err)
	}
	return apperr.Generation(op, msg, err)
}

func maxTokens(l types.Length) int {
	// Roughly two tokens per word leaves room for formatting.
	return l.TargetWords()*2 + 256
}

func sourceIDs(passages []types.Passage) []string {
	var out []string
	seen := make(map[string]bool)
	for _, p := range passages {
		if !seen[p.DocumentID] {
			seen[p.DocumentID] = true
			out = append(out, p.DocumentID)
		}
	}
	return out
}

func dedupe(ids []string) []string {
	var out []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// ListBrainstorms returns the project's brainstorms.
func (o *Orchestrator) ListBrainstorms(ctx context.Context, projectID string) ([]types.Brainstorm, error) {
	return o.store.ListBrainstorms(ctx, projectID)
}

// GetBrainstorm returns one brainstorm of the project.
func (o *Orchestrator) GetBrainstorm(ctx context.Context, projectID, brainstormID string) (types.Brainstorm, error) {
	return o.store.GetBrainstorm(ctx, projectID, brainstormID)
}

// GetContent returns one generated content record of the project.
func (o *Orchestrator) GetContent(ctx context.Context, projectID, contentID string) (types.GeneratedContent, error) {
	return o.store.GetContent(ctx, projectID, contentID)
}

// ListContents returns the project's generated content.
func (o *Orchestrator) ListContents(ctx context.Context, projectID string) ([]types.GeneratedContent, error) {
	return o.store.ListContents(ctx, projectID)
}
