// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package index maintains one queryable retrieval scope per project. It owns
// the scope lifecycle, the merge ordering of documents into a scope, and the
// translation of engine failures into classified errors. Retrieval itself is
// delegated to the engine package.
package index

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pdiddy/miranda/internal/apperr"
	"github.com/pdiddy/miranda/internal/convert"
	"github.com/pdiddy/miranda/internal/engine"
	"github.com/pdiddy/miranda/internal/llm"
	"github.com/pdiddy/miranda/internal/logging"
	"github.com/pdiddy/miranda/internal/project"
	"github.com/pdiddy/miranda/pkg/types"
)

// Options carry the collaborators of a Service. Nil providers are treated
// as not configured.
type Options struct {
	Completer llm.Completer
	Embedder  llm.Embedder
	Converter convert.Converter
	Logger    *logging.Logger
}

// Service is the semantic index of all projects.
type Service struct {
	store     *project.Store
	scopes    *ScopeManager
	completer llm.Completer
	embedder  llm.Embedder
	converter convert.Converter
	cfg       types.IndexConfig
	log       *logging.Logger

	projects sync.Map // projectID -> *projectIndex
}

// projectIndex is the IndexState of one project plus its open engine handle.
type projectIndex struct {
	// write serialises merges into the scope.
	write sync.Mutex

	// mu guards the fields below. Queries hold it for reading while they run.
	mu       sync.RWMutex
	handle   *engine.Handle
	scope    Scope
	merged   []string
	released bool

	once sync.Once
}

// New creates a Service. Call store.SetReleaser(svc) so project deletion
// releases the project's scope.
func New(store *project.Store, scopes *ScopeManager, cfg types.IndexConfig, opts Options) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = 6
	}
	if !cfg.DefaultMode.Valid() {
		cfg.DefaultMode = types.ModeHybrid
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = defaultReconcileInterval
	}
	return &Service{
		store:     store,
		scopes:    scopes,
		completer: opts.Completer,
		embedder:  opts.Embedder,
		converter: opts.Converter,
		cfg:       cfg,
		log:       log.With("component", "index"),
	}
}

// state returns the index state of projectID. On first use after a restart
// the merged list is rebuilt from the project's indexed documents when the
// project still holds a scope on disk.
func (s *Service) state(ctx context.Context, projectID string) *projectIndex {
	v, _ := s.projects.LoadOrStore(projectID, &projectIndex{})
	pi := v.(*projectIndex)
	pi.once.Do(func() {
		if !s.hasScope(projectID) {
			return
		}
		docs, err := s.store.ListDocuments(ctx, projectID, "")
		if err != nil {
			return
		}
		pi.mu.Lock()
		defer pi.mu.Unlock()
		for _, d := range docs {
			if d.Status == types.StatusIndexed {
				pi.merged = append(pi.merged, d.ID)
			}
		}
	})
	return pi
}

func (s *Service) hasScope(projectID string) bool {
	for _, id := range s.scopes.Active() {
		if id == projectID {
			return true
		}
	}
	return false
}

func (s *Service) embedderReady() bool {
	return s.embedder != nil && s.embedder.Configured()
}

func (s *Service) completerReady() bool {
	return s.completer != nil && s.completer.Configured()
}

// Configured reports whether both the completion and embedding credentials
// are present.
func (s *Service) Configured() bool {
	return s.completerReady() && s.embedderReady()
}

// open returns the engine handle of the project, opening the scope on first
// use. created reports whether the scope directory was created by this call.
func (s *Service) open(pi *projectIndex, projectID string) (*engine.Handle, bool, error) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	if pi.released {
		return nil, false, errReleased
	}
	if pi.handle != nil {
		return pi.handle, false, nil
	}
	scope, created, err := s.scopes.Acquire(projectID)
	if err != nil {
		return nil, false, err
	}
	h, err := engine.Open(scope.Dir, engine.Options{
		Embedder:     s.embedder,
		Completer:    s.completer,
		ChunkSize:    s.cfg.ChunkSize,
		ChunkOverlap: s.cfg.ChunkOverlap,
	})
	if err != nil {
		if created {
			_ = s.scopes.Release(projectID)
		}
		return nil, false, err
	}
	pi.handle = h
	pi.scope = scope
	return h, created, nil
}

var errReleased = errors.New("index scope released")

// credentialErr classifies a missing or rejected provider key.
func credentialErr(op string, err error) error {
	if errors.Is(err, llm.ErrUnauthorized) {
		return apperr.E(apperr.KindConfiguration, op, "provider rejected the API key", err)
	}
	return apperr.Configuration(op, "provider API key is not configured")
}

// IndexDocument merges one document into its project's scope. Calls for the
// same project run one at a time; calls for different projects run in
// parallel. A failure marks only this document failed.
func (s *Service) IndexDocument(ctx context.Context, projectID, documentID string) error {
	const op = "index.IndexDocument"

	doc, err := s.store.GetDocument(ctx, projectID, documentID)
	if err != nil {
		return err
	}
	if !s.embedderReady() {
		return apperr.Configuration(op, "embedding API key is not configured; set OPENAI_API_KEY or ai.embed_api_key")
	}

	pi := s.state(ctx, projectID)
	pi.write.Lock()
	defer pi.write.Unlock()

	pi.mu.RLock()
	released := pi.released
	already := contains(pi.merged, documentID)
	pi.mu.RUnlock()
	if released {
		return apperr.NotFound(op, "project %s not found", projectID)
	}
	// Release evicts its state, so a deletion that raced the lookup above
	// only shows in the store.
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		s.projects.CompareAndDelete(projectID, pi)
		return err
	}
	if already {
		return nil
	}

	content, err := s.store.DocumentContent(ctx, projectID, documentID)
	if err != nil {
		return err
	}
	text, err := convert.Text(ctx, s.converter, doc, content)
	if err != nil {
		return s.fail(ctx, op, doc, err)
	}

	h, created, err := s.open(pi, projectID)
	if errors.Is(err, errReleased) {
		return apperr.NotFound(op, "project %s not found", projectID)
	}
	if err != nil {
		return s.fail(ctx, op, doc, err)
	}

	n, err := h.Insert(ctx, documentID, text)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		s.abandon(pi, projectID, created)
		s.log.Warn("indexing cancelled", "project_id", projectID, "document_id", documentID)
		return apperr.Indexing(op, fmt.Sprintf("indexing %s cancelled", doc.Filename), ctx.Err())
	case llm.IsCredential(err):
		// The document stays pending until the key is fixed.
		s.abandon(pi, projectID, created)
		return credentialErr(op, err)
	default:
		return s.fail(ctx, op, doc, err)
	}

	// The merge is committed; finish the bookkeeping even if the caller
	// has gone away.
	bg := context.WithoutCancel(ctx)
	if err := s.store.SetDocumentStatus(bg, projectID, documentID, types.StatusIndexed, ""); err != nil {
		if derr := h.Delete(bg, documentID); derr != nil {
			s.log.Error("removing orphaned passages", "project_id", projectID, "document_id", documentID, "error", derr)
		}
		return err
	}
	pi.mu.Lock()
	pi.merged = append(pi.merged, documentID)
	pi.mu.Unlock()

	s.log.Info("document indexed",
		"project_id", projectID, "document_id", documentID, "filename", doc.Filename, "passages", n)
	return nil
}

// fail records cause on the document and returns the classified error.
func (s *Service) fail(ctx context.Context, op string, doc types.Document, cause error) error {
	bg := context.WithoutCancel(ctx)
	if err := s.store.SetDocumentStatus(bg, doc.ProjectID, doc.ID, types.StatusFailed, cause.Error()); err != nil {
		s.log.Warn("recording document failure", "document_id", doc.ID, "error", err)
	}
	s.log.Error("indexing failed",
		"project_id", doc.ProjectID, "document_id", doc.ID, "filename", doc.Filename, "error", cause)
	return apperr.Indexing(op, fmt.Sprintf("indexing %s failed", doc.Filename), cause)
}

// abandon drops a scope created by a cancelled merge when nothing has been
// merged into it.
func (s *Service) abandon(pi *projectIndex, projectID string, created bool) {
	pi.mu.Lock()
	defer pi.mu.Unlock()
	if !created || len(pi.merged) > 0 || pi.handle == nil {
		return
	}
	if err := pi.handle.Close(); err != nil {
		s.log.Warn("closing abandoned scope", "project_id", projectID, "error", err)
	}
	pi.handle = nil
	pi.scope = Scope{}
	if err := s.scopes.Release(projectID); err != nil {
		s.log.Error("releasing abandoned scope", "project_id", projectID, "error", err)
	}
}

// QueryInput is a natural-language query against one project.
type QueryInput struct {
	Text string
	Mode types.QueryMode
}

// Query answers in.Text from the project's indexed documents.
func (s *Service) Query(ctx context.Context, projectID string, in QueryInput) (types.QueryResult, error) {
	const op = "index.Query"

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return types.QueryResult{}, apperr.Validation(op, "query text is required")
	}
	mode := in.Mode
	if mode == "" {
		mode = s.cfg.DefaultMode
	}
	if !mode.Valid() {
		return types.QueryResult{}, apperr.Validation(op, "unknown query mode %q; expected naive, local, or hybrid", mode)
	}
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return types.QueryResult{}, err
	}
	if !s.completerReady() {
		return types.QueryResult{}, apperr.Configuration(op, "LLM API key is not configured; set ai.api_key")
	}
	if mode != types.ModeLocal && !s.embedderReady() {
		return types.QueryResult{}, apperr.Configuration(op, "embedding API key is not configured for %s mode", mode)
	}

	pi, err := s.readable(ctx, op, projectID)
	if err != nil {
		return types.QueryResult{}, err
	}
	defer pi.mu.RUnlock()

	ans, err := pi.handle.Query(ctx, text, mode, s.cfg.TopK)
	switch {
	case errors.Is(err, engine.ErrEmpty):
		return types.QueryResult{}, apperr.EmptyIndex(op, projectID)
	case llm.IsCredential(err):
		return types.QueryResult{}, credentialErr(op, err)
	case err != nil:
		return types.QueryResult{}, apperr.Indexing(op, "query failed", err)
	}

	s.log.Info("query answered",
		"project_id", projectID, "mode", mode, "passages", len(ans.Passages), "confidence", ans.Confidence)
	return types.QueryResult{
		ProjectID:    projectID,
		Query:        text,
		Mode:         mode,
		Answer:       ans.Text,
		ResultLength: utf8.RuneCountInString(ans.Text),
		Confidence:   ans.Confidence,
		Sources:      ans.Passages,
	}, nil
}

// readable returns the project's index state with an open handle and its
// read lock held. It fails with EmptyIndex when nothing has been merged.
func (s *Service) readable(ctx context.Context, op, projectID string) (*projectIndex, error) {
	pi := s.state(ctx, projectID)

	pi.mu.RLock()
	empty := len(pi.merged) == 0
	needsOpen := pi.handle == nil
	pi.mu.RUnlock()
	if empty {
		return nil, apperr.EmptyIndex(op, projectID)
	}
	if needsOpen {
		if _, _, err := s.open(pi, projectID); err != nil {
			if errors.Is(err, errReleased) {
				return nil, apperr.NotFound(op, "project %s not found", projectID)
			}
			return nil, apperr.Indexing(op, "opening index scope", err)
		}
	}

	pi.mu.RLock()
	if pi.released || pi.handle == nil {
		pi.mu.RUnlock()
		return nil, apperr.NotFound(op, "project %s not found", projectID)
	}
	return pi, nil
}

// Search returns the top k passages for text without synthesis. When
// bucketIDs is non-empty only documents of those buckets are searched.
func (s *Service) Search(ctx context.Context, projectID, text string, k int, bucketIDs []string) ([]types.Passage, error) {
	const op = "index.Search"

	if strings.TrimSpace(text) == "" {
		return nil, apperr.Validation(op, "search text is required")
	}
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	var docIDs []string
	if len(bucketIDs) > 0 {
		for _, bid := range bucketIDs {
			docs, err := s.store.ListDocuments(ctx, projectID, bid)
			if err != nil {
				return nil, err
			}
			for _, d := range docs {
				if d.Status == types.StatusIndexed {
					docIDs = append(docIDs, d.ID)
				}
			}
		}
		if len(docIDs) == 0 {
			return nil, nil
		}
	}

	pi, err := s.readable(ctx, op, projectID)
	if err != nil {
		return nil, err
	}
	defer pi.mu.RUnlock()

	mode := types.ModeHybrid
	if !s.embedderReady() {
		mode = types.ModeLocal
	}
	passages, err := pi.handle.Retrieve(ctx, text, k, mode, docIDs)
	switch {
	case llm.IsCredential(err):
		return nil, credentialErr(op, err)
	case err != nil:
		return nil, apperr.Indexing(op, "search failed", err)
	}
	return passages, nil
}

// Release tears down the project's index state and removes its scope. It
// waits for an in-flight merge of the project to finish. It implements
// project.Releaser.
//
// The state is marked released for callers already holding it and then
// evicted; later callers find the project gone from the store.
func (s *Service) Release(_ context.Context, projectID string) error {
	v, _ := s.projects.LoadOrStore(projectID, &projectIndex{})
	pi := v.(*projectIndex)
	pi.once.Do(func() {})

	pi.write.Lock()
	defer pi.write.Unlock()
	pi.mu.Lock()
	defer pi.mu.Unlock()
	defer s.projects.CompareAndDelete(projectID, pi)

	pi.released = true
	pi.merged = nil
	if pi.handle != nil {
		if err := pi.handle.Close(); err != nil {
			s.log.Warn("closing index scope", "project_id", projectID, "error", err)
		}
		pi.handle = nil
	}
	if err := s.scopes.Release(projectID); err != nil {
		return err
	}
	s.log.Info("index scope released", "project_id", projectID)
	return nil
}

// Prune removes scopes on disk whose project is gone from the store. It
// covers scopes adopted from an earlier process: every scope of a
// non-durable store, or one left by a crash between deleting a project and
// releasing its scope. It returns the pruned project ids.
func (s *Service) Prune(ctx context.Context) []string {
	var pruned []string
	for _, id := range s.scopes.Active() {
		if _, err := s.store.GetProject(ctx, id); !apperr.Is(err, apperr.KindNotFound) {
			continue
		}
		if err := s.scopes.Release(id); err != nil {
			s.log.Warn("removing orphaned scope", "project_id", id, "error", err)
			continue
		}
		pruned = append(pruned, id)
	}
	if len(pruned) > 0 {
		s.log.Info("orphaned scopes removed", "count", len(pruned), "project_ids", pruned)
	}
	return pruned
}

// State returns a copy of the project's IndexState.
func (s *Service) State(ctx context.Context, projectID string) (types.IndexState, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return types.IndexState{}, err
	}
	pi := s.state(ctx, projectID)
	pi.mu.RLock()
	defer pi.mu.RUnlock()

	st := types.IndexState{
		ProjectID: projectID,
		MergedIDs: append([]string{}, pi.merged...),
		ScopeDir:  pi.scope.Dir,
	}
	if st.ScopeDir == "" && s.hasScope(projectID) {
		st.ScopeDir = filepath.Join(s.scopes.Root(), projectID)
	}
	return st, nil
}

// Close closes every open engine handle.
func (s *Service) Close() error {
	var errs []error
	s.projects.Range(func(_, v any) bool {
		pi := v.(*projectIndex)
		pi.mu.Lock()
		if pi.handle != nil {
			errs = append(errs, pi.handle.Close())
			pi.handle = nil
		}
		pi.mu.Unlock()
		return true
	})
	return errors.Join(errs...)
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
