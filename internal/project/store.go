// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package project is the registry of projects and everything they own:
// buckets, documents, tables, brainstorms, and generated content.
//
// Each project has its own lock; there is no store-wide lock. Deleting a
// project marks it dead under that lock, so a racing child creation either
// lands before the cascade or fails with not-found.
package project

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/miranda/internal/apperr"
	"github.com/pdiddy/miranda/internal/logging"
	"github.com/pdiddy/miranda/pkg/types"
)

// Releaser is notified after a project is deleted so it can release the
// project's index scope.
type Releaser interface {
	Release(ctx context.Context, projectID string) error
}

// Store owns all project state.
type Store struct {
	projects sync.Map // project id -> *entry
	buckets  sync.Map // bucket id -> project id

	persist  Persister
	releaser Releaser
	log      *logging.Logger
	now      func() time.Time
}

// entry holds one project and its children.
type entry struct {
	mu      sync.RWMutex
	deleted bool

	project     types.Project
	buckets     map[string]*types.Bucket
	tables      map[string]*types.Table
	documents   map[string]*types.Document
	blobs       map[string][]byte
	brainstorms map[string]types.Brainstorm
	contents    map[string]types.GeneratedContent
}

func newEntry(p types.Project) *entry {
	return &entry{
		project:     p,
		buckets:     make(map[string]*types.Bucket),
		tables:      make(map[string]*types.Table),
		documents:   make(map[string]*types.Document),
		blobs:       make(map[string][]byte),
		brainstorms: make(map[string]types.Brainstorm),
		contents:    make(map[string]types.GeneratedContent),
	}
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		log: logging.Nop(),
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open returns a store backed by p, loaded with p's current snapshot. Every
// mutation is written through to p before it becomes visible in memory.
func Open(ctx context.Context, p Persister, opts ...Option) (*Store, error) {
	s := New(opts...)
	s.persist = p

	snap, err := p.Load(ctx)
	if err != nil {
		return nil, apperr.E(apperr.KindInternal, "project.Open", "loading snapshot", err)
	}
	s.restore(snap)
	return s, nil
}

// SetReleaser registers the component notified on project deletion. It must
// be called before the store is shared between goroutines.
func (s *Store) SetReleaser(r Releaser) {
	s.releaser = r
}

func (s *Store) restore(snap *Snapshot) {
	for _, p := range snap.Projects {
		s.projects.Store(p.ID, newEntry(p))
	}
	for i := range snap.Buckets {
		b := snap.Buckets[i]
		if e, ok := s.lookup(b.ProjectID); ok {
			e.buckets[b.ID] = &b
			s.buckets.Store(b.ID, b.ProjectID)
		}
	}
	for i := range snap.Documents {
		d := snap.Documents[i]
		if e, ok := s.lookup(d.ProjectID); ok {
			e.documents[d.ID] = &d
		}
	}
	for i := range snap.Tables {
		t := snap.Tables[i]
		if e, ok := s.lookup(t.ProjectID); ok {
			e.tables[t.ID] = &t
		}
	}
	for _, b := range snap.Brainstorms {
		if e, ok := s.lookup(b.ProjectID); ok {
			e.brainstorms[b.ID] = b
		}
	}
	for _, c := range snap.Contents {
		if e, ok := s.lookup(c.ProjectID); ok {
			e.contents[c.ID] = c
		}
	}
}

func (s *Store) lookup(id string) (*entry, bool) {
	v, ok := s.projects.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*entry), true
}

// live returns the entry for id locked for writing, or a not-found error.
func (s *Store) live(op, id string) (*entry, error) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, apperr.NotFound(op, "project %s not found", id)
	}
	e.mu.Lock()
	if e.deleted {
		e.mu.Unlock()
		return nil, apperr.NotFound(op, "project %s not found", id)
	}
	return e, nil
}

// liveRead is live with a read lock.
func (s *Store) liveRead(op, id string) (*entry, error) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, apperr.NotFound(op, "project %s not found", id)
	}
	e.mu.RLock()
	if e.deleted {
		e.mu.RUnlock()
		return nil, apperr.NotFound(op, "project %s not found", id)
	}
	return e, nil
}

func newID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func persistErr(op string, err error) error {
	return apperr.E(apperr.KindInternal, op, "persisting state", err)
}

// CreateProjectInput is the validated input of CreateProject.
type CreateProjectInput struct {
	Name        string
	Template    types.Template
	Description string
}

// CreateProject registers a new project.
func (s *Store) CreateProject(ctx context.Context, in CreateProjectInput) (types.Project, error) {
	const op = "project.CreateProject"
	name, err := validateProjectInput(op, in)
	if err != nil {
		return types.Project{}, err
	}

	p := types.Project{
		ID:          newID("prj"),
		Name:        name,
		Template:    in.Template,
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   s.now(),
	}
	if s.persist != nil {
		if err := s.persist.SaveProject(ctx, p); err != nil {
			return types.Project{}, persistErr(op, err)
		}
	}
	s.projects.Store(p.ID, newEntry(p))
	s.log.Info("project created", "project_id", p.ID, "template", p.Template)
	return p, nil
}

// GetProject returns the project with id.
func (s *Store) GetProject(_ context.Context, id string) (types.Project, error) {
	e, err := s.liveRead("project.GetProject", id)
	if err != nil {
		return types.Project{}, err
	}
	defer e.mu.RUnlock()
	return e.project, nil
}

// ListProjects returns all projects ordered by creation time.
func (s *Store) ListProjects(_ context.Context) []types.Project {
	var out []types.Project
	s.projects.Range(func(_, v any) bool {
		e := v.(*entry)
		e.mu.RLock()
		if !e.deleted {
			out = append(out, e.project)
		}
		e.mu.RUnlock()
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// UpdateDescription replaces the project description, the only mutable
// project field.
func (s *Store) UpdateDescription(ctx context.Context, id, description string) (types.Project, error) {
	const op = "project.UpdateDescription"
	e, err := s.live(op, id)
	if err != nil {
		return types.Project{}, err
	}
	defer e.mu.Unlock()

	p := e.project
	p.Description = strings.TrimSpace(description)
	if s.persist != nil {
		if err := s.persist.SaveProject(ctx, p); err != nil {
			return types.Project{}, persistErr(op, err)
		}
	}
	e.project = p
	return p, nil
}

// DeleteProject removes the project and everything it owns, then asks the
// registered Releaser to release the project's index scope.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	const op = "project.DeleteProject"
	e, err := s.live(op, id)
	if err != nil {
		return err
	}

	if s.persist != nil {
		if err := s.persist.DeleteProject(ctx, id); err != nil {
			e.mu.Unlock()
			return persistErr(op, err)
		}
	}

	e.deleted = true
	for bid := range e.buckets {
		s.buckets.Delete(bid)
	}
	s.projects.Delete(id)
	counts := []any{
		"buckets", len(e.buckets), "documents", len(e.documents), "tables", len(e.tables),
		"brainstorms", len(e.brainstorms), "contents", len(e.contents),
	}
	e.buckets, e.documents, e.blobs, e.tables = nil, nil, nil, nil
	e.brainstorms, e.contents = nil, nil
	e.mu.Unlock()

	s.log.Info("project deleted", append([]any{"project_id", id}, counts...)...)

	if s.releaser != nil {
		if err := s.releaser.Release(ctx, id); err != nil {
			return apperr.E(apperr.KindInternal, op, "releasing index scope", err)
		}
	}
	return nil
}

// CreateBucket adds a named bucket to a project. Names are unique within a
// project.
func (s *Store) CreateBucket(ctx context.Context, projectID, name string) (types.Bucket, error) {
	const op = "project.CreateBucket"
	name, err := validateName(op, "bucket", name)
	if err != nil {
		return types.Bucket{}, err
	}

	e, err := s.live(op, projectID)
	if err != nil {
		return types.Bucket{}, err
	}
	defer e.mu.Unlock()
	return s.createBucketLocked(ctx, op, e, name)
}

func (s *Store) createBucketLocked(ctx context.Context, op string, e *entry, name string) (types.Bucket, error) {
	for _, b := range e.buckets {
		if b.Name == name {
			return types.Bucket{}, apperr.Conflict(op, "bucket %q already exists in project %s", name, e.project.ID)
		}
	}

	b := types.Bucket{
		ID:          newID("bkt"),
		ProjectID:   e.project.ID,
		Name:        name,
		DocumentIDs: []string{},
		CreatedAt:   s.now(),
	}
	if s.persist != nil {
		if err := s.persist.SaveBucket(ctx, b); err != nil {
			return types.Bucket{}, persistErr(op, err)
		}
	}
	e.buckets[b.ID] = &b
	s.buckets.Store(b.ID, e.project.ID)
	return copyBucket(&b), nil
}

// EnsureBucket returns the bucket called name, creating it if needed.
func (s *Store) EnsureBucket(ctx context.Context, projectID, name string) (types.Bucket, error) {
	const op = "project.EnsureBucket"
	name, err := validateName(op, "bucket", name)
	if err != nil {
		return types.Bucket{}, err
	}
	e, err := s.live(op, projectID)
	if err != nil {
		return types.Bucket{}, err
	}
	defer e.mu.Unlock()

	for _, b := range e.buckets {
		if b.Name == name {
			return copyBucket(b), nil
		}
	}
	return s.createBucketLocked(ctx, op, e, name)
}

// GetBucket returns a bucket by id.
func (s *Store) GetBucket(_ context.Context, bucketID string) (types.Bucket, error) {
	const op = "project.GetBucket"
	pid, ok := s.buckets.Load(bucketID)
	if !ok {
		return types.Bucket{}, apperr.NotFound(op, "bucket %s not found", bucketID)
	}
	e, err := s.liveRead(op, pid.(string))
	if err != nil {
		return types.Bucket{}, apperr.NotFound(op, "bucket %s not found", bucketID)
	}
	defer e.mu.RUnlock()

	b, ok := e.buckets[bucketID]
	if !ok {
		return types.Bucket{}, apperr.NotFound(op, "bucket %s not found", bucketID)
	}
	return copyBucket(b), nil
}

// BucketByName returns the project's bucket called name.
func (s *Store) BucketByName(_ context.Context, projectID, name string) (types.Bucket, error) {
	const op = "project.BucketByName"
	e, err := s.liveRead(op, projectID)
	if err != nil {
		return types.Bucket{}, err
	}
	defer e.mu.RUnlock()

	name = strings.TrimSpace(name)
	for _, b := range e.buckets {
		if b.Name == name {
			return copyBucket(b), nil
		}
	}
	return types.Bucket{}, apperr.NotFound(op, "bucket %q not found in project %s", name, projectID)
}

// ListBuckets returns the project's buckets ordered by creation time.
func (s *Store) ListBuckets(_ context.Context, projectID string) ([]types.Bucket, error) {
	e, err := s.liveRead("project.ListBuckets", projectID)
	if err != nil {
		return nil, err
	}
	defer e.mu.RUnlock()

	out := make([]types.Bucket, 0, len(e.buckets))
	for _, b := range e.buckets {
		out = append(out, copyBucket(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func copyBucket(b *types.Bucket) types.Bucket {
	c := *b
	c.DocumentIDs = append([]string{}, b.DocumentIDs...)
	return c
}

// CreateTable adds a table with the given schema to a project.
func (s *Store) CreateTable(ctx context.Context, projectID, name string, columns []types.Column) (types.Table, error) {
	const op = "project.CreateTable"
	name, err := validateName(op, "table", name)
	if err != nil {
		return types.Table{}, err
	}
	cols, err := validateColumns(op, columns)
	if err != nil {
		return types.Table{}, err
	}

	e, err := s.live(op, projectID)
	if err != nil {
		return types.Table{}, err
	}
	defer e.mu.Unlock()

	for _, t := range e.tables {
		if t.Name == name {
			return types.Table{}, apperr.Conflict(op, "table %q already exists in project %s", name, projectID)
		}
	}

	t := types.Table{
		ID:        newID("tbl"),
		ProjectID: projectID,
		Name:      name,
		Columns:   cols,
		Rows:      []types.Row{},
		CreatedAt: s.now(),
	}
	if s.persist != nil {
		if err := s.persist.SaveTable(ctx, t); err != nil {
			return types.Table{}, persistErr(op, err)
		}
	}
	e.tables[t.ID] = &t
	return copyTable(&t), nil
}

// AppendRows appends rows to a table after checking them against its schema.
// Either every row is appended or none is.
func (s *Store) AppendRows(ctx context.Context, projectID, tableID string, rows []types.Row) (types.Table, error) {
	const op = "project.AppendRows"
	e, err := s.live(op, projectID)
	if err != nil {
		return types.Table{}, err
	}
	defer e.mu.Unlock()

	t, ok := e.tables[tableID]
	if !ok {
		return types.Table{}, apperr.NotFound(op, "table %s not found in project %s", tableID, projectID)
	}
	for i, r := range rows {
		if err := validateRow(op, t.Columns, i, r); err != nil {
			return types.Table{}, err
		}
	}

	updated := copyTable(t)
	updated.Rows = append(updated.Rows, rows...)
	if s.persist != nil {
		if err := s.persist.SaveTable(ctx, updated); err != nil {
			return types.Table{}, persistErr(op, err)
		}
	}
	e.tables[tableID] = &updated
	return copyTable(&updated), nil
}

// GetTable returns a table of the project.
func (s *Store) GetTable(_ context.Context, projectID, tableID string) (types.Table, error) {
	const op = "project.GetTable"
	e, err := s.liveRead(op, projectID)
	if err != nil {
		return types.Table{}, err
	}
	defer e.mu.RUnlock()

	t, ok := e.tables[tableID]
	if !ok {
		return types.Table{}, apperr.NotFound(op, "table %s not found in project %s", tableID, projectID)
	}
	return copyTable(t), nil
}

// ListTables returns the project's tables ordered by creation time.
func (s *Store) ListTables(_ context.Context, projectID string) ([]types.Table, error) {
	e, err := s.liveRead("project.ListTables", projectID)
	if err != nil {
		return nil, err
	}
	defer e.mu.RUnlock()

	out := make([]types.Table, 0, len(e.tables))
	for _, t := range e.tables {
		out = append(out, copyTable(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func copyTable(t *types.Table) types.Table {
	c := *t
	c.Columns = append([]types.Column{}, t.Columns...)
	c.Rows = make([]types.Row, len(t.Rows))
	for i, r := range t.Rows {
		row := make(types.Row, len(r))
		for k, v := range r {
			row[k] = v
		}
		c.Rows[i] = row
	}
	return c
}
