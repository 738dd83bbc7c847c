// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"errors"
	"hash/fnv"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/miranda/internal/apperr"
	"github.com/pdiddy/miranda/internal/ingest"
	"github.com/pdiddy/miranda/internal/llm"
	"github.com/pdiddy/miranda/internal/project"
	"github.com/pdiddy/miranda/pkg/types"
)

// --- test helpers ---

// fakeEmbedder hashes words into a small vector. hook, when set, runs
// before each call and may fail it.
type fakeEmbedder struct {
	configured bool
	hook       func(ctx context.Context, texts []string) error
}

func (f *fakeEmbedder) Configured() bool { return f.configured }

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if !f.configured {
		return nil, llm.ErrNotConfigured
	}
	if f.hook != nil {
		if err := f.hook(ctx, texts); err != nil {
			return nil, err
		}
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 32)
		for _, w := range strings.Fields(strings.ToLower(t)) {
			h := fnv.New32a()
			h.Write([]byte(strings.Trim(w, ".,?!")))
			v[h.Sum32()%32]++
		}
		out[i] = v
	}
	return out, nil
}

// contextCompleter answers with the context passages it was given.
type contextCompleter struct {
	configured bool
}

func (c *contextCompleter) Configured() bool { return c.configured }

func (c *contextCompleter) Complete(_ context.Context, prompt string, _ llm.Params) (string, error) {
	start := strings.Index(prompt, "Context passages:")
	end := strings.Index(prompt, "Question:")
	if start < 0 || end < start {
		return "I could not find that in the documents.", nil
	}
	return strings.TrimSpace(prompt[start+len("Context passages:") : end]), nil
}

type fixture struct {
	store  *project.Store
	scopes *ScopeManager
	svc    *Service
	emb    *fakeEmbedder
	root   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	store := project.New()
	scopes, err := NewScopeManager(root)
	require.NoError(t, err)
	emb := &fakeEmbedder{configured: true}
	cfg := types.IndexConfig{ChunkSize: 400, ChunkOverlap: 40, ReconcileInterval: 20 * time.Millisecond}
	svc := New(store, scopes, cfg, Options{
		Completer: &contextCompleter{configured: true},
		Embedder:  emb,
	})
	store.SetReleaser(svc)
	t.Cleanup(func() { svc.Close() })
	return &fixture{store: store, scopes: scopes, svc: svc, emb: emb, root: root}
}

func (f *fixture) project(t *testing.T, name string) types.Project {
	t.Helper()
	p, err := f.store.CreateProject(context.Background(), project.CreateProjectInput{
		Name: name, Template: types.TemplateScreenplay,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) upload(t *testing.T, projectID, bucket, filename, text string) types.Document {
	t.Helper()
	b, err := f.store.EnsureBucket(context.Background(), projectID, bucket)
	require.NoError(t, err)
	d, err := f.store.AddDocument(context.Background(), b.ID, project.NewDocument{
		Filename: filename, ContentType: "text/plain", Content: []byte(text),
	})
	require.NoError(t, err)
	return d
}

func (f *fixture) status(t *testing.T, d types.Document) types.Document {
	t.Helper()
	got, err := f.store.GetDocument(context.Background(), d.ProjectID, d.ID)
	require.NoError(t, err)
	return got
}

// --- scenarios ---

func TestQuery_MirandaScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, "Demo")
	d := f.upload(t, p.ID, "research", "about.txt", "Miranda is an AI writing platform.")

	require.NoError(t, f.svc.IndexDocument(ctx, p.ID, d.ID))
	assert.Equal(t, types.StatusIndexed, f.status(t, d).Status)

	res, err := f.svc.Query(ctx, p.ID, QueryInput{Text: "What is Miranda?"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Answer)
	assert.Contains(t, res.Answer, "writing platform")
	assert.Equal(t, types.ModeHybrid, res.Mode)
	assert.Equal(t, len([]rune(res.Answer)), res.ResultLength)
	assert.Greater(t, res.Confidence, 0.0)
	require.NotEmpty(t, res.Sources)
	assert.Equal(t, d.ID, res.Sources[0].DocumentID)

	st, err := f.svc.State(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{d.ID}, st.MergedIDs)
	assert.Equal(t, filepath.Join(f.root, p.ID), st.ScopeDir)
}

func TestQuery_EmptyIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, "Empty")

	_, err := f.svc.Query(ctx, p.ID, QueryInput{Text: "anything"})
	assert.True(t, apperr.Is(err, apperr.KindEmptyIndex), "got %v", err)

	// A pending document is not queryable.
	f.upload(t, p.ID, "research", "a.txt", "pending text")
	_, err = f.svc.Query(ctx, p.ID, QueryInput{Text: "pending"})
	assert.True(t, apperr.Is(err, apperr.KindEmptyIndex), "got %v", err)
}

func TestQuery_Validation(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, "Demo")

	_, err := f.svc.Query(context.Background(), p.ID, QueryInput{Text: "  "})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.Query(context.Background(), p.ID, QueryInput{Text: "x", Mode: "graph"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.Query(context.Background(), "prj_missing", QueryInput{Text: "x"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestConfigurationErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, "Demo")
	d := f.upload(t, p.ID, "research", "a.txt", "Miranda is an AI writing platform.")

	f.emb.configured = false
	err := f.svc.IndexDocument(ctx, p.ID, d.ID)
	require.True(t, apperr.Is(err, apperr.KindConfiguration), "got %v", err)
	assert.Equal(t, types.StatusPending, f.status(t, d).Status)
	assert.Empty(t, f.scopes.Active())

	f.emb.configured = true
	require.NoError(t, f.svc.IndexDocument(ctx, p.ID, d.ID))

	f.svc.completer = &contextCompleter{configured: false}
	_, err = f.svc.Query(ctx, p.ID, QueryInput{Text: "What is Miranda?"})
	assert.True(t, apperr.Is(err, apperr.KindConfiguration), "got %v", err)
	assert.False(t, apperr.Retryable(err))
}

func TestRejectedKey_LeavesDocumentPending(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided"}}`))
	}))
	defer ts.Close()

	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, "Demo")
	d := f.upload(t, p.ID, "research", "a.txt", "Miranda is an AI writing platform.")
	f.svc.embedder = &llm.OpenAI{APIKey: "sk-wrong", BaseURL: ts.URL, Client: ts.Client()}

	err := f.svc.IndexDocument(ctx, p.ID, d.ID)
	require.True(t, apperr.Is(err, apperr.KindConfiguration), "got %v", err)
	assert.ErrorIs(t, err, llm.ErrUnauthorized)
	got := f.status(t, d)
	assert.Equal(t, types.StatusPending, got.Status)
	assert.Empty(t, got.Error)
	assert.Empty(t, f.scopes.Active())

	_, err = f.svc.IndexPending(ctx, p.ID)
	assert.True(t, apperr.Is(err, apperr.KindConfiguration), "got %v", err)

	_, err = f.svc.QueryText(ctx, "Miranda is an AI writing platform.", "What is Miranda?", "")
	assert.True(t, apperr.Is(err, apperr.KindConfiguration), "got %v", err)
}

func TestPrune_RemovesScopesWithoutProject(t *testing.T) {
	root := t.TempDir()
	store := project.New()
	p, err := store.CreateProject(context.Background(), project.CreateProjectInput{
		Name: "Kept", Template: types.TemplateScreenplay,
	})
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(root, p.ID), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "prj_old"), 0o755))

	scopes, err := NewScopeManager(root)
	require.NoError(t, err)
	require.Equal(t, []string{p.ID, "prj_old"}, scopes.Active())
	svc := New(store, scopes, types.IndexConfig{}, Options{})

	assert.Equal(t, []string{"prj_old"}, svc.Prune(context.Background()))
	assert.Equal(t, []string{p.ID}, scopes.Active())
	_, statErr := os.Stat(filepath.Join(root, "prj_old"))
	assert.True(t, os.IsNotExist(statErr))
	assert.DirExists(t, filepath.Join(root, p.ID))
}

func TestRelease_EvictsProjectState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, "Demo")
	d := f.upload(t, p.ID, "research", "a.txt", "Miranda is an AI writing platform.")
	require.NoError(t, f.svc.IndexDocument(ctx, p.ID, d.ID))

	require.NoError(t, f.store.DeleteProject(ctx, p.ID))
	_, ok := f.svc.projects.Load(p.ID)
	assert.False(t, ok)

	err := f.svc.IndexDocument(ctx, p.ID, d.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "got %v", err)
	_, ok = f.svc.projects.Load(p.ID)
	assert.False(t, ok)
	assert.Empty(t, f.scopes.Active())
}

func TestIndexDocument_FailureIsolated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, "Demo")
	bad := f.upload(t, p.ID, "research", "bad.txt", "poison pill")
	good := f.upload(t, p.ID, "research", "good.txt", "Miranda drafts screenplays.")

	f.emb.hook = func(_ context.Context, texts []string) error {
		for _, txt := range texts {
			if strings.Contains(txt, "poison") {
				return errors.New("provider returned 500")
			}
		}
		return nil
	}

	err := f.svc.IndexDocument(ctx, p.ID, bad.ID)
	require.True(t, apperr.Is(err, apperr.KindIndexing), "got %v", err)
	assert.Contains(t, err.Error(), "provider returned 500")
	failed := f.status(t, bad)
	assert.Equal(t, types.StatusFailed, failed.Status)
	assert.Contains(t, failed.Error, "provider returned 500")

	require.NoError(t, f.svc.IndexDocument(ctx, p.ID, good.ID))
	assert.Equal(t, types.StatusIndexed, f.status(t, good).Status)

	st, err := f.svc.State(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{good.ID}, st.MergedIDs)
}

func TestIndexDocument_BinaryWithoutConverterFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, "Demo")
	b, err := f.store.EnsureBucket(ctx, p.ID, "research")
	require.NoError(t, err)
	d, err := f.store.AddDocument(ctx, b.ID, project.NewDocument{
		Filename: "deck.pdf", ContentType: "application/pdf", Binary: true, Content: []byte("%PDF-1.7"),
	})
	require.NoError(t, err)

	err = f.svc.IndexDocument(ctx, p.ID, d.ID)
	assert.True(t, apperr.Is(err, apperr.KindIndexing), "got %v", err)
	assert.Equal(t, types.StatusFailed, f.status(t, d).Status)
}

func TestIndexDocument_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, "Demo")
	d := f.upload(t, p.ID, "research", "a.txt", "Miranda is an AI writing platform.")

	require.NoError(t, f.svc.IndexDocument(ctx, p.ID, d.ID))
	require.NoError(t, f.svc.IndexDocument(ctx, p.ID, d.ID))

	st, err := f.svc.State(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{d.ID}, st.MergedIDs)
}

func TestDeleteProject_ReleasesScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, "Demo")
	other := f.project(t, "Other")
	d := f.upload(t, p.ID, "research", "a.txt", "Miranda is an AI writing platform.")
	od := f.upload(t, other.ID, "research", "b.txt", "Other project text.")
	require.NoError(t, f.svc.IndexDocument(ctx, p.ID, d.ID))
	require.NoError(t, f.svc.IndexDocument(ctx, other.ID, od.ID))
	require.ElementsMatch(t, []string{p.ID, other.ID}, f.scopes.Active())

	require.NoError(t, f.store.DeleteProject(ctx, p.ID))

	assert.Equal(t, []string{other.ID}, f.scopes.Active())
	_, statErr := os.Stat(filepath.Join(f.root, p.ID))
	assert.True(t, os.IsNotExist(statErr))

	_, err := f.svc.Query(ctx, p.ID, QueryInput{Text: "What is Miranda?"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "got %v", err)

	_, err = f.svc.Query(ctx, other.ID, QueryInput{Text: "Other project"})
	assert.NoError(t, err)
}

func TestIndexDocument_CancelledReleasesNewScope(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, "Demo")
	d := f.upload(t, p.ID, "research", "a.txt", "Miranda is an AI writing platform.")

	started := make(chan struct{})
	f.emb.hook = func(ctx context.Context, _ []string) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- f.svc.IndexDocument(ctx, p.ID, d.ID) }()
	<-started
	cancel()

	err := <-errc
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.scopes.Active())
	_, statErr := os.Stat(filepath.Join(f.root, p.ID))
	assert.True(t, os.IsNotExist(statErr), "scope directory should be removed")
	assert.Equal(t, types.StatusPending, f.status(t, d).Status)
}

func TestIndexDocument_CancelledKeepsPopulatedScope(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, "Demo")
	first := f.upload(t, p.ID, "research", "a.txt", "Miranda is an AI writing platform.")
	second := f.upload(t, p.ID, "research", "b.txt", "Second document.")
	require.NoError(t, f.svc.IndexDocument(context.Background(), p.ID, first.ID))

	ctx, cancel := context.WithCancel(context.Background())
	f.emb.hook = func(context.Context, []string) error {
		cancel()
		return context.Canceled
	}
	err := f.svc.IndexDocument(ctx, p.ID, second.ID)
	require.Error(t, err)

	assert.Equal(t, []string{p.ID}, f.scopes.Active())
	f.emb.hook = nil
	res, err := f.svc.Query(context.Background(), p.ID, QueryInput{Text: "What is Miranda?"})
	require.NoError(t, err)
	assert.Contains(t, res.Answer, "writing platform")
}

// --- concurrency ---

func TestIndexDocument_SerialisedPerProject(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, "Demo")

	var inflight, peak atomic.Int32
	f.emb.hook = func(context.Context, []string) error {
		n := inflight.Add(1)
		defer inflight.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		return nil
	}

	var docs []types.Document
	for i := 0; i < 4; i++ {
		docs = append(docs, f.upload(t, p.ID, "research", "doc.txt", "Passage about drafting number "+string(rune('a'+i))))
	}

	var wg sync.WaitGroup
	for _, d := range docs {
		wg.Add(1)
		go func(d types.Document) {
			defer wg.Done()
			assert.NoError(t, f.svc.IndexDocument(context.Background(), p.ID, d.ID))
		}(d)
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak.Load())
	st, err := f.svc.State(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Len(t, st.MergedIDs, 4)
}

func TestIndexDocument_ParallelAcrossProjects(t *testing.T) {
	f := newFixture(t)
	a := f.project(t, "A")
	b := f.project(t, "B")
	da := f.upload(t, a.ID, "research", "a.txt", "Alpha text.")
	db := f.upload(t, b.ID, "research", "b.txt", "Beta text.")

	var inflight atomic.Int32
	both := make(chan struct{})
	var once sync.Once
	f.emb.hook = func(ctx context.Context, _ []string) error {
		if inflight.Add(1) == 2 {
			once.Do(func() { close(both) })
		}
		select {
		case <-both:
			return nil
		case <-time.After(2 * time.Second):
			return errors.New("projects did not overlap")
		}
	}

	var wg sync.WaitGroup
	for _, d := range []types.Document{da, db} {
		wg.Add(1)
		go func(d types.Document) {
			defer wg.Done()
			assert.NoError(t, f.svc.IndexDocument(context.Background(), d.ProjectID, d.ID))
		}(d)
	}
	wg.Wait()
}

func TestRun_ConsumesQueue(t *testing.T) {
	f := newFixture(t)
	a := f.project(t, "A")
	b := f.project(t, "B")
	queue := ingest.NewQueue(8)

	var docs []types.Document
	docs = append(docs, f.upload(t, a.ID, "research", "a1.txt", "First alpha text."))
	docs = append(docs, f.upload(t, a.ID, "research", "a2.txt", "Second alpha text."))
	docs = append(docs, f.upload(t, b.ID, "research", "b1.txt", "Beta text."))
	for _, d := range docs {
		require.True(t, queue.Push(ingest.Job{ProjectID: d.ProjectID, DocumentID: d.ID}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.svc.Run(ctx, queue) }()

	require.Eventually(t, func() bool {
		for _, d := range docs {
			if f.status(t, d).Status != types.StatusIndexed {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)

	st, err := f.svc.State(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{docs[0].ID, docs[1].ID}, st.MergedIDs)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestIndexPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, "Demo")
	d1 := f.upload(t, p.ID, "research", "a.txt", "Miranda is an AI writing platform.")
	d2 := f.upload(t, p.ID, "research", "b.txt", "poison")

	f.emb.hook = func(_ context.Context, texts []string) error {
		if strings.Contains(texts[0], "poison") {
			return errors.New("bad input")
		}
		return nil
	}
	sum, err := f.svc.IndexPending(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, Summary{Indexed: 1, Failed: 1}, sum)
	assert.Equal(t, types.StatusIndexed, f.status(t, d1).Status)
	assert.Equal(t, types.StatusFailed, f.status(t, d2).Status)
}

func TestRun_PicksUpDocumentsTheQueueDropped(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, "Demo")
	queue := ingest.NewQueue(1)
	ingestor := ingest.New(f.store, queue, types.IngestConfig{}, nil)

	b, err := f.store.EnsureBucket(context.Background(), p.ID, "research")
	require.NoError(t, err)
	var docs []types.Document
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		d, err := ingestor.Ingest(context.Background(), ingest.Input{
			BucketID: b.ID, Filename: name, Content: []byte("Notes for " + name),
		})
		require.NoError(t, err)
		docs = append(docs, d)
	}
	require.Equal(t, 1, queue.Len(), "the rest were dropped")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.svc.Run(ctx, queue) }()

	require.Eventually(t, func() bool {
		for _, d := range docs {
			if f.status(t, d).Status != types.StatusIndexed {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRun_SlowProjectDoesNotStallOthers(t *testing.T) {
	f := newFixture(t)
	slow := f.project(t, "Slow")
	fast := f.project(t, "Fast")
	queue := ingest.NewQueue(128)

	release := make(chan struct{})
	f.emb.hook = func(ctx context.Context, texts []string) error {
		if !strings.Contains(texts[0], "slow") {
			return nil
		}
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	var slowDocs []types.Document
	for i := 0; i < 70; i++ {
		d := f.upload(t, slow.ID, "research", "s.txt", "slow passage")
		slowDocs = append(slowDocs, d)
		require.True(t, queue.Push(ingest.Job{ProjectID: d.ProjectID, DocumentID: d.ID}))
	}
	fd := f.upload(t, fast.ID, "research", "f.txt", "Fast passage.")
	require.True(t, queue.Push(ingest.Job{ProjectID: fd.ProjectID, DocumentID: fd.ID}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- f.svc.Run(ctx, queue) }()

	require.Eventually(t, func() bool {
		return f.status(t, fd).Status == types.StatusIndexed
	}, 2*time.Second, 10*time.Millisecond, "fast project stalled behind slow one")
	assert.Equal(t, types.StatusPending, f.status(t, slowDocs[0]).Status)

	close(release)
	require.Eventually(t, func() bool {
		for _, d := range slowDocs {
			if f.status(t, d).Status != types.StatusIndexed {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRun_StopsWhenQueueClosedAndDrained(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, "Demo")
	d := f.upload(t, p.ID, "research", "a.txt", "Miranda is an AI writing platform.")
	queue := ingest.NewQueue(4)
	require.True(t, queue.Push(ingest.Job{ProjectID: p.ID, DocumentID: d.ID}))
	queue.Close()

	require.NoError(t, f.svc.Run(context.Background(), queue))
	assert.Equal(t, types.StatusIndexed, f.status(t, d).Status)
}

func TestSearch_BucketFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, "Demo")
	notes := f.upload(t, p.ID, "notes", "n.txt", "The heist happens at midnight.")
	lore := f.upload(t, p.ID, "lore", "l.txt", "The heist crew meets at the docks.")
	require.NoError(t, f.svc.IndexDocument(ctx, p.ID, notes.ID))
	require.NoError(t, f.svc.IndexDocument(ctx, p.ID, lore.ID))

	all, err := f.svc.Search(ctx, p.ID, "heist", 5, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	only, err := f.svc.Search(ctx, p.ID, "heist", 5, []string{lore.BucketID})
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, lore.ID, only[0].DocumentID)
}

func TestRestart_RebuildsMergedIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, "Demo")
	d := f.upload(t, p.ID, "research", "a.txt", "Miranda is an AI writing platform.")
	require.NoError(t, f.svc.IndexDocument(ctx, p.ID, d.ID))
	require.NoError(t, f.svc.Close())

	scopes, err := NewScopeManager(f.root)
	require.NoError(t, err)
	svc := New(f.store, scopes, types.IndexConfig{}, Options{
		Completer: &contextCompleter{configured: true},
		Embedder:  f.emb,
	})
	t.Cleanup(func() { svc.Close() })

	st, err := svc.State(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{d.ID}, st.MergedIDs)

	res, err := svc.Query(ctx, p.ID, QueryInput{Text: "What is Miranda?", Mode: types.ModeLocal})
	require.NoError(t, err)
	assert.Contains(t, res.Answer, "writing platform")
}

func TestQueryText_LeavesNoScope(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.QueryText(context.Background(), "Miranda is an AI writing platform.", "What is Miranda?", "")
	require.NoError(t, err)
	assert.Contains(t, res.Answer, "writing platform")
	assert.Empty(t, res.ProjectID)

	entries, err := os.ReadDir(f.root)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, f.scopes.Active())

	_, err = f.svc.QueryText(context.Background(), " ", "q", "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
