// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/miranda/internal/apperr"
	"github.com/pdiddy/miranda/internal/project"
	"github.com/pdiddy/miranda/pkg/types"
)

func setup(t *testing.T, queueSize int, maxBytes int64) (*Ingestor, *project.Store, *Queue, types.Bucket) {
	t.Helper()
	ctx := context.Background()
	store := project.New()
	p, err := store.CreateProject(ctx, project.CreateProjectInput{Name: "Upload", Template: types.TemplateAcademic})
	require.NoError(t, err)
	b, err := store.CreateBucket(ctx, p.ID, "papers")
	require.NoError(t, err)
	q := NewQueue(queueSize)
	return New(store, q, types.IngestConfig{MaxUploadBytes: maxBytes}, nil), store, q, b
}

func TestIngest_TextDocument(t *testing.T) {
	ing, store, q, b := setup(t, 4, 0)
	ctx := context.Background()

	doc, err := ing.Ingest(ctx, Input{BucketID: b.ID, Filename: "notes/intro.md", Content: []byte("# Intro\nHello")})
	require.NoError(t, err)
	assert.Equal(t, "intro.md", doc.Filename)
	assert.Equal(t, "text/markdown", doc.ContentType)
	assert.False(t, doc.Binary)
	assert.Equal(t, types.StatusPending, doc.Status)

	require.Equal(t, 1, q.Len())
	job := <-q.Jobs()
	assert.Equal(t, Job{ProjectID: b.ProjectID, DocumentID: doc.ID}, job)

	got, err := store.GetBucket(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{doc.ID}, got.DocumentIDs)
}

func TestIngest_OversizedRejectedWithoutDocument(t *testing.T) {
	ing, store, q, b := setup(t, 4, 16)
	ctx := context.Background()

	_, err := ing.Ingest(ctx, Input{BucketID: b.ID, Filename: "big.txt", Content: bytes.Repeat([]byte("a"), 17)})
	assert.Equal(t, apperr.KindPayloadTooLarge, apperr.KindOf(err))

	got, err := store.GetBucket(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, got.DocumentIDs)
	assert.Zero(t, q.Len())
}

func TestIngest_DefaultLimitIsTenMiB(t *testing.T) {
	ing, _, _, _ := setup(t, 1, 0)
	assert.Equal(t, int64(10*1024*1024), ing.MaxBytes())
}

func TestIngest_Validation(t *testing.T) {
	ing, _, _, b := setup(t, 4, 0)
	ctx := context.Background()

	tests := []struct {
		name string
		in   Input
		kind apperr.Kind
	}{
		{"missing filename", Input{BucketID: b.ID, Content: []byte("x")}, apperr.KindValidation},
		{"empty content", Input{BucketID: b.ID, Filename: "a.txt"}, apperr.KindValidation},
		{"invalid utf8 text", Input{BucketID: b.ID, Filename: "a.txt", Content: []byte{0xff, 0xfe, 0xfd}}, apperr.KindValidation},
		{"unknown bucket", Input{BucketID: "bkt_missing", Filename: "a.txt", Content: []byte("x")}, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ing.Ingest(ctx, tt.in)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}
}

func TestIngest_BinaryAccepted(t *testing.T) {
	ing, _, _, b := setup(t, 4, 0)

	doc, err := ing.Ingest(context.Background(), Input{BucketID: b.ID, Filename: "script.pdf", Content: []byte("%PDF-1.7\x00\xff")})
	require.NoError(t, err)
	assert.True(t, doc.Binary)
	assert.Equal(t, "application/pdf", doc.ContentType)
}

func TestIngest_FullQueueLeavesPending(t *testing.T) {
	ing, store, q, b := setup(t, 1, 0)
	ctx := context.Background()

	_, err := ing.Ingest(ctx, Input{BucketID: b.ID, Filename: "a.txt", Content: []byte("a")})
	require.NoError(t, err)
	second, err := ing.Ingest(ctx, Input{BucketID: b.ID, Filename: "b.txt", Content: []byte("b")})
	require.NoError(t, err)

	assert.Equal(t, 1, q.Len())
	pending := store.PendingDocuments(ctx)
	assert.Len(t, pending, 2)
	assert.Equal(t, types.StatusPending, second.Status)
}

func TestIngestToProject_CreatesDefaultBucket(t *testing.T) {
	ing, store, _, b := setup(t, 4, 0)
	ctx := context.Background()

	doc, err := ing.IngestToProject(ctx, b.ProjectID, "", "scene.fountain", []byte("INT. HOUSE - DAY"))
	require.NoError(t, err)

	uploads, err := store.BucketByName(ctx, b.ProjectID, DefaultBucket)
	require.NoError(t, err)
	assert.Equal(t, uploads.ID, doc.BucketID)

	again, err := ing.IngestToProject(ctx, b.ProjectID, DefaultBucket, "scene.fountain", []byte("INT. HOUSE - DAY"))
	require.NoError(t, err)
	assert.Equal(t, uploads.ID, again.BucketID)
	assert.NotEqual(t, doc.ID, again.ID)
}

func TestDetect(t *testing.T) {
	tests := []struct {
		filename string
		content  []byte
		binary   bool
	}{
		{"a.TXT", []byte("x"), false},
		{"data.yaml", []byte("a: 1"), false},
		{"deck.pptx", []byte("PK"), true},
		{"noext", []byte("plain words here"), false},
		{"image.bin", []byte("\x89PNG\r\n\x1a\n"), true},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.binary, Detect(tt.filename, tt.content).Binary)
		})
	}
}

func TestQueue_CloseRejects(t *testing.T) {
	q := NewQueue(2)
	q.Close()
	assert.False(t, q.Push(Job{ProjectID: "p", DocumentID: "d"}))
	q.Close()
}
