// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest accepts uploaded files into project buckets and schedules
// them for indexing.
package ingest

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/pdiddy/miranda/internal/apperr"
	"github.com/pdiddy/miranda/internal/logging"
	"github.com/pdiddy/miranda/internal/project"
	"github.com/pdiddy/miranda/pkg/types"
)

// DefaultBucket receives uploads that do not name a bucket.
const DefaultBucket = "uploads"

// Input is one upload.
type Input struct {
	BucketID string
	Filename string
	Content  []byte
}

// Ingestor validates uploads and records them as pending documents.
type Ingestor struct {
	store    *project.Store
	queue    *Queue
	maxBytes int64
	log      *logging.Logger
}

// New returns an Ingestor. queue may be nil, in which case documents are
// left pending for a later reconcile.
func New(store *project.Store, queue *Queue, cfg types.IngestConfig, log *logging.Logger) *Ingestor {
	maxBytes := cfg.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = types.DefaultMaxUploadBytes
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Ingestor{store: store, queue: queue, maxBytes: maxBytes, log: log}
}

// MaxBytes returns the upload size limit.
func (i *Ingestor) MaxBytes() int64 {
	return i.maxBytes
}

// Ingest stores the upload as a pending document and schedules indexing.
// Oversized uploads are rejected before anything is stored.
func (i *Ingestor) Ingest(ctx context.Context, in Input) (types.Document, error) {
	const op = "ingest.Ingest"

	filename := strings.TrimSpace(filepath.Base(strings.ReplaceAll(in.Filename, `\`, "/")))
	if filename == "" || filename == "." || filename == "/" {
		return types.Document{}, apperr.Validation(op, "filename is required")
	}
	if size := int64(len(in.Content)); size > i.maxBytes {
		return types.Document{}, apperr.PayloadTooLarge(op, size, i.maxBytes)
	}
	if len(in.Content) == 0 {
		return types.Document{}, apperr.Validation(op, "file %s is empty", filename)
	}

	format := Detect(filename, in.Content)
	if !format.Binary && !validText(in.Content) {
		return types.Document{}, apperr.Validation(op, "file %s is not valid UTF-8 text", filename)
	}

	doc, err := i.store.AddDocument(ctx, in.BucketID, project.NewDocument{
		Filename:    filename,
		ContentType: format.ContentType,
		Binary:      format.Binary,
		Content:     in.Content,
	})
	if err != nil {
		return types.Document{}, err
	}

	i.log.Info("document ingested",
		"project_id", doc.ProjectID, "bucket_id", doc.BucketID, "document_id", doc.ID,
		"filename", doc.Filename, "size", doc.Size, "binary", doc.Binary)

	if i.queue != nil && !i.queue.Push(Job{ProjectID: doc.ProjectID, DocumentID: doc.ID}) {
		i.log.Warn("index queue full, document left pending", "document_id", doc.ID)
	}
	return doc, nil
}

// IngestToProject resolves bucketName in the project, creating it when
// missing, then ingests the upload into it. An empty name uses
// DefaultBucket.
func (i *Ingestor) IngestToProject(ctx context.Context, projectID, bucketName, filename string, content []byte) (types.Document, error) {
	if strings.TrimSpace(bucketName) == "" {
		bucketName = DefaultBucket
	}
	if size := int64(len(content)); size > i.maxBytes {
		return types.Document{}, apperr.PayloadTooLarge("ingest.IngestToProject", size, i.maxBytes)
	}
	b, err := i.store.EnsureBucket(ctx, projectID, bucketName)
	if err != nil {
		return types.Document{}, err
	}
	return i.Ingest(ctx, Input{BucketID: b.ID, Filename: filename, Content: content})
}
