// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package project

import (
	"context"
	"sort"

	"github.com/pdiddy/miranda/internal/apperr"
	"github.com/pdiddy/miranda/pkg/types"
)

// NewDocument describes a document about to be added to a bucket.
type NewDocument struct {
	Filename    string
	ContentType string
	Binary      bool
	Content     []byte
}

// AddDocument stores a new pending document in the bucket. Content is
// write-once and never deduplicated.
func (s *Store) AddDocument(ctx context.Context, bucketID string, nd NewDocument) (types.Document, error) {
	const op = "project.AddDocument"
	pid, ok := s.buckets.Load(bucketID)
	if !ok {
		return types.Document{}, apperr.NotFound(op, "bucket %s not found", bucketID)
	}
	e, err := s.live(op, pid.(string))
	if err != nil {
		return types.Document{}, apperr.NotFound(op, "bucket %s not found", bucketID)
	}
	defer e.mu.Unlock()

	b, ok := e.buckets[bucketID]
	if !ok {
		return types.Document{}, apperr.NotFound(op, "bucket %s not found", bucketID)
	}

	d := types.Document{
		ID:          newID("doc"),
		BucketID:    bucketID,
		ProjectID:   e.project.ID,
		Filename:    nd.Filename,
		Size:        int64(len(nd.Content)),
		ContentType: nd.ContentType,
		Binary:      nd.Binary,
		IngestedAt:  s.now(),
		Status:      types.StatusPending,
	}
	content := append([]byte(nil), nd.Content...)

	updated := copyBucket(b)
	updated.DocumentIDs = append(updated.DocumentIDs, d.ID)

	if s.persist != nil {
		if err := s.persist.SaveDocument(ctx, updated, d, content); err != nil {
			return types.Document{}, persistErr(op, err)
		}
	} else {
		e.blobs[d.ID] = content
	}
	e.buckets[bucketID] = &updated
	e.documents[d.ID] = &d
	return d, nil
}

// GetDocument returns a document of the project.
func (s *Store) GetDocument(_ context.Context, projectID, documentID string) (types.Document, error) {
	const op = "project.GetDocument"
	e, err := s.liveRead(op, projectID)
	if err != nil {
		return types.Document{}, err
	}
	defer e.mu.RUnlock()

	d, ok := e.documents[documentID]
	if !ok {
		return types.Document{}, apperr.NotFound(op, "document %s not found in project %s", documentID, projectID)
	}
	return *d, nil
}

// DocumentContent returns the raw bytes of a document.
func (s *Store) DocumentContent(ctx context.Context, projectID, documentID string) ([]byte, error) {
	const op = "project.DocumentContent"
	e, err := s.liveRead(op, projectID)
	if err != nil {
		return nil, err
	}
	if _, ok := e.documents[documentID]; !ok {
		e.mu.RUnlock()
		return nil, apperr.NotFound(op, "document %s not found in project %s", documentID, projectID)
	}
	if s.persist == nil {
		content := e.blobs[documentID]
		e.mu.RUnlock()
		return content, nil
	}
	e.mu.RUnlock()

	content, err := s.persist.Blob(ctx, documentID)
	if err != nil {
		return nil, persistErr(op, err)
	}
	return content, nil
}

// SetDocumentStatus records the indexing outcome of a document. cause is
// stored when status is failed and cleared otherwise.
func (s *Store) SetDocumentStatus(ctx context.Context, projectID, documentID string, status types.DocumentStatus, cause string) error {
	const op = "project.SetDocumentStatus"
	e, err := s.live(op, projectID)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	d, ok := e.documents[documentID]
	if !ok {
		return apperr.NotFound(op, "document %s not found in project %s", documentID, projectID)
	}
	updated := *d
	updated.Status = status
	updated.Error = ""
	if status == types.StatusFailed {
		updated.Error = cause
	}
	if s.persist != nil {
		if err := s.persist.UpdateDocument(ctx, updated); err != nil {
			return persistErr(op, err)
		}
	}
	e.documents[documentID] = &updated
	return nil
}

// ListDocuments returns the documents of a project in ingestion order. When
// bucketID is non-empty only that bucket's documents are returned.
func (s *Store) ListDocuments(_ context.Context, projectID, bucketID string) ([]types.Document, error) {
	const op = "project.ListDocuments"
	e, err := s.liveRead(op, projectID)
	if err != nil {
		return nil, err
	}
	defer e.mu.RUnlock()

	if bucketID != "" {
		b, ok := e.buckets[bucketID]
		if !ok {
			return nil, apperr.NotFound(op, "bucket %s not found in project %s", bucketID, projectID)
		}
		out := make([]types.Document, 0, len(b.DocumentIDs))
		for _, id := range b.DocumentIDs {
			if d, ok := e.documents[id]; ok {
				out = append(out, *d)
			}
		}
		return out, nil
	}

	out := make([]types.Document, 0, len(e.documents))
	for _, d := range e.documents {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IngestedAt.Equal(out[j].IngestedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].IngestedAt.Before(out[j].IngestedAt)
	})
	return out, nil
}

// PendingDocuments returns every pending document across all projects.
func (s *Store) PendingDocuments(ctx context.Context) []types.Document {
	var out []types.Document
	for _, p := range s.ListProjects(ctx) {
		docs, err := s.ListDocuments(ctx, p.ID, "")
		if err != nil {
			continue
		}
		for _, d := range docs {
			if d.Status == types.StatusPending {
				out = append(out, d)
			}
		}
	}
	return out
}
