// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package project

import (
	"context"

	"github.com/pdiddy/miranda/pkg/types"
)

// Persister is the durable backing of a Store. Every call happens under
// the owning project's lock, so implementations see writes for one project
// in order.
type Persister interface {
	Load(ctx context.Context) (*Snapshot, error)
	SaveProject(ctx context.Context, p types.Project) error
	SaveBucket(ctx context.Context, b types.Bucket) error
	// SaveDocument writes the document, its content, and the updated
	// bucket in one transaction.
	SaveDocument(ctx context.Context, b types.Bucket, d types.Document, content []byte) error
	UpdateDocument(ctx context.Context, d types.Document) error
	Blob(ctx context.Context, documentID string) ([]byte, error)
	SaveTable(ctx context.Context, t types.Table) error
	SaveBrainstorm(ctx context.Context, b types.Brainstorm) error
	SaveContent(ctx context.Context, c types.GeneratedContent) error
	DeleteProject(ctx context.Context, projectID string) error
	Close() error
}

// Snapshot is the full persisted state loaded at startup.
type Snapshot struct {
	Projects    []types.Project
	Buckets     []types.Bucket
	Documents   []types.Document
	Tables      []types.Table
	Brainstorms []types.Brainstorm
	Contents    []types.GeneratedContent
}
