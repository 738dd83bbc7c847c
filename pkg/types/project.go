// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types holds the shared data model and configuration for the
// project-scoped retrieval and generation pipeline.
package types

import "time"

// Template selects the kind of writing a project produces.
type Template string

const (
	TemplateScreenplay Template = "screenplay"
	TemplateAcademic   Template = "academic"
	TemplateBusiness   Template = "business"
)

// Templates lists the recognised project templates in display order.
var Templates = []Template{TemplateScreenplay, TemplateAcademic, TemplateBusiness}

// Valid reports whether t is one of the recognised templates.
func (t Template) Valid() bool {
	for _, known := range Templates {
		if t == known {
			return true
		}
	}
	return false
}

// Project is the root of the data model. Everything else hangs off a project
// and is removed with it.
type Project struct {
	// ID is the unique project identifier (prj_...).
	ID string `json:"id" yaml:"id"`

	// Name is the display name, at most MaxProjectNameLen characters.
	Name string `json:"name" yaml:"name"`

	// Template selects screenplay, academic, or business writing.
	Template Template `json:"template" yaml:"template"`

	// Description is optional free text and the only mutable field.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// CreatedAt is the creation timestamp in UTC.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// MaxProjectNameLen is the longest accepted project name, in characters.
const MaxProjectNameLen = 100

// Bucket is a named collection of uploaded documents within a project.
type Bucket struct {
	ID        string `json:"id" yaml:"id"`
	ProjectID string `json:"project_id" yaml:"project_id"`
	Name      string `json:"name" yaml:"name"`

	// DocumentIDs lists the bucket's documents in upload order.
	DocumentIDs []string `json:"document_ids" yaml:"document_ids"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// DocumentStatus tracks a document through indexing.
type DocumentStatus string

const (
	StatusPending DocumentStatus = "pending"
	StatusIndexed DocumentStatus = "indexed"
	StatusFailed  DocumentStatus = "failed"
)

// Document is one uploaded file. Its content is write-once; uploading the
// same filename again creates a new Document.
type Document struct {
	ID        string `json:"id" yaml:"id"`
	BucketID  string `json:"bucket_id" yaml:"bucket_id"`
	ProjectID string `json:"project_id" yaml:"project_id"`

	// Filename is the original upload filename.
	Filename string `json:"filename" yaml:"filename"`

	// Size is the raw content size in bytes.
	Size int64 `json:"size" yaml:"size"`

	// ContentType is the detected MIME type.
	ContentType string `json:"content_type" yaml:"content_type"`

	// Binary marks content accepted as opaque bytes. Binary documents need a
	// converter before they can be indexed.
	Binary bool `json:"binary" yaml:"binary"`

	IngestedAt time.Time      `json:"ingested_at" yaml:"ingested_at"`
	Status     DocumentStatus `json:"status" yaml:"status"`

	// Error holds the failure cause when Status is failed.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// ColumnType is the value type of a table column.
type ColumnType string

const (
	ColumnText    ColumnType = "text"
	ColumnNumber  ColumnType = "number"
	ColumnBoolean ColumnType = "boolean"
)

// Valid reports whether c is a known column type.
func (c ColumnType) Valid() bool {
	switch c {
	case ColumnText, ColumnNumber, ColumnBoolean:
		return true
	}
	return false
}

// Column is one typed column in a table schema.
type Column struct {
	Name string     `json:"name" yaml:"name"`
	Type ColumnType `json:"type" yaml:"type"`
}

// Row is one table record keyed by column name.
type Row map[string]any

// Table is structured side-channel data consumed by generation. Tables are
// never semantically indexed.
type Table struct {
	ID        string    `json:"id" yaml:"id"`
	ProjectID string    `json:"project_id" yaml:"project_id"`
	Name      string    `json:"name" yaml:"name"`
	Columns   []Column  `json:"columns" yaml:"columns"`
	Rows      []Row     `json:"rows" yaml:"rows"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// IndexState tracks which documents of a project have been merged into the
// project's retrieval scope.
type IndexState struct {
	ProjectID string `json:"project_id" yaml:"project_id"`

	// MergedIDs lists merged document ids in merge order.
	MergedIDs []string `json:"merged_ids" yaml:"merged_ids"`

	// ScopeDir is the engine working directory, empty until first index.
	ScopeDir string `json:"scope_dir,omitempty" yaml:"scope_dir,omitempty"`
}
