// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/miranda/internal/apperr"
	"github.com/pdiddy/miranda/internal/ingest"
	"github.com/pdiddy/miranda/pkg/types"
)

// multipartOverhead is the allowance for multipart framing on top of the
// upload limit.
const multipartOverhead = 1 << 20

type createBucketRequest struct {
	Name string `json:"name"`
}

func (h *handler) listBuckets(c *gin.Context) {
	buckets, err := h.store.ListBuckets(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"buckets": buckets, "count": len(buckets)})
}

func (h *handler) createBucket(c *gin.Context) {
	var req createBucketRequest
	if !bindJSON(c, "httpapi.createBucket", &req) {
		return
	}
	b, err := h.store.CreateBucket(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"bucket": b})
}

func (h *handler) listDocuments(c *gin.Context) {
	docs, err := h.store.ListDocuments(c.Request.Context(), c.Param("id"), c.Param("bid"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
}

// uploadToBucket stores a multipart file in an existing bucket.
func (h *handler) uploadToBucket(c *gin.Context) {
	const op = "httpapi.uploadToBucket"
	projectID, bucketID := c.Param("id"), c.Param("bid")

	b, err := h.store.GetBucket(c.Request.Context(), bucketID)
	if err != nil || b.ProjectID != projectID {
		respondError(c, apperr.NotFound(op, "bucket %s not found in project %s", bucketID, projectID))
		return
	}
	filename, content, ok := h.readUpload(c, op)
	if !ok {
		return
	}
	doc, err := h.ingestor.Ingest(c.Request.Context(), ingest.Input{
		BucketID: bucketID, Filename: filename, Content: content,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondUploaded(c, doc)
}

// upload stores a multipart file in the bucket named by the bucket query
// parameter, creating it when missing.
func (h *handler) upload(c *gin.Context) {
	const op = "httpapi.upload"
	projectID := c.Param("id")
	if _, err := h.store.GetProject(c.Request.Context(), projectID); err != nil {
		respondError(c, err)
		return
	}
	filename, content, ok := h.readUpload(c, op)
	if !ok {
		return
	}
	doc, err := h.ingestor.IngestToProject(c.Request.Context(), projectID,
		c.DefaultQuery("bucket", ingest.DefaultBucket), filename, content)
	if err != nil {
		respondError(c, err)
		return
	}
	respondUploaded(c, doc)
}

// readUpload reads the "file" form field, enforcing the upload limit while
// the body streams in.
func (h *handler) readUpload(c *gin.Context, op string) (string, []byte, bool) {
	limit := h.ingestor.MaxBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, apperr.PayloadTooLarge(op, c.Request.ContentLength, limit))
			return "", nil, false
		}
		respondError(c, apperr.E(apperr.KindValidation, op, "multipart field \"file\" is required", err))
		return "", nil, false
	}
	if fh.Size > limit {
		respondError(c, apperr.PayloadTooLarge(op, fh.Size, limit))
		return "", nil, false
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, apperr.E(apperr.KindInternal, op, "opening upload", err))
		return "", nil, false
	}
	defer f.Close()
	content, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		respondError(c, apperr.E(apperr.KindInternal, op, "reading upload", err))
		return "", nil, false
	}
	return fh.Filename, content, true
}

func respondUploaded(c *gin.Context, doc types.Document) {
	respondOK(c, http.StatusOK, gin.H{
		"document":   doc,
		"file_id":    doc.ID,
		"filename":   doc.Filename,
		"size":       doc.Size,
		"project_id": doc.ProjectID,
		"bucket_id":  doc.BucketID,
		"status":     doc.Status,
	})
}
