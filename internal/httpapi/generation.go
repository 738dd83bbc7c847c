// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/miranda/internal/export"
	"github.com/pdiddy/miranda/internal/generate"
	"github.com/pdiddy/miranda/pkg/types"
)

type brainstormRequest struct {
	ProjectID string     `json:"project_id"`
	Context   string     `json:"context"`
	Focus     string     `json:"focus"`
	Tone      types.Tone `json:"tone"`

	// UseDocuments defaults to true when omitted.
	UseDocuments *bool `json:"use_documents"`
}

type writeRequest struct {
	ProjectID       string         `json:"project_id"`
	BrainstormID    string         `json:"brainstorm_id"`
	Format          types.Template `json:"format"`
	Length          types.Length   `json:"length"`
	Tone            types.Tone     `json:"prompt_tone"`
	SelectedTables  []string       `json:"selected_tables"`
	SelectedBuckets []string       `json:"selected_buckets"`
}

func (h *handler) brainstorm(c *gin.Context) {
	var req brainstormRequest
	if !bindJSON(c, "httpapi.brainstorm", &req) {
		return
	}
	useDocs := true
	if req.UseDocuments != nil {
		useDocs = *req.UseDocuments
	}
	b, err := h.gen.Brainstorm(c.Request.Context(), generate.BrainstormInput{
		ProjectID:    req.ProjectID,
		Context:      req.Context,
		Focus:        req.Focus,
		Tone:         req.Tone,
		UseDocuments: useDocs,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"brainstorm":    b,
		"brainstorm_id": b.ID,
		"ideas":         b.Ideas,
	})
}

func (h *handler) write(c *gin.Context) {
	var req writeRequest
	if !bindJSON(c, "httpapi.write", &req) {
		return
	}
	gc, err := h.gen.Write(c.Request.Context(), generate.WriteInput{
		ProjectID:       req.ProjectID,
		BrainstormID:    req.BrainstormID,
		Format:          req.Format,
		Length:          req.Length,
		Tone:            req.Tone,
		SelectedTables:  req.SelectedTables,
		SelectedBuckets: req.SelectedBuckets,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"content":    gc,
		"content_id": gc.ID,
		"word_count": gc.WordCount,
	})
}

func (h *handler) listBrainstorms(c *gin.Context) {
	list, err := h.gen.ListBrainstorms(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"brainstorms": list, "count": len(list)})
}

func (h *handler) listContents(c *gin.Context) {
	list, err := h.gen.ListContents(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"contents": list, "count": len(list)})
}

func (h *handler) getContent(c *gin.Context) {
	gc, err := h.gen.GetContent(c.Request.Context(), c.Param("id"), c.Param("cid"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"content": gc})
}

// exportContent renders stored content as a downloadable file.
func (h *handler) exportContent(c *gin.Context) {
	ctx := c.Request.Context()
	f, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		respondError(c, err)
		return
	}
	p, err := h.store.GetProject(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	gc, err := h.gen.GetContent(ctx, p.ID, c.Param("cid"))
	if err != nil {
		respondError(c, err)
		return
	}
	body, err := export.Render(p, gc, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(p, gc, f)))
	c.Data(http.StatusOK, f.ContentType(), body)
}
