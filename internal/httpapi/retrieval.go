// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/miranda/internal/index"
	"github.com/pdiddy/miranda/pkg/types"
)

type queryRequest struct {
	// Query and Text are aliases; older clients send "text".
	Query string          `json:"query"`
	Text  string          `json:"text"`
	Mode  types.QueryMode `json:"mode"`
}

func (r queryRequest) question() string {
	if r.Query != "" {
		return r.Query
	}
	return r.Text
}

type queryTextRequest struct {
	Text  string          `json:"text"`
	Query string          `json:"query"`
	Mode  types.QueryMode `json:"mode"`
}

func (h *handler) query(c *gin.Context) {
	var req queryRequest
	if !bindJSON(c, "httpapi.query", &req) {
		return
	}
	res, err := h.index.Query(c.Request.Context(), c.Param("id"), index.QueryInput{
		Text: req.question(),
		Mode: req.Mode,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"query": res})
}

func (h *handler) indexState(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := h.store.GetProject(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	st, err := h.index.State(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"index": st})
}

// queryText indexes the request text in a throwaway scope and queries it.
func (h *handler) queryText(c *gin.Context) {
	var req queryTextRequest
	if !bindJSON(c, "httpapi.queryText", &req) {
		return
	}
	res, err := h.index.QueryText(c.Request.Context(), req.Text, req.Query, req.Mode)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"query": res})
}
