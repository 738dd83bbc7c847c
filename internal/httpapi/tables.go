// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/miranda/pkg/types"
)

type createTableRequest struct {
	Name    string         `json:"name"`
	Columns []types.Column `json:"columns"`
	Rows    []types.Row    `json:"rows"`
}

type appendRowsRequest struct {
	Rows []types.Row `json:"rows"`
}

func (h *handler) listTables(c *gin.Context) {
	tables, err := h.store.ListTables(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"tables": tables, "count": len(tables)})
}

func (h *handler) createTable(c *gin.Context) {
	var req createTableRequest
	if !bindJSON(c, "httpapi.createTable", &req) {
		return
	}
	ctx := c.Request.Context()
	projectID := c.Param("id")
	t, err := h.store.CreateTable(ctx, projectID, req.Name, req.Columns)
	if err != nil {
		respondError(c, err)
		return
	}
	if len(req.Rows) > 0 {
		if t, err = h.store.AppendRows(ctx, projectID, t.ID, req.Rows); err != nil {
			respondError(c, err)
			return
		}
	}
	respondOK(c, http.StatusOK, gin.H{"table": t})
}

func (h *handler) getTable(c *gin.Context) {
	t, err := h.store.GetTable(c.Request.Context(), c.Param("id"), c.Param("tid"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"table": t})
}

func (h *handler) appendRows(c *gin.Context) {
	var req appendRowsRequest
	if !bindJSON(c, "httpapi.appendRows", &req) {
		return
	}
	t, err := h.store.AppendRows(c.Request.Context(), c.Param("id"), c.Param("tid"), req.Rows)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"table": t, "row_count": len(t.Rows)})
}
