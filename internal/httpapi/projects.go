// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/miranda/internal/project"
	"github.com/pdiddy/miranda/pkg/types"
)

type createProjectRequest struct {
	Name        string         `json:"name"`
	Template    types.Template `json:"template"`
	Description string         `json:"description"`
}

type updateProjectRequest struct {
	Description string `json:"description"`
}

func (h *handler) listProjects(c *gin.Context) {
	projects := h.store.ListProjects(c.Request.Context())
	respondOK(c, http.StatusOK, gin.H{"projects": projects, "count": len(projects)})
}

func (h *handler) createProject(c *gin.Context) {
	var req createProjectRequest
	if !bindJSON(c, "httpapi.createProject", &req) {
		return
	}
	p, err := h.store.CreateProject(c.Request.Context(), project.CreateProjectInput{
		Name:        req.Name,
		Template:    req.Template,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"project": p})
}

func (h *handler) getProject(c *gin.Context) {
	p, err := h.store.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"project": p})
}

func (h *handler) updateProject(c *gin.Context) {
	var req updateProjectRequest
	if !bindJSON(c, "httpapi.updateProject", &req) {
		return
	}
	p, err := h.store.UpdateDescription(c.Request.Context(), c.Param("id"), req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"project": p})
}

func (h *handler) deleteProject(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.DeleteProject(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"deleted": id})
}
