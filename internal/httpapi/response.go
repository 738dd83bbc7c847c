// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/miranda/internal/apperr"
)

// ErrorEnvelope is the body of every failed response. Type is the error
// kind, so clients can tell missing configuration from a transient failure.
type ErrorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Type    string `json:"type"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindEmptyIndex:
		return http.StatusUnprocessableEntity
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case apperr.KindConfiguration:
		return http.StatusServiceUnavailable
	case apperr.KindIndexing, apperr.KindGeneration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondOK writes payload with success set.
func respondOK(c *gin.Context, status int, payload gin.H) {
	if payload == nil {
		payload = gin.H{}
	}
	payload["success"] = true
	c.JSON(status, payload)
}

// respondError writes the error envelope for err.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	msg := "internal error"
	var ae *apperr.Error
	if errors.As(err, &ae) {
		msg = ae.Message()
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusFor(kind), ErrorEnvelope{
		Success: false,
		Error:   msg,
		Type:    string(kind),
	})
}

// bindJSON decodes the request body into v, reporting malformed input as a
// validation error.
func bindJSON(c *gin.Context, op string, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		respondError(c, apperr.E(apperr.KindValidation, op, "invalid request body", err))
		return false
	}
	return true
}
