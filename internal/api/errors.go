package api

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"fieldboard/internal/board"
)

// statusOf maps the board error classes onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case board.IsValidation(err):
		return http.StatusUnprocessableEntity
	case board.IsConflict(err):
		return http.StatusConflict
	case board.IsNotFound(err):
		return http.StatusNotFound
	case board.IsPersistence(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes err as a JSON error body. Hints attached to the error
// are passed on to the client.
func (h *Handler) abortWithError(c *gin.Context, err error) {
	code := statusOf(err)
	body := gin.H{"error": err.Error()}
	if hint := errors.FlattenHints(err); hint != "" {
		body["hint"] = hint
	}
	if code == http.StatusInternalServerError {
		h.logger.Errorw("request failed", "path", c.FullPath(), "error", err)
		body["error"] = "internal error"
	}
	c.AbortWithStatusJSON(code, body)
}
