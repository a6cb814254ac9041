package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldboard/internal/board"
)

type statusRequest struct {
	Status board.Status `json:"status" binding:"required"`
}

// SetJobStatus handles POST /api/jobs/:id/status.
func (h *Handler) SetJobStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	it, err := h.engine.Lifecycle.Transition(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}
