package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldboard/internal/board"
)

type beginDragRequest struct {
	ItemID string           `json:"itemId" binding:"required"`
	Layout board.GridLayout `json:"layout"`
}

// BeginDrag handles POST /api/drag.
func (h *Handler) BeginDrag(c *gin.Context) {
	var req beginDragRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s, err := h.engine.Drag.Begin(req.ItemID, req.Layout)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sessionResponse(s))
}

// GetDrag handles GET /api/drag and returns the live session.
func (h *Handler) GetDrag(c *gin.Context) {
	s, ok := h.engine.Drag.Current()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no drag in progress"})
		return
	}
	c.JSON(http.StatusOK, sessionResponse(s))
}

// HoverDrag handles POST /api/drag/:session/hover. Moves are coalesced and
// applied once per frame.
func (h *Handler) HoverDrag(c *gin.Context) {
	var p board.Pointer
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("session")
	if s, ok := h.engine.Drag.Current(); !ok || s.ID != id || s.State != board.DragDragging {
		c.JSON(http.StatusConflict, gin.H{"error": "drag session " + id + " is not active"})
		return
	}
	h.engine.Hover.Offer(id, p)
	c.Status(http.StatusAccepted)
}

// DropDrag handles POST /api/drag/:session/drop. The body carries the final
// pointer position; without one the last hover is used.
func (h *Handler) DropDrag(c *gin.Context) {
	var final *board.Pointer
	if c.Request.ContentLength != 0 {
		var p board.Pointer
		if err := c.ShouldBindJSON(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		final = &p
	}

	h.engine.Hover.Discard()
	res, err := h.engine.Drag.Drop(c.Request.Context(), c.Param("session"), final)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	body := gin.H{"state": res.State, "committed": res.Committed}
	if res.Committed {
		body["item"] = res.Item
	}
	if res.Reason != nil {
		body["reason"] = res.Reason.Error()
	}
	c.JSON(http.StatusOK, body)
}

// CancelDrag handles POST /api/drag/:session/cancel.
func (h *Handler) CancelDrag(c *gin.Context) {
	h.engine.Hover.Discard()
	if err := h.engine.Drag.Cancel(c.Param("session")); err != nil {
		h.abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func sessionResponse(s board.DragSession) gin.H {
	candidate := gin.H{
		"resourceId": s.Candidate.ResourceID,
		"start":      s.Candidate.Start,
		"end":        s.Candidate.End,
		"valid":      s.Candidate.Valid,
	}
	if s.Candidate.Reason != nil {
		candidate["reason"] = s.Candidate.Reason.Error()
	}
	return gin.H{
		"id":        s.ID,
		"itemId":    s.ItemID,
		"origin":    s.Origin,
		"candidate": candidate,
		"state":     s.State,
	}
}
