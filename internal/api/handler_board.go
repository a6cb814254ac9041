package api

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fieldboard/internal/board"
)

const dateLayout = "2006-01-02"

// GetBoard handles GET /api/board?date=YYYY-MM-DD&view=day|week. The window
// is reloaded from the job directory when the date or view changes.
func (h *Handler) GetBoard(c *gin.Context) {
	mode := board.ViewMode(c.DefaultQuery("view", string(board.ViewDay)))
	if mode != board.ViewDay && mode != board.ViewWeek {
		c.JSON(http.StatusBadRequest, gin.H{"error": "view must be day or week"})
		return
	}

	loc := h.engine.ViewParams(time.Time{}, mode).Location
	date := time.Now().In(loc)
	if raw := c.Query("date"); raw != "" {
		d, err := time.ParseInLocation(dateLayout, raw, loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		date = d
	}

	v := h.engine.ViewParams(date, mode)
	if err := h.loader.Ensure(c.Request.Context(), v); err != nil {
		h.logger.Errorw("failed to load board window", "date", date.Format(dateLayout), "view", mode, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to load the board"})
		return
	}

	c.JSON(http.StatusOK, h.engine.Project(v, h.customers))
}

// GetTechnicians handles GET /api/technicians.
func (h *Handler) GetTechnicians(c *gin.Context) {
	techs, err := h.store.ListTechnicians(c.Request.Context())
	if err != nil {
		h.logger.Errorw("failed to list technicians", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve technicians"})
		return
	}

	resources := make([]board.Resource, 0, len(techs))
	for _, t := range techs {
		resources = append(resources, board.Resource{ID: t.ID, DisplayName: t.DisplayName, ColorTag: t.ColorTag})
	}
	c.JSON(http.StatusOK, resources)
}

// StreamChanges handles GET /api/board/changes, a server-sent event stream of
// store changes. Clients refetch the board when an event arrives.
func (h *Handler) StreamChanges(c *gin.Context) {
	changes, unsubscribe := h.engine.Store.Subscribe()
	defer unsubscribe()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case ch, ok := <-changes:
			if !ok {
				return false
			}
			c.SSEvent(string(ch.Kind), ch)
			return true
		}
	})
}
