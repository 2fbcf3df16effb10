package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"minigame_bot/internal/session"
	"minigame_bot/internal/store"
)

// RoomsHandler exposes the running rooms to operators.
type RoomsHandler struct {
	mgr *session.Manager
}

func NewRoomsHandler(mgr *session.Manager) *RoomsHandler {
	return &RoomsHandler{mgr: mgr}
}

// List returns the ids of all live rooms.
func (h *RoomsHandler) List(c *gin.Context) {
	ids, err := h.mgr.Rooms(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": ids, "count": len(ids)})
}

// Get returns one room's full persisted state.
func (h *RoomsHandler) Get(c *gin.Context) {
	s, err := h.mgr.Snapshot(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s)
}

// ForceEnd closes a room from the admin surface.
func (h *RoomsHandler) ForceEnd(c *gin.Context) {
	err := h.mgr.ForceEnd(c.Request.Context(), c.Param("id"),
		"This game was closed by an administrator.")
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ended"})
}
