// README: Session lifecycle and route selection.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rideflow/internal/modules/session"
)

type SessionHandler struct {
	sessions *session.Manager
}

func NewSessionHandler(m *session.Manager) *SessionHandler {
	return &SessionHandler{sessions: m}
}

// Create handles POST /api/sessions.
func (h *SessionHandler) Create(c *gin.Context) {
	s := h.sessions.Create()
	writeJSON(c, http.StatusCreated, gin.H{"session_id": s.ID})
}

// Delete handles DELETE /api/sessions/:id.
func (h *SessionHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid session id")
		return
	}
	if err := h.sessions.Delete(id); err != nil {
		writeSessionError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type setRouteReq struct {
	Pickup  string `json:"pickup"`
	Dropoff string `json:"dropoff"`
}

// SetRoute handles PUT /api/sessions/:id/route. Either endpoint may be empty;
// text over types.MaxPlaceQueryLen is a 400.
func (h *SessionHandler) SetRoute(c *gin.Context) {
	s, ok := loadSession(c, h.sessions)
	if !ok {
		return
	}
	var req setRouteReq
	if !bindJSON(c, &req) {
		return
	}
	snap, err := s.SetRoute(req.Pickup, req.Dropoff)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, snap)
}
