// README: Quote snapshot, refresh and alternative selection handlers.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"rideflow/internal/modules/quote"
	"rideflow/internal/modules/session"
)

// maxQuoteWait bounds GET ?wait=true.
const maxQuoteWait = 20 * time.Second

type QuoteHandler struct {
	sessions *session.Manager
}

func NewQuoteHandler(m *session.Manager) *QuoteHandler {
	return &QuoteHandler{sessions: m}
}

// Get handles GET /api/sessions/:id/quote. With wait=true it blocks until the
// in-flight fetch settles, or returns the current snapshot once the wait expires.
func (h *QuoteHandler) Get(c *gin.Context) {
	s, ok := loadSession(c, h.sessions)
	if !ok {
		return
	}
	if c.Query("wait") != "true" {
		writeJSON(c, http.StatusOK, s.Quote.Snapshot())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), maxQuoteWait)
	defer cancel()
	snap, err := s.Quote.Await(ctx)
	if errors.Is(err, quote.ErrClosed) {
		writeSessionError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, snap)
}

// Refresh handles POST /api/sessions/:id/quote/refresh.
func (h *QuoteHandler) Refresh(c *gin.Context) {
	s, ok := loadSession(c, h.sessions)
	if !ok {
		return
	}
	writeJSON(c, http.StatusAccepted, s.Quote.Refresh())
}

type selectAlternativeReq struct {
	Location string `json:"location"`
}

// SelectAlternative handles POST /api/sessions/:id/quote/alternative.
func (h *QuoteHandler) SelectAlternative(c *gin.Context) {
	s, ok := loadSession(c, h.sessions)
	if !ok {
		return
	}
	var req selectAlternativeReq
	if !bindJSON(c, &req) {
		return
	}
	req.Location = strings.TrimSpace(req.Location)
	if req.Location == "" {
		writeError(c, http.StatusBadRequest, "missing location")
		return
	}

	sel, err := s.SelectAlternative(req.Location)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, sel)
}
