// README: Address search handlers for the pickup and dropoff fields.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rideflow/internal/modules/quote"
	"rideflow/internal/modules/search"
	"rideflow/internal/modules/session"
	"rideflow/internal/types"
)

type SearchHandler struct {
	sessions *session.Manager
}

func NewSearchHandler(m *session.Manager) *SearchHandler {
	return &SearchHandler{sessions: m}
}

func (h *SearchHandler) suggester(c *gin.Context) (*session.Session, session.Field, *search.Suggester, bool) {
	s, ok := loadSession(c, h.sessions)
	if !ok {
		return nil, "", nil, false
	}
	f, err := session.ParseField(c.Param("field"))
	if err != nil {
		writeSessionError(c, err)
		return nil, "", nil, false
	}
	sg, err := s.Suggester(f)
	if err != nil {
		writeSessionError(c, err)
		return nil, "", nil, false
	}
	return s, f, sg, true
}

type setQueryReq struct {
	Query string `json:"query"`
}

// SetQuery handles PUT /api/sessions/:id/search/:field.
func (h *SearchHandler) SetQuery(c *gin.Context) {
	s, f, _, ok := h.suggester(c)
	if !ok {
		return
	}
	var req setQueryReq
	if !bindJSON(c, &req) {
		return
	}
	st, err := s.SetQuery(f, req.Query)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}

// Get handles GET /api/sessions/:id/search/:field.
func (h *SearchHandler) Get(c *gin.Context) {
	_, _, sg, ok := h.suggester(c)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, sg.State())
}

type selectSuggestionReq struct {
	ID string `json:"id"`
}

type selectSuggestionResp struct {
	Suggestion types.Suggestion `json:"suggestion"`
	Quote      quote.Snapshot   `json:"quote"`
}

// Select handles POST /api/sessions/:id/search/:field/select.
func (h *SearchHandler) Select(c *gin.Context) {
	s, f, _, ok := h.suggester(c)
	if !ok {
		return
	}
	var req selectSuggestionReq
	if !bindJSON(c, &req) {
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		writeError(c, http.StatusBadRequest, "missing id")
		return
	}

	chosen, snap, err := s.SelectSuggestion(f, req.ID)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, selectSuggestionResp{Suggestion: chosen, Quote: snap})
}

// Focus handles POST /api/sessions/:id/search/:field/focus.
func (h *SearchHandler) Focus(c *gin.Context) {
	_, _, sg, ok := h.suggester(c)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, sg.Focus())
}

// Blur handles POST /api/sessions/:id/search/:field/blur.
func (h *SearchHandler) Blur(c *gin.Context) {
	_, _, sg, ok := h.suggester(c)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, sg.Blur())
}
