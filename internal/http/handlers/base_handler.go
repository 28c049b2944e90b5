// README: Base handler utilities (JSON helpers, session lookup, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"rideflow/internal/modules/quote"
	"rideflow/internal/modules/search"
	"rideflow/internal/modules/session"
	"rideflow/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

// isValidID accepts the UUIDs the session manager hands out.
func isValidID(v string) bool {
	_, err := uuid.Parse(v)
	return err == nil
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, quote.ErrClosed),
		errors.Is(err, search.ErrUnknownSuggestion),
		errors.Is(err, quote.ErrUnknownAlternative):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrInvalidField), errors.Is(err, types.ErrFormat):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, quote.ErrNoSelection):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// bindJSON decodes the body into v, writing 413 or 400 itself on failure.
func bindJSON(c *gin.Context, v any) bool {
	err := c.ShouldBindJSON(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(c, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	writeError(c, http.StatusBadRequest, "invalid json")
	return false
}

// loadSession resolves :id, writing the error response itself on failure.
func loadSession(c *gin.Context, m *session.Manager) (*session.Session, bool) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid session id")
		return nil, false
	}
	s, err := m.Get(id)
	if err != nil {
		writeSessionError(c, err)
		return nil, false
	}
	return s, true
}
