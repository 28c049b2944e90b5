// README: Websocket stream of quote snapshots for one session.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"rideflow/internal/metrics"
	"rideflow/internal/modules/session"
)

const (
	streamWriteWait  = 5 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
)

type StreamHandler struct {
	sessions   *session.Manager
	upgrader   websocket.Upgrader
	pingPeriod time.Duration
	log        *zap.Logger
}

func NewStreamHandler(m *session.Manager, log *zap.Logger) *StreamHandler {
	return &StreamHandler{
		sessions: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients are native apps, not browsers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		pingPeriod: streamPingPeriod,
		log:        log,
	}
}

// Stream handles GET /api/sessions/:id/stream. The first frame is the current
// snapshot; later frames follow every quote state change until the session
// closes or the client disconnects. An open stream keeps its session alive.
func (h *StreamHandler) Stream(c *gin.Context) {
	s, ok := loadSession(c, h.sessions)
	if !ok {
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Warn("websocket upgrade failed", zap.String("session", s.ID), zap.Error(err))
		return
	}
	defer conn.Close()

	metrics.WebSocketConnections.Inc()
	defer metrics.WebSocketConnections.Dec()

	updates, cancel := s.Quote.Subscribe()
	defer cancel()

	// The read side only handles control frames; a read error means the peer left.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(h.pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case snap, ok := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			if err := conn.WriteJSON(snap); err != nil {
				h.log.Debug("stream write failed", zap.String("session", s.ID), zap.Error(err))
				return
			}
		case <-ping.C:
			s.Touch()
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}
