package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"intelliquiz-engine/internal/app"
	"intelliquiz-engine/internal/platform/logger"
)

const writeWait = 10 * time.Second

// StreamHandler pushes the global leaderboard to websocket clients.
type StreamHandler struct {
	ranker   *app.LeaderboardRanker
	hub      *app.LeaderboardHub
	size     int
	upgrader websocket.Upgrader
	log      *logger.Logger
}

func NewStreamHandler(ranker *app.LeaderboardRanker, hub *app.LeaderboardHub, size int, log *logger.Logger) *StreamHandler {
	if size <= 0 {
		size = app.DefaultStreamSize
	}
	return &StreamHandler{
		ranker: ranker,
		hub:    hub,
		size:   size,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log.With("component", "leaderboard-stream"),
	}
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ServeLeaderboard handles GET /ws/leaderboard: one snapshot on connect, then every update.
func (s *StreamHandler) ServeLeaderboard(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, cancel := s.hub.Subscribe()
	defer cancel()

	initial, err := s.ranker.Snapshot(c.Request.Context(), s.size)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage{Type: "error", Payload: errorBody("leaderboard unavailable")})
		return
	}

	ctx, stop := context.WithCancel(c.Request.Context())
	defer stop()

	// the client never sends anything useful; reading only detects the close
	go func() {
		defer stop()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if err := s.write(conn, outboundMessage{Type: "leaderboard", Payload: initial}); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case lb, ok := <-updates:
			if !ok {
				return
			}
			if err := s.write(conn, outboundMessage{Type: "leaderboard", Payload: lb}); err != nil {
				s.log.Debug("ws write error", "error", err)
				return
			}
		}
	}
}

func (s *StreamHandler) write(conn *websocket.Conn, msg outboundMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}
