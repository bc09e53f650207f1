// Package ws serves a session's push channel over a WebSocket.
package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/hilo/internal/game/session"
)

const (
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Subscriber opens and closes push channels.
type Subscriber interface {
	Subscribe(resume int64) (int64, *session.PushChannel, error)
	Unsubscribe(id int64, ch *session.PushChannel)
}

// Stream writes each push event as one WebSocket text message.
type Stream struct {
	subs      Subscriber
	upgrader  websocket.Upgrader
	writeWait time.Duration
	logger    *zap.Logger
}

// NewStream creates a Stream. allowedOrigin "*" accepts any Origin header; a
// writeWait of 0 disables per-write deadlines.
//
// Precondition: subs and logger must be non-nil.
func NewStream(subs Subscriber, allowedOrigin string, writeWait time.Duration, logger *zap.Logger) *Stream {
	return &Stream{
		subs: subs,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "*" {
					return true
				}
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin
			},
		},
		writeWait: writeWait,
		logger:    logger,
	}
}

// Serve subscribes, upgrades the connection and pumps events until either
// side closes.
//
// Postcondition: Returns the subscription error before the upgrade, or nil.
func (s *Stream) Serve(w http.ResponseWriter, r *http.Request, resume int64) error {
	id, ch, err := s.subs.Subscribe(resume)
	if err != nil {
		return err
	}
	defer s.subs.Unsubscribe(id, ch)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Int64("session_id", id), zap.Error(err))
		return nil
	}
	defer conn.Close()

	done := make(chan struct{})
	go s.readPump(conn, id, done)
	s.writePump(r.Context(), conn, ch, id, done)
	return nil
}

// readPump discards client messages and signals done when the peer goes away.
func (s *Stream) readPump(conn *websocket.Conn, id int64, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Debug("websocket read error", zap.Int64("session_id", id), zap.Error(err))
			}
			return
		}
	}
}

// writePump forwards channel events and periodic pings to the connection.
func (s *Stream) writePump(ctx context.Context, conn *websocket.Conn, ch *session.PushChannel, id int64, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			s.setWriteDeadline(conn)
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case data, ok := <-ch.Events():
			s.setWriteDeadline(conn)
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debug("websocket write failed", zap.Int64("session_id", id), zap.Error(err))
				return
			}
		case <-ticker.C:
			s.setWriteDeadline(conn)
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// setWriteDeadline bounds the next write by writeWait, when set.
func (s *Stream) setWriteDeadline(conn *websocket.Conn) {
	if s.writeWait > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.writeWait))
	}
}
