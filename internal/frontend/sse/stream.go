// Package sse serves a session's push channel as a Server-Sent Events stream.
package sse

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/hilo/internal/game/session"
)

// Subscriber opens and closes push channels.
type Subscriber interface {
	Subscribe(resume int64) (int64, *session.PushChannel, error)
	Unsubscribe(id int64, ch *session.PushChannel)
}

// Stream writes push events as "data: <json>\n\n" frames.
type Stream struct {
	subs         Subscriber
	heartbeat    time.Duration
	writeTimeout time.Duration
	logger       *zap.Logger
}

// NewStream creates a Stream. A heartbeat of 0 disables keep-alive comments;
// a writeTimeout of 0 disables per-write deadlines.
//
// Precondition: subs and logger must be non-nil.
func NewStream(subs Subscriber, heartbeat, writeTimeout time.Duration, logger *zap.Logger) *Stream {
	return &Stream{subs: subs, heartbeat: heartbeat, writeTimeout: writeTimeout, logger: logger}
}

// Serve subscribes and streams events until the client goes away, a write
// fails, or the channel is closed by the registry.
//
// Postcondition: Returns the subscription error before anything is written,
// or nil once streaming has begun.
func (s *Stream) Serve(w http.ResponseWriter, r *http.Request, resume int64) error {
	id, ch, err := s.subs.Subscribe(resume)
	if err != nil {
		return err
	}
	defer s.subs.Unsubscribe(id, ch)

	rc := http.NewResponseController(w)
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Session-ID", fmt.Sprint(id))
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.logger.Warn("sse flush unsupported", zap.Int64("session_id", id), zap.Error(err))
		return nil
	}

	var tick <-chan time.Time
	if s.heartbeat > 0 {
		ticker := time.NewTicker(s.heartbeat)
		defer ticker.Stop()
		tick = ticker.C
	}

	start := time.Now()
	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("sse client gone", zap.Int64("session_id", id), zap.Duration("duration", time.Since(start)))
			return nil
		case data, ok := <-ch.Events():
			if !ok {
				s.logger.Debug("sse channel closed", zap.Int64("session_id", id))
				return nil
			}
			if err := s.write(rc, w, "data: %s\n\n", data); err != nil {
				s.logger.Debug("sse write failed", zap.Int64("session_id", id), zap.Error(err))
				return nil
			}
		case <-tick:
			if err := s.write(rc, w, ": keep-alive\n\n"); err != nil {
				s.logger.Debug("sse heartbeat failed", zap.Int64("session_id", id), zap.Error(err))
				return nil
			}
		}
	}
}

func (s *Stream) write(rc *http.ResponseController, w http.ResponseWriter, format string, args ...any) error {
	if s.writeTimeout > 0 {
		err := rc.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		if err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, format, args...); err != nil {
		return err
	}
	return rc.Flush()
}
