// Package listener runs the HTTP server on a TCP listener capped at a fixed
// number of concurrent connections.
package listener

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	"github.com/cory-johannsen/hilo/internal/config"
)

// Acceptor serves an http.Handler on cfg.Addr(). Connections beyond
// cfg.MaxConnections wait in the kernel backlog until a slot frees.
type Acceptor struct {
	cfg     config.ServerConfig
	handler http.Handler
	logger  *zap.Logger

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	running  bool
	ready    chan struct{}
}

// NewAcceptor creates an Acceptor.
//
// Precondition: cfg must have a valid port and MaxConnections >= 1; handler and logger must be non-nil.
// Postcondition: Returns an Acceptor ready to be started with ListenAndServe.
func NewAcceptor(cfg config.ServerConfig, handler http.Handler, logger *zap.Logger) *Acceptor {
	return &Acceptor{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		ready:   make(chan struct{}),
	}
}

// ListenAndServe listens and serves until Shutdown is called.
//
// Precondition: The acceptor must not already be running.
// Postcondition: Returns nil after Shutdown, or the listen/serve error.
func (a *Acceptor) ListenAndServe() error {
	start := time.Now()

	ln, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Addr(), err)
	}
	ln = netutil.LimitListener(ln, a.cfg.MaxConnections)

	// Push streams stay open indefinitely, so only header reads are bounded
	// here; stream writes carry their own deadlines.
	baseCtx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: a.cfg.ReadTimeout,
		ErrorLog:          zap.NewStdLog(a.logger),
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	// Cancelling the base context ends long-lived streams, which Shutdown
	// alone would wait on until its deadline.
	srv.RegisterOnShutdown(cancel)
	defer cancel()

	a.mu.Lock()
	a.srv = srv
	a.listener = ln
	a.running = true
	a.mu.Unlock()
	close(a.ready)

	a.logger.Info("http acceptor listening",
		zap.String("addr", ln.Addr().String()),
		zap.Int("max_connections", a.cfg.MaxConnections),
		zap.Duration("startup", time.Since(start)),
	)

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests until
// ctx expires, then closes whatever remains.
//
// Postcondition: ListenAndServe has returned or will return promptly.
func (a *Acceptor) Shutdown(ctx context.Context) {
	a.mu.Lock()
	srv := a.srv
	running := a.running
	a.running = false
	a.mu.Unlock()

	if !running || srv == nil {
		return
	}
	if err := srv.Shutdown(ctx); err != nil {
		a.logger.Warn("graceful shutdown incomplete, closing connections", zap.Error(err))
		_ = srv.Close()
	}
	a.logger.Info("http acceptor stopped")
}

// Ready is closed once the listener is bound.
func (a *Acceptor) Ready() <-chan struct{} {
	return a.ready
}

// Addr returns the actual listening address, or empty string if not yet listening.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return ""
}

// IsRunning returns whether the acceptor is currently serving.
func (a *Acceptor) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}
