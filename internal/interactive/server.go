// Package interactive runs the short-lived loopback HTTP server used for
// browser sign-in callbacks and environment selection pages.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jkaninda/okapi"
	"github.com/pkg/browser"
)

// Opener opens a URL for the user.
type Opener func(url string) error

// BrowserOpener opens URLs in the system browser.
func BrowserOpener(url string) error { return browser.OpenURL(url) }

// Server is a loopback-only okapi server on a free port.
type Server struct {
	app    *okapi.Okapi
	srv    *http.Server
	addr   string
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	errCh   chan error
}

// NewServer reserves a free loopback port.
func NewServer(logger *slog.Logger) (*Server, error) {
	addr, err := FreeLoopbackAddr()
	if err != nil {
		return nil, err
	}
	return &Server{
		app:    okapi.New(),
		addr:   addr,
		logger: logger,
		errCh:  make(chan error, 1),
	}, nil
}

// FreeLoopbackAddr returns a 127.0.0.1 address with a port that was free at
// the time of the call.
func FreeLoopbackAddr() (string, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("finding free port: %w", err)
	}
	addr := l.Addr().String()
	if err := l.Close(); err != nil {
		return "", fmt.Errorf("releasing port: %w", err)
	}
	return addr, nil
}

// Handle mounts a standard handler. Must be called before Start.
func (s *Server) Handle(method, path string, h http.HandlerFunc) {
	s.app.HandleStd(method, path, h)
}

// URL returns the absolute URL of path on this server.
func (s *Server) URL(path string) string {
	return "http://" + s.addr + path
}

// Start serves in the background. Serve errors are reported on Err.
func (s *Server) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.srv = &http.Server{
		Addr:              s.addr,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		s.logger.Debug("interactive server starting", slog.String("addr", s.addr))
		if err := s.app.StartServer(s.srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errCh <- fmt.Errorf("interactive server: %w", err)
		}
	}()
}

// Err delivers a serve failure, if one happens.
func (s *Server) Err() <-chan error { return s.errCh }

// Close shuts the server down.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	done := make(chan error, 1)
	go func() { done <- s.app.Shutdown(s.srv) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return s.srv.Close()
	}
}

// Present opens url with open, or logs it for manual use when open is nil or
// fails.
func Present(url string, open Opener, logger *slog.Logger) {
	if open != nil {
		err := open(url)
		if err == nil {
			logger.Info("opened browser", slog.String("url", url))
			return
		}
		logger.Warn("failed to open browser", slog.String("error", err.Error()))
	}
	logger.Info("open this URL in your browser to continue", slog.String("url", url))
}
