// Package stdio serves the tool server over stdin/stdout, the transport
// assistants use when they launch the server as a subprocess.
package stdio

import (
	"context"
	"log/slog"
	"sync"
)

// Serve runs one stdio session until ctx ends. server.Server.ServeStdio
// satisfies it.
type Serve func(ctx context.Context) error

// Gateway is the stdio transport. Nothing but protocol frames may be
// written to stdout while it runs; logs go to stderr.
type Gateway struct {
	serve  Serve
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewGateway creates a stdio gateway.
func NewGateway(serve Serve, logger *slog.Logger) *Gateway {
	return &Gateway{serve: serve, logger: logger}
}

// Start serves until stdin closes, Stop is called, or ctx is canceled.
func (g *Gateway) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	g.mu.Lock()
	g.cancel = cancel
	g.mu.Unlock()
	defer cancel()

	g.logger.Info("stdio gateway starting")
	err := g.serve(ctx)
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// Stop ends the session.
func (g *Gateway) Stop(_ context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.logger.Info("stdio gateway stopping")
		g.cancel()
	}
	return nil
}
