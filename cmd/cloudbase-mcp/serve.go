package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jkaninda/cloudbase-mcp/internal/gateway"
	"github.com/jkaninda/cloudbase-mcp/internal/gateway/httpapi"
	"github.com/jkaninda/cloudbase-mcp/internal/gateway/stdio"
	"github.com/jkaninda/cloudbase-mcp/internal/plugins"
	"github.com/jkaninda/cloudbase-mcp/internal/ratelimit"
	"github.com/jkaninda/cloudbase-mcp/internal/server"
	"github.com/jkaninda/cloudbase-mcp/internal/tools"
)

var (
	serveTransport string
	serveListen    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve CloudBase tools over MCP (stdio or streamable HTTP)",
	RunE:  runServe,
}

func init() {
	// Register flags on both root and serve so that `cloudbase-mcp
	// --transport http` and `cloudbase-mcp serve --transport http` both work.
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().StringVar(&serveTransport, "transport", "", "override server.transport: stdio or http")
		cmd.Flags().StringVar(&serveListen, "listen", "", "override the HTTP listen address (e.g. 127.0.0.1:8080)")
	}
}

// runServe registers the enabled plugins and serves until a signal arrives
// or the transport exits.
func runServe(cmd *cobra.Command, _ []string) error {
	sc, err := initShared(cmd)
	if err != nil {
		return err
	}
	defer sc.Cleanup()
	cfg, logger := sc.Config, sc.Logger

	// Apply CLI overrides.
	if serveTransport != "" {
		cfg.Server.Transport = serveTransport
	}
	if serveListen != "" {
		cfg.Server.ListenAddr = serveListen
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := newToolServer(sc)

	// The enabled set is computed once per process.
	registry := plugins.NewRegistry(sc.Env, tools.Plugins(),
		plugins.WithMetrics(sc.Obs.MetricsOrNil()),
		plugins.WithLogger(logger),
	)
	enabled := registry.ResolveEnabled(cfg.Plugins.Enabled, cfg.Plugins.Disabled)
	if err := registry.RegisterAll(ctx, srv, enabled); err != nil {
		return err
	}
	logger.Info("plugins registered",
		slog.Any("plugins", enabled),
		slog.Int("tools", len(srv.ToolNames())),
	)

	addHealthChecks(sc)

	gw, err := buildGateway(sc, srv)
	if err != nil {
		return err
	}

	errs := make(chan error, 1)
	go func() { errs <- gw.Start(ctx) }()

	// Wait for signal or transport exit.
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("transport exited with error", slog.String("error", err.Error()))
			return err
		}
		logger.Info("transport closed")
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := gw.Stop(shutdownCtx); err != nil {
		logger.Error("stopping transport", slog.String("error", err.Error()))
	}
	return nil
}

func newToolServer(sc *SharedComponents) *server.Server {
	opts := []server.Option{
		server.WithName(sc.Config.Server.Name),
		server.WithVersion(version),
		server.WithIDE(sc.IDE),
		server.WithEnv(sc.Env),
		server.WithLocale(sc.Config.Locale),
		server.WithCloudBaseOptions(sc.Explicit),
		server.WithClientBuilder(sc.Clients),
		server.WithCredentials(sc.Creds),
		server.WithEnvIDs(sc.EnvIDs),
		server.WithObservability(sc.Obs),
		server.WithLogger(sc.Logger),
	}
	if rl := sc.Config.RateLimit; rl != nil && rl.RequestsPerMinute > 0 {
		opts = append(opts, server.WithRateLimiter(ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: rl.RequestsPerMinute,
			BurstSize:         rl.BurstSize,
		})))
	}
	srv := server.New(opts...)
	if sc.Obs != nil && sc.Obs.Audit != nil {
		srv.AddResultLogger(sc.Obs.Audit.Record)
	}
	return srv
}

func buildGateway(sc *SharedComponents, srv *server.Server) (gateway.Gateway, error) {
	cfg := sc.Config.Server
	switch cfg.Transport {
	case "stdio":
		return stdio.NewGateway(srv.ServeStdio, sc.Logger), nil
	case "http":
		hc := httpapi.Config{
			ListenAddr:   cfg.ListenAddr,
			EndpointPath: cfg.EndpointPath,
			APIKeys:      cfg.APIKeys,
		}
		if obs := sc.Obs; obs != nil {
			hc.HealthChecker = obs.Health
			hc.Metrics = obs.MetricsOrNil()
			if obs.Metrics != nil {
				hc.MetricsRegistry = obs.Metrics.Registry
				if m := sc.Config.Observability.Metrics; m != nil {
					hc.MetricsPath = m.Path
				}
			}
			if obs.Tracer != nil {
				hc.Tracer = obs.Tracer.Tracer()
			}
		}
		return httpapi.NewGateway(hc, srv.HTTPHandler(cfg.EndpointPath), sc.Logger), nil
	default:
		return nil, fmt.Errorf("unknown transport %q, want stdio or http", cfg.Transport)
	}
}
