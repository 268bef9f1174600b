// Package httpapi serves the tool server over MCP streamable HTTP.
//
// Security:
//   - Optional bearer API keys (constant-time comparison)
//   - Health, readiness and metrics endpoints are unauthenticated
//   - TLS expected via reverse proxy (not handled here)
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkaninda/cloudbase-mcp/internal/observability"
	"github.com/jkaninda/okapi"
)

// ErrorBody is the standard error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// Config configures the HTTP gateway.
type Config struct {
	ListenAddr   string   // e.g., "127.0.0.1:8080"
	EndpointPath string   // MCP endpoint. Default: "/mcp".
	APIKeys      []string // Accepted bearer tokens. Empty disables authentication.

	// Observability
	MetricsRegistry *prometheus.Registry            // Custom Prometheus registry for /metrics.
	MetricsPath     string                          // Path for metrics endpoint. Default: "/metrics".
	HealthChecker   *observability.HealthChecker    // Health checker for /readyz.
	Metrics         *observability.MetricsCollector // Metrics collector for HTTP middleware.
	Tracer          trace.Tracer                    // OTel tracer for HTTP middleware.
}

// Gateway is the streamable HTTP transport.
type Gateway struct {
	config  Config
	handler http.Handler
	logger  *slog.Logger
	server  *http.Server
	okapi   *okapi.Okapi
}

// NewGateway creates an HTTP gateway that serves mcp, typically
// server.Server.HTTPHandler, at the configured endpoint.
func NewGateway(cfg Config, mcp http.Handler, logger *slog.Logger) *Gateway {
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	return &Gateway{
		config:  cfg,
		handler: mcp,
		logger:  logger,
		okapi:   okapi.New(),
	}
}

// routes mounts every endpoint on the okapi app.
func (g *Gateway) routes() {
	if g.config.Metrics != nil || g.config.Tracer != nil {
		g.okapi.UseMiddleware(func(next http.Handler) http.Handler {
			return observability.HTTPMetricsMiddleware(g.config.Metrics, g.config.Tracer, next)
		})
	}

	// The streamable transport uses POST for messages, GET for the server
	// stream and DELETE to end a session.
	mcp := g.authenticate(g.handler)
	for _, method := range []string{http.MethodPost, http.MethodGet, http.MethodDelete} {
		g.okapi.HandleStd(method, g.config.EndpointPath, mcp.ServeHTTP)
	}

	g.okapi.Get("/healthz", g.handleLiveness)
	g.okapi.Get("/readyz", g.handleReadiness)

	if g.config.MetricsRegistry != nil {
		g.okapi.HandleStd("GET", g.config.MetricsPath, promhttp.HandlerFor(g.config.MetricsRegistry, promhttp.HandlerOpts{}).ServeHTTP)
	}
}

// Start launches the HTTP server and blocks until it exits or ctx is canceled.
func (g *Gateway) Start(ctx context.Context) error {
	g.routes()

	g.server = &http.Server{
		Addr:              g.config.ListenAddr,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Tool calls can wait on an interactive sign-in, and GET holds a
		// server stream open.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}

	g.logger.Info("http gateway starting",
		slog.String("addr", g.config.ListenAddr),
		slog.String("endpoint", g.config.EndpointPath),
		slog.Bool("auth", len(g.config.APIKeys) > 0),
	)
	return g.okapi.StartServer(g.server)
}

// Stop gracefully shuts down the HTTP server.
func (g *Gateway) Stop(_ context.Context) error {
	if g.server == nil {
		return nil
	}
	g.logger.Info("http gateway stopping")
	return g.okapi.Shutdown(g.server)
}

// handleLiveness is the liveness probe.
func (g *Gateway) handleLiveness(c *okapi.Context) error {
	return c.OK(&HealthResponse{Status: "ok"})
}

// handleReadiness checks all registered dependencies and returns 200 or 503.
func (g *Gateway) handleReadiness(c *okapi.Context) error {
	if g.config.HealthChecker == nil {
		return c.OK(&HealthResponse{Status: "ok"})
	}
	status := g.config.HealthChecker.CheckReady(c.Context())
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

// authenticate requires one of the configured API keys as a bearer token.
func (g *Gateway) authenticate(next http.Handler) http.Handler {
	if len(g.config.APIKeys) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeUnauthorized(w, "missing or invalid Authorization header")
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")

		valid := false
		for _, key := range g.config.APIKeys {
			if subtle.ConstantTimeCompare([]byte(token), []byte(key)) == 1 {
				valid = true
			}
		}
		if !valid {
			g.logger.Warn("rejected http request", slog.String("remote_addr", r.RemoteAddr))
			writeUnauthorized(w, "invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(ErrorBody{Error: msg})
}
