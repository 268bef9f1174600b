// Package server wraps the MCP tool server. Plugins register tools on it and
// reach the credential, environment and client layers through it.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/jkaninda/cloudbase-mcp/internal/auth"
	"github.com/jkaninda/cloudbase-mcp/internal/cloudapi"
	"github.com/jkaninda/cloudbase-mcp/internal/config"
	"github.com/jkaninda/cloudbase-mcp/internal/manager"
	"github.com/jkaninda/cloudbase-mcp/internal/observability"
	"github.com/jkaninda/cloudbase-mcp/internal/ratelimit"
)

// Credentials is the credential layer as seen by tools.
type Credentials interface {
	Resolve(ctx context.Context, opts auth.ResolveOptions) (*auth.Credential, error)
	Logout(ctx context.Context) error
}

// EnvIDs is the environment id layer as seen by tools.
type EnvIDs interface {
	Peek() (string, bool)
	Resolve(ctx context.Context, ide config.IDE) (string, error)
	SetEnvID(id string)
	Reset()
}

// Server is the CloudBase tool server.
type Server struct {
	mcp       *mcpserver.MCPServer
	name      string
	version   string
	ide       config.IDE
	env       config.Env
	locale    string
	cloudBase *manager.CloudBaseOptions
	clients   manager.ClientBuilder
	creds     Credentials
	envIDs    EnvIDs
	limiter   *ratelimit.Limiter
	obs       *observability.Observability
	logger    *slog.Logger

	mu           sync.RWMutex
	tools        map[string]string // tool name -> group
	resultLogger manager.ResultLogger
}

// Option configures a Server.
type Option func(*Server)

// WithName sets the server name reported to clients.
func WithName(name string) Option { return func(s *Server) { s.name = name } }

// WithVersion sets the server version reported to clients.
func WithVersion(v string) Option { return func(s *Server) { s.version = v } }

// WithIDE records the calling assistant.
func WithIDE(ide config.IDE) Option { return func(s *Server) { s.ide = ide } }

// WithEnv sets the process environment view.
func WithEnv(env config.Env) Option { return func(s *Server) { s.env = env } }

// WithLocale selects the language of remediation messages.
func WithLocale(locale string) Option { return func(s *Server) { s.locale = locale } }

// WithCloudBaseOptions stores explicit client options. Every client built
// through the server then bypasses credential and environment resolution.
func WithCloudBaseOptions(o *manager.CloudBaseOptions) Option {
	return func(s *Server) { s.cloudBase = o }
}

// WithClientBuilder sets the client factory.
func WithClientBuilder(b manager.ClientBuilder) Option {
	return func(s *Server) { s.clients = b }
}

// WithCredentials sets the credential layer used by sign-in tools.
func WithCredentials(c Credentials) Option { return func(s *Server) { s.creds = c } }

// WithEnvIDs sets the environment id layer used by environment tools.
func WithEnvIDs(e EnvIDs) Option { return func(s *Server) { s.envIDs = e } }

// WithRateLimiter limits calls per tool.
func WithRateLimiter(l *ratelimit.Limiter) Option { return func(s *Server) { s.limiter = l } }

// WithObservability instruments every tool handler.
func WithObservability(o *observability.Observability) Option {
	return func(s *Server) { s.obs = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.logger = l } }

// New creates a Server. The MCP logging capability is only advertised to
// assistants that consume log notifications.
func New(opts ...Option) *Server {
	s := &Server{
		name:    "cloudbase-mcp",
		version: "dev",
		env:     config.OSEnv{},
		locale:  "en",
		logger:  slog.Default(),
		tools:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}

	mcpOpts := []mcpserver.ServerOption{mcpserver.WithToolCapabilities(true)}
	if s.ide.SupportsLogging() {
		mcpOpts = append(mcpOpts, mcpserver.WithLogging())
	}
	s.mcp = mcpserver.NewMCPServer(s.name, s.version, mcpOpts...)
	s.resultLogger = s.defaultResultLogger
	return s
}

// MCP returns the underlying mcp-go server.
func (s *Server) MCP() *mcpserver.MCPServer { return s.mcp }

func (s *Server) Name() string                                { return s.name }
func (s *Server) Version() string                             { return s.version }
func (s *Server) IDE() config.IDE                             { return s.ide }
func (s *Server) Env() config.Env                             { return s.env }
func (s *Server) Locale() string                              { return s.locale }
func (s *Server) Logger() *slog.Logger                        { return s.logger }
func (s *Server) CloudBaseOptions() *manager.CloudBaseOptions { return s.cloudBase }
func (s *Server) Credentials() Credentials                    { return s.creds }
func (s *Server) EnvIDs() EnvIDs                              { return s.envIDs }

// Region is the explicit option region, else TCB_REGION.
func (s *Server) Region() string {
	if s.cloudBase != nil && s.cloudBase.Region != "" {
		return s.cloudBase.Region
	}
	return s.env.Get(config.EnvRegion)
}

// Client builds a cloud API client for one tool call.
func (s *Server) Client(ctx context.Context, opts ...manager.BuildOption) (*cloudapi.Client, error) {
	if s.clients == nil {
		return nil, fmt.Errorf("no client builder configured")
	}
	all := []manager.BuildOption{manager.WithIDE(s.ide)}
	if s.cloudBase != nil {
		all = append(all, manager.WithCloudBaseOptions(s.cloudBase))
	}
	return s.clients.Build(ctx, append(all, opts...)...)
}

// AddTool registers a tool under group. Names are unique across groups.
func (s *Server) AddTool(group string, tool mcp.Tool, h mcpserver.ToolHandlerFunc) error {
	s.mu.Lock()
	if g, exists := s.tools[tool.Name]; exists {
		s.mu.Unlock()
		return fmt.Errorf("tool %q already registered by group %q", tool.Name, g)
	}
	s.tools[tool.Name] = group
	s.mu.Unlock()

	h = observability.InstrumentToolHandler(tool.Name, s.limit(tool.Name, h),
		s.obs.MetricsOrNil(), s.obs.TracerOrNil(), s.obs.AnomalyOrNil())
	s.mcp.AddTool(tool, h)
	s.logger.Debug("tool registered", slog.String("group", group), slog.String("tool", tool.Name))
	return nil
}

func (s *Server) limit(name string, h mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
	if s.limiter == nil {
		return h
	}
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := s.limiter.Allow(name); err != nil {
			s.logger.Warn("tool call rate limited", slog.String("tool", name))
			return mcp.NewToolResultError(fmt.Sprintf("%s: %v", name, err)), nil
		}
		return h(ctx, req)
	}
}

// HasTool reports whether name is registered.
func (s *Server) HasTool(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tools[name]
	return ok
}

// ToolNames returns the registered tool names, sorted.
func (s *Server) ToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.tools))
	for n := range s.tools {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Groups returns the groups that registered at least one tool, sorted.
func (s *Server) Groups() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var groups []string
	for _, g := range s.tools {
		if !slices.Contains(groups, g) {
			groups = append(groups, g)
		}
	}
	slices.Sort(groups)
	return groups
}

// SetResultLogger replaces the cloud API result sink. Nil disables it.
func (s *Server) SetResultLogger(l manager.ResultLogger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resultLogger = l
}

// AddResultLogger installs l next to the current result sink.
func (s *Server) AddResultLogger(l manager.ResultLogger) {
	if l == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.resultLogger
	if prev == nil {
		s.resultLogger = l
		return
	}
	s.resultLogger = func(ev manager.ResultEvent) {
		prev(ev)
		l(ev)
	}
}

// LogResult reports a raw cloud API result to the result sink.
func (s *Server) LogResult(result any) {
	s.mu.RLock()
	l := s.resultLogger
	s.mu.RUnlock()
	manager.LogResult(l, result)
}

func (s *Server) defaultResultLogger(ev manager.ResultEvent) {
	s.logger.Debug("cloud api result", slog.String("request_id", ev.RequestID))
	if s.ide.SupportsLogging() {
		s.mcp.SendNotificationToAllClients("notifications/message", map[string]any{
			"level":  "info",
			"logger": ev.Type,
			"data":   ev,
		})
	}
}

// ServeStdio serves MCP on stdin/stdout until ctx ends.
func (s *Server) ServeStdio(ctx context.Context) error {
	s.logger.Info("serving MCP over stdio", slog.Int("tools", len(s.ToolNames())))
	return mcpserver.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

// HTTPHandler returns the streamable HTTP transport mounted at endpoint.
func (s *Server) HTTPHandler(endpoint string) http.Handler {
	return mcpserver.NewStreamableHTTPServer(s.mcp, mcpserver.WithEndpointPath(endpoint))
}
