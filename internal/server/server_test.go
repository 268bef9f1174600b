package server

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jkaninda/cloudbase-mcp/internal/cloudapi"
	"github.com/jkaninda/cloudbase-mcp/internal/config"
	"github.com/jkaninda/cloudbase-mcp/internal/manager"
	"github.com/jkaninda/cloudbase-mcp/internal/observability"
	"github.com/jkaninda/cloudbase-mcp/internal/ratelimit"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func echoHandler(text string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(text), nil
	}
}

func connect(t *testing.T, s *Server) *client.Client {
	t.Helper()
	c, err := client.NewInProcessClient(s.MCP())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	init := mcp.InitializeRequest{}
	init.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	init.Params.ClientInfo = mcp.Implementation{Name: "test", Version: "0"}
	_, err = c.Initialize(ctx, init)
	require.NoError(t, err)
	return c
}

func callTool(t *testing.T, c *client.Client, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := c.CallTool(context.Background(), req)
	require.NoError(t, err)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	return tc.Text
}

func TestAddToolTracksGroups(t *testing.T) {
	s := New(WithLogger(quietLogger()))
	require.NoError(t, s.AddTool("env", mcp.NewTool("envQuery"), echoHandler("ok")))
	require.NoError(t, s.AddTool("functions", mcp.NewTool("getFunctionList"), echoHandler("ok")))
	require.NoError(t, s.AddTool("env", mcp.NewTool("login"), echoHandler("ok")))

	err := s.AddTool("storage", mcp.NewTool("login"), echoHandler("dup"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `group "env"`)

	assert.Equal(t, []string{"envQuery", "getFunctionList", "login"}, s.ToolNames())
	assert.Equal(t, []string{"env", "functions"}, s.Groups())
	assert.True(t, s.HasTool("login"))
	assert.False(t, s.HasTool("ghost"))

	c := connect(t, s)
	list, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	require.NoError(t, err)
	assert.Len(t, list.Tools, 3)
	assert.Equal(t, "ok", text(t, callTool(t, c, "envQuery", nil)))
}

func TestRegion(t *testing.T) {
	env := config.NewMapEnv(map[string]string{config.EnvRegion: "ap-singapore"})

	s := New(WithEnv(env))
	assert.Equal(t, "ap-singapore", s.Region())

	s = New(WithEnv(env), WithCloudBaseOptions(&manager.CloudBaseOptions{SecretID: "a", SecretKey: "b", Region: "ap-shanghai"}))
	assert.Equal(t, "ap-shanghai", s.Region())

	s = New(WithEnv(config.NewMapEnv(nil)))
	assert.Empty(t, s.Region())
}

type spyBuilder struct {
	settings manager.BuildSettings
}

func (b *spyBuilder) Build(_ context.Context, opts ...manager.BuildOption) (*cloudapi.Client, error) {
	b.settings = manager.Settings(opts...)
	return cloudapi.New(cloudapi.Config{SecretID: "a", SecretKey: "b"})
}

func TestClientAddsServerOptions(t *testing.T) {
	explicit := &manager.CloudBaseOptions{SecretID: "a", SecretKey: "b", EnvID: "env-x"}
	spy := &spyBuilder{}
	s := New(WithIDE(config.IDECursor), WithCloudBaseOptions(explicit), WithClientBuilder(spy))

	_, err := s.Client(context.Background(), manager.WithoutEnvID())
	require.NoError(t, err)
	assert.Equal(t, config.IDECursor, spy.settings.IDE)
	assert.Same(t, explicit, spy.settings.CloudBase)
	assert.False(t, spy.settings.RequireEnvID)

	_, err = New().Client(context.Background())
	assert.Error(t, err)
}

func TestRateLimitedTool(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: 1, BurstSize: 1})
	s := New(WithLogger(quietLogger()), WithRateLimiter(limiter))
	require.NoError(t, s.AddTool("env", mcp.NewTool("envQuery"), echoHandler("ok")))

	c := connect(t, s)
	first := callTool(t, c, "envQuery", nil)
	assert.False(t, first.IsError)

	second := callTool(t, c, "envQuery", nil)
	assert.True(t, second.IsError)
	assert.Contains(t, text(t, second), "rate limit exceeded")
}

func TestToolCallsAreInstrumented(t *testing.T) {
	obs, err := observability.New(&config.ObservabilityConfig{Metrics: &config.MetricsConfig{Enabled: true}}, quietLogger())
	require.NoError(t, err)
	s := New(WithLogger(quietLogger()), WithObservability(obs))
	require.NoError(t, s.AddTool("env", mcp.NewTool("envQuery"), echoHandler("ok")))

	c := connect(t, s)
	callTool(t, c, "envQuery", nil)

	families, err := obs.Metrics.Registry.Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() == "cloudbase_tool_calls_total" {
			found = true
			assert.Equal(t, float64(1), f.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found)
}

func TestResultLogger(t *testing.T) {
	s := New(WithLogger(quietLogger()))
	var got []manager.ResultEvent
	s.SetResultLogger(func(ev manager.ResultEvent) { got = append(got, ev) })

	s.LogResult(map[string]any{"RequestId": "req-1"})
	s.LogResult(nil)
	require.Len(t, got, 1)
	assert.Equal(t, "req-1", got[0].RequestID)
	assert.Equal(t, manager.ResultEventType, got[0].Type)

	s.SetResultLogger(nil)
	s.LogResult(map[string]any{"RequestId": "req-2"})
	assert.Len(t, got, 1)
}

func TestAddResultLogger(t *testing.T) {
	s := New(WithLogger(quietLogger()))
	var first, second []string
	s.SetResultLogger(func(ev manager.ResultEvent) { first = append(first, ev.RequestID) })
	s.AddResultLogger(func(ev manager.ResultEvent) { second = append(second, ev.RequestID) })
	s.AddResultLogger(nil)

	s.LogResult(map[string]any{"RequestId": "req-1"})
	assert.Equal(t, []string{"req-1"}, first)
	assert.Equal(t, []string{"req-1"}, second)

	s.SetResultLogger(nil)
	s.AddResultLogger(func(ev manager.ResultEvent) { second = append(second, ev.RequestID) })
	s.LogResult(map[string]any{"RequestId": "req-2"})
	assert.Equal(t, []string{"req-1", "req-2"}, second)
}

func TestLoggingCapabilityFollowsIDE(t *testing.T) {
	for _, tc := range []struct {
		ide  config.IDE
		want bool
	}{
		{config.IDECodeBuddy, true},
		{config.IDECursor, false},
	} {
		t.Run(string(tc.ide), func(t *testing.T) {
			s := New(WithIDE(tc.ide), WithLogger(quietLogger()))
			c, err := client.NewInProcessClient(s.MCP())
			require.NoError(t, err)
			defer c.Close()
			require.NoError(t, c.Start(context.Background()))
			init := mcp.InitializeRequest{}
			init.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
			res, err := c.Initialize(context.Background(), init)
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Capabilities.Logging != nil)
		})
	}
}
