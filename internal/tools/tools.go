// Package tools provides the built-in CloudBase tool groups. Most tools are
// thin declarations over a single cloud API action; the environment and raw
// API tools have their own handlers.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jkaninda/cloudbase-mcp/internal/cloudapi"
	"github.com/jkaninda/cloudbase-mcp/internal/manager"
	"github.com/jkaninda/cloudbase-mcp/internal/plugins"
	"github.com/jkaninda/cloudbase-mcp/internal/server"
)

// Plugin names.
const (
	PluginEnv          = "env"
	PluginDatabase     = "database"
	PluginFunctions    = "functions"
	PluginHosting      = "hosting"
	PluginStorage      = "storage"
	PluginCloudRun     = "cloudrun"
	PluginGateway      = "gateway"
	PluginSecurityRule = "security-rule"
	PluginCAPI         = "capi"
)

// Plugins returns every built-in plugin in default registration order.
func Plugins() []plugins.Plugin {
	return []plugins.Plugin{
		{Name: PluginEnv, Register: registerEnv},
		{Name: PluginDatabase, Register: registerDatabase},
		{Name: PluginFunctions, Register: group("functions", functionTools)},
		{Name: PluginHosting, Register: group("hosting", hostingTools)},
		{Name: PluginStorage, Register: group("storage", storageTools)},
		{Name: PluginCloudRun, Register: group("cloudrun", cloudRunTools)},
		{Name: PluginGateway, Register: group("gateway", gatewayTools)},
		{Name: PluginSecurityRule, Register: group("security-rule", securityRuleTools)},
		{Name: PluginCAPI, Register: registerCAPI},
	}
}

// MaxOutputBytes caps tool output.
const MaxOutputBytes = 1 << 20 // 1 MB

// TruncateOutput caps a string at maxBytes, appending a truncation notice if cut.
func TruncateOutput(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	const suffix = "\n... [output truncated]"
	if maxBytes <= len(suffix) {
		return s[:maxBytes]
	}
	return s[:maxBytes-len(suffix)] + suffix
}

func group(name string, tools []actionTool) func(context.Context, *server.Server) error {
	return func(_ context.Context, srv *server.Server) error {
		return registerActions(srv, name, tools)
	}
}

func registerActions(srv *server.Server, group string, tools []actionTool) error {
	for _, t := range tools {
		if err := srv.AddTool(group, t.tool(), t.handler(srv)); err != nil {
			return err
		}
	}
	return nil
}

// invoke runs one action and renders the response. envParam, when set, is
// the request field that receives the client's environment id.
func invoke(ctx context.Context, srv *server.Server, req cloudapi.Request, envParam string, opts ...manager.BuildOption) *mcp.CallToolResult {
	client, err := srv.Client(ctx, opts...)
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	if envParam != "" {
		if client.EnvID() == "" {
			return mcp.NewToolResultError(fmt.Sprintf(
				"%s needs an environment id: set CLOUDBASE_ENV_ID, cloudbase.env_id, or run the login tool", req.Action))
		}
		body, _ := req.Params.(map[string]any)
		if body == nil {
			body = map[string]any{}
		}
		body[envParam] = client.EnvID()
		req.Params = body
	}

	resp, err := client.Call(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	srv.LogResult(resp)
	return jsonResult(resp)
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err))
	}
	return mcp.NewToolResultText(TruncateOutput(string(data), MaxOutputBytes))
}
