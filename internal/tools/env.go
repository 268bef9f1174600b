package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/jkaninda/cloudbase-mcp/internal/auth"
	"github.com/jkaninda/cloudbase-mcp/internal/cloudapi"
	"github.com/jkaninda/cloudbase-mcp/internal/manager"
	"github.com/jkaninda/cloudbase-mcp/internal/server"
)

var errExplicitConfig = errors.New("the server runs with explicit cloudbase credentials; sign-in and environment switching are disabled")

func registerEnv(_ context.Context, srv *server.Server) error {
	tools := []struct {
		tool    mcp.Tool
		handler mcpserver.ToolHandlerFunc
	}{
		{
			tool: mcp.NewTool("envQuery",
				mcp.WithDescription("Query CloudBase environments: list all, show the current one, or list its authorized domains."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("action", mcp.Required(), mcp.Enum("list", "info", "domains"),
					mcp.Description("list, info or domains.")),
			),
			handler: envQuery(srv),
		},
		{
			tool: mcp.NewTool("login",
				mcp.WithDescription("Sign in to CloudBase and select an environment. Opens a browser when needed."),
				mcp.WithBoolean("forceUpdate", mcp.Description("Discard the current sign-in and environment first.")),
			),
			handler: login(srv),
		},
		{
			tool: mcp.NewTool("logout",
				mcp.WithDescription("Sign out and forget the selected environment."),
			),
			handler: logout(srv),
		},
		{
			tool: mcp.NewTool("switchEnv",
				mcp.WithDescription("Use another CloudBase environment for subsequent calls."),
				mcp.WithString("envId", mcp.Required(), mcp.Description("Environment id.")),
			),
			handler: switchEnv(srv),
		},
	}
	for _, t := range tools {
		if err := srv.AddTool("env", t.tool, t.handler); err != nil {
			return err
		}
	}
	return nil
}

func envQuery(srv *server.Server) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		action, err := req.RequireString("action")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		switch action {
		case "list":
			return invoke(ctx, srv, cloudapi.Request{Service: "tcb", Action: "DescribeEnvs"}, "", manager.WithoutEnvID()), nil
		case "info":
			return invoke(ctx, srv, cloudapi.Request{Service: "tcb", Action: "DescribeEnvs"}, "EnvId"), nil
		case "domains":
			return invoke(ctx, srv, cloudapi.Request{Service: "tcb", Action: "DescribeAuthDomains"}, "EnvId"), nil
		default:
			return mcp.NewToolResultError(fmt.Sprintf("unknown action %q, want list, info or domains", action)), nil
		}
	}
}

func login(srv *server.Server) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		creds, envIDs := srv.Credentials(), srv.EnvIDs()
		if srv.CloudBaseOptions() != nil || creds == nil || envIDs == nil {
			return mcp.NewToolResultError(errExplicitConfig.Error()), nil
		}

		force := req.GetBool("forceUpdate", false)
		if force {
			if err := creds.Logout(ctx); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("sign-out failed: %v", err)), nil
			}
			envIDs.Reset()
		}

		cred, err := creds.Resolve(ctx, auth.ResolveOptions{
			IgnoreEnvVars: force,
			Region:        srv.Region(),
			FromLoginPage: true,
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("sign-in failed: %v", err)), nil
		}
		if cred.EnvIDHint != "" {
			envIDs.SetEnvID(cred.EnvIDHint)
		}

		id, err := envIDs.Resolve(ctx, srv.IDE())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		srv.Logger().Info("login completed", slog.String("env_id", id), slog.String("source", string(cred.Source)))
		return mcp.NewToolResultText(fmt.Sprintf("Signed in (%s). Current environment: %s", cred.Source, id)), nil
	}
}

func logout(srv *server.Server) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		creds, envIDs := srv.Credentials(), srv.EnvIDs()
		if srv.CloudBaseOptions() != nil || creds == nil || envIDs == nil {
			return mcp.NewToolResultError(errExplicitConfig.Error()), nil
		}
		if err := creds.Logout(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("sign-out failed: %v", err)), nil
		}
		envIDs.Reset()
		return mcp.NewToolResultText("Signed out. Static credentials from TENCENTCLOUD_SECRETID/TENCENTCLOUD_SECRETKEY, if set, are still used."), nil
	}
}

func switchEnv(srv *server.Server) mcpserver.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		envIDs := srv.EnvIDs()
		if srv.CloudBaseOptions() != nil || envIDs == nil {
			return mcp.NewToolResultError(errExplicitConfig.Error()), nil
		}
		id, err := req.RequireString("envId")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		id = strings.TrimSpace(id)
		if id == "" {
			return mcp.NewToolResultError("envId must not be empty"), nil
		}
		envIDs.SetEnvID(id)
		return mcp.NewToolResultText("Current environment: " + id), nil
	}
}
