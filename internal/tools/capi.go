package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jkaninda/cloudbase-mcp/internal/cloudapi"
	"github.com/jkaninda/cloudbase-mcp/internal/manager"
	"github.com/jkaninda/cloudbase-mcp/internal/server"
)

func registerCAPI(_ context.Context, srv *server.Server) error {
	tool := mcp.NewTool("callCloudApi",
		mcp.WithDescription("Call any Tencent Cloud API action with the current credentials. "+
			"Pass EnvId inside params when the action needs one."),
		mcp.WithString("service", mcp.Required(), mcp.Description("Service name, e.g. tcb, scf, tcbr, flexdb, lowcode.")),
		mcp.WithString("action", mcp.Required(), mcp.Description("Action name, e.g. DescribeEnvs.")),
		mcp.WithObject("params", mcp.Description("Request parameters.")),
		mcp.WithString("version", mcp.Description("API version. Required for services without a known default.")),
		mcp.WithString("region", mcp.Description("Region override.")),
	)

	return srv.AddTool("capi", tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			Service string         `json:"service"`
			Action  string         `json:"action"`
			Params  map[string]any `json:"params"`
			Version string         `json:"version"`
			Region  string         `json:"region"`
		}
		if err := req.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		if args.Service == "" || args.Action == "" {
			return mcp.NewToolResultError("service and action are required"), nil
		}
		if args.Version == "" && cloudapi.DefaultVersions[args.Service] == "" {
			return mcp.NewToolResultError(fmt.Sprintf("no default version for service %q; pass version", args.Service)), nil
		}
		if args.Params == nil {
			args.Params = map[string]any{}
		}
		apiReq := cloudapi.Request{
			Service: args.Service,
			Action:  args.Action,
			Version: args.Version,
			Region:  args.Region,
			Params:  args.Params,
		}
		return invoke(ctx, srv, apiReq, "", manager.WithoutEnvID()), nil
	})
}
