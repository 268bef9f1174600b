package tools

import (
	"context"
	"fmt"
	"maps"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/jkaninda/cloudbase-mcp/internal/cloudapi"
	"github.com/jkaninda/cloudbase-mcp/internal/manager"
	"github.com/jkaninda/cloudbase-mcp/internal/server"
)

type kind int

const (
	kindString kind = iota
	kindNumber
	kindBool
	kindObject
	kindStringArray
)

// param is one tool argument and the request field it maps to.
type param struct {
	name     string
	field    string // Request field. Defaults to name.
	kind     kind
	required bool
	desc     string
}

func (p param) requestField() string {
	if p.field != "" {
		return p.field
	}
	return p.name
}

// actionTool declares a tool backed by a single cloud API action.
type actionTool struct {
	name     string
	desc     string
	service  string
	action   string
	envParam string         // Request field filled with the environment id. Empty means no environment is needed.
	fixed    map[string]any // Constant request fields.
	params   []param
	readOnly bool
}

func (a actionTool) tool() mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(a.desc)}
	if a.readOnly {
		opts = append(opts, mcp.WithReadOnlyHintAnnotation(true))
	}
	for _, p := range a.params {
		popts := []mcp.PropertyOption{mcp.Description(p.desc)}
		if p.required {
			popts = append(popts, mcp.Required())
		}
		switch p.kind {
		case kindNumber:
			opts = append(opts, mcp.WithNumber(p.name, popts...))
		case kindBool:
			opts = append(opts, mcp.WithBoolean(p.name, popts...))
		case kindObject:
			opts = append(opts, mcp.WithObject(p.name, popts...))
		case kindStringArray:
			popts = append(popts, mcp.Items(map[string]any{"type": "string"}))
			opts = append(opts, mcp.WithArray(p.name, popts...))
		default:
			opts = append(opts, mcp.WithString(p.name, popts...))
		}
	}
	return mcp.NewTool(a.name, opts...)
}

// request maps tool arguments onto the request body.
func (a actionTool) request(args map[string]any) (cloudapi.Request, error) {
	body := make(map[string]any, len(a.params)+len(a.fixed)+1)
	maps.Copy(body, a.fixed)
	for _, p := range a.params {
		v, ok := args[p.name]
		if !ok || v == nil {
			if p.required {
				return cloudapi.Request{}, fmt.Errorf("missing required argument %q", p.name)
			}
			continue
		}
		body[p.requestField()] = v
	}
	return cloudapi.Request{Service: a.service, Action: a.action, Params: body}, nil
}

func (a actionTool) handler(srv *server.Server) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		apiReq, err := a.request(req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("%s: %v", a.name, err)), nil
		}
		var opts []manager.BuildOption
		if a.envParam == "" {
			opts = append(opts, manager.WithoutEnvID())
		}
		return invoke(ctx, srv, apiReq, a.envParam, opts...), nil
	}
}
