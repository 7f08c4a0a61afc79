package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"
)

const (
	serverName    = "macrocenter-support-tools"
	serverVersion = "1.0.0"
)

// NewServer exposes every dispatcher tool over MCP. Calls are not tied to a
// conversation, so each one runs in its own session without a customer.
func NewServer(tools contractx.ToolDispatcher) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
		server.WithInstructions("Order, inventory, refund, return and knowledge base tools for Macrocenter PC Parts support."),
		server.WithRecovery(),
	)

	for _, def := range tools.Definitions() {
		s.AddTool(toolFor(def), callTool(tools, def.Name))
	}
	return s
}

func toolFor(def contractx.ToolDefinition) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(def.Description)}
	for _, p := range def.Params {
		popts := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			popts = append(popts, mcp.Required())
		}
		switch p.Type {
		case "number", "integer":
			opts = append(opts, mcp.WithNumber(p.Name, popts...))
		case "boolean":
			opts = append(opts, mcp.WithBoolean(p.Name, popts...))
		default:
			opts = append(opts, mcp.WithString(p.Name, popts...))
		}
	}
	return mcp.NewTool(def.Name, opts...)
}

func callTool(tools contractx.ToolDispatcher, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		call := contractx.ToolCall{
			ID:        "mcp_" + uuid.NewString(),
			Name:      name,
			Arguments: req.GetArguments(),
		}
		result := tools.Begin(0).Execute(ctx, call)

		body, err := json.Marshal(result)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode %s result: %v", name, err)), nil
		}

		log.Debug().Str("tool", name).Bool("error", result.IsError()).Msg("mcp tool call")
		if result.IsError() {
			return mcp.NewToolResultError(string(body)), nil
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}
