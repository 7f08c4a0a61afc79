package mcpserver

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	repox "github.com/kalpit-S/ai-support-agent/agent/repository"
	toolx "github.com/kalpit-S/ai-support-agent/agent/tool"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T) *toolx.Dispatcher {
	t.Helper()
	d, err := toolx.NewDispatcher(
		toolx.NewMemoryCatalog(repox.NewDemoData()),
		toolx.WithClock(func() time.Time { return time.Date(2025, 3, 4, 15, 4, 0, 0, time.UTC) }),
	)
	require.NoError(t, err)
	return d
}

func makeCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

func TestNewServerRegistersEveryTool(t *testing.T) {
	d := newTestDispatcher(t)
	s := NewServer(d)

	tools := s.ListTools()
	require.Len(t, tools, len(toolx.Kinds))
	for _, def := range d.Definitions() {
		st, ok := tools[def.Name]
		require.True(t, ok, def.Name)
		assert.Equal(t, def.Description, st.Tool.Description)
	}

	refund := tools["process_refund"].Tool
	assert.ElementsMatch(t, []string{"order_number", "reason"}, refund.InputSchema.Required)
}

func TestCallToolReturnsJSON(t *testing.T) {
	handler := callTool(newTestDispatcher(t), "check_inventory")

	res, err := handler(context.Background(), makeCallToolRequest("check_inventory", map[string]any{"sku": "GPU-RTX4080"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(toolText(t, res)), &body))
	assert.Equal(t, "GPU-RTX4080", body["sku"])
	assert.Equal(t, float64(0), body["quantity"])
}

func TestCallToolFlagsErrors(t *testing.T) {
	handler := callTool(newTestDispatcher(t), "lookup_order")

	res, err := handler(context.Background(), makeCallToolRequest("lookup_order", map[string]any{"order_number": "9999"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, toolText(t, res), "Order ORD-9999 not found")

	res, err = handler(context.Background(), makeCallToolRequest("lookup_order", nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, toolText(t, res), "invalid arguments for lookup_order")
}
