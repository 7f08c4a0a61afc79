package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
)

// AnthropicGateway talks to the Anthropic Messages API directly.
type AnthropicGateway struct {
	client      *anthropic.Client
	model       string
	temperature float32
	maxTokens   int
}

var _ contractx.Gateway = (*AnthropicGateway)(nil)

func NewAnthropicGateway(client *anthropic.Client, model string, temperature float32, maxTokens int) *AnthropicGateway {
	return &AnthropicGateway{
		client:      client,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

func (g *AnthropicGateway) Chat(ctx context.Context, msgs []*schema.Message, tools []contractx.ToolDefinition) (contractx.GatewayReply, error) {
	if g == nil || g.client == nil {
		return contractx.GatewayReply{}, fmt.Errorf("%w: anthropic client is not configured", contractx.ErrModelInvoke)
	}

	system, messages := toAnthropicMessages(msgs)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		Messages:  messages,
		MaxTokens: int64(g.maxTokens),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if g.temperature > 0 {
		params.Temperature = anthropic.Float(float64(g.temperature))
	}
	if len(tools) > 0 {
		params.Tools = toAnthropicTools(tools)
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return contractx.GatewayReply{}, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}

	var (
		text  strings.Builder
		reply contractx.GatewayReply
	)
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			args := decodeArguments(b.Name, b.JSON.Input.Raw())
			reply.ToolCalls = append(reply.ToolCalls, contractx.ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: args,
			})
		}
	}
	reply.Text = text.String()
	return reply, nil
}

// toAnthropicMessages lifts system messages into the system prompt and
// folds consecutive tool results into a single user turn.
func toAnthropicMessages(msgs []*schema.Message) (string, []anthropic.MessageParam) {
	var (
		system  []string
		out     = make([]anthropic.MessageParam, 0, len(msgs))
		results []anthropic.ContentBlockParamUnion
	)
	flush := func() {
		if len(results) > 0 {
			out = append(out, anthropic.NewUserMessage(results...))
			results = nil
		}
	}

	for _, m := range msgs {
		if m == nil {
			continue
		}
		if m.Role == schema.Tool {
			results = append(results, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false))
			continue
		}
		flush()

		switch m.Role {
		case schema.System:
			system = append(system, m.Content)
		case schema.User:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case schema.Assistant:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.ToolCalls)+1)
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var input any = map[string]any{}
				if raw := strings.TrimSpace(tc.Function.Arguments); raw != "" {
					input = json.RawMessage(raw)
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Function.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: blocks,
			})
		}
	}
	flush()

	return strings.Join(system, "\n\n"), out
}

func toAnthropicTools(defs []contractx.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		js := def.JSONSchema()
		param := anthropic.ToolParam{
			Name:        def.Name,
			Description: anthropic.String(def.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: js["properties"],
			},
		}
		if req, ok := js["required"].([]string); ok {
			param.InputSchema.Required = req
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &param})
	}
	return out
}
