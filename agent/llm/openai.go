package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
	"github.com/openai/openai-go"
)

// OpenAIGateway calls an OpenAI compatible chat completions endpoint
// through the official SDK.
type OpenAIGateway struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

var _ contractx.Gateway = (*OpenAIGateway)(nil)

func NewOpenAIGateway(client *openai.Client, model string, temperature float32, maxTokens int) *OpenAIGateway {
	return &OpenAIGateway{
		client:      client,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

func (g *OpenAIGateway) Chat(ctx context.Context, msgs []*schema.Message, tools []contractx.ToolDefinition) (contractx.GatewayReply, error) {
	if g == nil || g.client == nil {
		return contractx.GatewayReply{}, fmt.Errorf("%w: openai client is not configured", contractx.ErrModelInvoke)
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(g.model),
		Messages: toOpenAIMessages(msgs),
	}
	if g.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(g.maxTokens))
	}
	if g.temperature > 0 {
		params.Temperature = openai.Float(float64(g.temperature))
	}
	if len(tools) > 0 {
		params.Tools = toOpenAITools(tools)
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return contractx.GatewayReply{}, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	if len(resp.Choices) == 0 {
		return contractx.GatewayReply{}, fmt.Errorf("%w: no choices returned", contractx.ErrModelInvoke)
	}

	msg := resp.Choices[0].Message
	reply := contractx.GatewayReply{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		args := decodeArguments(tc.Function.Name, tc.Function.Arguments)
		reply.ToolCalls = append(reply.ToolCalls, contractx.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return reply, nil
}

func toOpenAIMessages(msgs []*schema.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		switch m.Role {
		case schema.System:
			out = append(out, openai.SystemMessage(m.Content))
		case schema.User:
			out = append(out, openai.UserMessage(m.Content))
		case schema.Assistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Content))
				continue
			}
			calls := make([]openai.ChatCompletionMessageToolCall, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				calls = append(calls, openai.ChatCompletionMessageToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunction{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				})
			}
			assistant := openai.ChatCompletionMessage{
				Role:      "assistant",
				Content:   m.Content,
				ToolCalls: calls,
			}
			out = append(out, assistant.ToParam())
		case schema.Tool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		}
	}
	return out
}

func toOpenAITools(defs []contractx.ToolDefinition) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(defs))
	for _, def := range defs {
		out = append(out, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openai.String(def.Description),
				Parameters:  openai.FunctionParameters(def.JSONSchema()),
			},
		})
	}
	return out
}
