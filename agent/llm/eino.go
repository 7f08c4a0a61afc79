package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
	toolx "github.com/kalpit-S/ai-support-agent/agent/tool"
)

// EinoGateway drives any eino tool-calling chat model.
type EinoGateway struct {
	model model.ToolCallingChatModel
}

var _ contractx.Gateway = (*EinoGateway)(nil)

func NewEinoGateway(m model.ToolCallingChatModel) *EinoGateway {
	return &EinoGateway{model: m}
}

func (g *EinoGateway) Chat(ctx context.Context, msgs []*schema.Message, tools []contractx.ToolDefinition) (contractx.GatewayReply, error) {
	if g == nil || g.model == nil {
		return contractx.GatewayReply{}, fmt.Errorf("%w: chat model is not configured", contractx.ErrModelInvoke)
	}

	chatModel := g.model
	if len(tools) > 0 {
		bound, err := g.model.WithTools(toolx.ToolInfos(tools))
		if err != nil {
			return contractx.GatewayReply{}, fmt.Errorf("%w: bind tools: %v", contractx.ErrModelInvoke, err)
		}
		chatModel = bound
	}

	out, err := chatModel.Generate(ctx, msgs)
	if err != nil {
		return contractx.GatewayReply{}, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	if out == nil {
		return contractx.GatewayReply{}, fmt.Errorf("%w: empty response", contractx.ErrModelInvoke)
	}

	reply := contractx.GatewayReply{Text: out.Content}
	for _, tc := range out.ToolCalls {
		args := decodeArguments(tc.Function.Name, tc.Function.Arguments)
		reply.ToolCalls = append(reply.ToolCalls, contractx.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return reply, nil
}
