package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
	metricsx "github.com/kalpit-S/ai-support-agent/pkg/metrics"
	openrouterx "github.com/kalpit-S/ai-support-agent/pkg/openrouter"
	"github.com/rs/zerolog/log"
)

// New builds the gateway for the configured driver.
func New(ctx context.Context, cfg Config, m *metricsx.Metrics) (contractx.Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var gw contractx.Gateway
	switch cfg.driver() {
	case DriverEino:
		orCfg := cfg.OpenRouter()
		chatModel, err := orCfg.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
		}
		gw = NewEinoGateway(chatModel)
	case DriverOpenAI:
		client := openrouterx.NewClient(cfg.OpenRouter())
		gw = NewOpenAIGateway(client, cfg.Model, cfg.Temperature, cfg.MaxCompletionToken)
	case DriverAnthropic:
		opts := []anthropicoption.RequestOption{anthropicoption.WithAPIKey(strings.TrimSpace(cfg.AnthropicAPIKey))}
		if cfg.Timeout > 0 {
			opts = append(opts, anthropicoption.WithRequestTimeout(cfg.Timeout))
		}
		client := anthropic.NewClient(opts...)
		gw = NewAnthropicGateway(&client, cfg.AnthropicModel, cfg.Temperature, cfg.MaxCompletionToken)
	}

	log.Info().Str("driver", cfg.driver()).Str("model", modelFor(cfg)).Msg("language model gateway ready")
	return Instrument(gw, m), nil
}

func modelFor(cfg Config) string {
	if cfg.driver() == DriverAnthropic {
		return cfg.AnthropicModel
	}
	return cfg.Model
}

// Instrument counts gateway calls by outcome.
func Instrument(gw contractx.Gateway, m *metricsx.Metrics) contractx.Gateway {
	if m == nil {
		return gw
	}
	return instrumented{next: gw, metrics: m}
}

type instrumented struct {
	next    contractx.Gateway
	metrics *metricsx.Metrics
}

func (g instrumented) Chat(ctx context.Context, msgs []*schema.Message, tools []contractx.ToolDefinition) (contractx.GatewayReply, error) {
	reply, err := g.next.Chat(ctx, msgs, tools)
	g.metrics.GatewayCall(err)
	return reply, err
}

// decodeArguments parses the JSON argument string of a tool call. An empty
// string means no arguments. Malformed JSON, usually a completion cut off at
// the token limit, decodes to an empty map so the dispatcher rejects the call
// in band and the model can retry.
func decodeArguments(tool, raw string) map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		log.Warn().
			Err(fmt.Errorf("%w: %v", contractx.ErrSchemaViolation, err)).
			Str("tool", tool).
			Msg("malformed tool arguments, continuing with none")
		return map[string]any{}
	}
	if args == nil {
		args = map[string]any{}
	}
	return args
}

func encodeArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
