package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
	promptx "github.com/kalpit-S/ai-support-agent/agent/prompt"
	metricsx "github.com/kalpit-S/ai-support-agent/pkg/metrics"
	"github.com/rs/zerolog/log"
)

// MaxToolRounds bounds how many times tool results are fed back to the model
// within one turn.
const MaxToolRounds = 5

type EngineOption func(*Engine)

func WithEngineMetrics(m *metricsx.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// Engine drives one conversational turn: draft a reply, run whatever tools the
// model asks for, and feed the results back until it answers in text.
type Engine struct {
	gateway contractx.Gateway
	tools   contractx.ToolDispatcher
	prompts *promptx.Builder
	metrics *metricsx.Metrics
}

func NewEngine(gateway contractx.Gateway, tools contractx.ToolDispatcher, opts ...EngineOption) (*Engine, error) {
	if gateway == nil {
		return nil, errors.New("language model gateway is required")
	}
	if tools == nil {
		return nil, errors.New("tool dispatcher is required")
	}

	e := &Engine{
		gateway: gateway,
		tools:   tools,
		prompts: promptx.NewBuilder(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

func (e *Engine) ProcessTurn(ctx context.Context, in contractx.TurnInput) (contractx.TurnResult, error) {
	logger := log.With().Int64("customer_id", in.CustomerID).Logger()

	msgs, err := e.prompts.BuildMessages(ctx, in.History, promptProfile(in))
	if err != nil {
		return contractx.TurnResult{}, err
	}

	defs := e.tools.Definitions()
	session := e.tools.Begin(in.CustomerID)

	logger.Info().
		Int("history", len(in.History)).
		Int("batch", len(in.Batch)).
		Msg("processing turn")

	reply, err := e.gateway.Chat(ctx, msgs, defs)
	if err != nil {
		return contractx.TurnResult{}, fmt.Errorf("draft reply: %w", err)
	}

	records := make([]contractx.ToolCallRecord, 0)
	rounds := 0
	for len(reply.ToolCalls) > 0 && rounds < MaxToolRounds {
		rounds++
		logger.Debug().Int("round", rounds).Int("calls", len(reply.ToolCalls)).Msg("executing tool round")

		msgs = append(msgs, assistantTurn(reply))
		for _, call := range reply.ToolCalls {
			result := session.Execute(ctx, call)
			records = append(records, contractx.ToolCallRecord{
				ID:        call.ID,
				Name:      call.Name,
				Arguments: call.Arguments,
				Result:    result,
			})
			msgs = append(msgs, schema.ToolMessage(encodeResult(result), call.ID))
		}

		reply, err = e.gateway.Chat(ctx, msgs, defs)
		if err != nil {
			return contractx.TurnResult{}, fmt.Errorf("tool round %d: %w", rounds, err)
		}
	}

	hitCap := len(reply.ToolCalls) > 0
	if hitCap {
		logger.Warn().
			Int("rounds", rounds).
			Int("pending_calls", len(reply.ToolCalls)).
			Msg("hit max tool rounds, using last response")
	}
	e.metrics.ObserveTurn(rounds)

	channel, text := SelectChannel(reply.Text, in.Batch)
	updates := session.ProfileUpdates()

	return contractx.TurnResult{
		ResponseText:  text,
		Channel:       channel,
		ExtractedData: MergeProfile(in.Extracted, updates.Extracted),
		ColumnData:    updates.Columns,
		ToolCalls:     records,
		Rounds:        rounds,
		HitRoundCap:   hitCap,
	}, nil
}

// promptProfile is the stored profile plus the first-name column, which the
// prompt lists alongside extracted facts.
func promptProfile(in contractx.TurnInput) map[string]any {
	profile := MergeProfile(in.Extracted, nil)
	if _, ok := profile["first_name"]; !ok && in.FirstName != "" {
		profile["first_name"] = in.FirstName
	}
	return profile
}

func assistantTurn(reply contractx.GatewayReply) *schema.Message {
	calls := make([]schema.ToolCall, 0, len(reply.ToolCalls))
	for _, c := range reply.ToolCalls {
		args := "{}"
		if len(c.Arguments) > 0 {
			if raw, err := json.Marshal(c.Arguments); err == nil {
				args = string(raw)
			}
		}
		calls = append(calls, schema.ToolCall{
			ID:   c.ID,
			Type: "function",
			Function: schema.FunctionCall{
				Name:      c.Name,
				Arguments: args,
			},
		})
	}
	return schema.AssistantMessage(reply.Text, calls)
}

func encodeResult(result contractx.ToolResult) string {
	raw, err := json.Marshal(result)
	if err != nil {
		raw, _ = json.Marshal(contractx.ErrorResult("unencodable tool result: " + err.Error()))
	}
	return string(raw)
}
