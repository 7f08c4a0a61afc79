package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
	repox "github.com/kalpit-S/ai-support-agent/agent/repository"
	"github.com/rs/zerolog/log"
)

// SaveTurn writes the profile changes and the outbound reply in one
// transaction.
func SaveTurn(ctx context.Context, in *GraphState, store ConversationStore) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if in.Skipped {
		return in, nil
	}

	res := in.Result
	rec := repox.TurnRecord{
		CustomerID: in.Input.CustomerID,
		Columns:    res.ColumnData,
		Reply: &repox.Message{
			CustomerID: in.Input.CustomerID,
			Direction:  string(contractx.DirectionOutbound),
			Channel:    string(res.Channel),
			Content:    res.ResponseText,
			Metadata:   replyMetadata(res.ToolCalls),
			CreatedAt:  in.Now,
		},
	}
	if len(res.ExtractedData) > 0 {
		rec.Extracted = res.ExtractedData
	}

	id, err := store.SaveTurn(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("save turn: %w", err)
	}
	in.ReplyID = id

	log.Info().
		Int64("customer_id", rec.CustomerID).
		Int64("message_id", id).
		Str("channel", res.Channel.Upper()).
		Int("tool_calls", len(res.ToolCalls)).
		Msg("stored outbound reply")
	return in, nil
}

func replyMetadata(calls []contractx.ToolCallRecord) map[string]any {
	if len(calls) == 0 {
		return map[string]any{}
	}
	return map[string]any{"tool_calls": calls}
}
