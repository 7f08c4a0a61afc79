package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
	"github.com/rs/zerolog/log"
)

// NotifyReply announces a stored reply. Delivery problems are logged only;
// the reply is already committed.
func NotifyReply(ctx context.Context, in *GraphState, notifier contractx.ReplyNotifier) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if in.Skipped {
		return GraphOutput{Skipped: true}, nil
	}

	out := GraphOutput{
		ReplyID: in.ReplyID,
		Channel: in.Result.Channel,
		Rounds:  in.Result.Rounds,
	}
	if notifier == nil {
		return out, nil
	}

	err := notifier.NotifyReply(ctx, contractx.ReplyEvent{
		CustomerID: in.Input.CustomerID,
		MessageID:  in.ReplyID,
		BatchID:    in.Batch.BatchID,
		Channel:    in.Result.Channel,
	})
	if err != nil {
		log.Warn().Err(err).
			Int64("customer_id", in.Input.CustomerID).
			Int64("message_id", in.ReplyID).
			Msg("reply notification failed")
	}
	return out, nil
}
