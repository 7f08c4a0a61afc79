package orchestratornode

import (
	"context"
	"time"

	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
	repox "github.com/kalpit-S/ai-support-agent/agent/repository"
)

// ConversationStore is the slice of the repository the batch graph uses.
type ConversationStore interface {
	GetCustomer(ctx context.Context, id int64) (*repox.Customer, error)
	MessagesByIDs(ctx context.Context, customerID int64, ids []int64) ([]*repox.Message, error)
	ConversationHistory(ctx context.Context, customerID int64) ([]*repox.Message, error)
	SaveTurn(ctx context.Context, rec repox.TurnRecord) (int64, error)
}

type TurnRunner interface {
	ProcessTurn(ctx context.Context, in contractx.TurnInput) (contractx.TurnResult, error)
}

type GraphOutput struct {
	Skipped bool
	ReplyID int64
	Channel contractx.Channel
	Rounds  int
}

// GraphState flows through every node of the batch graph. Once Skipped is
// set the remaining nodes pass it through untouched.
type GraphState struct {
	Batch contractx.PendingBatch
	Now   time.Time

	Skipped bool
	Input   contractx.TurnInput
	Result  contractx.TurnResult
	ReplyID int64
}

func toConversation(msgs []*repox.Message) []contractx.ConversationMessage {
	out := make([]contractx.ConversationMessage, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		out = append(out, contractx.ConversationMessage{
			ID:        m.ID,
			Direction: contractx.Direction(m.Direction),
			Channel:   contractx.Channel(m.Channel),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	return out
}
