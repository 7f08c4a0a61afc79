package contract

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"
)

// BatchRepository indexes pending batches by customer. Every method that
// changes state must be atomic on the backing store.
type BatchRepository interface {
	// ListActiveCustomerIDs returns the raw ids from the active index.
	// Callers must tolerate ids that do not parse.
	ListActiveCustomerIDs(ctx context.Context) ([]string, error)
	GetBatch(ctx context.Context, customerID int64) (PendingBatch, error)
	AppendMessage(ctx context.Context, customerID, messageID int64, at time.Time) (string, error)
	// ClearBatch removes exactly the message ids in the snapshot. Ids appended
	// after the snapshot stay pending under a new batch id.
	ClearBatch(ctx context.Context, batch PendingBatch) error
}

// BatchClaimer is implemented by repositories that several worker processes
// may poll at once. A claim expires after ttl if it is never released.
type BatchClaimer interface {
	ClaimBatch(ctx context.Context, batch PendingBatch, ttl time.Duration) (bool, error)
	ReleaseBatch(ctx context.Context, batch PendingBatch) error
}

// BatchHandler processes one ready batch. Any error keeps the batch pending.
type BatchHandler interface {
	Handle(ctx context.Context, batch PendingBatch) error
}

// BatchHandlerFunc adapts a function to BatchHandler.
type BatchHandlerFunc func(ctx context.Context, batch PendingBatch) error

func (f BatchHandlerFunc) Handle(ctx context.Context, batch PendingBatch) error {
	return f(ctx, batch)
}

// Gateway is a stateless request/response call to a language model.
type Gateway interface {
	Chat(ctx context.Context, messages []*schema.Message, tools []ToolDefinition) (GatewayReply, error)
}

// ToolDispatcher exposes the fixed tool catalog and opens per-turn sessions.
type ToolDispatcher interface {
	Definitions() []ToolDefinition
	Begin(customerID int64) ToolSession
}

// ToolSession executes tool calls for a single turn. Execute never fails;
// problems are reported inside the result.
type ToolSession interface {
	Execute(ctx context.Context, call ToolCall) ToolResult
	ProfileUpdates() ProfileUpdate
}

// ReplyNotifier announces that an outbound reply has been stored.
type ReplyNotifier interface {
	NotifyReply(ctx context.Context, event ReplyEvent) error
}
