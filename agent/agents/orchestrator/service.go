package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
	nodex "github.com/kalpit-S/ai-support-agent/agent/nodes"
	"github.com/rs/zerolog/log"
)

type HandlerOption func(*Handler)

func WithHandlerClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// Handler answers one ready batch: load the conversation, run a turn, store
// the reply and announce it. It satisfies contractx.BatchHandler.
type Handler struct {
	store    nodex.ConversationStore
	engine   nodex.TurnRunner
	notifier contractx.ReplyNotifier

	graphRunner compose.Runnable[contractx.PendingBatch, nodex.GraphOutput]

	now func() time.Time
}

var _ contractx.BatchHandler = (*Handler)(nil)

// NewHandler wires the batch graph. notifier may be nil.
func NewHandler(
	store nodex.ConversationStore,
	engine nodex.TurnRunner,
	notifier contractx.ReplyNotifier,
	opts ...HandlerOption,
) (*Handler, error) {
	if store == nil {
		return nil, errors.New("conversation store is required")
	}
	if engine == nil {
		return nil, errors.New("turn engine is required")
	}

	h := &Handler{
		store:    store,
		engine:   engine,
		notifier: notifier,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	graphRunner, err := h.compileBatchGraph(context.Background())
	if err != nil {
		return nil, err
	}
	h.graphRunner = graphRunner

	return h, nil
}

func (h *Handler) Handle(ctx context.Context, batch contractx.PendingBatch) error {
	out, err := h.graphRunner.Invoke(ctx, batch)
	if err != nil {
		return err
	}
	if !out.Skipped {
		log.Info().
			Int64("customer_id", batch.CustomerID).
			Str("batch_id", batch.BatchID).
			Int64("reply_id", out.ReplyID).
			Str("channel", out.Channel.Upper()).
			Int("rounds", out.Rounds).
			Msg("batch answered")
	}
	return nil
}
