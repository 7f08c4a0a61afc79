package orchestratornode

import (
	"context"
	"errors"
	"fmt"
	"time"

	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
	"github.com/rs/zerolog/log"
)

func LoadContext(
	ctx context.Context,
	batch contractx.PendingBatch,
	store ConversationStore,
	now time.Time,
) (*GraphState, error) {
	if batch.CustomerID <= 0 || len(batch.MessageIDs) == 0 {
		return nil, fmt.Errorf("%w: customer %d batch %q", contractx.ErrMalformedBatch, batch.CustomerID, batch.BatchID)
	}
	st := &GraphState{Batch: batch, Now: now.UTC()}

	customer, err := store.GetCustomer(ctx, batch.CustomerID)
	if errors.Is(err, contractx.ErrCustomerNotFound) {
		log.Error().Int64("customer_id", batch.CustomerID).Str("batch_id", batch.BatchID).Msg("customer not found, dropping batch")
		st.Skipped = true
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load customer: %w", err)
	}

	inBatch, err := store.MessagesByIDs(ctx, customer.ID, batch.MessageIDs)
	if err != nil {
		return nil, fmt.Errorf("load batch messages: %w", err)
	}
	history, err := store.ConversationHistory(ctx, customer.ID)
	if err != nil {
		return nil, fmt.Errorf("load conversation history: %w", err)
	}

	st.Input = contractx.TurnInput{
		CustomerID: customer.ID,
		FirstName:  customer.FirstName,
		Extracted:  customer.ExtractedData,
		History:    toConversation(history),
		Batch:      toConversation(inBatch),
	}

	log.Info().
		Int64("customer_id", customer.ID).
		Int("batch_messages", len(st.Input.Batch)).
		Int("history", len(st.Input.History)).
		Msg("loaded conversation context")
	return st, nil
}
