package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
	repox "github.com/kalpit-S/ai-support-agent/agent/repository"
	"github.com/rs/zerolog/log"
)

const maxWebhookBodySize = 1 << 20

type SMSWebhookRequest struct {
	From string `json:"from"`
	Body string `json:"body"`
}

type EmailWebhookRequest struct {
	FromEmail string `json:"from_email"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

type WebhookResponse struct {
	Status     string `json:"status"`
	MessageID  int64  `json:"message_id"`
	CustomerID int64  `json:"customer_id"`
	BatchID    string `json:"batch_id"`
}

func handleSMS(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SMSWebhookRequest
		if !decodeBody(w, r, &req) {
			return
		}
		req.From = strings.TrimSpace(req.From)
		if req.From == "" {
			httpError(w, http.StatusBadRequest, "from is required")
			return
		}
		if strings.TrimSpace(req.Body) == "" {
			httpError(w, http.StatusBadRequest, "body is required")
			return
		}

		customer, err := deps.Store.FindOrCreateCustomerByPhone(r.Context(), req.From)
		if err != nil {
			log.Error().Err(err).Msg("resolve sms customer")
			httpError(w, http.StatusInternalServerError, "could not resolve customer")
			return
		}
		receive(r.Context(), w, deps, customer, contractx.ChannelSMS, req.Body, nil)
	}
}

func handleEmail(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EmailWebhookRequest
		if !decodeBody(w, r, &req) {
			return
		}
		req.FromEmail = strings.TrimSpace(req.FromEmail)
		if req.FromEmail == "" || !strings.Contains(req.FromEmail, "@") {
			httpError(w, http.StatusBadRequest, "from_email must be an email address")
			return
		}
		if strings.TrimSpace(req.Body) == "" {
			httpError(w, http.StatusBadRequest, "body is required")
			return
		}

		customer, err := deps.Store.FindOrCreateCustomerByEmail(r.Context(), req.FromEmail)
		if err != nil {
			log.Error().Err(err).Msg("resolve email customer")
			httpError(w, http.StatusInternalServerError, "could not resolve customer")
			return
		}

		var metadata map[string]any
		if subject := strings.TrimSpace(req.Subject); subject != "" {
			metadata = map[string]any{"subject": subject}
		}
		receive(r.Context(), w, deps, customer, contractx.ChannelEmail, req.Body, metadata)
	}
}

// receive stores the message, queues it on the customer's pending batch and
// tags the stored row with the batch id.
func receive(
	ctx context.Context,
	w http.ResponseWriter,
	deps Deps,
	customer *repox.Customer,
	channel contractx.Channel,
	content string,
	metadata map[string]any,
) {
	logger := log.With().Int64("customer_id", customer.ID).Str("channel", string(channel)).Logger()

	msg, err := deps.Store.InsertInboundMessage(ctx, customer.ID, channel, content, metadata)
	if err != nil {
		logger.Error().Err(err).Msg("store inbound message")
		httpError(w, http.StatusInternalServerError, "could not store message")
		return
	}

	batchID, err := deps.Batches.AppendMessage(ctx, customer.ID, msg.ID, msg.CreatedAt)
	if err != nil {
		logger.Error().Err(err).Int64("message_id", msg.ID).Msg("queue inbound message")
		httpError(w, http.StatusServiceUnavailable, "message stored but could not be queued")
		return
	}
	if err := deps.Store.SetMessageBatch(ctx, msg.ID, batchID); err != nil {
		logger.Warn().Err(err).Int64("message_id", msg.ID).Msg("tag message batch")
	}

	deps.Metrics.WebhookMessage(string(channel))
	logger.Info().Int64("message_id", msg.ID).Str("batch_id", batchID).Msg("inbound message queued")

	writeJSON(w, http.StatusOK, WebhookResponse{
		Status:     "received",
		MessageID:  msg.ID,
		CustomerID: customer.ID,
		BatchID:    batchID,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return false
	}
	return true
}
