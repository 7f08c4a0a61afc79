package contract

import (
	"strings"
	"time"
)

type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
	ChannelVoice Channel = "voice"
)

func (c Channel) Upper() string {
	if c == "" {
		return strings.ToUpper(string(ChannelSMS))
	}
	return strings.ToUpper(string(c))
}

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// PendingBatch is one customer's accumulated, not yet processed messages.
type PendingBatch struct {
	CustomerID  int64     `json:"customer_id"`
	BatchID     string    `json:"batch_id"`
	MessageIDs  []int64   `json:"message_ids"`
	LastUpdated time.Time `json:"last_updated"`
}

type ToolParam struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required,omitempty"`
}

type ToolDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []ToolParam `json:"params"`
}

// JSONSchema renders the parameter list as a JSON-schema object.
func (d ToolDefinition) JSONSchema() map[string]any {
	props := make(map[string]any, len(d.Params))
	required := make([]string, 0, len(d.Params))
	for _, p := range d.Params {
		props[p.Name] = map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResult is the flat object returned to the model for one tool call.
type ToolResult map[string]any

func ErrorResult(msg string) ToolResult {
	return ToolResult{"error": msg}
}

func (r ToolResult) IsError() bool {
	_, ok := r["error"]
	return ok
}

func (r ToolResult) ErrorMessage() string {
	msg, _ := r["error"].(string)
	return msg
}

type ToolCallRecord struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"args"`
	Result    ToolResult     `json:"result"`
}

type GatewayReply struct {
	Text      string
	ToolCalls []ToolCall
}

// ProfileUpdate is what save_customer_info collected during one turn.
type ProfileUpdate struct {
	Extracted map[string]any
	Columns   map[string]string
}

type TurnResult struct {
	ResponseText  string
	Channel       Channel
	ExtractedData map[string]any
	ColumnData    map[string]string
	ToolCalls     []ToolCallRecord
	Rounds        int
	HitRoundCap   bool
}

// ConversationMessage is a stored message as the orchestrator sees it.
type ConversationMessage struct {
	ID        int64
	Direction Direction
	Channel   Channel
	Content   string
	CreatedAt time.Time
}

type ReplyEvent struct {
	CustomerID int64   `json:"customer_id"`
	MessageID  int64   `json:"message_id"`
	BatchID    string  `json:"batch_id"`
	Channel    Channel `json:"channel"`
}

// TurnInput is what the orchestrator needs to answer one batch.
type TurnInput struct {
	CustomerID int64
	FirstName  string
	// Extracted is the customer's stored extracted_data.
	Extracted map[string]any
	// History is the full conversation, batch messages included.
	History []ConversationMessage
	// Batch holds only the messages being answered.
	Batch []ConversationMessage
}
