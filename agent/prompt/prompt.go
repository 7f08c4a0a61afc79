package prompt

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
)

var (
	//go:embed template/system.txt
	systemRaw string

	//go:embed template/turn.txt
	turnRaw string
)

const (
	noHistory     = "(No previous messages)"
	noProfileData = "(No information collected yet)"
)

// profileLines lists the profile keys surfaced to the model, in order.
var profileLines = []struct {
	key   string
	label string
}{
	{key: "first_name", label: "Name"},
	{key: "issue_type", label: "Issue"},
	{key: "order_number", label: "Order"},
	{key: "severity", label: "Severity"},
}

// System returns the support persona.
func System() string {
	return strings.TrimSpace(systemRaw)
}

// Builder renders the opening messages of a turn.
type Builder struct {
	template *einoprompt.DefaultChatTemplate
}

func NewBuilder() *Builder {
	return &Builder{
		template: einoprompt.FromMessages(
			schema.FString,
			schema.SystemMessage(System()),
			schema.UserMessage(strings.TrimSpace(turnRaw)),
		),
	}
}

// BuildMessages returns the system persona followed by the user prompt that
// carries the rendered history and profile.
func (b *Builder) BuildMessages(ctx context.Context, history []contractx.ConversationMessage, profile map[string]any) ([]*schema.Message, error) {
	msgs, err := b.template.Format(ctx, map[string]any{
		"history":  FormatHistory(history),
		"customer": FormatCustomerData(profile),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: format turn prompt: %v", contractx.ErrPromptMissing, err)
	}
	return msgs, nil
}

// FormatHistory renders one line per message, tagged with its channel.
func FormatHistory(history []contractx.ConversationMessage) string {
	if len(history) == 0 {
		return noHistory
	}
	lines := make([]string, 0, len(history))
	for _, m := range history {
		who := "You"
		if m.Direction == contractx.DirectionInbound {
			who = "Customer"
		}
		lines = append(lines, fmt.Sprintf("%s [%s]: %s", who, m.Channel.Upper(), m.Content))
	}
	return strings.Join(lines, "\n")
}

func FormatCustomerData(profile map[string]any) string {
	lines := make([]string, 0, len(profileLines))
	for _, l := range profileLines {
		v, ok := profile[l.key]
		if !ok || v == nil {
			continue
		}
		s := strings.TrimSpace(fmt.Sprint(v))
		if s == "" {
			continue
		}
		lines = append(lines, l.label+": "+s)
	}
	if len(lines) == 0 {
		return noProfileData
	}
	return strings.Join(lines, "\n")
}
