package prompt

import (
	"context"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatHistory(t *testing.T) {
	assert.Equal(t, "(No previous messages)", FormatHistory(nil))

	got := FormatHistory([]contractx.ConversationMessage{
		{Direction: contractx.DirectionInbound, Channel: contractx.ChannelEmail, Content: "my 4090 is dead"},
		{Direction: contractx.DirectionOutbound, Channel: contractx.ChannelSMS, Content: "sorry to hear that"},
		{Direction: contractx.DirectionInbound, Content: "any update?"},
	})
	assert.Equal(t, "Customer [EMAIL]: my 4090 is dead\nYou [SMS]: sorry to hear that\nCustomer [SMS]: any update?", got)
}

func TestFormatCustomerData(t *testing.T) {
	assert.Equal(t, "(No information collected yet)", FormatCustomerData(nil))
	assert.Equal(t, "(No information collected yet)", FormatCustomerData(map[string]any{"product": "gpu"}))

	got := FormatCustomerData(map[string]any{
		"severity":     "high",
		"first_name":   "Kal",
		"order_number": "ORD-1001",
		"issue_type":   "doa",
	})
	assert.Equal(t, "Name: Kal\nIssue: doa\nOrder: ORD-1001\nSeverity: high", got)
}

func TestBuildMessages(t *testing.T) {
	b := NewBuilder()
	msgs, err := b.BuildMessages(context.Background(), []contractx.ConversationMessage{
		{Direction: contractx.DirectionInbound, Channel: contractx.ChannelSMS, Content: "is {this} json?"},
	}, map[string]any{"first_name": "Kal"})
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, schema.System, msgs[0].Role)
	assert.True(t, strings.HasPrefix(msgs[0].Content, "You are a support agent for Macrocenter PC Parts"))
	assert.NotContains(t, msgs[0].Content, "{")

	assert.Equal(t, schema.User, msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "CONVERSATION HISTORY:\nCustomer [SMS]: is {this} json?")
	assert.Contains(t, msgs[1].Content, "WHAT WE KNOW ABOUT THE CUSTOMER:\nName: Kal")
	assert.True(t, strings.HasSuffix(msgs[1].Content, "Use save_customer_info when the customer shares new information."))
}
