package orchestrator

import (
	"strings"
	"unicode"

	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
)

var channelMarkers = []struct {
	marker  string
	channel contractx.Channel
}{
	{marker: "[EMAIL]", channel: contractx.ChannelEmail},
	{marker: "[SMS]", channel: contractx.ChannelSMS},
}

// SelectChannel picks the outbound channel for a reply. A leading [EMAIL] or
// [SMS] marker wins and is stripped from the text. Otherwise the reply goes
// out on the channel of the last inbound batch message, or SMS.
func SelectChannel(text string, batch []contractx.ConversationMessage) (contractx.Channel, string) {
	trimmed := strings.TrimLeftFunc(text, unicode.IsSpace)
	for _, m := range channelMarkers {
		if strings.HasPrefix(trimmed, m.marker) {
			return m.channel, strings.TrimLeftFunc(trimmed[len(m.marker):], unicode.IsSpace)
		}
	}

	for i := len(batch) - 1; i >= 0; i-- {
		msg := batch[i]
		if msg.Direction != contractx.DirectionInbound {
			continue
		}
		if msg.Channel != "" {
			return msg.Channel, text
		}
		break
	}
	return contractx.ChannelSMS, text
}
