package command

import (
	"context"

	"github.com/groupscribe/groupscribe/internal/bus"
)

// HelpText is the usage notice sent for a bare mention, the help command
// and after a successful initialization.
const HelpText = `Hi! I keep track of this conversation and can summarize it on request.

Mention me followed by /summarize and a period:
  @bot /summarize today
  @bot /summarize yesterday
  @bot /summarize last month
  @bot /summarize 14/03/2024
  @bot /summarize 14/03/2024 - 20/03/2024

Mention me on my own or with /help to see this message again.`

// HelpHandler replies with the usage notice.
func HelpHandler(replies func(*bus.Reply)) Handler {
	return HandlerFunc(func(ctx context.Context, p Payload) error {
		replies(&bus.Reply{BotPhone: p.BotPhone, ChatID: p.ChatID, Content: HelpText})
		return nil
	})
}
