package trinomialslack

import (
	"context"

	"github.com/slack-go/slack"
)

const helpText = "Available commands:\n" +
	"/help - Show this help message\n" +
	"/price <european|american|bermudan> <call|put> <spot> <strike> <vol> <rate> <maturity> [steps] [exercise dates] - Price an option on a trinomial lattice"

type HelpHandler struct{}

func NewHelpHandler() *HelpHandler {
	return &HelpHandler{}
}

func (h *HelpHandler) HandleCommand(_ context.Context, cmd slack.SlashCommand, client poster) error {
	_, _, err := client.PostMessage(cmd.ChannelID,
		slack.MsgOptionText(helpText, false))
	return err
}
