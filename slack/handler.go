package trinomialslack

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"

	"github.com/bcdannyboy/trinomial/positions"
)

// poster is the part of the Slack client the command handlers use.
type poster interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
}

type Handler struct {
	helpHandler  *HelpHandler
	priceHandler *PriceHandler
}

func NewHandler(cfg positions.PricingConfig) *Handler {
	return &Handler{
		helpHandler:  NewHelpHandler(),
		priceHandler: NewPriceHandler(cfg),
	}
}

// Dispatch routes a slash command to its handler.
func (h *Handler) Dispatch(ctx context.Context, cmd slack.SlashCommand, client poster) error {
	switch cmd.Command {
	case "/help":
		return h.helpHandler.HandleCommand(ctx, cmd, client)
	case "/price":
		return h.priceHandler.HandleCommand(ctx, cmd, client)
	}
	return fmt.Errorf("unknown command %q", cmd.Command)
}

func (h *Handler) Handle(ctx context.Context, evt *socketmode.Event, client *socketmode.Client) error {
	data, ok := evt.Data.(slack.SlashCommand)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", evt.Data)
	}
	client.Ack(*evt.Request)
	return h.Dispatch(ctx, data, client)
}
