package trinomialslack

import (
	"context"
	"log"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"

	"github.com/bcdannyboy/trinomial/positions"
)

type SlackBot struct {
	client       *slack.Client
	socketClient *socketmode.Client
	eventHandler *Handler
}

func NewSlackBot(appToken, botToken string, cfg positions.PricingConfig, logger zerolog.Logger) *SlackBot {
	client := slack.New(
		botToken,
		slack.OptionAppLevelToken(appToken),
	)

	socketClient := socketmode.New(
		client,
		socketmode.OptionDebug(logger.GetLevel() <= zerolog.DebugLevel),
		socketmode.OptionLog(log.New(logger.With().Str("component", "socketmode").Logger(), "", 0)),
	)

	return &SlackBot{
		client:       client,
		socketClient: socketClient,
		eventHandler: NewHandler(cfg),
	}
}

// Start serves slash commands until ctx is cancelled or the connection fails.
func (sb *SlackBot) Start(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)
	go func() {
		for evt := range sb.socketClient.Events {
			switch evt.Type {
			case socketmode.EventTypeConnected:
				logger.Info().Msg("connected to slack")
			case socketmode.EventTypeSlashCommand:
				evt := evt
				go func() {
					if err := sb.eventHandler.Handle(ctx, &evt, sb.socketClient); err != nil {
						logger.Error().Err(err).Msg("slash command failed")
					}
				}()
			}
		}
	}()

	return sb.socketClient.RunContext(ctx)
}
