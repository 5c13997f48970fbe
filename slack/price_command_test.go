package trinomialslack

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcdannyboy/trinomial/models"
	"github.com/bcdannyboy/trinomial/positions"
)

var start = time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)

type fakePoster struct {
	channels []string
	texts    []string
	err      error
}

func (f *fakePoster) PostMessage(channelID string, options ...slack.MsgOption) (string, string, error) {
	_, values, err := slack.UnsafeApplyMsgOptions("token", channelID, "https://slack.com/api/", options...)
	if err != nil {
		return "", "", err
	}
	f.channels = append(f.channels, channelID)
	f.texts = append(f.texts, values.Get("text"))
	return channelID, "1700000000.000100", f.err
}

func (f *fakePoster) last() string {
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

func TestParsePriceCommand(t *testing.T) {
	req, err := ParsePriceCommand("european call 100 105 0.2 0.05 1", start)
	require.NoError(t, err)
	assert.Equal(t, models.NewMarket(100, 0.2, 0.05), req.Market)
	assert.Equal(t, models.NewEuropean(models.Call, 105, 1, start), req.Option)
	assert.Zero(t, req.Steps)

	req, err = ParsePriceCommand("  American PUT 50 55 0.3 0.01 0.5 250 ", start)
	require.NoError(t, err)
	assert.Equal(t, models.NewAmerican(models.Put, 55, 0.5, start), req.Option)
	assert.Equal(t, 250, req.Steps)

	req, err = ParsePriceCommand("bermudan put 100 100 0.2 0.05 1 120 2024-04-01 2024-07-01", start)
	require.NoError(t, err)
	assert.Equal(t, 120, req.Steps)
	v, ok := req.Option.(*models.Vanilla)
	require.True(t, ok)
	assert.Equal(t, models.Bermudan, v.Style)
	assert.Equal(t, []time.Time{
		time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC),
	}, v.ExerciseDates)

	req, err = ParsePriceCommand("bermudan call 100 100 0.2 0.05 1 2024-06-01", start)
	require.NoError(t, err)
	assert.Zero(t, req.Steps)
}

func TestParsePriceCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want error
	}{
		{"too few", "european call 100 100 0.2 0.05", ErrUsage},
		{"style", "asian call 100 100 0.2 0.05 1", models.ErrInvalidOption},
		{"kind", "european straddle 100 100 0.2 0.05 1", models.ErrInvalidOption},
		{"number", "european call 100 abc 0.2 0.05 1", ErrUsage},
		{"steps", "european call 100 100 0.2 0.05 1 0", ErrUsage},
		{"too many steps", "european call 100 100 0.2 0.05 1 1000000", ErrUsage},
		{"extra", "american put 100 100 0.2 0.05 1 100 foo", ErrUsage},
		{"no dates", "bermudan put 100 100 0.2 0.05 1 100", ErrUsage},
		{"bad date", "bermudan put 100 100 0.2 0.05 1 06/01/2024", ErrUsage},
		{"vol", "european call 100 100 0 0.05 1", models.ErrInvalidMarket},
		{"maturity", "european call 100 100 0.2 0.05 -1", models.ErrInvalidOption},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePriceCommand(tt.text, start)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestPriceHandler_Reply(t *testing.T) {
	h := NewPriceHandler(positions.PricingConfig{Steps: 200, Threshold: 1e-10})

	req, err := ParsePriceCommand("european call 100 100 0.2 0.05 1", start)
	require.NoError(t, err)
	text, err := h.Reply(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, text, "european call K=100 T=1")
	assert.Contains(t, text, "200 steps")
	assert.Contains(t, text, "Black-Scholes: 10.45")

	req, err = ParsePriceCommand("american put 100 100 0.2 0.05 1 50", start)
	require.NoError(t, err)
	text, err = h.Reply(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, text, "50 steps")
	assert.Contains(t, text, "Black-Scholes: n/a")
}

func TestHandler_Dispatch(t *testing.T) {
	h := NewHandler(positions.PricingConfig{Steps: 100, Threshold: 1e-10})
	h.priceHandler.now = func() time.Time { return start }
	ctx := context.Background()

	p := &fakePoster{}
	require.NoError(t, h.Dispatch(ctx, slack.SlashCommand{Command: "/help", ChannelID: "C1"}, p))
	assert.Equal(t, []string{"C1"}, p.channels)
	assert.Equal(t, helpText, p.last())

	require.NoError(t, h.Dispatch(ctx, slack.SlashCommand{Command: "/price", ChannelID: "C2", Text: "european put 100 90 0.25 0.03 0.5"}, p))
	assert.Equal(t, "C2", p.channels[1])
	assert.Contains(t, p.last(), "Trinomial (full lattice, 100 steps")

	require.NoError(t, h.Dispatch(ctx, slack.SlashCommand{Command: "/price", ChannelID: "C2", Text: "european put"}, p))
	assert.Contains(t, p.last(), priceUsage)

	assert.Error(t, h.Dispatch(ctx, slack.SlashCommand{Command: "/fcs", ChannelID: "C3"}, p))
	assert.Len(t, p.texts, 3)
}

func TestHandler_PostFailure(t *testing.T) {
	h := NewHandler(positions.PricingConfig{Steps: 10, Threshold: 1e-10})
	p := &fakePoster{err: errors.New("channel_not_found")}
	err := h.Dispatch(context.Background(), slack.SlashCommand{Command: "/help", ChannelID: "C1"}, p)
	assert.EqualError(t, err, "channel_not_found")
}
