package trinomialslack

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/bcdannyboy/trinomial/models"
	"github.com/bcdannyboy/trinomial/positions"
)

const priceUsage = "Usage: /price <european|american|bermudan> <call|put> <spot> <strike> <vol> <rate> <maturity> [steps] [exercise dates YYYY-MM-DD...]"

// maxSteps bounds the lattice a chat request may build.
const maxSteps = 5000

// ErrUsage is returned for a malformed /price command.
var ErrUsage = errors.New("malformed /price command")

// PriceRequest is a parsed /price command.
type PriceRequest struct {
	Market models.Market
	Option models.Option
	Steps  int // 0 keeps the handler default
}

// ParsePriceCommand parses
//
//	<european|american|bermudan> <call|put> spot strike vol rate maturity [steps] [dates...]
//
// Maturity is in years from start. Bermudan contracts take their exercise
// dates after the step count.
func ParsePriceCommand(text string, start time.Time) (PriceRequest, error) {
	args := strings.Fields(text)
	if len(args) < 7 {
		return PriceRequest{}, fmt.Errorf("%w: expected at least 7 arguments, got %d", ErrUsage, len(args))
	}

	style, err := models.ParseExerciseStyle(args[0])
	if err != nil {
		return PriceRequest{}, fmt.Errorf("%w: %w", ErrUsage, err)
	}
	kind, err := models.ParseKind(args[1])
	if err != nil {
		return PriceRequest{}, fmt.Errorf("%w: %w", ErrUsage, err)
	}

	names := []string{"spot", "strike", "vol", "rate", "maturity"}
	values := make([]float64, len(names))
	for i, name := range names {
		v, err := strconv.ParseFloat(args[2+i], 64)
		if err != nil {
			return PriceRequest{}, fmt.Errorf("%w: %s %q is not a number", ErrUsage, name, args[2+i])
		}
		values[i] = v
	}
	spot, strike, vol, rate, maturity := values[0], values[1], values[2], values[3], values[4]

	req := PriceRequest{Market: models.NewMarket(spot, vol, rate)}
	rest := args[7:]
	if len(rest) > 0 {
		if n, err := strconv.Atoi(rest[0]); err == nil {
			if n < 1 || n > maxSteps {
				return PriceRequest{}, fmt.Errorf("%w: steps must be between 1 and %d", ErrUsage, maxSteps)
			}
			req.Steps = n
			rest = rest[1:]
		}
	}

	switch style {
	case models.Bermudan:
		if len(rest) == 0 {
			return PriceRequest{}, fmt.Errorf("%w: bermudan options need exercise dates", ErrUsage)
		}
		dates := make([]time.Time, 0, len(rest))
		for _, s := range rest {
			d, err := time.Parse("2006-01-02", s)
			if err != nil {
				return PriceRequest{}, fmt.Errorf("%w: exercise date %q", ErrUsage, s)
			}
			dates = append(dates, d)
		}
		req.Option = models.NewBermudan(kind, strike, maturity, start, dates)
	case models.American:
		req.Option = models.NewAmerican(kind, strike, maturity, start)
	default:
		req.Option = models.NewEuropean(kind, strike, maturity, start)
	}
	if style != models.Bermudan && len(rest) > 0 {
		return PriceRequest{}, fmt.Errorf("%w: unexpected argument %q", ErrUsage, rest[0])
	}

	if err := req.Market.Validate(); err != nil {
		return PriceRequest{}, err
	}
	if err := req.Option.Validate(); err != nil {
		return PriceRequest{}, err
	}
	return req, nil
}

type PriceHandler struct {
	cfg positions.PricingConfig
	now func() time.Time
}

func NewPriceHandler(cfg positions.PricingConfig) *PriceHandler {
	return &PriceHandler{cfg: cfg, now: time.Now}
}

// Reply prices the request and formats the answer posted to the channel.
func (h *PriceHandler) Reply(ctx context.Context, req PriceRequest) (string, error) {
	cfg := h.cfg
	if req.Steps > 0 {
		cfg.Steps = req.Steps
	}
	price, err := cfg.Price(req.Market, req.Option)
	if err != nil {
		return "", err
	}
	zerolog.Ctx(ctx).Info().
		Str("option", fmt.Sprint(req.Option)).
		Int("steps", cfg.Steps).
		Float64("price", price).
		Msg("slack price")

	var b strings.Builder
	fmt.Fprintf(&b, "%v on S=%.4g vol=%.4g r=%.4g\n", req.Option, req.Market.Spot, req.Market.Volatility, req.Market.Rate)
	fmt.Fprintf(&b, "Trinomial (%s): %.4f\n", cfg, price)
	if bs, err := models.BlackScholes(req.Market, req.Option); err == nil {
		fmt.Fprintf(&b, "Black-Scholes: %.4f (gap %+.2e)", bs.Price, price-bs.Price)
	} else {
		b.WriteString("Black-Scholes: n/a")
	}
	return b.String(), nil
}

func (h *PriceHandler) HandleCommand(ctx context.Context, cmd slack.SlashCommand, client poster) error {
	req, err := ParsePriceCommand(cmd.Text, h.now().UTC().Truncate(24*time.Hour))
	if err != nil {
		_, _, perr := client.PostMessage(cmd.ChannelID,
			slack.MsgOptionText(fmt.Sprintf("%v\n%s", err, priceUsage), false))
		return perr
	}

	text, err := h.Reply(ctx, req)
	if err != nil {
		text = fmt.Sprintf("Pricing failed: %v", err)
	}
	_, _, err = client.PostMessage(cmd.ChannelID, slack.MsgOptionText(text, false))
	return err
}
