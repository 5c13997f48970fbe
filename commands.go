package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bcdannyboy/trinomial/lattice"
	"github.com/bcdannyboy/trinomial/models"
	"github.com/bcdannyboy/trinomial/positions"
	"github.com/bcdannyboy/trinomial/probability"
	trinomialslack "github.com/bcdannyboy/trinomial/slack"
	"github.com/bcdannyboy/trinomial/tradier"
)

const dateLayout = "2006-01-02"

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Build the lattice and price an option",
	RunE: func(cmd *cobra.Command, args []string) error {
		market, option, err := contractFromFlags(cmd)
		if err != nil {
			return err
		}
		pc := pricingFromFlags(cmd)
		if pc.Bounded {
			return runBounded(cmd.OutOrStdout(), market, option, pc)
		}

		start := time.Now()
		l, err := lattice.BuildLattice(market, option, pc.Steps, pc.Threshold)
		if err != nil {
			return err
		}
		built := time.Since(start)
		v, err := l.Price()
		if err != nil {
			return err
		}
		stats := l.Stats()
		zerolog.Ctx(cmd.Context()).Debug().
			Int("nodes", stats.Nodes).
			Int("pruned", stats.Pruned).
			Dur("build", built).
			Dur("total", time.Since(start)).
			Msg("lattice priced")

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%v\n", option)
		fmt.Fprintf(w, "price     %.6f\n", v)
		fmt.Fprintf(w, "steps     %d (dt %.6f, alpha %.6f)\n", pc.Steps, l.TimeDelta(), l.Alpha())
		fmt.Fprintf(w, "nodes     %d (%d pruned, widest column %d)\n", stats.Nodes, stats.Pruned, stats.MaxWidth)
		if s := l.DividendStep(); s >= 0 {
			fmt.Fprintf(w, "dividend  %.4g at step %d\n", market.Dividend, s)
		}
		printBenchmark(w, market, option, v)

		if paths, _ := cmd.Flags().GetInt("mc-paths"); paths > 0 {
			mc := models.NewMonteCarlo(paths, pc.Steps)
			mean, se, err := mc.Price(market, option)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "mc        %.6f +/- %.6f (%d paths, european exercise only)\n", mean, se, paths)
		}
		return nil
	},
}

var boundedCmd = &cobra.Command{
	Use:   "bounded",
	Short: "Price an option keeping only two lattice columns in memory",
	RunE: func(cmd *cobra.Command, args []string) error {
		market, option, err := contractFromFlags(cmd)
		if err != nil {
			return err
		}
		return runBounded(cmd.OutOrStdout(), market, option, pricingFromFlags(cmd))
	},
}

var greeksCmd = &cobra.Command{
	Use:   "greeks",
	Short: "Bump and reprice for delta, gamma, vega, theta and rho",
	RunE: func(cmd *cobra.Command, args []string) error {
		market, option, err := contractFromFlags(cmd)
		if err != nil {
			return err
		}
		g, err := positions.CalculateGreeks(cmd.Context(), market, option, pricingFromFlags(cmd))
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "price\t%.6f\n", g.Price)
		fmt.Fprintf(tw, "delta\t%.6f\n", g.Delta)
		fmt.Fprintf(tw, "gamma\t%.6f\n", g.Gamma)
		fmt.Fprintf(tw, "vega\t%.6f\n", g.Vega)
		fmt.Fprintf(tw, "theta\t%.6f\n", g.Theta)
		fmt.Fprintf(tw, "rho\t%.6f\n", g.Rho)
		return tw.Flush()
	},
}

var impliedCmd = &cobra.Command{
	Use:   "implied",
	Short: "Solve for the volatility that reproduces a market price",
	RunE: func(cmd *cobra.Command, args []string) error {
		market, option, err := contractFromFlags(cmd)
		if err != nil {
			return err
		}
		target, _ := cmd.Flags().GetFloat64("target")
		iv, err := positions.ImpliedVolatility(cmd.Context(), market, option, target, pricingFromFlags(cmd))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "implied volatility %.6f\n", iv)
		return nil
	},
}

var studyCmd = &cobra.Command{
	Use:   "study",
	Short: "Price over a range of step counts and compare with the closed form",
	RunE: func(cmd *cobra.Command, args []string) error {
		market, option, err := contractFromFlags(cmd)
		if err != nil {
			return err
		}
		list, _ := cmd.Flags().GetString("steps-list")
		steps, err := parseSteps(list)
		if err != nil {
			return err
		}
		pc := pricingFromFlags(cmd)
		report, err := probability.RunStudy(cmd.Context(), market, option, steps, pc.Threshold, probability.StudyOptions{
			Workers:  pc.Workers,
			Bounded:  pc.Bounded,
			Progress: probability.ProgressOutput(os.Stderr),
		})
		if err != nil {
			return err
		}
		printStudy(cmd.OutOrStdout(), report)

		if out, _ := cmd.Flags().GetString("out"); out != "" {
			if err := probability.WriteReport(out, report); err != nil {
				return err
			}
			zerolog.Ctx(cmd.Context()).Info().Str("path", out).Msg("report written")
		}
		return nil
	},
}

var marketCmd = &cobra.Command{
	Use:   "market <symbol>",
	Short: "Estimate volatility from Tradier price history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.TradierKey == "" {
			return errors.New("TRADIER_KEY is not set")
		}
		days, _ := cmd.Flags().GetInt("days")
		estimator, _ := cmd.Flags().GetString("estimator")
		window, _ := cmd.Flags().GetInt("window")
		rate, _ := cmd.Flags().GetFloat64("rate")

		end := time.Now()
		client := tradier.NewClient(cfg.TradierKey, cfg.TradierURL)
		history, err := client.GetQuotes(cmd.Context(), args[0], end.AddDate(0, 0, -days), end, "daily")
		if err != nil {
			return err
		}
		asOf, err := tradier.AsOf(history)
		if err != nil {
			return err
		}
		market, err := tradier.MarketFromHistory(history, estimator, window, rate, 0, time.Time{})
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s as of %s: spot %.4f, %s volatility %.4f over %d bars\n",
			args[0], asOf.Format(dateLayout), market.Spot, estimator, market.Volatility, window)

		table := tradier.VolatilityTable(history, estimator)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, p := range tradier.Periods {
			if v, ok := table[p.Name]; ok {
				fmt.Fprintf(tw, "%s\t%.4f\n", p.Name, v)
			}
		}
		return tw.Flush()
	},
}

var slackCmd = &cobra.Command{
	Use:   "slack",
	Short: "Serve /price and /help over Slack socket mode",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.SlackAppToken == "" || cfg.SlackBotToken == "" {
			return errors.New("SLACK_APP_TOKEN and SLACK_BOT_TOKEN must be set")
		}
		bot := trinomialslack.NewSlackBot(cfg.SlackAppToken, cfg.SlackBotToken, pricingFromFlags(cmd), logger)
		return bot.Start(cmd.Context())
	},
}

func init() {
	for _, c := range []*cobra.Command{priceCmd, boundedCmd, greeksCmd, impliedCmd, studyCmd} {
		addContractFlags(c)
	}
	for _, c := range []*cobra.Command{priceCmd, boundedCmd, greeksCmd, impliedCmd, studyCmd, slackCmd} {
		addPricingFlags(c)
	}
	priceCmd.Flags().Int("mc-paths", 0, "also run a Monte Carlo benchmark with this many paths")
	impliedCmd.Flags().Float64("target", 0, "observed option price")
	_ = impliedCmd.MarkFlagRequired("target")
	studyCmd.Flags().String("steps-list", "25,50,100,200,400,800", "comma separated step counts")
	studyCmd.Flags().String("out", "", "write the report as JSON to this file")

	marketCmd.Flags().Int("days", 365, "calendar days of history to fetch")
	marketCmd.Flags().String("estimator", tradier.CloseToClose, "close, ewma, parkinson, garman-klass, rogers-satchell or yang-zhang")
	marketCmd.Flags().Int("window", 63, "bars used for the volatility estimate")
	marketCmd.Flags().Float64("rate", 0.04, "risk-free rate")

	rootCmd.AddCommand(priceCmd, boundedCmd, greeksCmd, impliedCmd, studyCmd, marketCmd, slackCmd)
}

func addContractFlags(c *cobra.Command) {
	f := c.Flags()
	f.String("style", "european", "european, american or bermudan")
	f.String("kind", "call", "call or put")
	f.Float64("spot", 100, "spot price")
	f.Float64("strike", 100, "strike price")
	f.Float64("vol", 0.2, "annual volatility")
	f.Float64("rate", 0.05, "continuously compounded risk-free rate")
	f.Float64("maturity", 1, "time to maturity in years")
	f.String("start", "", "valuation date YYYY-MM-DD (default today)")
	f.Float64("dividend", 0, "discrete cash dividend")
	f.String("dividend-date", "", "ex-dividend date YYYY-MM-DD")
	f.String("exercise-dates", "", "bermudan exercise dates, comma separated YYYY-MM-DD")
	f.Float64("payout", 0, "price a cash-or-nothing digital paying this amount")
}

func addPricingFlags(c *cobra.Command) {
	f := c.Flags()
	f.Int("steps", positions.DefaultSteps, "lattice steps, overrides TRINOMIAL_STEPS")
	f.Float64("threshold", positions.DefaultThreshold, "pruning threshold, overrides TRINOMIAL_THRESHOLD")
	f.Bool("bounded", false, "use the bounded-memory pricer")
	f.Int("workers", 0, "concurrent lattices, 0 for one per job")
}

// pricingFromFlags starts from the loaded configuration and applies the flags
// the user set explicitly.
func pricingFromFlags(cmd *cobra.Command) positions.PricingConfig {
	pc := cfg.Pricing
	f := cmd.Flags()
	if f.Changed("steps") {
		pc.Steps, _ = f.GetInt("steps")
	}
	if f.Changed("threshold") {
		pc.Threshold, _ = f.GetFloat64("threshold")
	}
	if f.Changed("bounded") {
		pc.Bounded, _ = f.GetBool("bounded")
	}
	if f.Changed("workers") {
		pc.Workers, _ = f.GetInt("workers")
	}
	if pc.Steps == 0 {
		pc.Steps = positions.DefaultSteps
	}
	if pc.Threshold == 0 {
		pc.Threshold = positions.DefaultThreshold
	}
	return pc
}

func contractFromFlags(cmd *cobra.Command) (models.Market, models.Option, error) {
	f := cmd.Flags()
	styleName, _ := f.GetString("style")
	kindName, _ := f.GetString("kind")
	spot, _ := f.GetFloat64("spot")
	strike, _ := f.GetFloat64("strike")
	vol, _ := f.GetFloat64("vol")
	rate, _ := f.GetFloat64("rate")
	maturity, _ := f.GetFloat64("maturity")
	startText, _ := f.GetString("start")
	dividend, _ := f.GetFloat64("dividend")
	divText, _ := f.GetString("dividend-date")
	exText, _ := f.GetString("exercise-dates")
	payout, _ := f.GetFloat64("payout")

	style, err := models.ParseExerciseStyle(styleName)
	if err != nil {
		return models.Market{}, nil, err
	}
	kind, err := models.ParseKind(kindName)
	if err != nil {
		return models.Market{}, nil, err
	}

	start := time.Now().UTC().Truncate(24 * time.Hour)
	if startText != "" {
		if start, err = time.Parse(dateLayout, startText); err != nil {
			return models.Market{}, nil, fmt.Errorf("start: %w", err)
		}
	}

	market := models.NewMarket(spot, vol, rate)
	if dividend > 0 {
		divDate, err := time.Parse(dateLayout, divText)
		if err != nil {
			return models.Market{}, nil, fmt.Errorf("dividend-date: %w", err)
		}
		market = market.WithDividend(dividend, divDate)
	}

	exDates, err := parseDates(exText)
	if err != nil {
		return models.Market{}, nil, fmt.Errorf("exercise-dates: %w", err)
	}

	var option models.Option
	switch {
	case payout > 0:
		d := models.NewDigital(kind, style, strike, payout, maturity, start)
		d.ExerciseDates = exDates
		option = d
	case style == models.Bermudan:
		option = models.NewBermudan(kind, strike, maturity, start, exDates)
	case style == models.American:
		option = models.NewAmerican(kind, strike, maturity, start)
	default:
		option = models.NewEuropean(kind, strike, maturity, start)
	}
	return market, option, nil
}

func parseDates(s string) ([]time.Time, error) {
	var dates []time.Time
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := time.Parse(dateLayout, part)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, nil
}

func parseSteps(s string) ([]int, error) {
	seen := make(map[int]bool)
	var steps []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("steps-list: %q is not an integer", part)
		}
		if !seen[n] {
			seen[n] = true
			steps = append(steps, n)
		}
	}
	sort.Ints(steps)
	return steps, nil
}

func runBounded(w io.Writer, market models.Market, option models.Option, pc positions.PricingConfig) error {
	v, err := lattice.PriceBounded(market, option, pc.Steps, pc.Threshold)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%v\n", option)
	fmt.Fprintf(w, "price     %.6f (bounded, %d steps)\n", v, pc.Steps)
	printBenchmark(w, market, option, v)
	return nil
}

func printBenchmark(w io.Writer, market models.Market, option models.Option, v float64) {
	bs, err := models.BlackScholes(market, option)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "bsm       %.6f (gap %+.3e)\n", bs.Price, v-bs.Price)
}

func printStudy(w io.Writer, report *probability.Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "steps\tprice\tgap\tgap*n\tnodes\tbuild\tprice time\t")
	for _, r := range report.Rows {
		gap, scaled := "-", "-"
		if r.Gap != nil {
			gap = fmt.Sprintf("%+.3e", *r.Gap)
			scaled = fmt.Sprintf("%+.4f", *r.GapTimesSteps)
		}
		fmt.Fprintf(tw, "%d\t%.6f\t%s\t%s\t%d\t%s\t%s\t\n",
			r.Steps, r.Price, gap, scaled, r.Nodes, r.BuildTime.Round(time.Microsecond), r.PriceTime.Round(time.Microsecond))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "%s, %d logical CPUs\n", report.Host.CPUModel, report.Host.LogicalCPUs)
}
