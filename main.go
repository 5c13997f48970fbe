package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bcdannyboy/trinomial/config"
	"github.com/bcdannyboy/trinomial/logging"
)

var (
	cfg    config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "trinomial",
	Short: "Price options on a pruned trinomial lattice",
	Long: `trinomial prices European, American and Bermudan options on a recombining
trinomial lattice with existence-probability pruning and a discrete dividend.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("env", "", "env file to load (default .env)")
	rootCmd.PersistentFlags().String("log-level", "", "log level, overrides TRINOMIAL_LOG_LEVEL")
}

// setup loads the configuration and attaches the logger to the command context.
func setup(cmd *cobra.Command, _ []string) error {
	var files []string
	if f, _ := cmd.Flags().GetString("env"); f != "" {
		files = append(files, f)
	}
	var err error
	cfg, err = config.Load(files...)
	if err != nil {
		return err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}

	logger, err = logging.New(cfg.LogLevel, os.Stderr)
	if err != nil {
		return err
	}
	cmd.SetContext(logger.WithContext(cmd.Context()))
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	Execute(ctx)
}
