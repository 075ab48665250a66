package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bryan-buckman/mudwatch/internal/app"
	"github.com/bryan-buckman/mudwatch/internal/config"
	"github.com/bryan-buckman/mudwatch/internal/logging"
	"github.com/bryan-buckman/mudwatch/internal/processor"
	"github.com/bryan-buckman/mudwatch/internal/stats"
)

var (
	configPath string
	logLevel   string
	period     string
)

var rootCmd = &cobra.Command{
	Use:           "mudwatch",
	Short:         "mudwatch watches the game site and announces what changed.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduled watchers and the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := build()
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Run(cmd.Context())
	},
}

var onceCmd = &cobra.Command{
	Use:   "once <domain>",
	Short: "Run a single cycle of one domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := build()
		if err != nil {
			return err
		}
		defer a.Close()

		err = a.Poller.RunOnce(cmd.Context(), args[0])
		if errors.Is(err, processor.ErrSkipped) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: page looked empty, snapshot kept\n", args[0])
			return nil
		}
		return err
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats <report> [name]",
	Short: "Print a stat report",
	Long:  "Print a stat report. Reports: " + fmt.Sprint(stats.Reports()),
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := stats.ParsePeriod(period)
		if err != nil {
			return err
		}
		a, err := build()
		if err != nil {
			return err
		}
		defer a.Close()

		var name string
		if len(args) == 2 {
			name = args[1]
		}
		text, err := a.Reporter.Run(cmd.Context(), args[0], name, p)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

func build() (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	logging.Init(cfg.Log)
	return app.New(cfg)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $"+config.ConfigPathEnvVar+" or ./mudwatch.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level")
	statsCmd.Flags().StringVarP(&period, "period", "p", "year", "week, month, year or all")

	rootCmd.AddCommand(runCmd, onceCmd, statsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
