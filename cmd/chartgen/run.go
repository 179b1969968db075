package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/chartgen/internal/app"
	"github.com/newthinker/chartgen/internal/config"
	"github.com/newthinker/chartgen/internal/logger"
	"github.com/newthinker/chartgen/internal/symbol"
)

var (
	runPeriod   string
	runOut      string
	runStyle    string
	runProvider string
)

var runCmd = &cobra.Command{
	Use:   "run [symbols...]",
	Short: "Generate charts for the given or configured symbols",
	Example: `  chartgen run 700 5 AAPL
  chartgen run --period 6mo --style navy --out ./charts
  chartgen run -c chartgen.yaml`,
	RunE: runCharts,
}

func init() {
	runCmd.Flags().StringVarP(&runPeriod, "period", "p", "", "lookback period (1mo, 3mo, 6mo, 1y, 2y, 5y, ytd, max)")
	runCmd.Flags().StringVarP(&runOut, "out", "o", "", "output directory")
	runCmd.Flags().StringVarP(&runStyle, "style", "s", "", "chart style (dark, navy)")
	runCmd.Flags().StringVar(&runProvider, "provider", "", "data provider (yahoo, eastmoney, alpaca)")
	rootCmd.AddCommand(runCmd)
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("period") {
		cfg.Chart.Period = runPeriod
	}
	if cmd.Flags().Changed("out") {
		cfg.Chart.OutputDir = runOut
	}
	if cmd.Flags().Changed("style") {
		cfg.Chart.Style = runStyle
	}
	if cmd.Flags().Changed("provider") {
		cfg.Provider.Name = runProvider
	}
}

func runCharts(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	raws := cfg.SymbolList()
	if len(args) > 0 {
		raws = symbol.FromStrings(args)
	}
	if len(raws) == 0 {
		return fmt.Errorf("no symbols to chart")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	results := a.Run(ctx, raws, cmd.OutOrStdout())

	// Per-symbol failures are reported above and do not fail the command.
	log.Debug("run complete", zap.Int("results", len(results)))
	return nil
}
