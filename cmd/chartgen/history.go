package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/newthinker/chartgen/internal/logger"
	"github.com/newthinker/chartgen/internal/storage/ledger"
)

var (
	historyLimit  int
	historySymbol string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs from the run ledger",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of entries")
	historyCmd.Flags().StringVar(&historySymbol, "symbol", "", "show outcomes for one canonical symbol")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if cfg.Ledger.Path == "" {
		return fmt.Errorf("ledger.path is not configured")
	}

	store, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return fmt.Errorf("opening run ledger: %w", err)
	}
	defer store.Close()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	if historySymbol != "" {
		outcomes, err := store.SymbolHistory(cmd.Context(), historySymbol, historyLimit)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "SYMBOL\tSTATUS\tBARS\tLOCATION\tERROR")
		for _, o := range outcomes {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", o.Symbol, o.Status, o.Bars, o.Location, o.Error)
		}
		return nil
	}

	runs, err := store.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "RUN\tSTARTED\tDURATION\tTOTAL\tSAVED\tNO DATA\tFAILED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.RunID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Duration().Round(time.Second),
			r.Total, r.Saved, r.NoData, r.Failed)
	}
	return nil
}
