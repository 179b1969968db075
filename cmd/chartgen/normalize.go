package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newthinker/chartgen/internal/logger"
	"github.com/newthinker/chartgen/internal/symbol"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize [symbols...]",
	Short: "Print the canonical query symbol for each input",
	RunE: func(cmd *cobra.Command, args []string) error {
		raws := symbol.FromStrings(args)
		if len(args) == 0 {
			log := logger.Must(debug)
			defer log.Sync()

			cfg, err := loadConfig(log)
			if err != nil {
				return err
			}
			raws = cfg.SymbolList()
		}

		for _, raw := range raws {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", raw, symbol.Normalize(raw))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(normalizeCmd)
}
