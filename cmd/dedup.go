package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/clinicalpath/enrich-cli/internal/dedup"
)

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Remove duplicate records",
	Long:  "Deletes every record sharing a normalized name+location key with an older record. Idempotent; a second run removes nothing.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		result, err := dedup.NewEngine(st).Run(ctx)
		if err != nil {
			return eris.Wrap(err, "dedup run")
		}

		fmt.Printf("Scanned %d records, removed %d duplicates\n", result.Scanned, result.Removed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dedupCmd)
}
