package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/clinicalpath/enrich-cli/internal/importer"
	"github.com/clinicalpath/enrich-cli/internal/model"
	"github.com/clinicalpath/enrich-cli/internal/notify"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Run the unattended startup import",
	Long:  "Imports up to import.target records of import.seed_type unless the collection already holds import.min_existing of them. Safe to invoke on every process start.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		orch := importer.New(st, newDirectory(),
			importer.WithBatchDelay(time.Duration(cfg.Import.BatchDelayMS)*time.Millisecond),
			importer.WithNotifier(notify.NewWebhook(cfg.Notify.WebhookURL)),
		)

		result, err := orch.Run(ctx, importer.Options{
			BatchSize:     cfg.Import.BatchSize,
			State:         cfg.Import.SeedState,
			Target:        cfg.Import.Target,
			Type:          model.OpportunityType(cfg.Import.SeedType),
			MinExisting:   cfg.Import.MinExisting,
			ProgressEvery: cfg.Import.ProgressEvery,
		})
		if err != nil {
			return eris.Wrap(err, "seed run")
		}

		if result.Batches == 0 {
			fmt.Printf("Seed skipped: collection already holds %d records\n", result.Total)
			return nil
		}
		fmt.Printf("Seeded %d records (skipped %d, failed %d; collection now %d)\n",
			result.Imported, result.Skipped, result.Failed, result.Total)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
