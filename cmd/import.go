package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clinicalpath/enrich-cli/internal/importer"
	"github.com/clinicalpath/enrich-cli/internal/model"
	"github.com/clinicalpath/enrich-cli/internal/notify"
	"github.com/clinicalpath/enrich-cli/pkg/directory"
)

// newDirectory builds the facility directory client from config.
func newDirectory() directory.Client {
	return directory.NewClient(
		directory.WithBaseURL(cfg.Directory.BaseURL),
		directory.WithHTTPClient(&http.Client{Timeout: cfg.Directory.Timeout()}),
	)
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk-import facility records from the external directory",
	Long:  "Pages through the facility directory at the configured batch size, inserting new records and skipping ones already present. A failed batch is recorded and the run continues at the next offset.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		limit, _ := cmd.Flags().GetInt("limit")
		if !cmd.Flags().Changed("limit") {
			limit = cfg.Import.BatchSize
		}
		offset, _ := cmd.Flags().GetInt("offset")
		state, _ := cmd.Flags().GetString("state")
		target, _ := cmd.Flags().GetInt("target")
		oppType, _ := cmd.Flags().GetString("type")
		unattended, _ := cmd.Flags().GetBool("if-needed")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		orch := importer.New(st, newDirectory(),
			importer.WithBatchDelay(time.Duration(cfg.Import.BatchDelayMS)*time.Millisecond),
			importer.WithNotifier(notify.NewWebhook(cfg.Notify.WebhookURL)),
		)

		opts := importer.Options{
			BatchSize:     limit,
			Offset:        offset,
			State:         state,
			Target:        target,
			Type:          model.OpportunityType(oppType),
			ProgressEvery: cfg.Import.ProgressEvery,
		}
		if unattended {
			opts.MinExisting = cfg.Import.MinExisting
		}

		result, err := orch.Run(ctx, opts)
		if err != nil {
			return eris.Wrap(err, "import run")
		}

		zap.L().Info("import finished",
			zap.Int("imported", result.Imported),
			zap.Int("skipped", result.Skipped),
			zap.Int("failed", result.Failed),
			zap.Int("next_offset", result.NextOffset),
		)
		fmt.Printf("Imported %d, skipped %d, failed %d (collection now %d records; resume at offset %d)\n",
			result.Imported, result.Skipped, result.Failed, result.Total, result.NextOffset)
		for _, e := range result.Errors {
			fmt.Printf("  batch error: %s\n", e)
		}
		return nil
	},
}

func init() {
	importCmd.Flags().Int("limit", 50, "batch size per source call")
	importCmd.Flags().Int("offset", 0, "starting offset into the source")
	importCmd.Flags().String("state", "", "restrict to a two-letter state code")
	importCmd.Flags().Int("target", 0, "stop after processing this many records (0 = until exhausted)")
	importCmd.Flags().String("type", "hospital", "opportunity type to assign (hospital|clinic|hospice|emt|volunteer)")
	importCmd.Flags().Bool("if-needed", false, "skip the run when the collection already meets import.min_existing")
	rootCmd.AddCommand(importCmd)
}
