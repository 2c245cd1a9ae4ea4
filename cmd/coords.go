package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/clinicalpath/enrich-cli/internal/coords"
	"github.com/clinicalpath/enrich-cli/pkg/geocode"
)

var coordsCmd = &cobra.Command{
	Use:   "coords",
	Short: "Inspect and repair record coordinates",
}

var coordsPreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "List records with missing or out-of-bounds coordinates",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		engine := coords.NewEngine(st, newGeocoder())
		ids, err := engine.FindNeedingRepair(ctx)
		if err != nil {
			return eris.Wrap(err, "coords preview")
		}

		fmt.Printf("%d records need coordinate repair\n", len(ids))
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

var coordsFixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Geocode records needing coordinate repair",
	Long:  "Builds the repair worklist and geocodes it in batches. Each invocation reports remaining work; re-run until remaining reaches zero.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		batchSize, _ := cmd.Flags().GetInt("batch-size")
		if !cmd.Flags().Changed("batch-size") {
			batchSize = cfg.Geocode.BatchSize
		}
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		engine := coords.NewEngine(st, newGeocoder(),
			coords.WithBatchDelay(time.Duration(cfg.Geocode.BatchDelayMS)*time.Millisecond),
		)

		ids, err := engine.FindNeedingRepair(ctx)
		if err != nil {
			return eris.Wrap(err, "coords fix: build worklist")
		}
		if len(ids) == 0 {
			fmt.Println("No records need coordinate repair")
			return nil
		}
		if limit > 0 && len(ids) > limit {
			ids = ids[:limit]
		}

		result, err := engine.Repair(ctx, ids, batchSize)
		if err != nil {
			return eris.Wrap(err, "coords fix")
		}

		fmt.Printf("Geocoded %d, failed %d, remaining %d\n",
			result.Geocoded, result.Failed, result.Remaining)
		return nil
	},
}

// newGeocoder builds the geocoding client from config.
func newGeocoder() geocode.Client {
	return geocode.NewClient(
		geocode.WithBaseURL(cfg.Geocode.BaseURL),
		geocode.WithRateLimit(cfg.Geocode.RatePerSec),
	)
}

func init() {
	coordsFixCmd.Flags().Int("batch-size", 25, "records per geocoding batch")
	coordsFixCmd.Flags().Int("limit", 0, "cap the worklist for this invocation (0 = whole worklist)")
	coordsCmd.AddCommand(coordsPreviewCmd)
	coordsCmd.AddCommand(coordsFixCmd)
	rootCmd.AddCommand(coordsCmd)
}
