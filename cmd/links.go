package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/clinicalpath/enrich-cli/internal/fetch"
	"github.com/clinicalpath/enrich-cli/internal/links"
	"github.com/clinicalpath/enrich-cli/internal/model"
	"github.com/clinicalpath/enrich-cli/pkg/search"
)

var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "Discover missing website and email links",
	Long:  "Processes records missing a website or email one at a time: web search with host exclusion, slug-pattern guessing, heuristic verification, and contact scraping. Sequential with fixed delays to respect external rate limits.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		limit, _ := cmd.Flags().GetInt("limit")
		oppType, _ := cmd.Flags().GetString("type")
		id, _ := cmd.Flags().GetString("id")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		engine := links.NewEngine(st,
			search.NewClient(
				search.WithBaseURL(cfg.Search.BaseURL),
				search.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Search.TimeoutSecs) * time.Second}),
			),
			fetch.New(
				time.Duration(cfg.Links.ProbeTimeoutSecs)*time.Second,
				time.Duration(cfg.Links.FetchTimeoutSecs)*time.Second,
			),
			links.WithCallDelay(time.Duration(cfg.Links.CallDelayMS)*time.Millisecond),
			links.WithSlugMaxLen(cfg.Links.SlugMaxLen),
		)

		if id != "" {
			outcome, err := engine.Discover(ctx, id)
			if err != nil {
				return eris.Wrap(err, "links discover")
			}
			printOutcome(*outcome)
			return nil
		}

		result, err := engine.Run(ctx, limit, model.OpportunityType(oppType))
		if err != nil {
			return eris.Wrap(err, "links run")
		}

		fmt.Printf("Processed %d records: %d websites, %d emails, %d skipped\n",
			result.Processed, result.Websites, result.Emails, result.Skipped)
		for _, o := range result.Outcomes {
			printOutcome(o)
		}
		return nil
	},
}

func printOutcome(o model.LinkOutcome) {
	line := fmt.Sprintf("  %s:", o.ID)
	if o.Website != nil {
		line += " website=" + *o.Website
	}
	if o.Email != nil {
		line += " email=" + *o.Email
	}
	if o.Reason != "" {
		line += " (" + o.Reason + ")"
	}
	fmt.Println(line)
}

func init() {
	linksCmd.Flags().Int("limit", 20, "maximum records to process")
	linksCmd.Flags().String("type", "", "restrict to one opportunity type")
	linksCmd.Flags().String("id", "", "discover links for a single record id")
	rootCmd.AddCommand(linksCmd)
}
