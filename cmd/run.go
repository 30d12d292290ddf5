package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/acled-ingest/internal/acled"
	"github.com/sells-group/acled-ingest/internal/db"
	"github.com/sells-group/acled-ingest/internal/fetcher"
	"github.com/sells-group/acled-ingest/internal/ingest"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch events and insert them",
	Long: `Fetch every page of events for each configured country and insert them.

Countries are processed in configuration order; use --countries to restrict
the run to a subset. The first failure aborts the run. Pages already inserted
stay committed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		log := zap.L().With(zap.String("command", "run"))

		countries, _ := cmd.Flags().GetString("countries")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		ctx := cmd.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		regions, err := acled.FilterRegions(cfg.ACLED.Codes, parseCountries(countries))
		if err != nil {
			return err
		}
		dates, err := cfg.ACLED.DateRange(time.Now().UTC())
		if err != nil {
			return err
		}
		types, err := loadTypes(cfg)
		if err != nil {
			return err
		}

		src, err := acled.NewSource(acled.Config{
			URL:     cfg.ACLED.URL,
			Email:   cfg.ACLED.Email,
			Key:     cfg.ACLED.Key,
			Regions: regions,
			Dates:   dates,
			Types:   types,
		}, fetcher.NewHTTPFetcher(cfg.Fetch.HTTPOptions()))
		if err != nil {
			return err
		}

		sink, runLog, err := buildStore(cfg, types, db.Dial(cfg.Database))
		if err != nil {
			return err
		}

		log.Info("starting ingest",
			zap.Int("regions", len(regions)),
			zap.String("event_date", dates.String()),
			zap.String("table", cfg.Sink.Schema+"."+cfg.Sink.Table),
		)

		p := &ingest.Pipeline{Source: src, Sink: sink, Log: runLog}
		res, err := p.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "run")
		}

		fmt.Printf("Ingest complete: %d rows in %d batches (%s)\n",
			res.Rows, res.Batches, res.Duration.Round(time.Millisecond))
		return nil
	},
}

func init() {
	runCmd.Flags().String("countries", "", "comma-separated ISO3 codes to fetch (default: all configured)")
	runCmd.Flags().Duration("timeout", 0, "abort the run after this duration (0 = no limit)")
	rootCmd.AddCommand(runCmd)
}
