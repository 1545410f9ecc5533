package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nmoreaux/techwatch/internal/techwatch"
)

func generateCommand() *cobra.Command {
	var (
		days    int
		start   string
		end     string
		sources []string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Crawl all sources for a date window and update the dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			dateRange, err := resolveRange(days, start, end, a.Cfg.Crawler.DefaultRangeDays)
			if err != nil {
				return err
			}

			report, err := a.Service.Generate(cmd.Context(), dateRange, sources)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s for %s finished in %s\n",
				report.RunID, dateRange, report.Elapsed().Round(time.Millisecond))
			for _, s := range report.Sources {
				fmt.Fprintf(out, "  %-24s %-8s %3d posts\n", s.Source, s.Status, s.Posts)
				for _, adv := range s.Advisories {
					fmt.Fprintf(out, "    advisory [%s]: %s\n", adv.Kind, adv.Message)
				}
			}
			fmt.Fprintf(out, "Fetched %d posts, %d new, dataset now holds %d articles\n",
				report.Fetched, report.NewPosts, report.Total)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "crawl the last N days (default from config)")
	cmd.Flags().StringVar(&start, "start", "", "window start, YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "window end, YYYY-MM-DD")
	cmd.Flags().StringSliceVar(&sources, "sources", nil, "restrict the run to these sources")
	return cmd
}

func resolveRange(days int, start, end string, defaultDays int) (techwatch.DateRange, error) {
	if start != "" || end != "" {
		if days > 0 {
			return techwatch.DateRange{}, errors.New("--days and --start/--end are mutually exclusive")
		}
		s, err := time.Parse("2006-01-02", start)
		if err != nil {
			return techwatch.DateRange{}, fmt.Errorf("--start must be YYYY-MM-DD: %w", err)
		}
		e, err := time.Parse("2006-01-02", end)
		if err != nil {
			return techwatch.DateRange{}, fmt.Errorf("--end must be YYYY-MM-DD: %w", err)
		}
		return techwatch.NewDateRange(s, e)
	}
	if days <= 0 {
		days = defaultDays
	}
	return techwatch.LastNDays(days), nil
}
