package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAuditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit <url>...",
		Short: "Measure pages and print their performance reports",
		Long: `Take one performance measurement of each URL and print the report over
its stored history.

Use --sampler http to measure the live page instead of simulated values.

Example:
  seopulse audit https://example.com --sampler http`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				for i, url := range args {
					report, err := a.ctrl.RunPerformanceAudit(ctx, url)
					if err != nil {
						return fmt.Errorf("audit %s: %w", url, err)
					}
					if i > 0 {
						fmt.Fprintln(out, strings.Repeat("-", 60))
					}
					fmt.Fprintln(out, report)
				}
				return nil
			})
		},
	}
}

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [url]",
		Short: "Print the comprehensive SEO report",
		Long: `Print the performance report for a URL, the ranking report for keywords
and the number of running A/B tests.

The URL and keywords default to site.default_url and site.keywords.

Example:
  seopulse report https://example.com --keywords "seo audit,local seo"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				url := a.cfg.Site.DefaultURL
				if len(args) == 1 {
					url = args[0]
				}
				report, err := a.ctrl.ComprehensiveReport(ctx, url, a.cfg.Site.Keywords)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}
	cmd.Flags().StringSlice("keywords", nil, "comma-separated keywords to include")
	return cmd
}
