package cli

import (
	"github.com/spf13/cobra"
)

// Execute runs the command line.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "seopulse",
		Short: "seopulse - SEO performance monitoring, A/B testing and rank tracking",
		Long: `seopulse measures page performance, runs A/B tests on page content and
tracks search positions for keywords.

Settings come from flags, SEOPULSE_* environment variables and an optional
seopulse.yaml, in that order of precedence.

Running without a subcommand starts the server (same as 'seopulse serve').`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default: ./seopulse.yaml if present)")
	pf.String("store", "memory", "storage driver: memory, sqlite or redis")
	pf.String("db", "./seopulse.db", "sqlite database path")
	pf.String("redis-addr", "localhost:6379", "redis address")
	pf.String("sampler", "random", "performance sampler: random or http")
	pf.Uint64("seed", 0, "seed for the random sampler and ranker (0 picks one)")
	pf.String("base-url", "https://example.com", "site base URL used for ranking landing pages")
	pf.String("log-level", "info", "log level")
	pf.String("log-format", "console", "log format: console or json")

	serve := newServeCmd()
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	root.AddCommand(
		serve,
		newAuditCmd(),
		newReportCmd(),
		newRankingsCmd(),
		newABTestCmd(),
		newSnippetCmd(),
		newTokenCmd(),
	)
	return root
}
