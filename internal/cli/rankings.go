package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/stecom/seopulse/internal/store"
)

func newRankingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rankings",
		Short: "Track and query keyword rankings",
	}
	cmd.AddCommand(
		newRankingsTrackCmd(),
		newRankingsTopCmd(),
		newRankingsMoversCmd(),
		newRankingsHistoryCmd(),
	)
	return cmd
}

func newRankingsTrackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "track [keyword]...",
		Short: "Record the current position of keywords",
		Long: `Record the current search position of each keyword. Keywords given here
are registered for tracking. Without arguments every registered keyword
(and site.keywords) is tracked.

Example:
  seopulse rankings track "seo audit" "local seo"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				var (
					rows []store.RankTrackingData
					err  error
				)
				if len(args) > 0 {
					rows, err = a.ctrl.TrackRankings(ctx, args)
				} else {
					for _, kw := range a.cfg.Site.Keywords {
						if err := a.ctrl.Ranks.AddKeyword(ctx, kw); err != nil {
							return err
						}
					}
					rows, err = a.ctrl.Ranks.Track(ctx, nil)
				}
				if err != nil {
					return fmt.Errorf("failed to track rankings: %w", err)
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No keywords to track. Pass keywords or set site.keywords.")
					return nil
				}
				return printRankings(cmd.OutOrStdout(), rows)
			})
		},
	}
}

func newRankingsTopCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "top",
		Short: "List keywords ranked in the top ten",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				rows, err := a.ctrl.Ranks.TopPerformers(ctx, limit)
				if err != nil {
					return err
				}
				return printRankings(cmd.OutOrStdout(), rows)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum rows")
	return cmd
}

func newRankingsMoversCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "movers",
		Short: "List the largest position changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				rows, err := a.ctrl.Ranks.BiggestMovers(ctx, days)
				if err != nil {
					return err
				}
				return printRankings(cmd.OutOrStdout(), rows)
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "look-back window in days")
	return cmd
}

func newRankingsHistoryCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "history <keyword>",
		Short: "Show the position history of a keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				rows, err := a.ctrl.Ranks.History(ctx, args[0], days)
				if err != nil {
					return err
				}
				return printRankings(cmd.OutOrStdout(), rows)
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "look-back window in days")
	return cmd
}

func printRankings(out io.Writer, rows []store.RankTrackingData) error {
	if len(rows) == 0 {
		fmt.Fprintln(out, "No ranking data.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEYWORD\tPOSITION\tCHANGE\tVOLUME\tCPC\tDATE")
	for _, r := range rows {
		change := fmt.Sprint(r.Change)
		if r.Change > 0 {
			change = "+" + change
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t€%.2f\t%s\n",
			r.Keyword,
			r.Position,
			change,
			humanize.Comma(int64(r.SearchVolume)),
			r.CPC,
			r.Date.Format("2006-01-02 15:04"),
		)
	}
	return w.Flush()
}
