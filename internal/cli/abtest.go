package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stecom/seopulse/internal/abtest"
	"github.com/stecom/seopulse/internal/rank"
	"github.com/stecom/seopulse/internal/store"
)

func newABTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "abtest",
		Aliases: []string{"ab"},
		Short:   "Manage A/B tests",
	}
	cmd.AddCommand(
		newABCreateCmd(),
		newABListCmd(),
		newABAssignCmd(),
		newABTrackCmd(),
		newABReportCmd(),
		newABStopCmd(),
	)
	return cmd
}

type createOptions struct {
	id          string
	variants    string
	description string
	changeType  string
	selector    string
	split       float64
	duration    int
	file        string
}

func newABCreateCmd() *cobra.Command {
	var opts createOptions

	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a new A/B test",
		Long: `Create a new A/B test. Each variant replaces the element matched by
--selector with the variant name. Use --file for a full YAML definition.
Missing name or variants are asked for interactively.

Examples:
  seopulse abtest create "Hero headline" --variants "Ship Faster,Build Better" --selector h1
  seopulse abtest create --file hero-test.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				t   *store.ABTest
				err error
			)
			if opts.file != "" {
				t, err = loadTestFile(opts.file)
			} else {
				var name string
				if len(args) == 1 {
					name = args[0]
				}
				t, err = buildTest(name, opts)
			}
			if err != nil {
				return err
			}

			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.ctrl.CreateABTest(ctx, t); err != nil {
					return fmt.Errorf("failed to create test: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Created test '%s' (%s) with %d variants:\n", t.Name, t.ID, len(t.Variants))
				for _, v := range t.Variants {
					fmt.Fprintf(out, "  %s: %s\n", v.ID, v.Name)
				}
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.id, "id", "", "test id (default: generated)")
	f.StringVarP(&opts.variants, "variants", "v", "", "comma-separated variant names")
	f.StringVar(&opts.description, "description", "", "test description")
	f.StringVar(&opts.changeType, "change", string(store.ChangeTitle), "change type applied by each variant")
	f.StringVar(&opts.selector, "selector", "", "CSS selector of the element each variant changes")
	f.Float64Var(&opts.split, "split", 100, "percent of traffic in the test")
	f.IntVar(&opts.duration, "duration", 14, "planned duration in days")
	f.StringVarP(&opts.file, "file", "f", "", "YAML test definition")
	return cmd
}

// buildTest turns flag values into a test, prompting for anything missing.
func buildTest(name string, opts createOptions) (*store.ABTest, error) {
	var err error
	if name == "" {
		name, err = promptText("Test name", nonEmpty)
		if err != nil {
			return nil, err
		}
	}
	if opts.variants == "" {
		opts.variants, err = promptText("Variants (comma-separated)", nonEmpty)
		if err != nil {
			return nil, err
		}
	}

	names := splitNames(opts.variants)
	if len(names) < 2 {
		return nil, fmt.Errorf("need at least 2 variants. Example: --variants \"A,B\"")
	}

	t := &store.ABTest{
		ID:           opts.id,
		Name:         name,
		Description:  opts.description,
		TrafficSplit: opts.split,
		DurationDays: opts.duration,
		Active:       true,
		Metrics:      []string{"impressions", "clicks", "conversions"},
	}
	for _, n := range names {
		v := store.Variant{ID: rank.Slug(n), Name: n}
		if opts.selector != "" {
			v.Changes = []store.Change{{
				Type:     store.ChangeType(opts.changeType),
				Selector: opts.selector,
				Value:    n,
			}}
		}
		t.Variants = append(t.Variants, v)
	}
	return t, nil
}

func loadTestFile(path string) (*store.ABTest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read test file: %w", err)
	}
	t := &store.ABTest{Active: true}
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("failed to parse test file: %w", err)
	}
	return t, nil
}

func splitNames(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func nonEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("required")
	}
	return nil
}

func promptText(label string, validate promptui.ValidateFunc) (string, error) {
	prompt := promptui.Prompt{
		Label:    label,
		Validate: validate,
	}
	v, err := prompt.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			os.Exit(0)
		}
		return "", err
	}
	return strings.TrimSpace(v), nil
}

func newABListCmd() *cobra.Command {
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List A/B tests",
		Long:  `List A/B tests with their status and totals.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				var (
					tests []*store.ABTest
					err   error
				)
				if activeOnly {
					tests, err = a.ctrl.Tests.ActiveTests(ctx)
				} else {
					tests, err = a.ctrl.Tests.ListTests(ctx)
				}
				if err != nil {
					return fmt.Errorf("failed to list tests: %w", err)
				}
				return printTests(cmd.OutOrStdout(), tests)
			})
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only running tests")
	return cmd
}

func printTests(out io.Writer, tests []*store.ABTest) error {
	if len(tests) == 0 {
		fmt.Fprintln(out, "No tests yet.")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Create one with:")
		fmt.Fprintln(out, "  seopulse abtest create \"Hero headline\" --variants \"A,B\" --selector h1")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATE\tVARIANTS\tIMPRESSIONS\tCLICKS\tCONVERSIONS\tSTARTED")
	for _, t := range tests {
		var imp, clicks, conv int
		for _, v := range t.Variants {
			imp += v.Impressions
			clicks += v.Clicks
			conv += v.Conversions
		}
		state := "RUNNING"
		if !t.Active {
			state = "STOPPED"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			t.ID,
			t.Name,
			state,
			len(t.Variants),
			humanize.Comma(int64(imp)),
			humanize.Comma(int64(clicks)),
			humanize.Comma(int64(conv)),
			t.StartDate.Format("2006-01-02"),
		)
	}
	return w.Flush()
}

func newABAssignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assign <test-id> <user-id>",
		Short: "Show which variant a user sees",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				v, err := a.ctrl.ABTestVariant(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if v == nil {
					return fmt.Errorf("no variant available for test '%s'", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", v.Name, v.ID)
				return nil
			})
		},
	}
}

func newABTrackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "track <test-id> <variant-id> <event>",
		Short: "Record an impression, click or conversion",
		Long: `Record one event for a variant. Event is impression, click or conversion.

Example:
  seopulse abtest track hero ship-faster conversion`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			counter, ok := store.ParseCounter(args[2])
			if !ok {
				return fmt.Errorf("unknown event %q (impression, click or conversion)", args[2])
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				return a.ctrl.TrackABEvent(ctx, args[0], args[1], counter)
			})
		},
	}
}

func newABReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "report <test-id>",
		Aliases: []string{"results"},
		Short:   "Print the report of an A/B test",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				report, err := a.ctrl.ABTestReport(ctx, args[0])
				if err != nil {
					return err
				}
				if report == abtest.NotFoundReport {
					return fmt.Errorf("test '%s' not found", args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}
}

func newABStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <test-id>",
		Short: "Stop an A/B test",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				err := a.ctrl.StopABTest(ctx, args[0])
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("test '%s' not found", args[0])
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stopped test '%s'\n", args[0])
				return nil
			})
		},
	}
}
