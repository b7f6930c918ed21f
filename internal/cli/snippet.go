package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/stecom/seopulse/internal/abtest"
	"github.com/stecom/seopulse/internal/snippets"
	"github.com/stecom/seopulse/internal/store"
)

func newSnippetCmd() *cobra.Command {
	var (
		framework string
		serverURL string
	)

	cmd := &cobra.Command{
		Use:   "snippet <test-id>",
		Short: "Generate integration code for a test",
		Long: `Generate copy-paste-ready code for running an A/B test on your site.

Once a test is stopped with a winner, the snippet is static markup for the
winning variant instead.

Example:
  seopulse snippet hero --framework nextjs --server https://ab.example.com`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				t, err := a.ctrl.Tests.GetTest(ctx, args[0])
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("test not found: %s", args[0])
				}
				if err != nil {
					return err
				}

				fw := snippets.Framework(framework)
				if framework == "" {
					if fw, err = promptFramework(); err != nil {
						return err
					}
				}
				url := serverURL
				if url == "" {
					url = fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)
				}

				cfg := snippets.Config{Test: t, ServerURL: url}
				if !t.Active {
					cfg.Winner = abtest.Winner(t.Variants)
				}
				files, err := snippets.Generate(fw, cfg)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				for _, f := range files {
					fmt.Fprintf(out, "// %s\n", f.Filename)
					fmt.Fprintln(out, f.Content)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&framework, "framework", "", "html, nextjs, react or vue")
	cmd.Flags().StringVar(&serverURL, "server", "", "public URL of the seopulse server")
	return cmd
}

func promptFramework() (snippets.Framework, error) {
	prompt := promptui.Select{
		Label: "Your framework",
		Items: snippets.Frameworks,
		Size:  len(snippets.Frameworks),
	}
	idx, _, err := prompt.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			os.Exit(0)
		}
		return "", err
	}
	return snippets.Frameworks[idx], nil
}
