package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stecom/seopulse/internal/config"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Show dashboard URL with access token",
		Long: `Show the dashboard URL with the access token of the running server.

Use this when you've scrolled past the startup message or need to
share the dashboard link.

Example:
  seopulse token`,
		RunE: runToken,
	}
	cmd.Flags().IntP("port", "p", 8080, "port the server listens on")
	return cmd
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	token := cfg.Server.Token
	if token == "" {
		data, err := os.ReadFile(tokenFilePath(cfg))
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("no server running. Start with: seopulse serve")
			}
			return fmt.Errorf("failed to read token file: %w", err)
		}
		token = strings.TrimSpace(string(data))
	}
	if token == "" {
		return fmt.Errorf("token file is empty. Restart the server with: seopulse serve")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Dashboard: http://localhost:%d/dashboard?token=%s\n", cfg.Server.Port, token)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Tip: Bookmark this URL or run 'seopulse token' anytime.")
	return nil
}
