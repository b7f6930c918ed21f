package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stecom/seopulse/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the seopulse HTTP server.

The server provides:
  - The performance API at /api/seo/performance
  - A/B test management, assignment and event beacons under /api/seo/abtests
  - Ranking queries under /api/seo/rankings
  - The browser client at /ab.js
  - Dashboard, health check and Prometheus metrics

Example:
  seopulse serve --port 8080 --store sqlite`,
		RunE: runServe,
	}

	cmd.Flags().IntP("port", "p", 8080, "port to listen on")
	cmd.Flags().String("token", "", "dashboard token (default: random per start)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := server.New(a.ctrl, a.store, server.Options{
			Port:            a.cfg.Server.Port,
			ReadTimeout:     a.cfg.Server.ReadTimeout,
			WriteTimeout:    a.cfg.Server.WriteTimeout,
			Token:           a.cfg.Server.Token,
			TokenFile:       tokenFilePath(a.cfg),
			DefaultURL:      a.cfg.Site.DefaultURL,
			DefaultKeywords: a.cfg.Site.Keywords,
			Metrics:         a.metrics,
			Logger:          a.logger,
		})

		out := cmd.OutOrStdout()
		fmt.Fprintln(out)
		fmt.Fprintf(out, "seopulse running on http://localhost:%d\n", a.cfg.Server.Port)
		fmt.Fprintf(out, "Dashboard: http://localhost:%d/dashboard?token=%s\n", a.cfg.Server.Port, srv.Token())
		fmt.Fprintf(out, "Client script: <script src=\"http://localhost:%d/ab.js\" defer></script>\n", a.cfg.Server.Port)
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Press Ctrl+C to stop")

		return srv.Start(ctx)
	})
}
