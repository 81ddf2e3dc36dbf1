package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"punktlich/internal/dashboard"
	"punktlich/internal/dispatch"
)

var (
	serveAddr          string
	serveSecureCookies bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the punctuality dashboard",
	Long: `Serve the dashboard over the gold and silver layers. The DuckDB file is
opened read-only per request so a concurrent pipeline run keeps the write lock.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		addr := cfg.DashboardAddr
		override(cmd.Flags(), "addr", &addr, serveAddr)

		store := dashboard.NewCachedStore(dashboard.NewDuckStore(cfg.DuckDBPath), cfg.CacheTTL)
		trigger := dispatch.NewGitHub(cfg.GitHubAPIURL, cfg.GitHubRepo, cfg.GitHubToken, nil)
		if cfg.CSRFKey == "" {
			log.Printf("CSRF_KEY not set; ingestion form is unprotected")
		}
		dash := dashboard.New(store, trigger, dashboard.Options{
			Title:         cfg.StationName,
			CSRFKey:       cfg.CSRFKey,
			SecureCookies: serveSecureCookies,
			Metrics:       mcol,
		})

		serveMetrics(ctx)

		log.Printf("Server listening addr=%s db=%s", addr, cfg.DuckDBPath)
		srv := &http.Server{
			Addr:              addr,
			Handler:           dash.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		errc := make(chan error, 1)
		go func() { errc <- srv.ListenAndServe() }()

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		log.Println("shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides DASHBOARD_ADDR)")
	serveCmd.Flags().BoolVar(&serveSecureCookies, "secure-cookies", false, "mark the CSRF cookie Secure (HTTPS deployments)")
	rootCmd.AddCommand(serveCmd)
}
