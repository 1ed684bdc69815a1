package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aadjones/kent-repertory-etl/internal/api"
	"github.com/aadjones/kent-repertory-etl/internal/metrics"
	"github.com/aadjones/kent-repertory-etl/internal/pipeline"
	"github.com/aadjones/kent-repertory-etl/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the job pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			if err := cfg.Validate(); err != nil {
				log.Error("invalid configuration", zap.Error(err))
				return err
			}

			st, err := store.Open(cfg.DatabasePath, log)
			if err != nil {
				return err
			}
			defer st.Close()

			m := metrics.New()
			conv := newConverter(cfg, m, log)

			// Initialize pipeline.
			orch := pipeline.NewOrchestrator(*cfg, conv, st, m, log)
			orch.Start(context.Background())

			// Initialize HTTP server.
			srv := api.NewServer(orch, st, m, log, *cfg)
			httpServer := &http.Server{
				Addr:         ":" + cfg.Port,
				Handler:      srv,
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 120 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			// Graceful shutdown.
			ctx := cmd.Context()
			done := make(chan struct{})
			go func() {
				defer close(done)
				<-ctx.Done()
				log.Info("shutting down...")

				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer shutdownCancel()
				httpServer.Shutdown(shutdownCtx)

				orch.Stop()
			}()

			log.Info("starting kentetl", zap.String("port", cfg.Port), zap.String("database", cfg.DatabasePath))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("server error", zap.Error(err))
				return err
			}
			<-done
			return nil
		},
	}
}
