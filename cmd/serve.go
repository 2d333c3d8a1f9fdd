package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verdantiq/esg-cli/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "serve: open store")
		}
		defer st.Close()

		imp, err := newImporter(st)
		if err != nil {
			return eris.Wrap(err, "serve: build pipeline")
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           server.New(cfg.Server, imp, st).Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("serving", zap.Int("port", cfg.Server.Port))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return eris.Wrap(err, "serve: listen")
		case <-ctx.Done():
		}

		zap.L().Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "serve: shutdown")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
