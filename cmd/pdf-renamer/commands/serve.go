package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/JR-coderli/SmartPdfRename/internal/config"
	"github.com/JR-coderli/SmartPdfRename/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the status API for an external UI",
	Long: `Start an HTTP server exposing:

  GET    /health   liveness
  GET    /files    tracked files and their status
  DELETE /files    forget tracked files
  POST   /ingest   {"location": "..."} track the PDFs in a location
  POST   /run      {"template", "sanitize", "provider", "dry_run"} start a run
  GET    /run      state of the current or last run`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	r, cfg, err := openRenamer(ctx, false, nil, func(cfg *config.Config) {
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}
	})
	if err != nil {
		return err
	}
	defer r.Close()

	logger := newLogger(cfg, false)
	api := server.New(r.Controller(), server.Config{
		Defaults:       cfg.Rename,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
	}, logger)
	defer api.Close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		return srv.Close()
	}

	logger.Info().Msg("Server stopped")
	return nil
}
