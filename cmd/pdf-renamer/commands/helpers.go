package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/JR-coderli/SmartPdfRename/internal/config"
	"github.com/JR-coderli/SmartPdfRename/internal/observability"
	"github.com/JR-coderli/SmartPdfRename/pkg/renamer"
)

// loadConfig reads the config file named by --config, or CONFIG_PATH.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newLogger writes to stderr. Interactive commands default to warn so log
// lines do not break the progress display.
func newLogger(cfg *config.Config, interactive bool) *observability.Logger {
	level := cfg.Observability.LogLevel
	switch {
	case logLevel != "":
		level = logLevel
	case verbose:
		level = "debug"
	case interactive:
		level = "warn"
	}

	return observability.NewLogger(observability.Config{
		Level:   level,
		Format:  cfg.Observability.LogFormat,
		Output:  os.Stderr,
		Service: "pdf-renamer",
		NoColor: noColor,
	})
}

// openRenamer loads configuration and assembles a Renamer.
func openRenamer(ctx context.Context, interactive bool, sink renamer.EventSink, adjust func(*config.Config)) (*renamer.Renamer, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if adjust != nil {
		adjust(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}

	logger := newLogger(cfg, interactive)
	r, err := renamer.New(ctx, cfg, renamer.Options{Logger: logger, Sink: sink})
	if err != nil {
		return nil, nil, err
	}
	return r, cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
