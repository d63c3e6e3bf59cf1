package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ObiAU/airwatch/internal/config"
	"github.com/ObiAU/airwatch/internal/logging"
)

type rootOptions struct {
	configFile string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "airwatch",
		Short:         "Air raid alert monitor for Telegram channels",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (YAML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format: console or json")

	cmd.AddCommand(
		newRunCmd(opts),
		newClassifyCmd(opts),
		newReplayCmd(opts),
	)
	return cmd
}

func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logging.Default().Error("command failed", logging.ErrAttr(err))
		fmt.Fprintln(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}

// loadConfig reads the configuration and lets the log flags override it.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	return cfg, nil
}

// newLogger builds the process logger and installs it as the default.
// wrap, when set, decorates the handler.
func newLogger(cfg *config.Config, wrap func(slog.Handler) slog.Handler) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	logger := logging.New(os.Stderr, level, format)
	if wrap != nil {
		logger = slog.New(wrap(logger.Handler()))
	}
	logging.SetDefault(logger)
	return logger, nil
}
