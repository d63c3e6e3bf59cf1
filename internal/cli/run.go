package cli

import (
	"context"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ObiAU/airwatch/internal/config"
	"github.com/ObiAU/airwatch/internal/logging"
	"github.com/ObiAU/airwatch/internal/monitor"
	"github.com/ObiAU/airwatch/internal/notify"
	"github.com/ObiAU/airwatch/internal/storage"
	"github.com/ObiAU/airwatch/internal/telegram"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Monitor the configured channels and relay alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(cmd.Context(), opts)
		},
	}
}

func runMonitor(ctx context.Context, opts *rootOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	status := monitor.NewStatus(time.Now())
	logger, err := newLogger(cfg, status.LogHandler)
	if err != nil {
		return err
	}
	ctx = logging.With(ctx, logger)

	if err := cfg.Validate(true); err != nil {
		return err
	}
	logger.Info("starting airwatch", "config", cfg)

	var bot *telegram.Bot
	if cfg.Telegram.APIEndpoint != "" {
		bot, err = telegram.NewBotWithEndpoint(cfg.Telegram.Token, cfg.Telegram.APIEndpoint, &http.Client{Timeout: 90 * time.Second})
	} else {
		bot, err = telegram.NewBot(cfg.Telegram.Token)
	}
	if err != nil {
		return err
	}
	logger.Info("telegram bot authorized", "username", bot.Username())

	dispatcher := notify.New(bot, notify.Config{
		QueueSize:   cfg.Notify.QueueSize,
		Rate:        cfg.Notify.Rate,
		Burst:       cfg.Notify.Burst,
		MaxAttempts: cfg.Notify.MaxAttempts,
		MaxBackoff:  cfg.Notify.MaxBackoff,
		Target:      cfg.Telegram.Channel,
	})

	if err := config.DataDirReady(cfg.State.File); err != nil {
		return err
	}
	store := storage.NewStateFile(cfg.State.File)
	logger.Info("using state file", "path", store.Path())
	p, err := buildPipeline(ctx, cfg, store, dispatcher, nil)
	if err != nil {
		return err
	}

	source := telegram.NewSource(bot, cfg.Sources.Monitored, cfg.Telegram.WebhookURL)
	deps := monitor.Deps{
		Source:     source,
		Tables:     p.tables,
		Gate:       p.gate,
		Classifier: p.classifier,
		Machine:    p.machine,
		Status:     status,
		Dispatch:   dispatcher,
		Dedupe:     p.dedupe,
	}

	var events monitor.EventLister
	var journalWriter *monitor.JournalWriter
	if cfg.Journal.Path != "" {
		if err := config.DataDirReady(cfg.Journal.Path); err != nil {
			return err
		}
		journal, err := storage.OpenJournal(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer journal.Close()
		if cfg.Journal.Retention > 0 {
			n, err := journal.Prune(ctx, time.Now().Add(-cfg.Journal.Retention))
			if err != nil {
				logger.Warn("failed to prune event journal", logging.ErrAttr(err))
			} else if n > 0 {
				logger.Info("event journal pruned", "removed", n)
			}
		}
		journalWriter = monitor.NewJournalWriter(journal, 256)
		deps.Journal = journalWriter
		events = journal
	}

	mon := monitor.New(deps, monitor.Options{
		Backfill:       cfg.Backfill.Enabled,
		BackfillWindow: cfg.Backfill.Window,
	})

	var webhook http.Handler
	if cfg.Telegram.WebhookURL != "" {
		webhook = source.WebhookHandler()
	}
	srv := monitor.NewServer(cfg.Server.Port, mon, events, webhook)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx) })
	if journalWriter != nil {
		g.Go(func() error { return journalWriter.Run(gctx) })
	}
	if chatID, ok, _ := cfg.OperatorChatID(); ok {
		uptime := telegram.NewUptime(bot, chatID, cfg.Uptime.Interval)
		g.Go(func() error { return uptime.Run(gctx) })
	}
	g.Go(func() error { return mon.Run(gctx) })

	err = g.Wait()
	logger.Info("airwatch stopped")
	return err
}
