package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"melody-planner/internal/api"
	"melody-planner/internal/bot"
	"melody-planner/internal/service"
)

func serveCmd() *cobra.Command {
	var noBot bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, reminder scheduler, sync loop and Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(noBot)
		},
	}
	cmd.Flags().BoolVar(&noBot, "no-bot", false, "do not connect to Telegram even when a token is set")
	return cmd
}

func runServe(noBot bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() {
		if err := a.shutdown(); err != nil {
			a.logger.Error("shutdown", "err", err)
		}
	}()
	if err := a.load(ctx); err != nil {
		return err
	}
	cfg, logger := a.cfg, a.logger

	inbox := service.NewInbox(0)
	digest := service.NewDigestService(a.store)

	var (
		telegramBot *bot.Bot
		notifier    service.Notifier
	)
	if cfg.TelegramToken != "" && !noBot {
		telegramBot, err = bot.New(cfg.TelegramToken, a.store, digest, a.sync, a.cache, cfg.TelegramChatID, logger)
		if err != nil {
			return fmt.Errorf("bot: %w", err)
		}
		notifier = telegramBot
	}
	reminders := service.NewReminderService(a.store, a.cache, inbox, notifier, cfg.ReminderWindow.Duration, logger)

	scheduler := service.NewSchedulerService(time.Local, logger)
	if _, err := scheduler.ScheduleInterval("reminders", cfg.PollInterval.Duration, func(ctx context.Context) error {
		reminders.Check(ctx, time.Now())
		return nil
	}); err != nil {
		return fmt.Errorf("schedule reminders: %w", err)
	}
	if cfg.SignedIn() {
		if _, err := scheduler.ScheduleInterval("remote poll", cfg.RemotePollInterval.Duration, a.sync.Poll); err != nil {
			return fmt.Errorf("schedule remote poll: %w", err)
		}
	}
	if telegramBot != nil && cfg.DigestTime != "" {
		if _, err := scheduler.ScheduleDaily("daily report", cfg.DigestTime, telegramBot.SendDailyReport); err != nil {
			return fmt.Errorf("schedule daily report: %w", err)
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	// One check at startup so reminders due right now do not wait a full tick.
	reminders.Check(ctx, time.Now())

	g, gctx := errgroup.WithContext(ctx)
	if cfg.HTTPAddr != "" {
		server := api.NewServer(a.store, a.sync, inbox, logger)
		g.Go(func() error { return server.Run(gctx, cfg.HTTPAddr) })
	}
	if telegramBot != nil {
		g.Go(func() error { return telegramBot.Start(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	logger.Info("melody started", "workspace", a.store.Snapshot().Name, "sync", a.sync.Status().Badge)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
