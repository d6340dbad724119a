package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"habit-tracker/internal/bot"
	"habit-tracker/internal/config"
	"habit-tracker/internal/logger"
	"habit-tracker/internal/service"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot and the reminder scheduler",
		Long: `Run the Telegram bot and the reminder scheduler until interrupted.

Reminders fire inside this process. On start every stored reminder is
scheduled again; on shutdown all of them are cancelled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts.cfg)
		},
	}
	return cmd
}

func runServe(ctx context.Context, cfg config.Config) error {
	if err := cfg.RequireTelegram(); err != nil {
		return err
	}

	app, err := OpenApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	api, err := bot.NewAPI(cfg.TelegramToken)
	if err != nil {
		return err
	}

	scheduler := service.NewSchedulerService(cfg.Location)
	reminders := service.NewReminderScheduler(bot.NewNotifier(api, app.Users), scheduler)
	tracker := service.NewTracker(app.Store, reminders)

	owners, err := app.Owners(ctx)
	if err != nil {
		return err
	}
	live := restoreReminders(ctx, tracker, owners)
	logger.Info("reminders restored", "users", len(owners), "live", live)

	scheduler.Start()
	defer func() {
		reminders.CancelAll()
		scheduler.Stop()
	}()

	logger.Info("habit tracker bot started", "timezone", cfg.Location.String())
	if err := bot.New(api, app.Users, tracker).Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bot stopped with error: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// restoreReminders schedules the stored reminders of every owner and returns
// how many are live. One owner's failure does not stop the others.
func restoreReminders(ctx context.Context, tracker *service.Tracker, owners []string) int {
	total := 0
	for _, owner := range owners {
		live, err := tracker.RestoreReminders(ctx, owner)
		total += live
		if err != nil {
			logger.Warn("restore reminders", "owner", owner, "err", err)
		}
	}
	return total
}
