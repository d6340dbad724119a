package cli

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"habit-tracker/internal/config"
	"habit-tracker/internal/logger"
	"habit-tracker/internal/model"
	"habit-tracker/internal/repository"
	"habit-tracker/internal/service"
)

// App wires the storage shared by every command.
type App struct {
	cfg config.Config

	db    *gorm.DB
	Users *repository.UserRepository
	Store *service.HabitStore

	closers []func() error
}

// OpenApp opens the user database and the configured habit storage.
func OpenApp(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	app := &App{cfg: cfg, db: db, Users: repository.NewUserRepository(db)}
	app.closers = append(app.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	blobs, err := app.openBlobStore(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Store = service.NewHabitStore(blobs, service.WithLocation(cfg.Location))

	logger.Info("storage ready", "backend", cfg.StorageBackend, "database", cfg.DatabaseURL)
	return app, nil
}

func (a *App) openBlobStore(ctx context.Context) (service.BlobStore, error) {
	switch a.cfg.StorageBackend {
	case config.BackendNATS:
		store, err := repository.NewNATSBlobStore(ctx, a.cfg.NATSURL, a.cfg.NATSBucket)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case config.BackendMemory:
		return repository.NewMemoryBlobStore(), nil
	default:
		return repository.NewBlobRepository(a.db), nil
	}
}

// Owners returns the owner ids of every known user.
func (a *App) Owners(ctx context.Context) ([]string, error) {
	users, err := a.Users.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	owners := make([]string, 0, len(users))
	for _, u := range users {
		owners = append(owners, u.OwnerID())
	}
	return owners, nil
}

// offlineNotifier grants nothing, so a tracker built on it never schedules.
type offlineNotifier struct{}

func (offlineNotifier) RequestPermission(context.Context, string) (bool, error) { return false, nil }

func (offlineNotifier) Notify(context.Context, model.Reminder) error { return nil }

// OfflineTracker returns a tracker for commands that run beside the bot. Its
// reminders stay local to this process; the serve process schedules from
// storage on its next start.
func (a *App) OfflineTracker() *service.Tracker {
	reminders := service.NewReminderScheduler(offlineNotifier{}, service.NewSchedulerService(a.cfg.Location))
	return service.NewTracker(a.Store, reminders)
}

// Close releases storage in reverse opening order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
