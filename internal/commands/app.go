package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"simpletodo/internal/config"
	"simpletodo/internal/notify"
	"simpletodo/internal/reminder"
	"simpletodo/internal/storage"
	"simpletodo/internal/tasklist"
)

// App holds the services shared by every command.
type App struct {
	Config    config.Config
	Store     *storage.Store
	Tasks     *tasklist.Controller
	Reminders *reminder.Scheduler
	Bus       *notify.Bus
}

// NewApp opens the task store and wires the controller, reminder scheduler
// and notification bus around it. The task list is loaded before returning.
func NewApp(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	bus := notify.NewBus(log, 0)
	scheduler := reminder.New(bus, reminder.WithLogger(log))

	var rem tasklist.Reminders
	if cfg.Reminders.Enabled {
		rem = scheduler
	}
	ctrl := tasklist.New(store, rem,
		tasklist.WithLogger(log),
		tasklist.WithUndoWindow(cfg.UndoDuration()),
		tasklist.WithWarner(bus),
	)

	app := &App{
		Config:    cfg,
		Store:     store,
		Tasks:     ctrl,
		Reminders: scheduler,
		Bus:       bus,
	}
	if err := ctrl.Load(ctx); err != nil {
		_ = app.Close(ctx)
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	return app, nil
}

// Close commits pending deletions, stops reminder timers and closes the
// store, in that order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Tasks != nil {
		errs = append(errs, a.Tasks.Close(ctx))
	}
	if a.Reminders != nil {
		a.Reminders.Stop()
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
