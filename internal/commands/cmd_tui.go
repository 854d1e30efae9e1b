package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"simpletodo/internal/ui"
)

type TuiCmd struct {
	app *App
}

// NewTuiCmd creates a new tui command
func NewTuiCmd(app *App) *TuiCmd {
	return &TuiCmd{app: app}
}

// Run executes the TUI. Exported for use as default command.
func (cmd *TuiCmd) Run(ctx context.Context, _ *cli.Command) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("the interactive list needs a terminal; use 'todo list' to print tasks")
	}

	// Restore after the UI is listening so overdue reminders are shown.
	var start func(context.Context)
	if cmd.app.Config.Reminders.Enabled {
		start = cmd.restoreReminders
	}

	if err := ui.Run(ctx, cmd.app.Tasks, cmd.app.Bus, cmd.app.Config, start); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}

func (cmd *TuiCmd) restoreReminders(ctx context.Context) {
	n, err := cmd.app.Reminders.Restore(ctx, cmd.app.Store)
	if err != nil {
		log.Warn().Err(err).Msg("some reminders could not be restored")
	}
	log.Info().Int("count", n).Msg("reminders restored")
}
