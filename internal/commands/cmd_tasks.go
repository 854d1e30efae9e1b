package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"simpletodo/internal/storage"
	"simpletodo/internal/ui"
)

// TaskCmd implements the scripting commands that operate on the task list
// without starting the terminal UI.
type TaskCmd struct {
	app *App

	// add flags
	addDue string

	// list/search flags
	jsonOut bool
}

// NewTaskCmd creates the task commands.
func NewTaskCmd(app *App) *TaskCmd {
	return &TaskCmd{app: app}
}

// Register adds the task commands to the application.
func (cmd *TaskCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands,
		cmd.addCmd(),
		cmd.listCmd(),
		cmd.searchCmd(),
		cmd.rmCmd(),
		cmd.mvCmd(),
		cmd.clearCmd(),
	)
	return app
}

func (cmd *TaskCmd) jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:        "json",
		Usage:       "print tasks as JSON lines",
		Destination: &cmd.jsonOut,
	}
}

func (cmd *TaskCmd) addCmd() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Append a task to the end of the list",
		UsageText: "todo add [--due \"YYYY-MM-DD HH:MM\"] <title>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "due",
				Usage:       "due date for a reminder (YYYY-MM-DD HH:MM or YYYY-MM-DD)",
				Destination: &cmd.addDue,
			},
		},
		Action: cmd.runAdd,
	}
}

func (cmd *TaskCmd) listCmd() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List tasks in display order",
		Flags:   []cli.Flag{cmd.jsonFlag()},
		Action:  cmd.runList,
	}
}

func (cmd *TaskCmd) searchCmd() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "List tasks whose title contains the text, ignoring case",
		UsageText: "todo search <text>",
		Flags:     []cli.Flag{cmd.jsonFlag()},
		Action:    cmd.runSearch,
	}
}

func (cmd *TaskCmd) rmCmd() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "Delete the task at a list index (1-based)",
		UsageText: "todo rm <index>",
		Action:    cmd.runRm,
	}
}

func (cmd *TaskCmd) mvCmd() *cli.Command {
	return &cli.Command{
		Name:      "mv",
		Usage:     "Move a task to another list index (1-based)",
		UsageText: "todo mv <from> <to>",
		Action:    cmd.runMv,
	}
}

func (cmd *TaskCmd) clearCmd() *cli.Command {
	return &cli.Command{
		Name:   "clear",
		Usage:  "Delete every task and cancel its reminder",
		Action: cmd.runClear,
	}
}

func (cmd *TaskCmd) runAdd(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("usage: %s", c.UsageText)
	}
	due, err := ui.ParseDue(cmd.addDue, time.Local)
	if err != nil {
		return fmt.Errorf("invalid --due: %w", err)
	}

	t, err := cmd.app.Tasks.Add(ctx, c.Args().First(), due)
	if err != nil {
		return fmt.Errorf("add task: %w", err)
	}
	if err := cmd.app.Tasks.Flush(ctx); err != nil {
		return err
	}

	log.Debug().Int64("task_id", t.ID).Msg("task added from cli")
	_, err = fmt.Fprintf(c.Root().Writer, "added %d. %s\n", t.Position+1, t.Title)
	return err
}

func (cmd *TaskCmd) runList(_ context.Context, c *cli.Command) error {
	return cmd.writeTasks(c.Root().Writer, cmd.app.Tasks.Tasks())
}

func (cmd *TaskCmd) runSearch(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("usage: %s", c.UsageText)
	}
	found, err := cmd.app.Tasks.Search(ctx, c.Args().First())
	if err != nil {
		return err
	}
	return cmd.writeTasks(c.Root().Writer, found)
}

func (cmd *TaskCmd) runRm(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("usage: %s", c.UsageText)
	}
	index, err := parseIndex(c.Args().First())
	if err != nil {
		return err
	}

	p, err := cmd.app.Tasks.Remove(index)
	if err != nil {
		return err
	}
	// No one is around to undo, so make it permanent now.
	if _, err := cmd.app.Tasks.CommitAll(ctx); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if err := cmd.app.Tasks.Flush(ctx); err != nil {
		return err
	}

	_, err = fmt.Fprintf(c.Root().Writer, "removed %s\n", p.Task.Title)
	return err
}

func (cmd *TaskCmd) runMv(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 2 {
		return fmt.Errorf("usage: %s", c.UsageText)
	}
	from, err := parseIndex(c.Args().Get(0))
	if err != nil {
		return err
	}
	to, err := parseIndex(c.Args().Get(1))
	if err != nil {
		return err
	}

	if err := cmd.app.Tasks.Move(from, to); err != nil {
		return err
	}
	if err := cmd.app.Tasks.Flush(ctx); err != nil {
		return err
	}
	return cmd.writeTasks(c.Root().Writer, cmd.app.Tasks.Tasks())
}

func (cmd *TaskCmd) runClear(ctx context.Context, c *cli.Command) error {
	tasks := cmd.app.Tasks.Tasks()
	for _, t := range tasks {
		if t.HasReminder() {
			cmd.app.Reminders.Cancel(t.AlarmKey())
		}
	}
	if err := cmd.app.Store.DeleteAll(ctx); err != nil {
		return err
	}
	if err := cmd.app.Tasks.Reconcile(ctx); err != nil {
		return err
	}

	_, err := fmt.Fprintf(c.Root().Writer, "cleared %d task(s)\n", len(tasks))
	return err
}

type taskLine struct {
	Index int    `json:"index"`
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Due   string `json:"due,omitempty"`
}

func (cmd *TaskCmd) writeTasks(w io.Writer, tasks []storage.Task) error {
	now := time.Now()
	enc := json.NewEncoder(w)
	for i, t := range tasks {
		line := taskLine{Index: i + 1, ID: t.ID, Title: t.Title}
		if cmd.jsonOut {
			if t.HasReminder() {
				line.Due = t.Due().Format(time.RFC3339)
			}
			if err := enc.Encode(line); err != nil {
				return err
			}
			continue
		}

		text := fmt.Sprintf("%d. %s", line.Index, line.Title)
		if t.HasReminder() {
			text += "  (" + ui.FormatDue(t.Date, now) + ")"
		}
		if _, err := fmt.Fprintln(w, text); err != nil {
			return err
		}
	}
	return nil
}

// parseIndex converts a 1-based index argument to a 0-based list index.
func parseIndex(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid index %q: want a number from 1", arg)
	}
	return n - 1, nil
}
