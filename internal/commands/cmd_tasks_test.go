package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"simpletodo/internal/config"
	"simpletodo/internal/tasklist"
)

func newTestApp(t *testing.T) *App {
	t.Helper()

	cfg := config.Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "todo.db")

	app, err := NewApp(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	return app
}

func runCmd(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	root := NewTaskCmd(app).Register(&cli.Command{Name: "todo", Writer: &buf})
	err := root.Run(context.Background(), append([]string{"todo"}, args...))
	return buf.String(), err
}

func mustRun(t *testing.T, app *App, args ...string) string {
	t.Helper()
	out, err := runCmd(t, app, args...)
	require.NoError(t, err)
	return out
}

func TestTaskCmd_AddAndList(t *testing.T) {
	app := newTestApp(t)

	assert.Equal(t, "added 1. A\n", mustRun(t, app, "add", "A"))
	mustRun(t, app, "add", "B")
	mustRun(t, app, "add", "--due", "2030-01-02 10:00", "C")

	out := mustRun(t, app, "list")
	assert.Equal(t, "1. A\n2. B\n3. C  (2030-01-02 10:00)\n", out)

	c, err := app.Tasks.At(2)
	require.NoError(t, err)
	assert.Equal(t, []int64{c.AlarmKey()}, app.Reminders.Pending())

	stored, err := app.Store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for i, task := range stored {
		assert.Equal(t, i, task.Position)
	}
}

func TestTaskCmd_AddErrors(t *testing.T) {
	app := newTestApp(t)

	_, err := runCmd(t, app, "add", "--due", "someday", "A")
	assert.ErrorContains(t, err, "invalid --due")

	_, err = runCmd(t, app, "add")
	assert.Error(t, err)

	_, err = runCmd(t, app, "add", "   ")
	assert.Error(t, err)

	assert.Zero(t, app.Tasks.Len())
}

func TestTaskCmd_Move(t *testing.T) {
	app := newTestApp(t)
	for _, title := range []string{"A", "B", "C"} {
		mustRun(t, app, "add", title)
	}

	out := mustRun(t, app, "mv", "1", "3")
	assert.Equal(t, "1. B\n2. C\n3. A\n", out)

	stored, err := app.Store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "B", stored[0].Title)
	assert.Equal(t, "A", stored[2].Title)

	_, err = runCmd(t, app, "mv", "1", "9")
	assert.ErrorIs(t, err, tasklist.ErrIndexOutOfRange)
}

func TestTaskCmd_Remove(t *testing.T) {
	app := newTestApp(t)
	for _, title := range []string{"A", "B", "C"} {
		mustRun(t, app, "add", title)
	}

	assert.Equal(t, "removed B\n", mustRun(t, app, "rm", "2"))
	assert.Empty(t, app.Tasks.Pending())

	stored, err := app.Store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "C", stored[1].Title)
	assert.Equal(t, 1, stored[1].Position)

	_, err = runCmd(t, app, "rm", "7")
	assert.ErrorIs(t, err, tasklist.ErrIndexOutOfRange)

	_, err = runCmd(t, app, "rm", "zero")
	assert.ErrorContains(t, err, "invalid index")
}

func TestTaskCmd_SearchJSON(t *testing.T) {
	app := newTestApp(t)
	for _, title := range []string{"apple pie", "banana", "Apple juice"} {
		mustRun(t, app, "add", title)
	}

	out := mustRun(t, app, "search", "--json", "APPLE")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)

	var first, second taskLine
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "apple pie", first.Title)
	assert.Equal(t, "Apple juice", second.Title)
	assert.Empty(t, first.Due)
}

func TestTaskCmd_Clear(t *testing.T) {
	app := newTestApp(t)
	mustRun(t, app, "add", "A")
	mustRun(t, app, "add", "--due", "2030-01-02", "B")
	require.Len(t, app.Reminders.Pending(), 1)

	assert.Equal(t, "cleared 2 task(s)\n", mustRun(t, app, "clear"))

	n, err := app.Store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, app.Tasks.Len())
	assert.Empty(t, app.Reminders.Pending())
}

func TestNewApp_RemindersDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "todo.db")
	cfg.Reminders.Enabled = false

	app, err := NewApp(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = app.Close(context.Background()) }()

	_, err = runCmd(t, app, "add", "--due", "2030-01-02 10:00", "A")
	require.NoError(t, err)
	assert.Empty(t, app.Reminders.Pending())
}
