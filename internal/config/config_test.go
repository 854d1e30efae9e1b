package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreate(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")

	t.Run("writes defaults when missing", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "config.toml")

		cfg, err := LoadOrCreate(path)
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)

		_, err = os.Stat(path)
		require.NoError(t, err)

		again, err := LoadOrCreate(path)
		require.NoError(t, err)
		assert.Equal(t, cfg, again)
	})

	t.Run("partial file keeps defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		content := "undo_window = \"5s\"\n\n[keys]\nadd = \"n\"\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		cfg, err := LoadOrCreate(path)
		require.NoError(t, err)
		assert.Equal(t, 5*time.Second, cfg.UndoDuration())
		assert.Equal(t, "n", cfg.Keys.Add)
		assert.Equal(t, "q", cfg.Keys.Quit)
		assert.Equal(t, "/data/simpletodo/todo.db", cfg.DBPath)
		assert.True(t, cfg.Reminders.Enabled)
	})

	t.Run("malformed toml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(path, []byte("db_path = "), 0o644))

		_, err := LoadOrCreate(path)
		assert.ErrorContains(t, err, "parse")
	})

	t.Run("invalid values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		content := "log_level = \"loud\"\nundo_window = \"-1s\"\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		_, err := LoadOrCreate(path)

		var fieldErrs criterio.FieldErrors
		require.ErrorAs(t, err, &fieldErrs)
		assert.Len(t, fieldErrs, 2)
	})
}

func TestValidate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, Default().Validate())
	})

	t.Run("unparseable undo window", func(t *testing.T) {
		cfg := Default()
		cfg.UndoWindow = "soon"

		err := cfg.Validate()

		var fieldErrs criterio.FieldErrors
		require.ErrorAs(t, err, &fieldErrs)
		require.Len(t, fieldErrs, 1)
		assert.Equal(t, "undo_window", fieldErrs[0].Field)
	})

	t.Run("duplicate key binding", func(t *testing.T) {
		cfg := Default()
		cfg.Keys.Delete = cfg.Keys.Add

		err := cfg.Validate()

		var fieldErrs criterio.FieldErrors
		require.ErrorAs(t, err, &fieldErrs)
		require.Len(t, fieldErrs, 1)
		assert.Equal(t, "keys.delete", fieldErrs[0].Field)
		assert.Contains(t, fieldErrs[0].Err.Error(), "keys.add")
	})

	t.Run("empty bindings", func(t *testing.T) {
		cfg := Default()
		cfg.Keys.Search = ""
		cfg.Keys.Cancel = ""

		err := cfg.Validate()

		var fieldErrs criterio.FieldErrors
		require.ErrorAs(t, err, &fieldErrs)
		assert.Len(t, fieldErrs, 2)
	})

	t.Run("empty db path", func(t *testing.T) {
		cfg := Default()
		cfg.DBPath = ""
		assert.Error(t, cfg.Validate())
	})
}

func TestUndoDuration_FallsBackToDefault(t *testing.T) {
	cfg := Config{UndoWindow: "nonsense"}
	assert.Equal(t, 3*time.Second, cfg.UndoDuration())
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	assert.Equal(t, "/cfg/simpletodo/config.toml", ResolveConfigPath())
}
