package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hay-kot/criterio"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
)

const (
	AppName               = "simpletodo"
	DefaultConfigFileName = "config.toml"
	DefaultDBName         = "todo.db"
	DefaultUndoWindow     = "3s"
)

type Keymap struct {
	Quit     string `toml:"quit"`
	Add      string `toml:"add"`
	Up       string `toml:"up"`
	Down     string `toml:"down"`
	MoveUp   string `toml:"move_up"`
	MoveDown string `toml:"move_down"`
	Delete   string `toml:"delete"`
	Undo     string `toml:"undo"`
	Edit     string `toml:"edit"`
	Due      string `toml:"due"`
	Search   string `toml:"search"`
	Confirm  string `toml:"confirm"`
	Cancel   string `toml:"cancel"`
}

type Reminders struct {
	Enabled bool `toml:"enabled"`
}

type Config struct {
	DBPath     string    `toml:"db_path"`
	LogLevel   string    `toml:"log_level"`
	LogFile    string    `toml:"log_file"`
	UndoWindow string    `toml:"undo_window"`
	Reminders  Reminders `toml:"reminders"`
	Keys       Keymap    `toml:"keys"`
}

// ResolveConfigPath returns the config file path under XDG_CONFIG_HOME.
func ResolveConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, AppName, DefaultConfigFileName)
}

// DefaultDataDir returns the data directory under XDG_DATA_HOME.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, AppName)
}

// LoadOrCreate reads the config at path, writing the defaults there first
// when the file does not exist. Missing fields keep their default values.
func LoadOrCreate(path string) (Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := write(path, cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(DefaultDataDir(), DefaultDBName)
	}
	if cfg.UndoWindow == "" {
		cfg.UndoWindow = DefaultUndoWindow
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func write(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// UndoDuration returns the parsed undo window. Validate guarantees it parses.
func (c Config) UndoDuration() time.Duration {
	d, err := time.ParseDuration(c.UndoWindow)
	if err != nil {
		d, _ = time.ParseDuration(DefaultUndoWindow)
	}
	return d
}

// Validate checks field values and key bindings.
func (c Config) Validate() error {
	return criterio.ValidateStruct(
		criterio.Run("db_path", c.DBPath, notEmpty),
		criterio.Run("log_level", c.LogLevel, validLevel),
		criterio.Run("undo_window", c.UndoWindow, validUndoWindow),
		c.validateKeys(),
	)
}

func (c Config) validateKeys() error {
	var errs criterio.FieldErrorsBuilder

	bindings := []struct {
		field string
		key   string
	}{
		{"keys.quit", c.Keys.Quit},
		{"keys.add", c.Keys.Add},
		{"keys.up", c.Keys.Up},
		{"keys.down", c.Keys.Down},
		{"keys.move_up", c.Keys.MoveUp},
		{"keys.move_down", c.Keys.MoveDown},
		{"keys.delete", c.Keys.Delete},
		{"keys.undo", c.Keys.Undo},
		{"keys.edit", c.Keys.Edit},
		{"keys.due", c.Keys.Due},
		{"keys.search", c.Keys.Search},
	}
	seen := make(map[string]string, len(bindings))
	for _, b := range bindings {
		if b.key == "" {
			errs = errs.Append(b.field, errors.New("must not be empty"))
			continue
		}
		if other, ok := seen[b.key]; ok {
			errs = errs.Append(b.field, fmt.Errorf("%q is already bound to %s", b.key, other))
			continue
		}
		seen[b.key] = b.field
	}
	if c.Keys.Confirm == "" {
		errs = errs.Append("keys.confirm", errors.New("must not be empty"))
	}
	if c.Keys.Cancel == "" {
		errs = errs.Append("keys.cancel", errors.New("must not be empty"))
	}
	return errs.ToError()
}

func notEmpty(v string) error {
	if v == "" {
		return errors.New("must not be empty")
	}
	return nil
}

func validLevel(v string) error {
	if _, err := zerolog.ParseLevel(v); err != nil {
		return fmt.Errorf("unknown log level %q", v)
	}
	return nil
}

func validUndoWindow(v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid duration %q", v)
	}
	if d <= 0 {
		return fmt.Errorf("must be positive, got %s", v)
	}
	return nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DBPath:     filepath.Join(DefaultDataDir(), DefaultDBName),
		LogLevel:   "info",
		UndoWindow: DefaultUndoWindow,
		Reminders:  Reminders{Enabled: true},
		Keys: Keymap{
			Quit:     "q",
			Add:      "a",
			Up:       "k",
			Down:     "j",
			MoveUp:   "K",
			MoveDown: "J",
			Delete:   "d",
			Undo:     "u",
			Edit:     "e",
			Due:      "t",
			Search:   "/",
			Confirm:  "enter",
			Cancel:   "esc",
		},
	}
}
