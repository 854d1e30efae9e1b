package commands

import (
	"path/filepath"

	"simpletodo/internal/config"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string
	DBPath     string
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	return config.ResolveConfigPath()
}

// DefaultLogFile returns <data-dir>/todo.log.
func DefaultLogFile() string {
	return filepath.Join(config.DefaultDataDir(), "todo.log")
}
