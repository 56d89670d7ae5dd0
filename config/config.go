// Package config persists the operator's session settings: the selected
// instrument, subcommand, parameter values, port and baud rate.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"

	"github.com/labshed/gpibctl/catalog"
)

// Session is the saved application state.
type Session struct {
	Instrument string   `toml:"instrument"`
	Subcommand string   `toml:"subcommand"`
	Params     []string `toml:"params"`
	Port       string   `toml:"port"`
	BaudRate   int      `toml:"baud"`
}

// DefaultPath determines the default config file path based on the
// operating system.
func DefaultPath() (string, error) {
	var configDir string
	var err error

	switch runtime.GOOS {
	case "windows":
		// Use AppData directory for Windows
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "gpibctl")
	default:
		// Linux/macOS: use home directory
		configDir, err = os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine user home directory: %w", err)
		}
	}

	return filepath.Join(configDir, ".gpibctl"), nil
}

// Save writes s to path as TOML, creating parent directories as needed.
func Save(path string, s Session) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(s); err != nil {
		return fmt.Errorf("failed to write TOML config to %s: %w", path, err)
	}
	return nil
}

// Load reads a session from path and validates it against the catalog.
// A saved instrument or subcommand that is no longer in the catalog is an
// error; empty selections are fine.
func Load(path string, cat *catalog.Catalog) (Session, error) {
	var s Session
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return Session{}, fmt.Errorf("failed to parse TOML config at %s: %w", path, err)
	}

	if s.BaudRate < 0 {
		return Session{}, fmt.Errorf("config has invalid baud rate %d", s.BaudRate)
	}

	if s.Instrument != "" {
		ins, ok := cat.Instrument(s.Instrument)
		if !ok {
			return Session{}, fmt.Errorf("config instrument %q not found in catalog", s.Instrument)
		}
		if s.Subcommand != "" {
			if _, ok := ins.Subcommand(s.Subcommand); !ok {
				return Session{}, fmt.Errorf("config subcommand %q not found under instrument %q",
					s.Subcommand, s.Instrument)
			}
		}
	} else if s.Subcommand != "" {
		return Session{}, fmt.Errorf("config names subcommand %q without an instrument", s.Subcommand)
	}

	return s, nil
}
