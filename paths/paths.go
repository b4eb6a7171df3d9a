// Package paths resolves the directories spinrun reads and writes.
//
// SPINRUN_HOME, when set, holds everything. Otherwise two layouts are
// supported:
//
//   - Flat: everything under ~/.spinrun/ (used when that directory exists, or
//     when no XDG variable is set).
//   - XDG: properties under $XDG_CONFIG_HOME/spinrun, logs under
//     $XDG_STATE_HOME/spinrun/logs.
//
// The flat layout wins when ~/.spinrun/ already exists so that an upgrade never
// strands a user's property file.
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const appDir = "spinrun"

// HomeEnv names the variable that overrides both layouts.
const HomeEnv = "SPINRUN_HOME"

// PropertiesFileName is the default name of the property file.
const PropertiesFileName = "spinrun.yaml"

var (
	cacheMu sync.Mutex
	cached  *layout
)

// layout is the resolved pair of directories.
type layout struct {
	config string
	state  string
	flat   bool
}

func flatLayout(dir string) *layout {
	return &layout{config: dir, state: dir, flat: true}
}

// xdgDir returns $env/spinrun, or home/fallback.../spinrun when env is unset.
func xdgDir(env, home string, fallback ...string) string {
	base := os.Getenv(env)
	if base == "" {
		base = filepath.Join(append([]string{home}, fallback...)...)
	}
	return filepath.Join(base, appDir)
}

func current() (*layout, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if cached != nil {
		return cached, nil
	}

	if dir := os.Getenv(HomeEnv); dir != "" {
		cached = flatLayout(dir)
		return cached, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("no home directory: %w", err)
	}

	dot := filepath.Join(home, "."+appDir)
	info, statErr := os.Stat(dot)
	switch {
	case statErr == nil && info.IsDir():
		cached = flatLayout(dot)
	case os.Getenv("XDG_CONFIG_HOME") == "" && os.Getenv("XDG_STATE_HOME") == "":
		cached = flatLayout(dot)
	default:
		cached = &layout{
			config: xdgDir("XDG_CONFIG_HOME", home, ".config"),
			state:  xdgDir("XDG_STATE_HOME", home, ".local", "state"),
		}
	}
	return cached, nil
}

// ConfigDir returns the directory holding the property file.
func ConfigDir() (string, error) {
	l, err := current()
	if err != nil {
		return "", err
	}
	return l.config, nil
}

// StateDir returns the directory for runtime state.
func StateDir() (string, error) {
	l, err := current()
	if err != nil {
		return "", err
	}
	return l.state, nil
}

// ConfigFilePath returns the default property file.
func ConfigFilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, PropertiesFileName), nil
}

// LogsDir returns <state dir>/logs.
func LogsDir() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs"), nil
}

// ModelDir returns the absolute directory containing model. Verifier runs
// use it as their working directory, so generated files such as pan.c land
// next to the model.
func ModelDir(model string) (string, error) {
	if model == "" {
		return "", errors.New("empty model path")
	}
	abs, err := filepath.Abs(model)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", model, err)
	}
	return filepath.Dir(abs), nil
}

// IsFlatLayout reports whether config and state share one directory
// (~/.spinrun/ or SPINRUN_HOME).
func IsFlatLayout() bool {
	l, err := current()
	return err != nil || l.flat
}

// Reset forgets the resolved layout. Tests only.
func Reset() {
	cacheMu.Lock()
	cached = nil
	cacheMu.Unlock()
}
