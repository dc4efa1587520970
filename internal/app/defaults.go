package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Defaults holds the locations fsrb uses when the config does not name them.
type Defaults struct {
	ConfigPath string // config file
	BaseDir    string // data root: history database and staging area
	LogDir     string
}

// GetDefaults resolves the default locations. For each of them an explicit
// FSRB_* variable wins over the XDG base directory, which wins over the home
// directory fallback:
//
//	config: FSRB_CONFIG_PATH, $XDG_CONFIG_HOME/fsrb/config.toml, ~/.config/fsrb/config.toml
//	data:   FSRB_HOME, $XDG_DATA_HOME/fsrb, ~/.local/share/fsrb
//
// Relative XDG values are ignored, as the XDG spec requires.
func GetDefaults() (Defaults, error) {
	configPath, err := resolve("FSRB_CONFIG_PATH", "XDG_CONFIG_HOME",
		[]string{".config"}, "fsrb", "config.toml")
	if err != nil {
		return Defaults{}, err
	}

	baseDir, err := resolve("FSRB_HOME", "XDG_DATA_HOME",
		[]string{".local", "share"}, "fsrb")
	if err != nil {
		return Defaults{}, err
	}

	return Defaults{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
	}, nil
}

// resolve returns the value of override if set. Otherwise it joins rel onto
// the XDG directory named by xdg, or onto home/fallback when that is unset
// or relative.
func resolve(override, xdg string, fallback []string, rel ...string) (string, error) {
	if path := os.Getenv(override); path != "" {
		return path, nil
	}

	if dir := os.Getenv(xdg); dir != "" && filepath.IsAbs(dir) {
		return filepath.Join(append([]string{dir}, rel...)...), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	parts := append([]string{homeDir}, fallback...)
	return filepath.Join(append(parts, rel...)...), nil
}
