package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrInvalidConfig is wrapped by every error Validate returns.
var ErrInvalidConfig = errors.New("invalid config")

// Database types understood by the history store.
const (
	DatabaseSQLite = "sqlite"
	DatabaseMemory = "memory"
)

// Config represents the main configuration for fsrb.
type Config struct {
	HostID   string         `toml:"host_id"`
	BaseDir  string         `toml:"base_dir"`
	LogDir   string         `toml:"log_dir"`
	Staging  StagingConfig  `toml:"staging"`
	Commit   CommitConfig   `toml:"commit"`
	Database DatabaseConfig `toml:"database"`
}

// StagingConfig controls where staging copies of pending changes are kept.
type StagingConfig struct {
	StagingDir string `toml:"staging_dir,omitempty"` // empty means the system temp dir
}

// CommitConfig tunes how commits are executed.
type CommitConfig struct {
	MaxWorkers int `toml:"max_workers"` // items applied concurrently per phase; 0 means unbounded
}

// DatabaseConfig represents configuration for the commit history database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// NewConfig creates a new Config with the provided values and default paths.
func NewConfig(hostID, baseDir string) *Config {
	return &Config{
		HostID:  hostID,
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Staging: StagingConfig{
			StagingDir: filepath.Join(baseDir, "staging"),
		},
		Database: DatabaseConfig{
			Type:    DatabaseSQLite,
			DataDir: filepath.Join(baseDir, "db"),
		},
	}
}

// Validate reports every problem with cfg at once. A config that passes can
// be handed to the app without further checks.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.HostID == "" {
		invalid("host_id is required")
	}
	if c.BaseDir != "" && !filepath.IsAbs(c.BaseDir) {
		invalid("base_dir %q must be absolute", c.BaseDir)
	}
	if c.LogDir != "" && !filepath.IsAbs(c.LogDir) {
		invalid("log_dir %q must be absolute", c.LogDir)
	}
	if dir := c.Staging.StagingDir; dir != "" && !filepath.IsAbs(dir) {
		invalid("staging.staging_dir %q must be absolute", dir)
	}
	if c.Commit.MaxWorkers < 0 {
		invalid("commit.max_workers must not be negative, got %d", c.Commit.MaxWorkers)
	}

	switch c.Database.Type {
	case DatabaseSQLite:
		if c.Database.DataDir == "" {
			invalid("database.data_dir is required for type %q", DatabaseSQLite)
		} else if !filepath.IsAbs(c.Database.DataDir) {
			invalid("database.data_dir %q must be absolute", c.Database.DataDir)
		}
	case DatabaseMemory:
	default:
		invalid("database.type %q is not one of %q, %q", c.Database.Type, DatabaseSQLite, DatabaseMemory)
	}

	return errors.Join(errs...)
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader. Keys the Config does not
// know are rejected so a misspelt setting is not silently ignored.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads and validates a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// writeNewFile writes cfg to path, which must not exist yet. A partly
// written file is removed again.
func writeNewFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	m := &Manager{}
	if err := errors.Join(m.Write(f, cfg), f.Close()); err != nil {
		return errors.Join(fmt.Errorf("writing config to %s: %w", path, err), os.Remove(path))
	}
	return nil
}

// Init validates cfg and writes it to a new config file at path. An
// existing file is never overwritten.
func Init(path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	if err := writeNewFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
