package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Bucket describes one S3-compatible storage tier.
type Bucket struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Region    string `toml:"region"`
	Bucket    string `toml:"bucket"`
	PathStyle bool   `toml:"path_style"`
}

// Storage groups the two storage tiers the pipeline talks to: the source
// tier holding personal data and the destination tier receiving anonymized
// outputs, metadata documents, and the mapping ledger.
type Storage struct {
	Source      Bucket `toml:"source"`
	Destination Bucket `toml:"destination"`
}

// Warehouse contains the Postgres connection and target table settings.
type Warehouse struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	Table    string `toml:"table"`
}

// Run contains per-deployment pipeline behavior.
type Run struct {
	WorkspaceID        string   `toml:"workspace_id"`
	Mode               string   `toml:"mode"`
	RedactFields       []string `toml:"redact_fields"`
	RedactReplacements []string `toml:"redact_replacements"`
	ExportMetadata     bool     `toml:"export_metadata"`
}

// Paths contains local directory configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	LogDir     string `toml:"log_dir"`
	JournalDir string `toml:"journal_dir"`
}

// Logging contains log output configuration.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the root configuration document.
type Config struct {
	Storage   Storage   `toml:"storage"`
	Warehouse Warehouse `toml:"warehouse"`
	Run       Run       `toml:"run"`
	Paths     Paths     `toml:"paths"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the location used when no --config flag is given.
func DefaultConfigPath() string {
	return "~/.config/edfanon/config.toml"
}

// SampleConfig returns the embedded annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// Load reads configuration from path, falling back to the default location
// when path is empty. It returns the parsed config, the resolved path, and
// whether a file existed there. A missing file yields defaults, not an error.
func Load(path string) (*Config, string, bool, error) {
	resolved := strings.TrimSpace(path)
	if resolved == "" {
		resolved = DefaultConfigPath()
	}
	resolved, err := ExpandPath(resolved)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if err := cfg.normalize(); err != nil {
				return nil, resolved, false, err
			}
			return &cfg, resolved, false, nil
		}
		return nil, resolved, false, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, resolved, true, fmt.Errorf("parse config %s: %w", resolved, err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, resolved, true, err
	}
	return &cfg, resolved, true, nil
}

// EnsureDirectories creates the staging, log, and journal directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.LogDir, c.Paths.JournalDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func (c *Config) normalize() error {
	c.Run.Mode = strings.ToLower(strings.TrimSpace(c.Run.Mode))
	c.Run.WorkspaceID = strings.TrimSpace(c.Run.WorkspaceID)
	c.Logging.Level = strings.TrimSpace(c.Logging.Level)
	c.Logging.Format = strings.TrimSpace(c.Logging.Format)

	for _, dir := range []*string{&c.Paths.StagingDir, &c.Paths.LogDir, &c.Paths.JournalDir} {
		expanded, err := ExpandPath(*dir)
		if err != nil {
			return err
		}
		*dir = expanded
	}
	return nil
}

// ExpandPath resolves a leading ~ against the current user's home directory.
func ExpandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" || !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}
