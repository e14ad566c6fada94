package testsupport

import (
	"path/filepath"
	"testing"

	"edfanon/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Run.WorkspaceID = "ws-test"
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.JournalDir = filepath.Join(base, "journal")

	bucket := config.Bucket{
		Endpoint:  "http://127.0.0.1:9000",
		AccessKey: "test",
		SecretKey: "test",
		Region:    "us-east-1",
		PathStyle: true,
	}
	bucket.Bucket = "source-test"
	cfg.Storage.Source = bucket
	bucket.Bucket = "destination-test"
	cfg.Storage.Destination = bucket

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithWorkspace overrides the workspace identifier on the test config.
func WithWorkspace(id string) ConfigOption {
	return func(c *config.Config) {
		c.Run.WorkspaceID = id
	}
}

// WithMode sets the discovery mode on the test config.
func WithMode(mode string) ConfigOption {
	return func(c *config.Config) {
		c.Run.Mode = mode
	}
}
