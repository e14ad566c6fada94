// Package staging manages the local scratch area recordings pass through
// between download and publication.
package staging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"edfanon/internal/logging"
)

const (
	anonymizedSubdir = "anonymized"
	metadataSubdir   = "metadata"
)

// Area is a per-run staging directory. It is the only shared mutable
// filesystem resource in a run and is removed unconditionally at run end.
type Area struct {
	root   string
	logger *slog.Logger
}

// New returns an Area rooted at dir.
func New(dir string, logger *slog.Logger) *Area {
	return &Area{root: dir, logger: logging.NewComponentLogger(logger, "staging")}
}

// Root returns the staging root directory.
func (a *Area) Root() string { return a.root }

// Ensure creates the staging directory tree.
func (a *Area) Ensure() error {
	dirs := []string{
		a.root,
		filepath.Join(a.root, anonymizedSubdir),
		filepath.Join(a.root, metadataSubdir),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create staging directory %s: %w", dir, err)
		}
	}
	return nil
}

// DownloadPath returns the local path for a fetched recording.
func (a *Area) DownloadPath(name string) string {
	return filepath.Join(a.root, name)
}

// AnonymizedPath returns the local path for an anonymized output.
func (a *Area) AnonymizedPath(name string) string {
	return filepath.Join(a.root, anonymizedSubdir, name)
}

// MetadataPath returns the local path for an exported metadata document.
func (a *Area) MetadataPath(name string) string {
	return filepath.Join(a.root, metadataSubdir, name)
}

// AnonymizedDir returns the directory holding anonymized outputs.
func (a *Area) AnonymizedDir() string {
	return filepath.Join(a.root, anonymizedSubdir)
}

// MetadataDir returns the directory holding exported metadata documents.
func (a *Area) MetadataDir() string {
	return filepath.Join(a.root, metadataSubdir)
}

// Write stores body at the download path for name and returns that path.
func (a *Area) Write(name string, body []byte) (string, error) {
	path := a.DownloadPath(name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("stage %s: %w", name, err)
	}
	return path, nil
}

// RemoveAll deletes the staging area including any recordings that were
// downloaded but never processed. It runs on every exit path and only logs
// failures; cleanup must not mask the run's outcome.
func (a *Area) RemoveAll() {
	if a.root == "" {
		return
	}
	if err := os.RemoveAll(a.root); err != nil {
		a.logger.Warn("failed to remove staging area",
			logging.String("path", a.root),
			logging.Error(err),
			logging.String(logging.FieldEventType, "staging_cleanup_failed"),
		)
		return
	}
	a.logger.Debug("staging area removed", logging.String("path", a.root))
}
