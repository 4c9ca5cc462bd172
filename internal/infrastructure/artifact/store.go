package artifact

import (
	"fmt"
	"os"
	"path/filepath"

	"zenpress/internal/ports"
)

const (
	htmlFileName       = "page.html"
	screenshotFileName = "page.png"
)

// Store keeps raw page artifacts on disk under one directory per article
// id. Artifacts are written once by the fetch stage and read-only after.
type Store struct {
	root string
}

var _ ports.ArtifactStore = (*Store)(nil)

// NewStore creates the root directory if needed.
func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("artifact dir is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &Store{root: root}, nil
}

// WriteHTML stores the raw page bytes for an article id.
func (s *Store) WriteHTML(id string, html []byte) error {
	dir := filepath.Join(s.root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir for %s: %w", id, err)
	}
	if err := os.WriteFile(filepath.Join(dir, htmlFileName), html, 0o644); err != nil {
		return fmt.Errorf("write html artifact for %s: %w", id, err)
	}
	return nil
}

// ReadHTML returns the stored page bytes for an article id.
func (s *Store) ReadHTML(id string) ([]byte, error) {
	raw, err := os.ReadFile(filepath.Join(s.root, id, htmlFileName))
	if err != nil {
		return nil, fmt.Errorf("read html artifact for %s: %w", id, err)
	}
	return raw, nil
}

// HasHTML reports whether a page artifact exists for the id.
func (s *Store) HasHTML(id string) bool {
	_, err := os.Stat(filepath.Join(s.root, id, htmlFileName))
	return err == nil
}

// ScreenshotPath returns where the screenshot for the id should be
// written; the capture itself is best effort and may never happen.
func (s *Store) ScreenshotPath(id string) string {
	return filepath.Join(s.root, id, screenshotFileName)
}
