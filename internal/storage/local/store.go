// Package local implements the output directory store on an afero filesystem.
package local

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ErrNotFound is returned by Get when the named file does not exist.
var ErrNotFound = errors.New("file not found")

// Config captures the parameters for the store.
type Config struct {
	// BaseDir is the output directory all documents are written to.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// Store reads and writes files inside a single output directory.
type Store struct {
	fs      afero.Fs
	baseDir string
}

// New validates the output directory, creating it when missing, and checks
// that it is writable.
func New(fs afero.Fs, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}

	info, err := fs.Stat(cfg.BaseDir)
	switch {
	case err != nil && os.IsNotExist(err):
		if mkErr := fs.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := afero.WriteFile(fs, testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := fs.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &Store{fs: fs, baseDir: cfg.BaseDir}, nil
}

// Dir returns the output directory.
func (s *Store) Dir() string {
	return s.baseDir
}

func (s *Store) resolve(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("name is required")
	}
	fullPath := filepath.Join(s.baseDir, name)
	cleanBaseDir := filepath.Clean(s.baseDir)
	if !strings.HasPrefix(filepath.Clean(fullPath), cleanBaseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	return fullPath, nil
}

// Put writes data to name atomically: the content goes to a temp file in the
// same directory which is then renamed over the target. Readers see either
// the old file or the new one, never a partial write.
func (s *Store) Put(name string, data []byte) (string, error) {
	fullPath, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(fullPath)
	if err := s.fs.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create parent directories: %w", err)
	}

	tmpFile, err := afero.TempFile(s.fs, dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = s.fs.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return "", fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := s.fs.Rename(tmpPath, fullPath); err != nil {
		return "", fmt.Errorf("failed to rename temp file to %s: %w", fullPath, err)
	}
	return fullPath, nil
}

// Get reads name. It returns ErrNotFound when the file does not exist.
func (s *Store) Get(name string) ([]byte, error) {
	fullPath, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read %s: %w", fullPath, err)
	}
	return data, nil
}

// Exists reports whether name exists in the output directory.
func (s *Store) Exists(name string) bool {
	fullPath, err := s.resolve(name)
	if err != nil {
		return false
	}
	ok, err := afero.Exists(s.fs, fullPath)
	return err == nil && ok
}
