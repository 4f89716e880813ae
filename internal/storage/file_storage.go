package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// FileStore is the file storage collaborator. Store returns an opaque URL
// (a path relative to the store's base) that callers persist on the record;
// Fetch resolves it back to bytes. Both are safe to retry.
type FileStore interface {
	Store(content []byte, name, folder string) (string, error)
	Fetch(url string) ([]byte, error)
	Delete(url string) error
}

// LocalFileStore implements FileStore on the local filesystem.
type LocalFileStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalFileStore creates a local file store rooted at baseDir.
func NewLocalFileStore(baseDir string, logger *zap.Logger) *LocalFileStore {
	return &LocalFileStore{
		baseDir: baseDir,
		logger:  logger,
	}
}

// Store writes content under folder/name and returns the relative URL.
// Parent directories are created as needed; writing the same URL twice
// overwrites, which keeps retries idempotent.
func (s *LocalFileStore) Store(content []byte, name, folder string) (string, error) {
	url := filepath.ToSlash(filepath.Join(folder, name))
	fullPath, err := s.resolve(url)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		s.logger.Error("Failed to create storage directories",
			zap.String("path", filepath.Dir(fullPath)),
			zap.Error(err))
		return "", fmt.Errorf("failed to create directories: %w", err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write file",
			zap.String("url", url),
			zap.Error(err))
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug("File stored",
		zap.String("url", url),
		zap.Int("size", len(content)))
	return url, nil
}

// Fetch reads the content behind a URL previously returned by Store.
func (s *LocalFileStore) Fetch(url string) ([]byte, error) {
	fullPath, err := s.resolve(url)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", url, err)
	}
	return content, nil
}

// Delete removes the file behind a URL. Missing files are not an error.
func (s *LocalFileStore) Delete(url string) error {
	fullPath, err := s.resolve(url)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file %s: %w", url, err)
	}
	return nil
}

// resolve maps a URL onto the base directory and rejects traversal outside it.
func (s *LocalFileStore) resolve(url string) (string, error) {
	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(url))

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return "", fmt.Errorf("path escapes storage base: %s", url)
	}
	return absPath, nil
}
