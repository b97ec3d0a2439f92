package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStore keeps uploads on the local filesystem
type LocalStore struct {
	baseDir string
}

func NewLocalStore(baseDir string) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStore{baseDir: baseDir}, nil
}

// localPath roots p under baseDir; cleaning against "/" drops any ".." prefix
func (s *LocalStore) localPath(p string) string {
	return filepath.Join(s.baseDir, filepath.Clean(filepath.FromSlash("/"+p)))
}

// Exists reports whether a file or directory exists at path
func (s *LocalStore) Exists(path string) (bool, error) {
	localPath := s.localPath(path)
	_, err := os.Stat(localPath)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat file: %w", err)
	}
	return true, nil
}

// Create writes data to a new file at path, failing if it exists
func (s *LocalStore) Create(path string, data io.Reader) error {
	return s.write(path, data, os.O_WRONLY|os.O_CREATE|os.O_EXCL)
}

// Put writes data to path, truncating an existing file
func (s *LocalStore) Put(path string, data io.Reader) error {
	return s.write(path, data, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
}

// write gives the file its directory's permissions minus execute bits
func (s *LocalStore) write(path string, data io.Reader, flag int) error {
	localPath := s.localPath(path)

	dir := filepath.Dir(localPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(localPath, flag, 0644)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(file, data); err != nil {
		file.Close()
		os.Remove(localPath)
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	stat, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if err := os.Chmod(localPath, stat.Mode().Perm()&0666); err != nil {
		return fmt.Errorf("failed to set file permissions: %w", err)
	}

	return nil
}

// Delete removes the file at path
func (s *LocalStore) Delete(path string) error {
	localPath := s.localPath(path)

	if err := os.Remove(localPath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

// MkdirAll creates dir and its parents
func (s *LocalStore) MkdirAll(dir string) error {
	localPath := s.localPath(dir)
	if err := os.MkdirAll(localPath, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

// Close is a no-op for the local store
func (s *LocalStore) Close() error {
	return nil
}
