package storage

import "io"

// Store persists upload files under paths relative to the upload root
type Store interface {
	Exists(path string) (bool, error)
	// Create writes a new file and fails with an error matching
	// fs.ErrExist when path is already taken
	Create(path string, data io.Reader) error
	// Put writes path, replacing any existing file
	Put(path string, data io.Reader) error
	Delete(path string) error
	MkdirAll(dir string) error
	Close() error
}

// Ensure both stores implement the interface
var _ Store = (*FTPStore)(nil)
var _ Store = (*LocalStore)(nil)
