package payment

import (
	"fmt"
	"os"
	"path/filepath"
)

// Storage defines the interface for receipt file storage
type Storage interface {
	// Save saves a file and returns the name it was stored under
	Save(filename string, data []byte) (string, error)

	// Get retrieves a file by stored name
	Get(name string) ([]byte, error)

	// Delete removes a file
	Delete(name string) error
}

// LocalStorage implements the Storage interface using the local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// Save saves a file to local storage
func (l *LocalStorage) Save(filename string, data []byte) (string, error) {
	// Stored names never carry directories; Base guards against a crafted
	// upload filename escaping the storage root.
	filename = filepath.Base(filename)
	if err := os.WriteFile(filepath.Join(l.basePath, filename), data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return filename, nil
}

// Get retrieves a file from local storage
func (l *LocalStorage) Get(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.basePath, filepath.Base(name)))
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes a file from local storage
func (l *LocalStorage) Delete(name string) error {
	if err := os.Remove(filepath.Join(l.basePath, filepath.Base(name))); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}
