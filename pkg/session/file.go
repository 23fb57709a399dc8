package session

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ipass-go/ipass/internal/log"
)

const (
	defaultDirectory = ".ipass"
	defaultFilename  = "config.json"
)

// DefaultPath returns ~/.ipass/config.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not locate home directory: %w", err)
	}
	return filepath.Join(home, defaultDirectory, defaultFilename), nil
}

// FileStore keeps the session record in a JSON file. Reads take a shared advisory lock and writes
// take an exclusive one, so the daemon clearing the record on shutdown cannot interleave with a
// concurrent `auth`.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// ImportFromFile reads a Record from disk.
func ImportFromFile(filename string) (*Record, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if err := lockFile(file, false); err != nil {
		return nil, fmt.Errorf("could not lock %s: %w", filename, err)
	}
	defer unlockFile(file)

	return Import(file)
}

// ExportToFile writes r to disk, creating the parent directory if needed.
func (r *Record) ExportToFile(filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0700); err != nil {
		return err
	}
	file, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := lockFile(file, true); err != nil {
		return fmt.Errorf("could not lock %s: %w", filename, err)
	}
	defer unlockFile(file)

	// Truncate only after acquiring the lock so readers never observe a partial record.
	if err := file.Truncate(0); err != nil {
		return err
	}
	if err := r.Export(file); err != nil {
		return err
	}
	return file.Sync()
}

func (s *FileStore) Load() (*Record, error) {
	log.Debug("Loading session from %s", s.Path)
	record, err := ImportFromFile(s.Path)
	// An empty file holds no session.
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, io.EOF) {
		return nil, notAuthenticated()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if !record.Authenticated() {
		return nil, notAuthenticated()
	}
	return record, nil
}

func (s *FileStore) Save(record *Record) error {
	log.Debug("Saving session to %s", s.Path)
	if err := record.ExportToFile(s.Path); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *FileStore) Clear() error {
	return s.Save(&Record{})
}
