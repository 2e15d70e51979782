// Package credentials persists the OAuth token set on disk. The file is
// shared with the external authorization callback listener, so writes must
// be atomic and readers must tolerate a writer mid-flight.
package credentials

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/bankwatch/bankwatch/internal/errors"
	"github.com/bankwatch/bankwatch/internal/logging"
	"github.com/bankwatch/bankwatch/internal/models"
)

// Store is a file-backed credential store.
type Store struct {
	path   string
	logger *logging.Logger
}

// NewStore creates a store for the given credential file path.
func NewStore(path string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &Store{path: path, logger: logger}
}

// Path returns the credential file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the stored credential. A missing file, malformed JSON, or a
// partially written record all degrade to (nil, nil): corrupted storage is
// treated identically to "no credential yet", never as a crash.
func (s *Store) Load() (*models.Credential, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &errors.ErrFileRead{Path: s.path, Err: err}
	}

	var cred models.Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		s.logger.Warn("credential file corrupted, treating as absent", "path", s.path)
		return nil, nil
	}
	if cred.AccessToken == "" {
		s.logger.Warn("credential file incomplete, treating as absent", "path", s.path)
		return nil, nil
	}

	return &cred, nil
}

// Save atomically replaces the stored credential. The record is written to
// a temp file in the same directory and renamed over the target, so a
// concurrent reader never observes a half-written record.
func (s *Store) Save(cred *models.Credential) error {
	dir := filepath.Dir(s.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return &errors.ErrDirectoryCreate{Path: dir, Err: err}
		}
	}

	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".token-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return err
	}

	s.logger.Debug("credential saved", "path", s.path)
	return nil
}
