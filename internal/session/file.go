// ABOUTME: FileStore keeps the session record as a flat JSON document on disk
// ABOUTME: Saves go through a synced temp file renamed over the destination

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore implements Store on a single JSON file of the form
// {"user": "token", ...}.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the file at path. The file and its
// parent directory are created on the first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the whole document. Entries whose value is not a string are
// skipped so documents written by newer versions still load.
func (s *FileStore) Load(ctx context.Context) (Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("reading session file: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Record{}, fmt.Errorf("parsing session file %s: %w", s.path, err)
	}

	record := make(Record, len(raw))
	for user, value := range raw {
		var token string
		if json.Unmarshal(value, &token) == nil {
			record[user] = token
		}
	}
	return record, nil
}

// Save replaces the document with record.
func (s *FileStore) Save(ctx context.Context, record Record) error {
	if record == nil {
		record = Record{}
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling sessions: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}
	return writeFileAtomic(s.path, data, 0600)
}

// Clear removes one user's entry.
func (s *FileStore) Clear(ctx context.Context, user string) error {
	return clearWith(ctx, s, user)
}

// writeFileAtomic writes data next to path and renames it into place, so a
// reader sees either the old file or the complete new one. The temp file is
// removed on every failure path.
func writeFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)

	file, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary session file: %w", err)
	}
	tmpPath := file.Name()
	defer func() {
		if err != nil {
			file.Close()
			os.Remove(tmpPath)
		}
	}()

	// Write, sync, close, rename: in that order.
	if _, err = file.Write(data); err != nil {
		return fmt.Errorf("writing temporary session file: %w", err)
	}
	if err = file.Chmod(perm); err != nil {
		return fmt.Errorf("setting session file mode: %w", err)
	}
	if err = file.Sync(); err != nil {
		return fmt.Errorf("syncing temporary session file: %w", err)
	}
	if err = file.Close(); err != nil {
		return fmt.Errorf("closing temporary session file: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming session file into place: %w", err)
	}

	// Make the rename durable.
	if parent, openErr := os.Open(dir); openErr == nil {
		parent.Sync()
		parent.Close()
	}
	return nil
}
