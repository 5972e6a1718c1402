// ABOUTME: Store interface and Record type for per-user continuation tokens
// ABOUTME: Backends share whole-document load/save/clear semantics

package session

import (
	"context"
	"maps"
)

// Record maps a user identity to the agent's continuation token.
type Record map[string]string

// Clone returns an independent copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	maps.Copy(out, r)
	return out
}

// Store persists a Record as a single document.
type Store interface {
	// Load returns the full mapping. A missing document yields an empty
	// Record and no error. If the document exists but cannot be read, Load
	// returns an empty Record together with the error.
	Load(ctx context.Context) (Record, error)

	// Save replaces the full mapping atomically.
	Save(ctx context.Context, record Record) error

	// Clear removes the entry for user if present.
	Clear(ctx context.Context, user string) error
}

// clearWith implements Clear as load, delete, save for document backends.
// Nothing is written when the user has no entry.
func clearWith(ctx context.Context, s Store, user string) error {
	record, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if _, ok := record[user]; !ok {
		return nil
	}
	delete(record, user)
	return s.Save(ctx, record)
}
