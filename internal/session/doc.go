// Package session persists the mapping from chat user to the agent's
// continuation token (the agent's session ID).
//
// # Record
//
// A Record maps a user identity to at most one token. A missing entry means
// the user has no active conversation. Tokens are opaque: they are stored
// and handed back to the agent verbatim.
//
// # Store
//
// Every backend implements the same whole-document contract:
//
//   - Load reads the complete mapping. An absent document is an empty Record.
//   - Save replaces the complete mapping. Readers observe either the previous
//     mapping or the new one, never a mixture.
//   - Clear removes one user's entry and is a no-op when there is none.
//
// Backends:
//
//   - FileStore: a flat JSON object on disk, replaced by write-then-rename.
//   - SQLiteStore: one row per user, replaced inside a transaction.
//   - MemoryStore: a map, for tests and ephemeral runs.
//
// # Concurrency
//
// Load-modify-Save sequences from two turns are not serialized against each
// other; the last Save wins. A single user is expected to talk serially, and
// the relay refuses overlapping turns for the same user in one process.
package session
