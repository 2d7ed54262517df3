// Package repositories implements SQLite persistence for client state.
//
// Key Implementations:
//   - [StateRepository] : JSON values in the client_state key/value table
//   - [CredentialRepository] : the persisted OAuth record under [AuthKey], used as an auth.Store
//   - [HistoryRepository] : now-playing history in play_history
//
// Reads of a missing key return nil without an error so callers can treat "never written" and
// "deleted" the same way.
package repositories
