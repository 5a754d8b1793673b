// Package storage persists agent-local data: the last derived state
// snapshot (so the diagnostics API can answer immediately after a
// restart) and an audit history of remote commands.
package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a key is not found
var ErrNotFound = errors.New("key not found")

// CommandEntry represents a single remote command in the audit history
type CommandEntry struct {
	Command   string    `json:"command"`
	Timestamp time.Time `json:"timestamp"`
}

// Storage is the interface for agent-local persistence
type Storage interface {
	// SetStateJSON stores the latest derived state snapshot.
	SetStateJSON(v interface{}) error

	// GetStateJSON retrieves the latest derived state snapshot.
	// Returns ErrNotFound if no snapshot has been stored yet.
	GetStateJSON(v interface{}) error

	// SaveCommand appends a remote command to the audit history.
	SaveCommand(command string, timestamp time.Time) error

	// GetCommandHistory returns up to limit commands, ordered from
	// oldest to newest.
	GetCommandHistory(limit int) ([]CommandEntry, error)

	// TrimCommandHistory keeps only the last maxCommands in history.
	TrimCommandHistory(maxCommands int) error

	// Close closes the storage
	Close() error
}
