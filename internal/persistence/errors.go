package persistence

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors surfaced to callers. The core never retries on its own
// beyond the bounded busy-retry wrapper; retry policy belongs to the caller.
var (
	// ErrNotFound reports that a requested id is absent. Polling scans
	// (DueTasks, List*) return empty results instead.
	ErrNotFound = errors.New("not found")

	// ErrConflictingClaim reports that another poller claimed the task in
	// this window, or that the task is no longer due. Benign; the caller
	// should move on, not retry the same task.
	ErrConflictingClaim = errors.New("conflicting claim")

	// ErrStoreUnavailable reports a transient store failure (lock
	// contention that outlasted the busy-retry budget). Callers may retry
	// with backoff.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// MigrationError reports a schema revision that could not be applied. The
// store is left at the last fully applied revision. Fatal at startup.
type MigrationError struct {
	Version int
	Name    string
	Err     error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("apply schema revision %d (%s): %v", e.Version, e.Name, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// isSQLiteBusy checks whether an error is a SQLite BUSY (5) or LOCKED (6)
// error. The error string is inspected so non-CGO code paths avoid a direct
// dependency on the sqlite3 package.
func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "(5)") || // SQLITE_BUSY
		strings.Contains(msg, "(6)") // SQLITE_LOCKED
}

// mapStoreErr folds exhausted lock contention into ErrStoreUnavailable so
// callers can match on the taxonomy instead of driver strings.
func mapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if isSQLiteBusy(err) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}
