package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrUpsertConflict is returned once a summary write has exhausted its retries.
var ErrUpsertConflict = errors.New("summary upsert conflict")

const (
	defaultUpsertAttempts = 5
	retryBaseDelay        = 10 * time.Millisecond
	retryMaxDelay         = 500 * time.Millisecond
)

func sqliteCode(err error) (int, bool) {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code(), true
	}
	return 0, false
}

// isTransient reports whether err is a lock or uniqueness race that a
// retried idempotent write will resolve.
func isTransient(err error) bool {
	code, ok := sqliteCode(err)
	if !ok {
		return false
	}
	if isUniqueViolation(err) || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
		return true
	}
	switch code & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

func isUniqueViolation(err error) bool {
	return isConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE, "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return isConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY, "FOREIGN KEY constraint failed")
}

// isConstraint matches the extended code, falling back to the message when
// only the primary SQLITE_CONSTRAINT code is reported.
func isConstraint(err error, extended int, text string) bool {
	code, ok := sqliteCode(err)
	if !ok {
		return false
	}
	if code == extended {
		return true
	}
	return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(err.Error(), text)
}

// backoff returns the delay before the given retry, doubling from
// retryBaseDelay and capped at retryMaxDelay.
func backoff(attempt int) time.Duration {
	if attempt >= 16 {
		return retryMaxDelay
	}
	d := retryBaseDelay << attempt
	if d > retryMaxDelay {
		return retryMaxDelay
	}
	return d
}

// retryTransient runs fn up to attempts times while it fails with a
// transient error. Other errors are returned immediately.
func retryTransient(ctx context.Context, attempts int, op string, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(); err == nil || !isTransient(err) {
			return err
		}
		slog.WarnContext(ctx, "Transient storage conflict, retrying",
			"operation", op,
			"attempt", attempt+1,
			"error", err)
		if attempt == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(attempt)):
		}
	}
	return fmt.Errorf("%w: %s after %d attempts: %v", ErrUpsertConflict, op, attempts, err)
}
