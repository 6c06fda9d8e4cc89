package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"oshikatsu/internal/core"

	_ "modernc.org/sqlite"
)

// dsnParams are applied to every pooled connection, not only the first.
const dsnParams = "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteRepository owns the connection pool. Every operation runs on its own
// query or short transaction; nothing is shared between calls.
type SQLiteRepository struct {
	db             *sql.DB
	now            func() time.Time
	upsertAttempts int
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + dsnParams
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:             db,
		now:            time.Now,
		upsertAttempts: defaultUpsertAttempts,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SetUpsertAttempts bounds how often a conflicting summary write is retried.
func (r *SQLiteRepository) SetUpsertAttempts(n int) {
	if n > 0 {
		r.upsertAttempts = n
	}
}

// SetClock replaces the timestamp source used for created_at/updated_at.
func (r *SQLiteRepository) SetClock(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

func (r *SQLiteRepository) timestamp() string {
	return formatTimestamp(r.now())
}

// inTx runs fn inside one transaction, committing only if fn succeeds.
func (r *SQLiteRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// CreateUser inserts the user together with default conversion settings.
func (r *SQLiteRepository) CreateUser(ctx context.Context, username string) (core.User, error) {
	if err := core.ValidateUsername(username); err != nil {
		return core.User{}, err
	}

	var user core.User
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		created := r.now()
		res, err := tx.ExecContext(ctx,
			`INSERT INTO users (username, created_at) VALUES (?, ?)`,
			username, formatTimestamp(created))
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", core.ErrUserExists, username)
			}
			return fmt.Errorf("insert user: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("user id: %w", err)
		}
		if err := createDefaultSettings(ctx, tx, id, formatTimestamp(created)); err != nil {
			return err
		}
		user = core.User{ID: id, Username: username, CreatedAt: parseTimestamp(formatTimestamp(created))}
		return nil
	})
	if err != nil {
		return core.User{}, err
	}

	slog.InfoContext(ctx, "User created with default settings",
		"user_id", user.ID,
		"username", user.Username)
	return user, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (core.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT id, username, created_at FROM users WHERE id = ?`, id))
}

func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT id, username, created_at FROM users WHERE username = ?`, username))
}

// ListUsers returns every user ordered by id.
func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, username, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}

// UserExists reports whether a user row exists for id.
func (r *SQLiteRepository) UserExists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check user %d: %w", id, err)
	}
	return true, nil
}

func scanUser(row rowScanner) (core.User, error) {
	var (
		u         core.User
		createdAt string
	)
	err := row.Scan(&u.ID, &u.Username, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrUserNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = parseTimestamp(createdAt)
	return u, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseDate(s string) (core.Date, error) {
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, fmt.Errorf("stored date %q: %w", s, err)
	}
	return d, nil
}
