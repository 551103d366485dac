package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lromero/labchat/internal/domain"
	"github.com/lromero/labchat/internal/shared"
	_ "modernc.org/sqlite"
)

// Write statements retry briefly on lock contention. The driver's busy
// timeout covers most waits, but a WAL checkpoint can still surface
// SQLITE_BUSY to the statement itself.
const (
	writeRetries    = 3
	writeRetryDelay = 50 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	// Usernames are deliberately not UNIQUE: the same person can hold
	// accounts for several programs.
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS credentials (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL,
		program TEXT NOT NULL,
		password TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_credentials_created ON credentials(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) execRetry(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	var (
		res sql.Result
		err error
	)
	for attempt := 0; attempt < writeRetries; attempt++ {
		res, err = s.db.ExecContext(ctx, query, args...)
		if !shared.IsSQLiteConflictError(err) {
			return res, err
		}
		slog.Warn("sqlite write conflict, retrying", "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(writeRetryDelay):
		}
	}
	return res, err
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Create inserts a credential row.
func (s *SQLiteStore) Create(ctx context.Context, username, program, password string) (*domain.Credential, error) {
	now := time.Now()
	res, err := s.execRetry(ctx,
		`INSERT INTO credentials (username, program, password, created_at) VALUES (?, ?, ?, ?)`,
		username, program, password, now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert credential: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return &domain.Credential{
		ID:        id,
		Username:  username,
		Program:   program,
		Password:  password,
		CreatedAt: now,
	}, nil
}

// List returns credentials newest first, optionally capped.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]domain.Credential, error) {
	query := `SELECT id, username, program, password, created_at
		FROM credentials ORDER BY created_at DESC, id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query credentials: %w", err)
	}
	return scanCredentials(rows)
}

// Search finds credentials by id (all-digits term) or by substring match
// against username OR program. Matching is case-insensitive for ASCII, the
// way SQLite LIKE behaves.
func (s *SQLiteStore) Search(ctx context.Context, term string) ([]domain.Credential, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if isAllDigits(term) {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, username, program, password, created_at FROM credentials WHERE id = ?`,
			term,
		)
	} else {
		pattern := "%" + term + "%"
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, username, program, password, created_at
			FROM credentials WHERE username LIKE ? OR program LIKE ?`,
			pattern, pattern,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("search credentials: %w", err)
	}
	return scanCredentials(rows)
}

// Get retrieves a credential by id, nil when absent.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (*domain.Credential, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, program, password, created_at FROM credentials WHERE id = ?`, id)

	var c domain.Credential
	var createdAt int64
	err := row.Scan(&c.ID, &c.Username, &c.Program, &c.Password, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan credential row: %w", err)
	}
	c.CreatedAt = time.Unix(createdAt, 0)
	return &c, nil
}

// Update applies the non-nil fields and bumps the row timestamp.
func (s *SQLiteStore) Update(ctx context.Context, id int64, upd domain.CredentialUpdate) error {
	if upd.Empty() {
		return fmt.Errorf("no fields to update")
	}

	sets := []string{}
	args := []interface{}{}
	if upd.Username != nil {
		sets = append(sets, "username = ?")
		args = append(args, *upd.Username)
	}
	if upd.Program != nil {
		sets = append(sets, "program = ?")
		args = append(args, *upd.Program)
	}
	if upd.Password != nil {
		sets = append(sets, "password = ?")
		args = append(args, *upd.Password)
	}
	sets = append(sets, "created_at = ?")
	args = append(args, time.Now().Unix(), id)

	query := `UPDATE credentials SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	res, err := s.execRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a credential and returns its username.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) (string, error) {
	cred, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if cred == nil {
		return "", ErrNotFound
	}

	if _, err := s.execRetry(ctx, `DELETE FROM credentials WHERE id = ?`, id); err != nil {
		return "", fmt.Errorf("delete credential: %w", err)
	}
	return cred.Username, nil
}

// UpdatePassword replaces the password and returns the row's username.
func (s *SQLiteStore) UpdatePassword(ctx context.Context, id int64, pw string) (string, error) {
	cred, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if cred == nil {
		return "", ErrNotFound
	}

	_, err = s.execRetry(ctx,
		`UPDATE credentials SET password = ?, created_at = ? WHERE id = ?`,
		pw, time.Now().Unix(), id,
	)
	if err != nil {
		return "", fmt.Errorf("update password: %w", err)
	}
	return cred.Username, nil
}

// Stats summarizes the credential table.
func (s *SQLiteStore) Stats(ctx context.Context) (*domain.CredentialStats, error) {
	stats := &domain.CredentialStats{}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM credentials`).Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("count credentials: %w", err)
	}

	// Ties between equally used programs keep storage order (MIN(id)).
	rows, err := s.db.QueryContext(ctx, `
		SELECT program, COUNT(*) AS n
		FROM credentials
		GROUP BY program
		ORDER BY n DESC, MIN(id) ASC
		LIMIT 5`)
	if err != nil {
		return nil, fmt.Errorf("query program counts: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close program count rows", "error", closeErr)
		}
	}()

	for rows.Next() {
		var pc domain.ProgramCount
		if err := rows.Scan(&pc.Program, &pc.Count); err != nil {
			return nil, fmt.Errorf("scan program count: %w", err)
		}
		stats.TopPrograms = append(stats.TopPrograms, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate program counts: %w", err)
	}

	newest, err := s.List(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(newest) > 0 {
		stats.Newest = &newest[0]
	}

	return stats, nil
}

func scanCredentials(rows *sql.Rows) ([]domain.Credential, error) {
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close credential rows", "error", closeErr)
		}
	}()

	var creds []domain.Credential
	for rows.Next() {
		var c domain.Credential
		var createdAt int64
		if err := rows.Scan(&c.ID, &c.Username, &c.Program, &c.Password, &createdAt); err != nil {
			return nil, fmt.Errorf("scan credential row: %w", err)
		}
		c.CreatedAt = time.Unix(createdAt, 0)
		creds = append(creds, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return creds, nil
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
