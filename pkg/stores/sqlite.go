/*
Package stores holds the relational persistence layer: registered
users, their uploaded file records, and the query history, all in a
single sqlite database.
*/
package stores

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/thothlabs/thoth/pkg/errors"
)

// DefaultMaxFileSize is the per-user upload cap for new accounts.
const DefaultMaxFileSize = 500 * 1024 * 1024

const schema = `
CREATE TABLE IF NOT EXISTS users (
	username        TEXT PRIMARY KEY,
	hashed_password TEXT NOT NULL,
	max_file_size   INTEGER NOT NULL,
	created_at      TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	owner       TEXT NOT NULL REFERENCES users(username),
	name        TEXT NOT NULL,
	size        INTEGER NOT NULL,
	uploaded_at TIMESTAMP NOT NULL,
	UNIQUE(owner, name)
);

CREATE TABLE IF NOT EXISTS queries (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	owner      TEXT NOT NULL REFERENCES users(username),
	session    TEXT NOT NULL,
	query      TEXT NOT NULL,
	response   TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
`

type User struct {
	Username       string
	HashedPassword string
	MaxFileSize    int64
	CreatedAt      time.Time
}

type FileRecord struct {
	Owner      string
	Name       string
	Size       int64
	UploadedAt time.Time
}

type QueryRecord struct {
	Owner     string
	Session   string
	Query     string
	Response  string
	CreatedAt time.Time
}

/*
SQLite wraps the application database. One instance is shared across
requests; database/sql handles connection pooling underneath.
*/
type SQLite struct {
	db *sql.DB
}

/*
Open opens (creating if necessary) the database at path and applies the
schema. Use ":memory:" for an ephemeral database in tests.
*/
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, errors.ErrPersistence.WithMessagef("failed to open database: %v", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.ErrPersistence.WithMessagef("failed to apply schema: %v", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

/*
CreateUser registers a new user. Registering an existing username is an
invalid request, not a persistence failure.
*/
func (s *SQLite) CreateUser(ctx context.Context, username, hashedPassword string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, hashed_password, max_file_size, created_at)
		 VALUES (?, ?, ?, ?)`,
		username, hashedPassword, int64(DefaultMaxFileSize), time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.ErrInvalidRequest.WithMessagef("username already registered")
		}
		return errors.ErrPersistence.WithMessagef("failed to create user: %v", err)
	}
	return nil
}

func (s *SQLite) GetUser(ctx context.Context, username string) (*User, error) {
	user := &User{}
	err := s.db.QueryRowContext(ctx,
		`SELECT username, hashed_password, max_file_size, created_at
		 FROM users WHERE username = ?`, username,
	).Scan(&user.Username, &user.HashedPassword, &user.MaxFileSize, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound.WithMessagef("user %s not found", username)
	}
	if err != nil {
		return nil, errors.ErrPersistence.WithMessagef("failed to load user: %v", err)
	}

	return user, nil
}

/*
DeleteUser removes a user along with their file and query records, so a
re-registered username starts from a clean slate.
*/
func (s *SQLite) DeleteUser(ctx context.Context, username string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.ErrPersistence.WithMessagef("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE owner = ?`, username); err != nil {
		return errors.ErrPersistence.WithMessagef("failed to delete file records: %v", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM queries WHERE owner = ?`, username); err != nil {
		return errors.ErrPersistence.WithMessagef("failed to delete query records: %v", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username)
	if err != nil {
		return errors.ErrPersistence.WithMessagef("failed to delete user: %v", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.ErrNotFound.WithMessagef("user %s not found", username)
	}

	if err := tx.Commit(); err != nil {
		return errors.ErrPersistence.WithMessagef("failed to commit: %v", err)
	}
	return nil
}

/*
RecordFile upserts a file record for the owner. Re-uploading the same
name replaces the previous record.
*/
func (s *SQLite) RecordFile(ctx context.Context, owner, name string, size int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files (owner, name, size, uploaded_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(owner, name) DO UPDATE SET size = excluded.size, uploaded_at = excluded.uploaded_at`,
		owner, name, size, time.Now().UTC(),
	)
	if err != nil {
		return errors.ErrPersistence.WithMessagef("failed to record file: %v", err)
	}
	return nil
}

func (s *SQLite) GetFileRecord(ctx context.Context, owner, name string) (*FileRecord, error) {
	record := &FileRecord{}
	err := s.db.QueryRowContext(ctx,
		`SELECT owner, name, size, uploaded_at FROM files WHERE owner = ? AND name = ?`,
		owner, name,
	).Scan(&record.Owner, &record.Name, &record.Size, &record.UploadedAt)

	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound.WithMessagef("file %s not found", name)
	}
	if err != nil {
		return nil, errors.ErrPersistence.WithMessagef("failed to load file record: %v", err)
	}

	return record, nil
}

func (s *SQLite) ListFiles(ctx context.Context, owner string) ([]FileRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT owner, name, size, uploaded_at FROM files WHERE owner = ? ORDER BY uploaded_at`,
		owner,
	)
	if err != nil {
		return nil, errors.ErrPersistence.WithMessagef("failed to list files: %v", err)
	}
	defer rows.Close()

	var records []FileRecord
	for rows.Next() {
		var record FileRecord
		if err := rows.Scan(&record.Owner, &record.Name, &record.Size, &record.UploadedAt); err != nil {
			return nil, errors.ErrPersistence.WithMessagef("failed to scan file record: %v", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.ErrPersistence.WithMessagef("failed to list files: %v", err)
	}
	return records, nil
}

func (s *SQLite) DeleteFileRecord(ctx context.Context, owner, name string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM files WHERE owner = ? AND name = ?`, owner, name,
	)
	if err != nil {
		return errors.ErrPersistence.WithMessagef("failed to delete file record: %v", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.ErrNotFound.WithMessagef("file %s not found", name)
	}
	return nil
}

// RecordQuery appends one answered query to the owner's history.
func (s *SQLite) RecordQuery(ctx context.Context, owner, session, query, response string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO queries (owner, session, query, response, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		owner, session, query, response, time.Now().UTC(),
	)
	if err != nil {
		return errors.ErrPersistence.WithMessagef("failed to record query: %v", err)
	}
	return nil
}

/*
RecentQueries returns the owner's last n answered queries in
chronological order.
*/
func (s *SQLite) RecentQueries(ctx context.Context, owner string, n int) ([]QueryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT owner, session, query, response, created_at FROM (
			SELECT * FROM queries WHERE owner = ? ORDER BY id DESC LIMIT ?
		 ) ORDER BY id`,
		owner, n,
	)
	if err != nil {
		return nil, errors.ErrPersistence.WithMessagef("failed to list queries: %v", err)
	}
	defer rows.Close()

	var records []QueryRecord
	for rows.Next() {
		var record QueryRecord
		if err := rows.Scan(&record.Owner, &record.Session, &record.Query, &record.Response, &record.CreatedAt); err != nil {
			return nil, errors.ErrPersistence.WithMessagef("failed to scan query record: %v", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.ErrPersistence.WithMessagef("failed to list queries: %v", err)
	}
	return records, nil
}

func isUniqueViolation(err error) bool {
	// sqlite reports constraint violations in the error text; matching on
	// it avoids importing driver internals.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
