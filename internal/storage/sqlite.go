package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"commitbot/internal/model"
	"commitbot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Store backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// IsDelivered reports whether a commit with this SHA has already been broadcast.
func (s *SQLite) IsDelivered(ctx context.Context, sha string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM commits WHERE sha = ? AND status = ?`,
		sha, string(model.StatusDelivered),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check delivered: %w", err)
	}
	return count > 0, nil
}

// UpsertPending inserts or overwrites the pending record for c.SHA.
// Returns true only when a new pending row was created. Delivered rows
// are left untouched so a broadcast commit can never re-enter the queue.
func (s *SQLite) UpsertPending(ctx context.Context, c *model.Commit) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM commits WHERE sha = ?`, c.SHA).Scan(&status)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		now := time.Now().UTC().Format(timeLayout)
		_, err = tx.ExecContext(ctx,
			`INSERT INTO commits (sha, url, author, message, author_date, status, discovered_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.SHA, c.URL, c.Author, c.Message, c.AuthorDate.UTC().Format(timeLayout),
			string(model.StatusPending), now,
		)
		if err != nil {
			return false, fmt.Errorf("insert pending: %w", err)
		}
		return true, tx.Commit()
	case err != nil:
		return false, fmt.Errorf("query status: %w", err)
	}

	if status == string(model.StatusDelivered) {
		return false, tx.Commit()
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE commits SET url = ?, author = ?, message = ?, author_date = ? WHERE sha = ?`,
		c.URL, c.Author, c.Message, c.AuthorDate.UTC().Format(timeLayout), c.SHA,
	)
	if err != nil {
		return false, fmt.Errorf("update pending: %w", err)
	}
	return false, tx.Commit()
}

// TakeNextPending removes and returns the pending commit with the maximum
// author date. Equal dates fall back to insertion order (rowid), which keeps
// the selection deterministic. Returns nil when the queue is empty.
func (s *SQLite) TakeNextPending(ctx context.Context) (*model.Commit, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT sha, url, author, message, author_date FROM commits
		 WHERE status = ?
		 ORDER BY author_date DESC, rowid ASC
		 LIMIT 1`,
		string(model.StatusPending),
	)
	c, err := scanCommit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tx.Commit()
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM commits WHERE sha = ?`, c.SHA); err != nil {
		return nil, fmt.Errorf("delete pending: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit take: %w", err)
	}
	return c, nil
}

// MarkDelivered records the commit as broadcast. Overwrites any existing row
// for the same SHA, so a SHA can never be pending and delivered at once.
func (s *SQLite) MarkDelivered(ctx context.Context, c *model.Commit) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO commits (sha, url, author, message, author_date, status, delivered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(sha) DO UPDATE SET
		   url = excluded.url,
		   author = excluded.author,
		   message = excluded.message,
		   author_date = excluded.author_date,
		   status = excluded.status,
		   delivered_at = excluded.delivered_at`,
		c.SHA, c.URL, c.Author, c.Message, c.AuthorDate.UTC().Format(timeLayout),
		string(model.StatusDelivered), now,
	)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	return nil
}

// CountPending returns the size of the pending backlog.
func (s *SQLite) CountPending(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM commits WHERE status = ?`, string(model.StatusPending),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return count, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCommit(row scannable) (*model.Commit, error) {
	var c model.Commit
	var dateStr string
	if err := row.Scan(&c.SHA, &c.URL, &c.Author, &c.Message, &dateStr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan commit: %w", err)
	}
	c.AuthorDate, _ = time.Parse(timeLayout, dateStr)
	return &c, nil
}
