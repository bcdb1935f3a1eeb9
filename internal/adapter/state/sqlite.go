package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS states (
	name TEXT PRIMARY KEY,
	content BLOB NOT NULL,
	updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);`

// SQLiteStore persists states in a local sqlite database, so a computer
// restart does not lose staged chain/DAG state.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cannot open state database %s: %w", path, err)
	}
	// sqlite tolerates one writer at a time
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cannot initialise state database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, name string) ([]byte, bool, error) {
	var content []byte
	err := s.db.QueryRowContext(ctx, `SELECT content FROM states WHERE name = ?`, name).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return content, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, name string, content []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO states (name, content) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET content = excluded.content, updated_at = strftime('%s', 'now')`,
		name, content)
	return err
}

func (s *SQLiteStore) Del(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM states WHERE name = ?`, name)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
