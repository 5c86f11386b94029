package repository

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"careerprep/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteLocalStore persists local state in a single key/value table.
type SQLiteLocalStore struct {
	conn *sql.DB
}

// NewSQLiteLocalStore opens (or creates) the database at path.
func NewSQLiteLocalStore(path string) (*SQLiteLocalStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local state: %w", err)
	}
	// sqlite allows a single writer
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open local state: %w", err)
	}
	if err := createLocalStateTable(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create local state table: %w", err)
	}

	return &SQLiteLocalStore{conn: conn}, nil
}

func createLocalStateTable(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS local_state (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`)
	return err
}

// Close closes the database connection
func (s *SQLiteLocalStore) Close() error {
	return s.conn.Close()
}

func (s *SQLiteLocalStore) Get(key string) ([]byte, error) {
	var value []byte
	err := s.conn.QueryRow("SELECT value FROM local_state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, domain.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteLocalStore) Set(key string, value []byte) error {
	_, err := s.conn.Exec(
		"INSERT OR REPLACE INTO local_state (key, value, updated_at) VALUES (?, ?, ?)",
		key, value, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteLocalStore) Delete(key string) error {
	if _, err := s.conn.Exec("DELETE FROM local_state WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
