package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type KVStore struct {
	db *DB
}

func NewKVStore(db *DB) *KVStore {
	return &KVStore{db: db}
}

// Get returns the stored value and whether the key exists.
func (s *KVStore) Get(key string) (string, bool, error) {
	var value string
	err := s.db.conn.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *KVStore) Set(key, value string) error {
	_, err := s.db.conn.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (s *KVStore) Delete(key string) error {
	if _, err := s.db.conn.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *KVStore) All() (map[string]string, error) {
	rows, err := s.db.conn.Query("SELECT key, value FROM kv ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		values[key] = value
	}
	return values, rows.Err()
}
