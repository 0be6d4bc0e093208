package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

// KV is a named-value store on top of the kv table. Values are lz4-framed.
type KV struct {
	DB *sql.DB
}

// GetValue returns the value stored under key, or nil when the key is absent.
func (s KV) GetValue(key string) ([]byte, error) {
	var raw []byte
	err := s.DB.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	val, err := Decompress(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", key, err)
	}
	return val, nil
}

// PutValue replaces the value stored under key.
func (s KV) PutValue(key string, value []byte) error {
	framed, err := Compress(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	_, err = s.DB.Exec(
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, framed,
	)
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

// DeleteValue removes key. Deleting an absent key is not an error.
func (s KV) DeleteValue(key string) error {
	if _, err := s.DB.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}
