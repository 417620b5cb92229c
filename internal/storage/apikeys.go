package storage

import (
	"database/sql"
	"fmt"
	"time"
)

type APIKey struct {
	ID         int64
	Name       string
	KeyHash    string
	KeyPrefix  string
	Scopes     string // JSON array of scope strings
	AllowedIPs string // JSON array of IPs; empty array allows any
	Enabled    bool
	CreatedAt  time.Time
	LastUsed   *time.Time
	ExpiresAt  *time.Time
}

// AddAPIKey stores a new key record. Only the hash of the token is kept;
// the prefix is retained for display.
func (s *Store) AddAPIKey(key *APIKey) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO api_keys (name, key_hash, key_prefix, scopes, allowed_ips, enabled, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.AllowedIPs, key.Enabled, key.ExpiresAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add api key: %w", err)
	}
	return result.LastInsertId()
}

// GetAPIKeyByHash looks up a key by its SHA-256 hash. Returns nil when no
// key matches.
func (s *Store) GetAPIKeyByHash(keyHash string) (*APIKey, error) {
	var k APIKey
	err := s.db.QueryRow(
		`SELECT id, name, key_hash, key_prefix, scopes, allowed_ips, enabled, created_at, last_used, expires_at
		 FROM api_keys WHERE key_hash = ?`, keyHash,
	).Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes, &k.AllowedIPs,
		&k.Enabled, &k.CreatedAt, &k.LastUsed, &k.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}
	return &k, nil
}

// ListAPIKeys returns all key records, newest first.
func (s *Store) ListAPIKeys() ([]APIKey, error) {
	rows, err := s.db.Query(
		`SELECT id, name, key_hash, key_prefix, scopes, allowed_ips, enabled, created_at, last_used, expires_at
		 FROM api_keys ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes, &k.AllowedIPs,
			&k.Enabled, &k.CreatedAt, &k.LastUsed, &k.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// TouchAPIKey updates last_used after a successful authentication.
func (s *Store) TouchAPIKey(keyID int64) error {
	_, err := s.db.Exec("UPDATE api_keys SET last_used = CURRENT_TIMESTAMP WHERE id = ?", keyID)
	if err != nil {
		return fmt.Errorf("failed to touch api key: %w", err)
	}
	return nil
}

// RevokeAPIKey disables a key. The row is kept for audit.
func (s *Store) RevokeAPIKey(keyID int64) error {
	_, err := s.db.Exec("UPDATE api_keys SET enabled = 0 WHERE id = ?", keyID)
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	return nil
}
