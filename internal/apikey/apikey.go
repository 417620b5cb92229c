// Package apikey implements token generation and verification for the JSON
// API. Tokens look like fw_<prefix>_<secret>; only the SHA-256 hash of the
// full token is stored, plus the prefix for display in key listings.
package apikey

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/finwire/finwire/internal/storage"
)

// Verification failures. ErrUnauthorized covers unknown, disabled, and
// expired keys uniformly so responses don't leak which case occurred.
var (
	ErrUnauthorized = errors.New("invalid api key")
	ErrForbidden    = errors.New("insufficient scope")
	ErrIPBlocked    = errors.New("ip not allowed")
)

// Scopes understood by the API.
const (
	ScopeArticlesRead  = "articles:read"
	ScopeGeneratedRead = "generated:read"
	ScopeSourcesWrite  = "sources:write"
	ScopeReportsWrite  = "reports:write"
	ScopeAdmin         = "admin"
)

type Manager struct {
	store *storage.Store
}

func NewManager(store *storage.Store) *Manager {
	return &Manager{store: store}
}

// Key is the API-facing view of a stored key record. The token itself is
// only available at creation time.
type Key struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Prefix    string     `json:"prefix"`
	Scopes    []string   `json:"scopes"`
	Enabled   bool       `json:"enabled"`
	CreatedAt time.Time  `json:"created_at"`
	LastUsed  *time.Time `json:"last_used,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// HashToken returns the hex SHA-256 of a token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Create generates a new token, stores its hash, and returns the plaintext
// token exactly once. allowedIPs may be empty to allow any client address.
// A zero ttl means the key never expires.
func (m *Manager) Create(name string, scopes, allowedIPs []string, ttl time.Duration) (string, *Key, error) {
	prefixBytes := make([]byte, 4)
	secretBytes := make([]byte, 24)
	if _, err := rand.Read(prefixBytes); err != nil {
		return "", nil, fmt.Errorf("generate key prefix: %w", err)
	}
	if _, err := rand.Read(secretBytes); err != nil {
		return "", nil, fmt.Errorf("generate key secret: %w", err)
	}

	prefix := "fw_" + hex.EncodeToString(prefixBytes)
	token := prefix + "_" + hex.EncodeToString(secretBytes)

	scopesJSON, err := json.Marshal(nonNil(scopes))
	if err != nil {
		return "", nil, fmt.Errorf("encode scopes: %w", err)
	}
	ipsJSON, err := json.Marshal(nonNil(allowedIPs))
	if err != nil {
		return "", nil, fmt.Errorf("encode allowed ips: %w", err)
	}

	rec := &storage.APIKey{
		Name:       name,
		KeyHash:    HashToken(token),
		KeyPrefix:  prefix,
		Scopes:     string(scopesJSON),
		AllowedIPs: string(ipsJSON),
		Enabled:    true,
	}
	if ttl != 0 {
		exp := time.Now().Add(ttl)
		rec.ExpiresAt = &exp
	}

	id, err := m.store.AddAPIKey(rec)
	if err != nil {
		return "", nil, fmt.Errorf("store api key: %w", err)
	}
	rec.ID = id
	rec.CreatedAt = time.Now()

	key := keyFromRecord(rec)
	return token, &key, nil
}

// Verify authenticates a presented token against the store, then checks the
// client IP against the key's allowlist and the required scope against the
// key's scopes. The "admin" scope satisfies any requirement. last_used is
// updated on success.
func (m *Manager) Verify(token, clientIP, requiredScope string) (*Key, error) {
	if !strings.HasPrefix(token, "fw_") {
		return nil, ErrUnauthorized
	}

	rec, err := m.store.GetAPIKeyByHash(HashToken(token))
	if err != nil {
		return nil, fmt.Errorf("look up api key: %w", err)
	}
	if rec == nil || !rec.Enabled {
		return nil, ErrUnauthorized
	}
	if rec.ExpiresAt != nil && time.Now().After(*rec.ExpiresAt) {
		return nil, ErrUnauthorized
	}

	allowedIPs, err := decodeList(rec.AllowedIPs)
	if err != nil {
		return nil, fmt.Errorf("decode allowed ips: %w", err)
	}
	if len(allowedIPs) > 0 && !contains(allowedIPs, clientIP) {
		return nil, ErrIPBlocked
	}

	scopes, err := decodeList(rec.Scopes)
	if err != nil {
		return nil, fmt.Errorf("decode scopes: %w", err)
	}
	if requiredScope != "" && !contains(scopes, requiredScope) && !contains(scopes, ScopeAdmin) {
		return nil, ErrForbidden
	}

	if err := m.store.TouchAPIKey(rec.ID); err != nil {
		return nil, fmt.Errorf("touch api key: %w", err)
	}
	// The record was read before the touch; reflect it in the returned view.
	now := time.Now().UTC()
	rec.LastUsed = &now

	key := keyFromRecord(rec)
	return &key, nil
}

// List returns all stored keys without token material.
func (m *Manager) List() ([]Key, error) {
	recs, err := m.store.ListAPIKeys()
	if err != nil {
		return nil, err
	}
	keys := make([]Key, len(recs))
	for i := range recs {
		keys[i] = keyFromRecord(&recs[i])
	}
	return keys, nil
}

// Revoke disables a key.
func (m *Manager) Revoke(keyID int64) error {
	return m.store.RevokeAPIKey(keyID)
}

func keyFromRecord(rec *storage.APIKey) Key {
	scopes, _ := decodeList(rec.Scopes)
	return Key{
		ID:        rec.ID,
		Name:      rec.Name,
		Prefix:    rec.KeyPrefix,
		Scopes:    scopes,
		Enabled:   rec.Enabled,
		CreatedAt: rec.CreatedAt,
		LastUsed:  rec.LastUsed,
		ExpiresAt: rec.ExpiresAt,
	}
}

func decodeList(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, err
	}
	return list, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
