package apikey

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/finwire/finwire/internal/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewManager(store)
}

func TestCreateAndVerify(t *testing.T) {
	m := newTestManager(t)

	token, key, err := m.Create("monitor", []string{ScopeArticlesRead}, nil, 0)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !strings.HasPrefix(token, "fw_") {
		t.Errorf("token should have fw_ prefix, got %s", token)
	}
	if !strings.HasPrefix(token, key.Prefix) {
		t.Errorf("token should start with stored prefix %s", key.Prefix)
	}

	got, err := m.Verify(token, "203.0.113.7", ScopeArticlesRead)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if got.ID != key.ID {
		t.Errorf("verified key ID = %d, want %d", got.ID, key.ID)
	}
	if got.LastUsed == nil {
		t.Error("Verify should update last_used")
	}
}

func TestVerifyRejectsUnknownToken(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.Verify("fw_0000_not_a_real_token", "", ""); err != ErrUnauthorized {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := m.Verify("missing-prefix", "", ""); err != ErrUnauthorized {
		t.Errorf("expected ErrUnauthorized for malformed token, got %v", err)
	}
}

func TestVerifyScopeCheck(t *testing.T) {
	m := newTestManager(t)

	token, _, err := m.Create("reader", []string{ScopeArticlesRead}, nil, 0)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := m.Verify(token, "", ScopeReportsWrite); err != ErrForbidden {
		t.Errorf("expected ErrForbidden, got %v", err)
	}

	// admin scope satisfies any requirement
	adminToken, _, err := m.Create("root", []string{ScopeAdmin}, nil, 0)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := m.Verify(adminToken, "", ScopeReportsWrite); err != nil {
		t.Errorf("admin scope should pass any check: %v", err)
	}
}

func TestVerifyIPAllowlist(t *testing.T) {
	m := newTestManager(t)

	token, _, err := m.Create("internal", []string{ScopeArticlesRead}, []string{"10.0.0.5"}, 0)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := m.Verify(token, "10.0.0.5", ScopeArticlesRead); err != nil {
		t.Errorf("allowed IP rejected: %v", err)
	}
	if _, err := m.Verify(token, "198.51.100.1", ScopeArticlesRead); err != ErrIPBlocked {
		t.Errorf("expected ErrIPBlocked, got %v", err)
	}
}

func TestVerifyRevokedAndExpired(t *testing.T) {
	m := newTestManager(t)

	token, key, err := m.Create("stale", []string{ScopeArticlesRead}, nil, 0)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := m.Revoke(key.ID); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if _, err := m.Verify(token, "", ScopeArticlesRead); err != ErrUnauthorized {
		t.Errorf("revoked key should be unauthorized, got %v", err)
	}

	// Already-expired key
	expired, _, err := m.Create("expired", []string{ScopeArticlesRead}, nil, -time.Minute)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := m.Verify(expired, "", ScopeArticlesRead); err != ErrUnauthorized {
		t.Errorf("expired key should be unauthorized, got %v", err)
	}
}

func TestHashTokenStable(t *testing.T) {
	if HashToken("abc") != HashToken("abc") {
		t.Error("HashToken must be deterministic")
	}
	if HashToken("abc") == HashToken("abd") {
		t.Error("different tokens must hash differently")
	}
	if len(HashToken("abc")) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(HashToken("abc")))
	}
}

func TestAdminSessionRoundTrip(t *testing.T) {
	secret := []byte("test-secret")

	token, err := IssueAdminToken(secret, "ops", time.Minute)
	if err != nil {
		t.Fatalf("IssueAdminToken failed: %v", err)
	}

	operator, err := VerifyAdminToken(secret, token)
	if err != nil {
		t.Fatalf("VerifyAdminToken failed: %v", err)
	}
	if operator != "ops" {
		t.Errorf("operator = %s, want ops", operator)
	}

	if _, err := VerifyAdminToken([]byte("other-secret"), token); err != ErrInvalidSession {
		t.Errorf("wrong secret should fail, got %v", err)
	}

	expired, err := IssueAdminToken(secret, "ops", -time.Minute)
	if err != nil {
		t.Fatalf("IssueAdminToken failed: %v", err)
	}
	if _, err := VerifyAdminToken(secret, expired); err != ErrInvalidSession {
		t.Errorf("expired session should fail, got %v", err)
	}
}
