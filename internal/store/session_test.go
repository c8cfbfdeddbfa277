package store

import (
	"bytes"
	"testing"
	"time"

	"github.com/dukerupert/aivis/internal/crypt"
	"github.com/dukerupert/aivis/internal/database"
)

func setupSessionTestDB(t *testing.T) *SessionStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	salt, err := TokenSalt(db)
	if err != nil {
		t.Fatalf("token salt: %v", err)
	}
	sealer, err := crypt.NewSealer("test-secret", salt)
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	return NewSessionStore(db, sealer, time.Hour)
}

func TestSessionCreate(t *testing.T) {
	ss := setupSessionTestDB(t)

	sess, err := ss.Create()
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if len(sess.ID) != 64 { // 32 bytes hex-encoded
		t.Errorf("id length = %d, want 64", len(sess.ID))
	}
	if sess.Token != "" {
		t.Errorf("new session token = %q, want empty", sess.Token)
	}
	if !sess.ExpiresAt.After(time.Now()) {
		t.Errorf("expires_at = %v, want in the future", sess.ExpiresAt)
	}
}

func TestSessionGetNotFound(t *testing.T) {
	ss := setupSessionTestDB(t)

	sess, err := ss.Get("nonexistent")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess != nil {
		t.Error("expected nil for nonexistent session")
	}
}

func TestSessionTokenSealedAtRest(t *testing.T) {
	ss := setupSessionTestDB(t)
	sess, _ := ss.Create()

	if err := ss.SetToken(sess.ID, "bearer-abc"); err != nil {
		t.Fatalf("set token: %v", err)
	}

	var raw string
	if err := ss.db.QueryRow(`SELECT token_sealed FROM sessions WHERE id = ?`, sess.ID).Scan(&raw); err != nil {
		t.Fatalf("read raw: %v", err)
	}
	if raw == "" || raw == "bearer-abc" {
		t.Errorf("stored token = %q, want sealed value", raw)
	}

	got, err := ss.Get(sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Token != "bearer-abc" {
		t.Errorf("token = %q, want %q", got.Token, "bearer-abc")
	}

	if err := ss.ClearToken(sess.ID); err != nil {
		t.Fatalf("clear token: %v", err)
	}
	got, _ = ss.Get(sess.ID)
	if got.Token != "" {
		t.Errorf("token after clear = %q, want empty", got.Token)
	}
}

func TestSessionUnreadableToken(t *testing.T) {
	ss := setupSessionTestDB(t)
	sess, _ := ss.Create()
	ss.SetToken(sess.ID, "bearer-abc")

	other, _ := crypt.NewSealer("rotated-secret", bytes.Repeat([]byte{1}, crypt.SaltSize))
	ss.sealer = other

	got, err := ss.Get(sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Token != "" {
		t.Errorf("token = %q, want empty when unsealing fails", got.Token)
	}
}

func TestSessionLastRoute(t *testing.T) {
	ss := setupSessionTestDB(t)
	sess, _ := ss.Create()

	if err := ss.SetLastRoute(sess.ID, "/blog/geo-basics"); err != nil {
		t.Fatalf("set last route: %v", err)
	}
	got, _ := ss.Get(sess.ID)
	if got.LastRoute != "/blog/geo-basics" {
		t.Errorf("last_route = %q, want %q", got.LastRoute, "/blog/geo-basics")
	}
}

func TestSessionExpiry(t *testing.T) {
	ss := setupSessionTestDB(t)
	sess, _ := ss.Create()

	ss.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	got, err := ss.Get(sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("expected nil for expired session")
	}

	n, err := ss.DeleteExpired()
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
}

func TestSessionTouch(t *testing.T) {
	ss := setupSessionTestDB(t)
	sess, _ := ss.Create()

	later := time.Now().Add(50 * time.Minute)
	ss.now = func() time.Time { return later }
	if err := ss.Touch(sess.ID); err != nil {
		t.Fatalf("touch: %v", err)
	}

	ss.now = func() time.Time { return later.Add(30 * time.Minute) }
	got, _ := ss.Get(sess.ID)
	if got == nil {
		t.Fatal("expected session to survive after touch")
	}
}

func TestSessionDelete(t *testing.T) {
	ss := setupSessionTestDB(t)
	sess, _ := ss.Create()

	if err := ss.Delete(sess.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ := ss.Get(sess.ID)
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestTokenSaltStable(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	s1, err := TokenSalt(db)
	if err != nil {
		t.Fatalf("first salt: %v", err)
	}
	s2, err := TokenSalt(db)
	if err != nil {
		t.Fatalf("second salt: %v", err)
	}
	if !bytes.Equal(s1, s2) {
		t.Error("salt should be stable across calls")
	}
	if len(s1) != crypt.SaltSize {
		t.Errorf("salt length = %d, want %d", len(s1), crypt.SaltSize)
	}
}
