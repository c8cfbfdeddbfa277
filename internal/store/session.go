package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dukerupert/aivis/internal/crypt"
	"github.com/dukerupert/aivis/internal/model"
)

// SessionStore persists browser sessions. Bearer tokens are sealed before they
// reach the database.
type SessionStore struct {
	db     *sql.DB
	sealer *crypt.Sealer
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionStore(db *sql.DB, sealer *crypt.Sealer, ttl time.Duration) *SessionStore {
	return &SessionStore{db: db, sealer: sealer, ttl: ttl, now: time.Now}
}

const sessionCols = `id, token_sealed, last_route, expires_at, created_at, updated_at`

func (s *SessionStore) scanSession(scanner interface{ Scan(...any) error }) (*model.Session, error) {
	var sess model.Session
	var sealed string
	var expires int64
	err := scanner.Scan(&sess.ID, &sealed, &sess.LastRoute, &expires, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sess.ExpiresAt = time.Unix(expires, 0).UTC()

	// A token sealed under a different secret is unreadable; the session
	// simply becomes anonymous.
	if token, err := s.sealer.Open(sealed); err == nil {
		sess.Token = token
	}
	return &sess, nil
}

// Create starts an anonymous session with a crypto-random id.
func (s *SessionStore) Create() (*model.Session, error) {
	idBytes := make([]byte, 32)
	if _, err := rand.Read(idBytes); err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	id := hex.EncodeToString(idBytes)
	expiresAt := s.now().UTC().Add(s.ttl)

	_, err := s.db.Exec(`INSERT INTO sessions (id, expires_at) VALUES (?, ?)`, id, expiresAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return s.Get(id)
}

// Get returns the session, or nil if it is expired or not found.
func (s *SessionStore) Get(id string) (*model.Session, error) {
	row := s.db.QueryRow(
		`SELECT `+sessionCols+` FROM sessions WHERE id = ? AND expires_at > ?`,
		id, s.now().UTC().Unix(),
	)
	sess, err := s.scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *SessionStore) SetToken(id, token string) error {
	sealed, err := s.sealer.Seal(token)
	if err != nil {
		return fmt.Errorf("seal token: %w", err)
	}
	return s.update(`token_sealed = ?`, sealed, id)
}

func (s *SessionStore) ClearToken(id string) error {
	return s.update(`token_sealed = ''`, nil, id)
}

func (s *SessionStore) SetLastRoute(id, route string) error {
	return s.update(`last_route = ?`, route, id)
}

// Touch slides the expiry forward by the store TTL.
func (s *SessionStore) Touch(id string) error {
	return s.update(`expires_at = ?`, s.now().UTC().Add(s.ttl).Unix(), id)
}

func (s *SessionStore) update(set string, value any, id string) error {
	query := `UPDATE sessions SET ` + set + `, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	args := []any{id}
	if value != nil {
		args = []any{value, id}
	}
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

func (s *SessionStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM sessions WHERE expires_at <= ?`, s.now().UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
