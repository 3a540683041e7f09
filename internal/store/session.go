package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dukerupert/laundrydash/internal/model"
	"github.com/google/uuid"
)

// SessionStore persists signed-in sessions together with a display copy of
// the user's profile.
type SessionStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func NewSessionStore(db *sql.DB, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &SessionStore{db: db, ttl: ttl, now: time.Now}
}

const sessionCols = `id, token, user_id, display_name, email, provider, photo_url, expires_at, created_at`

func scanSession(scanner interface{ Scan(...any) error }) (*model.Session, error) {
	var s model.Session
	var expiresAt, createdAt int64
	err := scanner.Scan(
		&s.ID, &s.Token, &s.User.ID, &s.User.DisplayName, &s.User.Email,
		&s.User.Provider, &s.User.PhotoURL, &expiresAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	s.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	s.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &s, nil
}

// generateToken returns 32 random bytes hex-encoded.
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Create starts a new session for the user.
func (s *SessionStore) Create(u model.User) (*model.Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sess := &model.Session{
		ID:        uuid.NewString(),
		Token:     token,
		User:      u,
		ExpiresAt: now.Add(s.ttl).Truncate(time.Second),
		CreatedAt: now.Truncate(time.Second),
	}

	_, err = s.db.Exec(
		`INSERT INTO sessions (`+sessionCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Token, u.ID, u.DisplayName, u.Email, u.Provider, u.PhotoURL,
		sess.ExpiresAt.Unix(), sess.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// GetByToken returns the live session for a cookie token, or nil when the
// token is unknown or expired.
func (s *SessionStore) GetByToken(token string) (*model.Session, error) {
	if token == "" {
		return nil, nil
	}
	row := s.db.QueryRow(
		`SELECT `+sessionCols+` FROM sessions WHERE token = ? AND expires_at > ?`,
		token, s.now().UTC().Unix(),
	)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// DeleteByToken removes the session and reports whether one existed.
func (s *SessionStore) DeleteByToken(token string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ExpiredTokens lists the tokens of sessions past their expiry.
func (s *SessionStore) ExpiredTokens() ([]string, error) {
	rows, err := s.db.Query(`SELECT token FROM sessions WHERE expires_at <= ?`, s.now().UTC().Unix())
	if err != nil {
		return nil, fmt.Errorf("list expired sessions: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan expired session: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// DeleteExpired removes every session past its expiry.
func (s *SessionStore) DeleteExpired() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM sessions WHERE expires_at <= ?`, s.now().UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
