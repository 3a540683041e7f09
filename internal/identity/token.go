package identity

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dukerupert/laundrydash/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/sync/singleflight"
)

const (
	// Issuer is the iss claim of every bearer token minted for the backend.
	Issuer = "laundrydash"

	defaultTokenTTL = 5 * time.Minute
	// refreshSkew makes a cached token count as expired this long before exp.
	refreshSkew = 30 * time.Second
	keySize     = 32
)

var ErrInvalidToken = errors.New("identity: invalid token")

// Claims are the bearer token claims the backend verifies.
type Claims struct {
	SessionID   string `json:"sid"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"name,omitempty"`
	Provider    string `json:"provider,omitempty"`
	jwt.RegisteredClaims
}

type cachedToken struct {
	userID  string
	raw     string
	expires time.Time
}

// TokenIssuer mints short-lived HS256 bearer tokens per session and caches
// the current one until it is close to expiry.
type TokenIssuer struct {
	key   []byte
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu    sync.Mutex
	cache map[string]cachedToken
}

// DeriveSigningKey stretches the configured secret into a 32-byte HMAC key.
func DeriveSigningKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, errors.New("identity: empty token secret")
	}
	r := hkdf.New(sha256.New, []byte(secret), []byte(Issuer), []byte("bearer-token-v1"))
	key := make([]byte, keySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}
	return key, nil
}

func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	key, err := DeriveSigningKey(secret)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenIssuer{
		key:   key,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[string]cachedToken),
	}, nil
}

// Token returns a bearer token for the session's user. A cached token is
// reused unless forceRefresh is set, it belongs to another user, or it is
// about to expire. Concurrent refreshes for one session share a single mint.
func (ti *TokenIssuer) Token(sessionID string, u model.User, forceRefresh bool) (string, error) {
	if !forceRefresh {
		if raw, ok := ti.cached(sessionID, u.ID); ok {
			return raw, nil
		}
	}

	v, err, _ := ti.group.Do(sessionID+"\x00"+u.ID, func() (any, error) {
		return ti.mint(sessionID, u)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (ti *TokenIssuer) cached(sessionID, userID string) (string, bool) {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	ct, ok := ti.cache[sessionID]
	if !ok || ct.userID != userID {
		return "", false
	}
	if !ti.now().Add(refreshSkew).Before(ct.expires) {
		return "", false
	}
	return ct.raw, true
}

func (ti *TokenIssuer) mint(sessionID string, u model.User) (string, error) {
	now := ti.now()
	exp := now.Add(ti.ttl)
	claims := Claims{
		SessionID:   sessionID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Provider:    u.Provider,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    Issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	ti.mu.Lock()
	ti.cache[sessionID] = cachedToken{userID: u.ID, raw: signed, expires: exp}
	ti.mu.Unlock()
	return signed, nil
}

// Forget drops the cached token of a session.
func (ti *TokenIssuer) Forget(sessionID string) {
	ti.mu.Lock()
	delete(ti.cache, sessionID)
	ti.mu.Unlock()
}

// Verify parses and validates a token minted by this issuer.
func (ti *TokenIssuer) Verify(raw string) (*Claims, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return ti.key, nil
	},
		jwt.WithIssuer(Issuer),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
