package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrRevokedToken = errors.New("token has been revoked")
)

// Claims represents JWT claims.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Manager signs and validates session tokens.
type Manager struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	ttl        time.Duration
	issuer     string
	now        func() time.Time

	// token id -> expiry of the revoked token
	revoked map[string]time.Time
	mu      sync.RWMutex
}

// NewManager creates a manager with a freshly generated RSA key pair.
// Tokens do not survive a process restart.
func NewManager(ttl time.Duration, issuer string) (*Manager, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	return &Manager{
		privateKey: privateKey,
		publicKey:  &privateKey.PublicKey,
		ttl:        ttl,
		issuer:     issuer,
		now:        time.Now,
		revoked:    make(map[string]time.Time),
	}, nil
}

// GenerateToken issues an access token for the user.
func (m *Manager) GenerateToken(userID, username, role string) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.ttl)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		UserID:   userID,
		Username: username,
		Role:     role,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(m.privateKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// ValidateToken validates a token and returns claims.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, ErrInvalidToken
		}
		return m.publicKey, nil
	}, jwt.WithTimeFunc(m.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	if m.IsRevoked(claims.ID) {
		return nil, ErrRevokedToken
	}

	return claims, nil
}

// RevokeToken revokes a single token until it would have expired anyway.
func (m *Manager) RevokeToken(claims *Claims) {
	if claims == nil || claims.ID == "" {
		return
	}
	exp := m.now().Add(m.ttl)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[claims.ID] = exp
}

// IsRevoked checks if a token id has been revoked.
func (m *Manager) IsRevoked(tokenID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	expiry, exists := m.revoked[tokenID]
	if !exists {
		return false
	}
	return m.now().Before(expiry)
}

// CleanupExpiredRevocations removes expired revocation entries.
func (m *Manager) CleanupExpiredRevocations() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, expiry := range m.revoked {
		if now.After(expiry) {
			delete(m.revoked, id)
		}
	}
}

// SetClock overrides the time source. Intended for tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}
