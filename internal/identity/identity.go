// Package identity registers subjects, issues their tokens and resolves
// tokens back to principals.
package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/weiawesome/wes-io-polls/internal/audit"
	"github.com/weiawesome/wes-io-polls/internal/domain"
	"github.com/weiawesome/wes-io-polls/internal/idgen"
	"github.com/weiawesome/wes-io-polls/internal/repository"
	"github.com/weiawesome/wes-io-polls/pkg/jwt"
	"github.com/weiawesome/wes-io-polls/pkg/log"
	"github.com/weiawesome/wes-io-polls/pkg/middleware"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Service is the identity collaborator of the HTTP surface and gateway.
type Service interface {
	middleware.TokenValidator
	Register(ctx context.Context, creds *domain.Credentials) (*domain.Session, error)
	Login(ctx context.Context, creds *domain.Credentials) (*domain.Session, error)
	Logout(ctx context.Context, token string) error
	Me(ctx context.Context, userID string) (*domain.User, error)
}

// Notifier reaches a subject's live connections.
type Notifier interface {
	Notify(userID string, ev domain.Event) int
}

// Terminator closes every live connection of a subject.
type Terminator interface {
	DisconnectUser(userID string) int
}

// Identity implements Service.
type Identity struct {
	users      repository.UserRepository
	tokens     *jwt.Manager
	ids        *idgen.Generator
	notifier   Notifier
	terminator Terminator
	cost       int
	now        func() time.Time
}

// NewService creates the identity service. Call SetTerminator once the
// transport that owns live connections exists.
func NewService(users repository.UserRepository, tokens *jwt.Manager, ids *idgen.Generator, notifier Notifier) *Identity {
	return &Identity{
		users:    users,
		tokens:   tokens,
		ids:      ids,
		notifier: notifier,
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
	}
}

// SetTerminator installs the hook used by Logout to drop connections.
func (s *Identity) SetTerminator(t Terminator) {
	s.terminator = t
}

func (s *Identity) Register(ctx context.Context, creds *domain.Credentials) (*domain.Session, error) {
	l := log.Ctx(ctx)

	username := strings.TrimSpace(creds.Username)
	if err := validateCredentials(username, creds.Password); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(creds.Password), s.cost)
	if err != nil {
		l.Error().Err(err).Msg("failed to hash password")
		return nil, err
	}

	id, err := s.ids.UserID()
	if err != nil {
		return nil, fmt.Errorf("generate user id: %w", err)
	}
	user := &domain.User{
		ID:           id,
		Username:     username,
		PasswordHash: string(hashed),
		Role:         domain.RoleUser,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	audit.LogWithDetail(ctx, audit.ActionRegister, user.ID, user.Role, "user registered")
	return s.issue(user)
}

func validateCredentials(username, password string) error {
	if len(username) < domain.MinUsernameLength || len(username) > domain.MaxUsernameLength || !usernamePattern.MatchString(username) {
		return domain.ErrInvalidPayload.WithMessage(fmt.Sprintf(
			"username must be %d-%d letters, digits or underscores", domain.MinUsernameLength, domain.MaxUsernameLength))
	}
	if len(password) < domain.MinPasswordLength {
		return domain.ErrInvalidPayload.WithMessage(fmt.Sprintf(
			"password must be at least %d characters", domain.MinPasswordLength))
	}
	return nil
}

func (s *Identity) Login(ctx context.Context, creds *domain.Credentials) (*domain.Session, error) {
	username := strings.TrimSpace(creds.Username)

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			audit.LogWithDetail(ctx, audit.ActionLoginFailed, "", username, "login failed: user not found")
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		audit.LogWithDetail(ctx, audit.ActionLoginFailed, user.ID, username, "login failed: wrong password")
		return nil, domain.ErrInvalidCredentials
	}

	audit.Log(ctx, audit.ActionLogin, user.ID, "user logged in")
	return s.issue(user)
}

func (s *Identity) issue(user *domain.User) (*domain.Session, error) {
	token, expiresAt, err := s.tokens.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &domain.Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Logout revokes token, tells the subject's clients their session ended
// and drops their live connections.
func (s *Identity) Logout(ctx context.Context, token string) error {
	claims, err := s.claims(token)
	if err != nil {
		return err
	}
	s.tokens.RevokeToken(claims)

	s.notifier.Notify(claims.UserID, domain.Event{
		Name: domain.EventAuthForceLogout,
		Data: domain.ForceLogoutEvent{Reason: "logged out"},
	})
	dropped := 0
	if s.terminator != nil {
		dropped = s.terminator.DisconnectUser(claims.UserID)
	}

	audit.LogWithDetail(ctx, audit.ActionLogout, claims.UserID, fmt.Sprintf("connections=%d", dropped), "user logged out")
	return nil
}

func (s *Identity) Me(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

// ValidateToken implements middleware.TokenValidator.
func (s *Identity) ValidateToken(ctx context.Context, token string) (*middleware.Principal, error) {
	claims, err := s.claims(token)
	if err != nil {
		l := log.Ctx(ctx)
		l.Debug().Err(err).Msg("token validation failed")
		return nil, err
	}
	return &middleware.Principal{UserID: claims.UserID, Username: claims.Username, Role: claims.Role}, nil
}

func (s *Identity) claims(token string) (*jwt.Claims, error) {
	if token == "" {
		return nil, domain.ErrTokenRequired
	}
	claims, err := s.tokens.ValidateToken(token)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrExpiredToken):
		return nil, domain.ErrTokenExpired
	default:
		return nil, domain.ErrAuthFailed
	}
}
