package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/devtitozzzzg/todo/internal/auth"
	dom "github.com/devtitozzzzg/todo/internal/domain"
)

// Session is an established login.
type Session struct {
	Token     string
	User      dom.User
	ExpiresAt time.Time
}

type tokenSigner interface {
	Sign(sessionID string, userID int64, now time.Time) (string, error)
	Parse(raw string) (*auth.Claims, error)
	TTL() time.Duration
}

// SessionService verifies credentials and manages logged-in sessions.
type SessionService struct {
	users  *UserService
	store  auth.Store
	tokens tokenSigner
	logger *slog.Logger
	now    func() time.Time
}

// NewSessionService returns a SessionService. A nil logger discards.
func NewSessionService(users *UserService, store auth.Store, tokens *auth.TokenSigner, logger *slog.Logger) *SessionService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SessionService{users: users, store: store, tokens: tokens, logger: logger, now: time.Now}
}

// Authenticate checks credentials and starts a session for the user.
func (s *SessionService) Authenticate(ctx context.Context, username, password string) (Session, error) {
	u, err := s.users.ValidateCredentials(ctx, username, password)
	if err != nil {
		return Session{}, err
	}
	return s.Start(ctx, u)
}

// Start creates a session for an already verified user.
func (s *SessionService) Start(ctx context.Context, u dom.User) (Session, error) {
	id, err := s.store.Create(ctx, u.ID)
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	now := s.now()
	token, err := s.tokens.Sign(id, u.ID, now)
	if err != nil {
		if derr := s.store.Delete(ctx, id); derr != nil {
			s.logger.Warn("drop unsigned session failed", "error", derr)
		}
		return Session{}, err
	}
	return Session{Token: token, User: u, ExpiresAt: now.Add(s.tokens.TTL())}, nil
}

// EndSession revokes the session behind token. Unknown or malformed
// tokens are not an error.
func (s *SessionService) EndSession(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil
	}
	if err := s.store.Delete(ctx, claims.SessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// CurrentUser resolves token to the signed-in user. Absent, expired,
// forged and revoked tokens all yield ErrNotFound.
func (s *SessionService) CurrentUser(ctx context.Context, token string) (dom.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return dom.User{}, ErrNotFound
	}
	userID, err := claims.UserID()
	if err != nil {
		return dom.User{}, ErrNotFound
	}
	stored, err := s.store.GetUserID(ctx, claims.SessionID)
	if err != nil {
		if !errors.Is(err, auth.ErrNoSession) {
			s.logger.Error("session lookup failed", "error", err)
		}
		return dom.User{}, ErrNotFound
	}
	if stored != userID {
		return dom.User{}, ErrNotFound
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error("session user lookup failed", "user_id", userID, "error", err)
		}
		return dom.User{}, ErrNotFound
	}
	return u, nil
}
