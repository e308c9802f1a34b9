package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"zamanyonet-admin/internal/audit"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrUnauthenticated    = errors.New("auth: unauthenticated")
)

// Identity is what login needs to know about a user.
type Identity struct {
	ID           string
	Email        string
	Name         string
	Role         string
	Active       bool
	PasswordHash string
}

// UserDirectory looks users up by email. ErrInvalidCredentials stands in for
// "no such user" so callers cannot tell the two apart.
type UserDirectory interface {
	FindByEmail(ctx context.Context, email string) (Identity, error)
}

type Service struct {
	users    UserDirectory
	sessions SessionStore
	tokens   *Manager
	hasher   *PasswordHasher
	audit    *audit.Service
	logger   *slog.Logger
	clock    func() time.Time
}

func NewService(users UserDirectory, sessions SessionStore, tokens *Manager, hasher *PasswordHasher, auditSvc *audit.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		hasher:   hasher,
		audit:    auditSvc,
		logger:   logger,
		clock:    time.Now,
	}
}

// WithClock replaces the time source. Tests only.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Session   Session
}

// Login checks credentials, opens a session and records a LOGIN audit entry.
// If the audit entry cannot be written the session is revoked again.
func (s *Service) Login(ctx context.Context, email, password, ip, userAgent string) (LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	id, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("find user: %w", err)
	}
	if err := s.hasher.Verify(id.PasswordHash, password); err != nil {
		return LoginResult{}, err
	}
	if !id.Active {
		return LoginResult{}, ErrInvalidCredentials
	}

	now := s.clock().UTC()
	sess := Session{
		ID:        uuid.NewString(),
		UserID:    id.ID,
		Email:     id.Email,
		Name:      id.Name,
		Role:      id.Role,
		IPAddress: ip,
		UserAgent: userAgent,
		CreatedAt: now,
	}
	token, expires, err := s.tokens.Issue(now, sess.ID, sess.UserID, sess.Role)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}
	sess.ExpiresAt = expires

	if err := s.sessions.Put(ctx, sess, s.tokens.TTL()); err != nil {
		return LoginResult{}, err
	}

	_, err = s.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionLogin,
		EntityType: "User",
		EntityID:   id.ID,
		ActorID:    id.ID,
		IPAddress:  ip,
		UserAgent:  userAgent,
		Metadata:   audit.Metadata(map[string]any{"sessionId": sess.ID}),
	})
	if err != nil {
		if delErr := s.sessions.Delete(context.WithoutCancel(ctx), sess.ID); delErr != nil {
			s.logger.Error("revoke session after failed login audit", "err", delErr, "session_id", sess.ID)
		}
		return LoginResult{}, fmt.Errorf("record login: %w", err)
	}

	return LoginResult{Token: token, ExpiresAt: expires, Session: sess}, nil
}

// Authenticate resolves a bearer or cookie token to a live session.
func (s *Service) Authenticate(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrUnauthenticated
	}
	claims, err := s.tokens.Verify(token, s.clock())
	if err != nil {
		return Session{}, ErrUnauthenticated
	}
	sess, err := s.sessions.Get(ctx, claims.SessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return Session{}, ErrUnauthenticated
	}
	if err != nil {
		return Session{}, err
	}
	if sess.UserID != claims.UserID {
		return Session{}, ErrUnauthenticated
	}
	return sess, nil
}

// Logout records a LOGOUT entry and then deletes the session. If the entry
// cannot be written the session stays valid.
func (s *Service) Logout(ctx context.Context, sess Session) error {
	_, err := s.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionLogout,
		EntityType: "User",
		EntityID:   sess.UserID,
		ActorID:    sess.UserID,
		Metadata:   audit.Metadata(map[string]any{"sessionId": sess.ID}),
	})
	if err != nil {
		return fmt.Errorf("record logout: %w", err)
	}
	if err := s.sessions.Delete(ctx, sess.ID); err != nil {
		return err
	}
	return nil
}
