package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"zamanyonet-admin/internal/audit"
	"zamanyonet-admin/internal/config"
)

type stubDirectory map[string]Identity

func (d stubDirectory) FindByEmail(_ context.Context, email string) (Identity, error) {
	id, ok := d[email]
	if !ok {
		return Identity{}, ErrInvalidCredentials
	}
	return id, nil
}

type brokenAuditRepo struct {
	audit.Repository
}

func (brokenAuditRepo) Append(context.Context, audit.Entry) error {
	return errors.New("audit down")
}

type harness struct {
	svc      *Service
	sessions *MemorySessionStore
	audits   *audit.MemoryRepo
}

func newHarness(t *testing.T, repo audit.Repository) harness {
	t.Helper()
	hasher := NewPasswordHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("correct-horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	dir := stubDirectory{
		"admin@example.com":    {ID: "u-admin", Email: "admin@example.com", Name: "Admin", Role: "ADMIN", Active: true, PasswordHash: hash},
		"disabled@example.com": {ID: "u-off", Email: "disabled@example.com", Role: "STAFF", Active: false, PasswordHash: hash},
	}
	tokens, err := NewManager(config.AuthConfig{JWTSecret: "secret", SessionTTL: time.Hour})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	mem, _ := repo.(*audit.MemoryRepo)
	sessions := NewMemorySessionStore()
	return harness{
		svc:      NewService(dir, sessions, tokens, hasher, audit.NewService(repo), nil),
		sessions: sessions,
		audits:   mem,
	}
}

func TestLogin_CreatesSessionAndAudits(t *testing.T) {
	h := newHarness(t, audit.NewMemoryRepo())
	ctx := context.Background()

	res, err := h.svc.Login(ctx, " Admin@Example.com ", "correct-horse", "10.0.0.1", "test-agent")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Token == "" || res.Session.UserID != "u-admin" {
		t.Fatalf("unexpected result: %+v", res)
	}

	sess, err := h.svc.Authenticate(ctx, res.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if sess.ID != res.Session.ID {
		t.Fatalf("session mismatch")
	}

	entries := h.audits.Entries()
	if len(entries) != 1 || entries[0].Action != audit.ActionLogin || entries[0].ActorID != "u-admin" {
		t.Fatalf("expected one LOGIN entry, got %+v", entries)
	}
	if entries[0].IPAddress != "10.0.0.1" {
		t.Fatalf("expected ip recorded, got %q", entries[0].IPAddress)
	}
}

func TestLogin_RejectsBadCredentials(t *testing.T) {
	h := newHarness(t, audit.NewMemoryRepo())
	ctx := context.Background()

	cases := []struct{ email, password string }{
		{"admin@example.com", "wrong-password"},
		{"nobody@example.com", "correct-horse"},
		{"disabled@example.com", "correct-horse"},
		{"", ""},
	}
	for _, tc := range cases {
		if _, err := h.svc.Login(ctx, tc.email, tc.password, "", ""); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("%s: expected invalid credentials, got %v", tc.email, err)
		}
	}
	if n := len(h.audits.Entries()); n != 0 {
		t.Fatalf("expected no audit entries, got %d", n)
	}
}

func TestLogin_AuditFailureRevokesSession(t *testing.T) {
	h := newHarness(t, brokenAuditRepo{})

	if _, err := h.svc.Login(context.Background(), "admin@example.com", "correct-horse", "", ""); err == nil {
		t.Fatalf("expected login to fail when audit cannot be written")
	}
	if n := len(h.sessions.sessions); n != 0 {
		t.Fatalf("expected session to be revoked, %d left", n)
	}
}

func TestLogout_RevokesTokenAndAudits(t *testing.T) {
	h := newHarness(t, audit.NewMemoryRepo())
	ctx := context.Background()

	res, err := h.svc.Login(ctx, "admin@example.com", "correct-horse", "", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := h.svc.Logout(ctx, res.Session); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := h.svc.Authenticate(ctx, res.Token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected revoked token, got %v", err)
	}
	entries := h.audits.Entries()
	if len(entries) != 2 || entries[1].Action != audit.ActionLogout {
		t.Fatalf("expected LOGIN then LOGOUT, got %+v", entries)
	}
}

func TestLogout_AuditFailureKeepsSession(t *testing.T) {
	h := newHarness(t, brokenAuditRepo{})
	ctx := context.Background()

	sess := Session{ID: "s-1", UserID: "u-admin", Role: "ADMIN"}
	if err := h.sessions.Put(ctx, sess, time.Hour); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := h.svc.Logout(ctx, sess); err == nil {
		t.Fatalf("expected logout to fail when audit cannot be written")
	}
	if _, err := h.sessions.Get(ctx, sess.ID); err != nil {
		t.Fatalf("expected session to survive a failed logout, got %v", err)
	}
}

func TestRequireSession_NoTokenIs401(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newHarness(t, audit.NewMemoryRepo())

	reached := false
	r := gin.New()
	r.GET("/x", RequireSession(h.svc), func(c *gin.Context) {
		reached = true
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if w.Body.String() != `{"error":"Unauthorized"}` {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
	if reached {
		t.Fatalf("handler must not run without a session")
	}
}

func TestRequireSession_AcceptsCookieAndSetsActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newHarness(t, audit.NewMemoryRepo())
	res, err := h.svc.Login(context.Background(), "admin@example.com", "correct-horse", "", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	var actor audit.Actor
	r := gin.New()
	r.GET("/x", RequireSession(h.svc), func(c *gin.Context) {
		actor, _ = audit.ActorFrom(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: res.Token})
	req.Header.Set("User-Agent", "cookie-client")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if actor.ID != "u-admin" || actor.UserAgent != "cookie-client" {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestMemorySessionStore_Expires(t *testing.T) {
	now := time.Unix(1700000000, 0)
	store := NewMemorySessionStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	if err := store.Put(ctx, Session{ID: "s1"}, time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := store.Get(ctx, "s1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expired session, got %v", err)
	}
}
