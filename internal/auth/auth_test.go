package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := New(Config{
		DBPath:        filepath.Join(t.TempDir(), "auth.db"),
		TokenSecret:   "test-secret",
		SessionTTL:    24 * time.Hour,
		RememberedTTL: 7 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"missing db path", Config{TokenSecret: "s", SessionTTL: time.Hour, RememberedTTL: time.Hour}},
		{"missing secret", Config{DBPath: "x.db", SessionTTL: time.Hour, RememberedTTL: time.Hour}},
		{"zero TTL", Config{DBPath: "x.db", TokenSecret: "s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.config); err == nil {
				t.Error("New() should fail")
			}
		})
	}
}

func TestRegister(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Alice@Example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("email = %q, want lowercased", user.Email)
	}
	if user.ID == "" {
		t.Error("user ID should be set")
	}

	// Same email again, any casing, is rejected.
	if _, err := svc.Register(ctx, "alice@example.com", "another password"); !errors.Is(err, ErrUserExists) {
		t.Errorf("duplicate Register() error = %v, want ErrUserExists", err)
	}

	if _, err := svc.Register(ctx, "not-an-email", "long enough password"); err == nil {
		t.Error("Register() should reject invalid email")
	}
	if _, err := svc.Register(ctx, "bob@example.com", "short"); err == nil {
		t.Error("Register() should reject short password")
	}
}

func TestLoginAndAuthenticate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	token, expiresAt, err := svc.Login(ctx, "alice@example.com", "correct horse battery", false)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if token == "" {
		t.Fatal("Login() returned empty token")
	}
	if remaining := time.Until(expiresAt); remaining > 24*time.Hour || remaining < 23*time.Hour {
		t.Errorf("regular session expires in %v, want ~24h", remaining)
	}

	got, err := svc.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("Authenticate() user = %s, want %s", got.ID, user.ID)
	}
}

func TestLogin_RememberMeExtendsSession(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice@example.com", "correct horse battery"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	_, expiresAt, err := svc.Login(ctx, "alice@example.com", "correct horse battery", true)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if remaining := time.Until(expiresAt); remaining < 6*24*time.Hour {
		t.Errorf("remembered session expires in %v, want ~7d", remaining)
	}
}

func TestLogin_WrongCredentials(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice@example.com", "correct horse battery"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if _, _, err := svc.Login(ctx, "alice@example.com", "wrong password!", false); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := svc.Login(ctx, "unknown@example.com", "whatever pass", false); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user error = %v, want ErrInvalidCredentials", err)
	}
}

func TestAuthenticate_RejectsForgedToken(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Authenticate(ctx, "not-even-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage token error = %v, want ErrInvalidToken", err)
	}

	// Valid signature from a different secret must fail verification.
	foreign, err := mintToken([]byte("other-secret"))
	if err != nil {
		t.Fatalf("mintToken() error = %v", err)
	}
	if _, err := svc.Authenticate(ctx, foreign); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign token error = %v, want ErrInvalidToken", err)
	}

	// Well-signed token with no session row must also fail.
	unknown, err := mintToken([]byte("test-secret"))
	if err != nil {
		t.Fatalf("mintToken() error = %v", err)
	}
	if _, err := svc.Authenticate(ctx, unknown); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("sessionless token error = %v, want ErrInvalidToken", err)
	}
}

func TestAuthenticate_ExpiredSessionPurged(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice@example.com", "correct horse battery"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	token, _, err := svc.Login(ctx, "alice@example.com", "correct horse battery", false)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	// Force the session into the past.
	if _, err := svc.db.Exec("UPDATE sessions SET expires_at = ?", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("failed to expire session: %v", err)
	}

	if _, err := svc.Authenticate(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token error = %v, want ErrInvalidToken", err)
	}

	var count int
	if err := svc.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count); err != nil {
		t.Fatalf("failed to count sessions: %v", err)
	}
	if count != 0 {
		t.Errorf("expired session not purged, %d rows remain", count)
	}
}

func TestLogout(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice@example.com", "correct horse battery"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	token, _, err := svc.Login(ctx, "alice@example.com", "correct horse battery", false)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if err := svc.Logout(ctx, token); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := svc.Authenticate(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("token after logout error = %v, want ErrInvalidToken", err)
	}

	// Logging out again is a no-op.
	if err := svc.Logout(ctx, token); err != nil {
		t.Errorf("repeated Logout() error = %v", err)
	}
}

func TestPurgeExpired(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice@example.com", "correct horse battery"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, _, err := svc.Login(ctx, "alice@example.com", "correct horse battery", false); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	keep, _, err := svc.Login(ctx, "alice@example.com", "correct horse battery", true)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	// Expire only the first session.
	if _, err := svc.db.Exec("UPDATE sessions SET expires_at = ? WHERE token_hash != ?",
		time.Now().Add(-time.Minute), tokenHash(keep)); err != nil {
		t.Fatalf("failed to expire session: %v", err)
	}

	if err := svc.PurgeExpired(ctx); err != nil {
		t.Fatalf("PurgeExpired() error = %v", err)
	}

	if _, err := svc.Authenticate(ctx, keep); err != nil {
		t.Errorf("live session should survive purge: %v", err)
	}
	var count int
	if err := svc.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count); err != nil {
		t.Fatalf("failed to count sessions: %v", err)
	}
	if count != 1 {
		t.Errorf("sessions after purge = %d, want 1", count)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("s3cret")
	token, err := mintToken(secret)
	if err != nil {
		t.Fatalf("mintToken() error = %v", err)
	}
	if !verifyToken(secret, token) {
		t.Error("verifyToken() rejected its own token")
	}
	if verifyToken([]byte("different"), token) {
		t.Error("verifyToken() accepted token under wrong secret")
	}
	if verifyToken(secret, token+"x") {
		t.Error("verifyToken() accepted tampered token")
	}
}
