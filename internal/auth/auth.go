package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

var (
	// ErrUserExists indicates the email is already registered.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidCredentials indicates a wrong email or password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken indicates a forged, unknown, or expired session token.
	ErrInvalidToken = errors.New("invalid or expired token")
)

const minPasswordLength = 8

// Config holds auth service configuration.
type Config struct {
	DBPath        string
	TokenSecret   string
	SessionTTL    time.Duration // Lifetime of a regular session
	RememberedTTL time.Duration // Lifetime with remember-me
}

// User is a registered account.
type User struct {
	ID        string    `json:"user_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Service manages accounts and sessions in SQLite.
type Service struct {
	db            *sql.DB
	secret        []byte
	sessionTTL    time.Duration
	rememberedTTL time.Duration
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	token_hash TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id),
	expires_at TIMESTAMP NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
`

// New opens the auth database and ensures the schema exists.
func New(config Config) (*Service, error) {
	if config.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if config.TokenSecret == "" {
		return nil, fmt.Errorf("token secret is required")
	}
	if config.SessionTTL <= 0 || config.RememberedTTL <= 0 {
		return nil, fmt.Errorf("session TTLs must be positive")
	}

	db, err := sql.Open("sqlite", config.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open auth database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create auth schema: %w", err)
	}

	return &Service{
		db:            db,
		secret:        []byte(config.TokenSecret),
		sessionTTL:    config.SessionTTL,
		rememberedTTL: config.RememberedTTL,
	}, nil
}

// Close closes the underlying database.
func (s *Service) Close() error {
	return s.db.Close()
}

// Register creates a new account.
func (s *Service) Register(ctx context.Context, email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("a valid email is required")
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		ID:        uuid.NewString(),
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)",
		user.ID, user.Email, string(hash), user.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Login verifies credentials and mints a session token. Remember-me
// sessions live longer than regular ones.
func (s *Service) Login(ctx context.Context, email, password string, remember bool) (string, time.Time, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var userID, passwordHash string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, password_hash FROM users WHERE email = ?", email,
	).Scan(&userID, &passwordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to look up user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)) != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}

	token, err := mintToken(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	ttl := s.sessionTTL
	if remember {
		ttl = s.rememberedTTL
	}
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO sessions (token_hash, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)",
		tokenHash(token), userID, expiresAt, now,
	)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Debug("session created", "user_id", userID, "remember", remember)
	return token, expiresAt, nil
}

// Authenticate resolves a session token to its user. Expired sessions are
// rejected and purged.
func (s *Service) Authenticate(ctx context.Context, token string) (*User, error) {
	if !verifyToken(s.secret, token) {
		return nil, ErrInvalidToken
	}

	hash := tokenHash(token)
	var user User
	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT u.id, u.email, u.created_at, s.expires_at
		 FROM sessions s JOIN users u ON u.id = s.user_id
		 WHERE s.token_hash = ?`, hash,
	).Scan(&user.ID, &user.Email, &user.CreatedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}

	if time.Now().After(expiresAt) {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE token_hash = ?", hash); err != nil {
			slog.Warn("failed to purge expired session", "error", err)
		}
		return nil, ErrInvalidToken
	}

	return &user, nil
}

// Logout deletes the session. Logging out an unknown token is a no-op.
func (s *Service) Logout(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE token_hash = ?", tokenHash(token))
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// PurgeExpired removes all expired sessions. Call periodically.
func (s *Service) PurgeExpired(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to purge sessions: %w", err)
	}
	return nil
}
