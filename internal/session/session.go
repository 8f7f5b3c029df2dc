// Package session issues and resolves the authenticated session handles that
// callers must present before vpn artifacts are generated.
package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultUsername is accepted when no username is configured.
	DefaultUsername = "admin"
	// DefaultTTL bounds the lifetime of a session when none is configured.
	DefaultTTL = 12 * time.Hour

	defaultPassword = "vpncert"
)

var (
	// ErrInvalidCredentials indicates a failed login.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInvalidSession indicates an unknown session token.
	ErrInvalidSession = errors.New("invalid session")
	// ErrSessionExpired indicates a session past its expiry time.
	ErrSessionExpired = errors.New("session expired")
)

// bcryptCost is the work factor used when hashing passwords.
// Tests lower it to bcrypt.MinCost.
var bcryptCost = bcrypt.DefaultCost

// Session is an authenticated capability. Holders may request artifacts.
type Session struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Token     string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Config holds the credentials sessions are issued against.
type Config struct {
	Username string
	// PasswordHash is a bcrypt hash. When empty the built-in default password is accepted.
	PasswordHash string
	TTL          time.Duration
}

// Manager handles login and session lookup. Sessions are persisted in the sessions table.
type Manager struct {
	db           *sql.DB
	username     string
	passwordHash string
	ttl          time.Duration
	now          func() time.Time
	log          log.Interface
}

// NewManager creates a session manager backed by db.
func NewManager(db *sql.DB, cfg Config, logger log.Interface) (*Manager, error) {
	if db == nil {
		return nil, errors.New("database handle is required")
	}
	if logger == nil {
		logger = log.Log
	}
	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		username = DefaultUsername
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		db:           db,
		username:     username,
		passwordHash: strings.TrimSpace(cfg.PasswordHash),
		ttl:          ttl,
		now:          time.Now,
		log:          logger,
	}, nil
}

// HashPassword returns the bcrypt hash of plain for use in configuration.
func HashPassword(plain string) (string, error) {
	if plain == "" {
		return "", errors.New("password cannot be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword returns true if the credentials match the configured user.
// Falls back to comparing against the default password if no hash is configured.
func (m *Manager) CheckPassword(username, plain string) bool {
	if subtle.ConstantTimeCompare([]byte(username), []byte(m.username)) != 1 {
		return false
	}
	if m.passwordHash == "" {
		return subtle.ConstantTimeCompare([]byte(plain), []byte(defaultPassword)) == 1
	}
	return bcrypt.CompareHashAndPassword([]byte(m.passwordHash), []byte(plain)) == nil
}

// Login verifies the credentials and issues a new session.
func (m *Manager) Login(username, password string) (*Session, error) {
	if !m.CheckPassword(username, password) {
		m.log.WithField("username", username).Warn("rejected login")
		return nil, ErrInvalidCredentials
	}
	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	now := m.now().UTC().Truncate(time.Second)
	s := &Session{
		ID:        uuid.NewString(),
		Username:  m.username,
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	_, err = m.db.Exec(
		`INSERT INTO sessions (id, token, username, created_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.Token, s.Username, s.CreatedAt.Unix(), s.ExpiresAt.Unix(),
	)
	if err != nil {
		return nil, err
	}
	m.log.WithFields(log.Fields{"session": s.ID, "username": s.Username}).Info("session opened")
	return s, nil
}

// Resolve returns the live session identified by token.
func (m *Manager) Resolve(token string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidSession
	}
	var (
		s                  Session
		created, expiresAt int64
	)
	err := m.db.QueryRow(
		`SELECT id, token, username, created_at, expires_at FROM sessions WHERE token = ?`, token,
	).Scan(&s.ID, &s.Token, &s.Username, &created, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, err
	}
	s.CreatedAt = time.Unix(created, 0).UTC()
	s.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	if s.Expired(m.now()) {
		return nil, ErrSessionExpired
	}
	return &s, nil
}

// Logout invalidates the session identified by token.
func (m *Manager) Logout(token string) error {
	res, err := m.db.Exec(`DELETE FROM sessions WHERE token = ?`, strings.TrimSpace(token))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrInvalidSession
	}
	return nil
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored in ctx, if any.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok && s != nil
}

// generateToken returns a cryptographically random 32-byte hex string.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
