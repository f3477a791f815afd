package services

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"portfolio-cms/pkg/models"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Credentials is the single admin account. PasswordHash, a bcrypt hash,
// takes precedence over Password.
type Credentials struct {
	Username     string
	Password     string
	PasswordHash string
}

func (c Credentials) check(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.Username)) == 1
	var passOK bool
	if c.PasswordHash != "" {
		passOK = bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) == nil
	} else {
		passOK = c.Password != "" && subtle.ConstantTimeCompare([]byte(password), []byte(c.Password)) == 1
	}
	return userOK && passOK
}

// SessionManager keeps admin sessions in memory. Sessions do not survive a
// restart.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
	creds    Credentials
	ttl      time.Duration
	now      func() time.Time
	stop     chan struct{}
	once     sync.Once
}

func NewSessionManager(creds Credentials, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	m := &SessionManager{
		sessions: make(map[string]models.Session),
		creds:    creds,
		ttl:      ttl,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go m.sweep()
	return m
}

// Login checks the credentials and opens a session.
func (m *SessionManager) Login(username, password string) (models.Session, error) {
	if !m.creds.check(username, password) {
		return models.Session{}, ErrInvalidCredentials
	}
	return m.Open(username)
}

// Open starts a session for an already authenticated user.
func (m *SessionManager) Open(username string) (models.Session, error) {
	token, err := newToken()
	if err != nil {
		return models.Session{}, err
	}
	sess := models.Session{
		Token:     token,
		Username:  username,
		ExpiresAt: m.now().Add(m.ttl),
	}
	m.mu.Lock()
	m.sessions[token] = sess
	m.mu.Unlock()
	return sess, nil
}

// Validate returns the live session for token. Expired sessions are removed.
func (m *SessionManager) Validate(token string) (models.Session, bool) {
	if token == "" {
		return models.Session{}, false
	}
	m.mu.RLock()
	sess, ok := m.sessions[token]
	m.mu.RUnlock()
	if !ok {
		return models.Session{}, false
	}
	if !m.now().Before(sess.ExpiresAt) {
		m.Logout(token)
		return models.Session{}, false
	}
	return sess, true
}

func (m *SessionManager) Logout(token string) {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
}

// Len reports the number of stored sessions, expired ones included.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *SessionManager) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.removeExpired()
		}
	}
}

func (m *SessionManager) removeExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for token, sess := range m.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(m.sessions, token)
		}
	}
}

// Close stops the background sweep.
func (m *SessionManager) Close() {
	m.once.Do(func() { close(m.stop) })
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// HashPassword returns a bcrypt hash for ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
