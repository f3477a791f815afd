package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestSessions(t *testing.T, creds Credentials) (*SessionManager, *time.Time) {
	t.Helper()
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewSessionManager(creds, time.Hour)
	m.now = func() time.Time { return clock }
	t.Cleanup(m.Close)
	return m, &clock
}

func TestSessionManager_LoginValidateLogout(t *testing.T) {
	m, clock := newTestSessions(t, Credentials{Username: "admin", Password: "s3cret"})

	_, err := m.Login("admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = m.Login("other", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	sess, err := m.Login("admin", "s3cret")
	require.NoError(t, err)
	assert.Len(t, sess.Token, 64)
	assert.Equal(t, "admin", sess.Username)
	assert.Equal(t, clock.Add(time.Hour), sess.ExpiresAt)

	got, ok := m.Validate(sess.Token)
	require.True(t, ok)
	assert.Equal(t, sess, got)

	m.Logout(sess.Token)
	_, ok = m.Validate(sess.Token)
	assert.False(t, ok)

	_, ok = m.Validate("")
	assert.False(t, ok)
}

func TestSessionManager_Expiry(t *testing.T) {
	m, clock := newTestSessions(t, Credentials{Username: "admin", Password: "pw"})

	a, err := m.Login("admin", "pw")
	require.NoError(t, err)
	*clock = clock.Add(30 * time.Minute)
	b, err := m.Open("admin")
	require.NoError(t, err)
	assert.NotEqual(t, a.Token, b.Token)
	assert.Equal(t, 2, m.Len())

	*clock = clock.Add(45 * time.Minute)
	_, ok := m.Validate(a.Token)
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len())

	*clock = clock.Add(time.Hour)
	m.removeExpired()
	assert.Zero(t, m.Len())
}

func TestSessionManager_PasswordHashWins(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hashed-pw"), bcrypt.MinCost)
	require.NoError(t, err)
	m, _ := newTestSessions(t, Credentials{Username: "admin", Password: "plain-pw", PasswordHash: string(hash)})

	_, err = m.Login("admin", "plain-pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = m.Login("admin", "hashed-pw")
	assert.NoError(t, err)
}

func TestSessionManager_EmptyPasswordNeverMatches(t *testing.T) {
	m, _ := newTestSessions(t, Credentials{Username: "admin"})
	_, err := m.Login("admin", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSessionManager_CloseTwice(t *testing.T) {
	m := NewSessionManager(Credentials{}, 0)
	assert.NotPanics(t, func() {
		m.Close()
		m.Close()
	})
	assert.Equal(t, 24*time.Hour, m.ttl)
}

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"Bearer abc123":   "abc123",
		"bearer  abc123 ": "abc123",
		"Basic abc123":    "",
		"Bearer ":         "",
		"":                "",
		"abc123":          "",
	}
	for header, want := range tests {
		assert.Equal(t, want, BearerToken(header), header)
	}
}

func TestHashPassword(t *testing.T) {
	h, err := HashPassword("pw")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(h), []byte("pw")))
}
