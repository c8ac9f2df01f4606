package adminapi_test

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classroomapp/adminconsole/internal/adminapi"
)

// authBackend issues a fresh token per login and only accepts the latest.
type authBackend struct {
	t      *testing.T
	mu     sync.Mutex
	valid  string
	logins atomic.Int32
}

func (b *authBackend) revoke() {
	b.mu.Lock()
	b.valid = ""
	b.mu.Unlock()
}

func (b *authBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if r.URL.Path == adminapi.PathLogin {
		n := b.logins.Add(1)
		b.valid = "tok-" + strconv.Itoa(int(n))
		writeJSON(b.t, w, map[string]string{"token": b.valid})
		return
	}
	if b.valid == "" || r.Header.Get("Authorization") != "Bearer "+b.valid {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(b.t, w, map[string]interface{}{"overallStatus": "HEALTHY"})
}

func newSession(t *testing.T, b *authBackend, cfg adminapi.SessionConfig) *adminapi.Session {
	t.Helper()
	b.t = t
	client, _ := newTestClient(t, b)
	cfg.Client = client
	cfg.Logger = zerolog.Nop()
	return adminapi.NewSession(cfg)
}

func TestSession_LogsInOnFirstUse(t *testing.T) {
	b := &authBackend{}
	s := newSession(t, b, adminapi.SessionConfig{Username: "admin", Password: "secret"})

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			health, err := s.SystemHealth(context.Background())
			if assert.NoError(t, err) {
				assert.Equal(t, "HEALTHY", health.OverallStatus)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), b.logins.Load())
}

func TestSession_LogsInAgainAfterUnauthorized(t *testing.T) {
	b := &authBackend{}
	s := newSession(t, b, adminapi.SessionConfig{Username: "admin", Password: "secret"})

	_, err := s.SystemHealth(context.Background())
	require.NoError(t, err)
	b.revoke()

	_, err = s.SystemHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), b.logins.Load())
}

func TestSession_ProvidedTokenSkipsLogin(t *testing.T) {
	b := &authBackend{valid: "preissued"}
	s := newSession(t, b, adminapi.SessionConfig{Token: "preissued"})

	_, err := s.SystemHealth(context.Background())
	require.NoError(t, err)
	assert.Zero(t, b.logins.Load())

	b.revoke()
	_, err = s.SystemHealth(context.Background())
	assert.True(t, adminapi.IsStatus(err, http.StatusUnauthorized))
	assert.Zero(t, b.logins.Load())
}

func TestSession_ExpiredTokenFallsBackToLogin(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	expired := signedToken(t, jwt.MapClaims{"sub": "admin", "exp": now.Add(-time.Minute).Unix()})

	b := &authBackend{valid: expired}
	s := newSession(t, b, adminapi.SessionConfig{
		Token:    expired,
		Username: "admin",
		Password: "secret",
		Now:      func() time.Time { return now },
	})

	_, err := s.SystemHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), b.logins.Load())
}

func TestSession_ExpiredTokenWithoutCredentials(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	expired := signedToken(t, jwt.MapClaims{"sub": "admin", "exp": now.Add(-time.Minute).Unix()})

	b := &authBackend{valid: expired}
	s := newSession(t, b, adminapi.SessionConfig{Token: expired, Now: func() time.Time { return now }})

	_, err := s.SystemHealth(context.Background())
	assert.ErrorIs(t, err, adminapi.ErrTokenExpired)
}

func TestSession_NoCredentials(t *testing.T) {
	s := newSession(t, &authBackend{}, adminapi.SessionConfig{})

	_, err := s.TriggerHealthCheck(context.Background())
	assert.ErrorIs(t, err, adminapi.ErrNoCredentials)
}
