package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/config"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/market"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/models"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, ratePerMinute int) *Service {
	t.Helper()
	return NewService(store.NewMemory(), config.AuthConfig{
		JWTSecret:          "test-secret",
		TokenTTL:           time.Hour,
		AdminEmails:        []string{"admin@bookbazaar.in"},
		LoginRatePerMinute: ratePerMinute,
	}, nil)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, salt, err := hashPassword("correct horse")
	require.NoError(t, err)

	ok, err := verifyPassword("correct horse", salt, hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = verifyPassword("wrong horse", salt, hash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = verifyPassword("x", "%%%", hash)
	assert.Error(t, err)
}

func TestSignupAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, 10)

	user, err := svc.Signup(ctx, SignupRequest{Email: " Reader@Example.com ", Name: "Reader", Password: "secret1", Location: "Bapu Nagar"})
	require.NoError(t, err)
	assert.Equal(t, "reader@example.com", user.Email)
	assert.False(t, user.IsAdmin)

	token, loggedIn, err := svc.Login(ctx, "READER@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	p, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, market.Principal{ID: user.ID, Name: "Reader"}, p)

	_, _, err = svc.Login(ctx, "reader@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignupGrantsAdminFromConfigOnly(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, 10)

	user, err := svc.Signup(ctx, SignupRequest{Email: "Admin@BookBazaar.in", Name: "Admin", Password: "secret1"})
	require.NoError(t, err)
	assert.True(t, user.IsAdmin)

	token, _, err := svc.Login(ctx, "admin@bookbazaar.in", "secret1")
	require.NoError(t, err)
	p, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.True(t, p.IsAdmin)
}

func TestSignupValidation(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, 10)

	tests := []struct {
		name string
		req  SignupRequest
	}{
		{"bad email", SignupRequest{Email: "not-an-email", Name: "A", Password: "secret1"}},
		{"blank name", SignupRequest{Email: "a@example.com", Name: " ", Password: "secret1"}},
		{"short password", SignupRequest{Email: "a@example.com", Name: "A", Password: "123"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Signup(ctx, tt.req)
			assert.ErrorIs(t, err, market.ErrValidation)
		})
	}

	_, err := svc.Signup(ctx, SignupRequest{Email: "a@example.com", Name: "A", Password: "secret1"})
	require.NoError(t, err)
	_, err = svc.Signup(ctx, SignupRequest{Email: "A@example.com", Name: "B", Password: "secret2"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLoginRateLimitedPerEmail(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, 2)

	for i := 0; i < 2; i++ {
		_, _, err := svc.Login(ctx, "victim@example.com", "guess")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, _, err := svc.Login(ctx, "victim@example.com", "guess")
	assert.ErrorIs(t, err, ErrRateLimited)

	_, _, err = svc.Login(ctx, "other@example.com", "guess")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginLimitersEvictedWhenIdle(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, 2)
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	for i := range 1000 {
		_, _, err := svc.Login(ctx, fmt.Sprintf("user%d@example.com", i), "guess")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	for range 2 {
		_, _, _ = svc.Login(ctx, "victim@example.com", "guess")
	}
	_, _, err := svc.Login(ctx, "victim@example.com", "guess")
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Len(t, svc.limiters, 1001)

	now = now.Add(limiterIdle / 2)
	_, _, err = svc.Login(ctx, "victim@example.com", "guess")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "burst refills within a minute")

	now = now.Add(limiterIdle/2 + time.Second)
	_, _, err = svc.Login(ctx, "fresh@example.com", "guess")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Len(t, svc.limiters, 2, "only limiters used in the last window survive")
	assert.Contains(t, svc.limiters, "victim@example.com")
}

func TestParseTokenRejects(t *testing.T) {
	svc := newService(t, 10)
	user := &models.User{ID: "u1", Name: "Reader"}

	_, err := svc.ParseToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := &tokenIssuer{secret: []byte("other-secret"), ttl: time.Hour, now: time.Now}
	forged, err := other.issue(user)
	require.NoError(t, err)
	_, err = svc.ParseToken(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := &tokenIssuer{secret: []byte("test-secret"), ttl: time.Hour, now: func() time.Time {
		return time.Now().Add(-2 * time.Hour)
	}}
	old, err := expired.issue(user)
	require.NoError(t, err)
	_, err = svc.ParseToken(old)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ParseToken(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMeAndUpdateLocation(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, 10)

	user, err := svc.Signup(ctx, SignupRequest{Email: "r@example.com", Name: "Reader", Password: "secret1"})
	require.NoError(t, err)
	p := market.Principal{ID: user.ID, Name: user.Name}

	_, err = svc.Me(ctx, market.Principal{})
	assert.ErrorIs(t, err, market.ErrAuthRequired)
	_, err = svc.Me(ctx, market.Principal{ID: "ghost"})
	assert.ErrorIs(t, err, market.ErrNotFound)

	_, err = svc.UpdateLocation(ctx, p, "  ")
	assert.ErrorIs(t, err, market.ErrValidation)

	updated, err := svc.UpdateLocation(ctx, p, " Civil Lines ")
	require.NoError(t, err)
	assert.Equal(t, "Civil Lines", updated.Location)

	me, err := svc.Me(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "Civil Lines", me.Location)
}
