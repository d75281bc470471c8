package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "42",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestExpiresAt(t *testing.T) {
	exp := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	got, ok := ExpiresAt(signedToken(t, exp))
	require.True(t, ok)
	require.True(t, exp.Equal(got))

	_, ok = ExpiresAt("tok2")
	require.False(t, ok)
	_, ok = ExpiresAt("")
	require.False(t, ok)
}

func TestExpiresWithin(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	soon := signedToken(t, now.Add(20*time.Second))
	later := signedToken(t, now.Add(time.Hour))

	require.True(t, ExpiresWithin(soon, now, 30*time.Second))
	require.False(t, ExpiresWithin(later, now, 30*time.Second))
	require.False(t, ExpiresWithin("opaque", now, time.Hour))
}
