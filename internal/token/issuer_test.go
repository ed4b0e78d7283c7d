package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIssuer_RequiresSecret(t *testing.T) {
	_, err := NewIssuer("", 0)
	assert.Error(t, err)
}

func TestAuthToken_RoundTrip(t *testing.T) {
	iss, err := NewIssuer("test-secret", 0)
	require.NoError(t, err)

	tok, err := iss.AuthToken("usr-001", "alice@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	claims, err := iss.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "usr-001", claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Nil(t, claims.ExpiresAt)

	other, err := iss.AuthToken("usr-001", "alice@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, tok, other, "every issued token carries a fresh id")
}

func TestParse_Rejects(t *testing.T) {
	iss, err := NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	foreign, err := NewIssuer("another-secret", 0)
	require.NoError(t, err)

	forged, err := foreign.AuthToken("usr-001", "alice@example.com")
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "usr-001"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	iss.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := iss.AuthToken("usr-001", "alice@example.com")
	require.NoError(t, err)
	iss.now = time.Now

	tests := map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": forged,
		"alg none":     unsigned,
		"expired":      expired,
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := iss.Parse(tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestConfirmationToken(t *testing.T) {
	iss, err := NewIssuer("test-secret", 0)
	require.NoError(t, err)

	a, err := iss.ConfirmationToken()
	require.NoError(t, err)
	b, err := iss.ConfirmationToken()
	require.NoError(t, err)

	assert.Len(t, a, ConfirmationTokenBytes*2)
	assert.NotEqual(t, a, b)
}

func TestHashAndEqual(t *testing.T) {
	assert.Len(t, Hash("abc"), 64)
	assert.Equal(t, Hash("abc"), Hash("abc"))
	assert.NotEqual(t, Hash("abc"), Hash("abd"))

	assert.True(t, Equal("abc", "abc"))
	assert.False(t, Equal("abc", "abd"))
	assert.False(t, Equal("", ""))
}
