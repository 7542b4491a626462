package transport

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Minute)

	tok, err := issuer.Mint("agent-1")
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	agentID, err := issuer.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, "agent-1", agentID)
}

func TestTokenIssuerRejectsForeignSecret(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Minute)
	other := NewTokenIssuer("other-secret", time.Minute)

	tok, err := issuer.Mint("agent-1")
	require.NoError(t, err)

	_, err = other.Verify(tok)
	require.Error(t, err)
}

func TestTokenIssuerRejectsExpiredToken(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Minute)

	// A non-positive ttl mints tokens without an expiry, so the expired
	// token is signed here directly with an ExpiresAt in the past.
	claims := AgentClaims{
		AgentID: "agent-1",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Minute)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = issuer.Verify(tok)
	require.Error(t, err)
}

func TestExtractBearer(t *testing.T) {
	tok, ok := ExtractBearer("Bearer abc.def.ghi")
	require.True(t, ok)
	require.Equal(t, "abc.def.ghi", tok)

	_, ok = ExtractBearer("Basic abc")
	require.False(t, ok)

	_, ok = ExtractBearer("")
	require.False(t, ok)
}
