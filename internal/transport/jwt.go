package transport

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AgentClaims identifies the agent a bearer token was minted for.
// registerAgent mints one of these; every transport binding verifies
// it before forwarding a heartbeat/progress/complete signal.
type AgentClaims struct {
	jwt.RegisteredClaims
	AgentID string `json:"agent_id"`
}

// TokenIssuer mints and verifies agent bearer tokens with a single
// HMAC secret, the same extractToken/Bearer-prefix convention the
// teacher's api-gateway uses for its Authorization header.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer builds an issuer. ttl <= 0 means tokens never expire
// on their own (agents still get a fresh one on every reconnect).
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Mint issues a bearer token for agentID, called once from
// registerAgent.
func (t *TokenIssuer) Mint(agentID string) (string, error) {
	claims := AgentClaims{AgentID: agentID}
	if t.ttl > 0 {
		claims.RegisteredClaims = jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(t.ttl)),
		}
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(t.secret)
}

// Verify parses and validates a raw token, returning the agent id it
// was minted for.
func (t *TokenIssuer) Verify(raw string) (string, error) {
	claims := &AgentClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("transport: unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("transport: invalid agent token: %w", err)
	}
	if !tok.Valid || claims.AgentID == "" {
		return "", fmt.Errorf("transport: token carries no agent id")
	}
	return claims.AgentID, nil
}

// ExtractBearer pulls the raw token out of an "Authorization: Bearer
// <token>" header value, ported from the teacher's extractToken.
func ExtractBearer(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}
