// Package auth handles the OAuth2/PKCE login flow and the session tokens it
// produces.
//
// AUTHENTICATION FLOW OVERVIEW:
// 1. User visits /o → we stash a PKCE verifier and redirect to Discord
// 2. Discord calls back /oc with a code and our state token
// 3. Server pops the verifier, exchanges code+verifier for a token,
//    fetches the account identity, and revokes the token
// 4. Server issues a JWT session cookie carrying the verified Discord id
// 5. The profile routes read the cookie (OptionalAuth) so the page can show
//    "your" card without re-running the OAuth dance
//
// The JWT is stateless — no session table. Everything needed (the verified
// id, the expiry) lives inside the signed token, and the signature ensures
// nobody can claim someone else's Discord id without the secret key.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenService signs and verifies the session JWTs.
//
// It holds the HMAC secret key used for both operations — keep it safe and
// rotate it periodically in production.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims is the JWT payload. It embeds jwt.RegisteredClaims which includes
// standard fields like Issuer, Subject, ExpiresAt, IssuedAt.
//
// The "sub" (Subject) claim carries the verified Discord id as a string —
// the only fact the login flow establishes.
type claims struct {
	jwt.RegisteredClaims
}

// Generate creates and signs a session token for the given verified Discord id.
//
// Token lifetime: 15 minutes. Long enough to browse your own profile after
// logging in; short enough that a leaked cookie goes stale quickly. After
// expiry, the user just clicks through the OAuth flow again.
//
// Signing algorithm: HS256 (HMAC-SHA256) — symmetric, same key signs and
// verifies. Fine for a single-server deployment.
func (s *TokenService) Generate(discordID string) (string, error) {
	return s.GenerateWithDuration(discordID, 15*time.Minute)
}

// GenerateWithDuration creates a token with a custom expiry duration.
// Used by tests to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(discordID string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   discordID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    "levelboard",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string.
// Returns the Discord id (the "sub" claim) if the token is valid.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired (ExpiresAt is in the future)
//   - Issuer matches "levelboard" (prevents tokens from other apps)
//   - Algorithm is HS256 (prevents algorithm confusion attacks, where an
//     attacker submits a token claiming the "none" algorithm)
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer("levelboard"),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return c.Subject, nil
}
