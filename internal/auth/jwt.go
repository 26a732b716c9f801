package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the payload inside every JWT token.
//
// When a user logs in, we create a token containing these fields.
// On every subsequent request, the middleware reads the token back
// and extracts these claims — this is how the server knows WHO
// is making the request without hitting the database every time.
//
// Why embed jwt.RegisteredClaims?
//   - It gives us standard JWT fields for free: ExpiresAt, IssuedAt, Issuer.
//   - Libraries and tooling (jwt.io debugger) recognize these standard fields.
//   - We add our custom fields (UserID, Email) on top.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed JWT for a given user.
//
// Why HS256 (HMAC-SHA256)?
//   - Simple: one shared secret, no public/private key pair needed.
//   - Fast: symmetric crypto is faster than RSA/ECDSA.
//   - Fine for a single-service backend. If multiple services needed to
//     VERIFY but not ISSUE tokens, we'd switch to RS256 (asymmetric) so
//     only the auth service has the private key.
func GenerateToken(userID uuid.UUID, email, secret string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "pawmates",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// ParseToken validates a JWT string and extracts the claims.
//
// It verifies:
//  1. The signature matches our secret (not tampered with).
//  2. The token hasn't expired (ExpiresAt is in the future).
//  3. The signing method is HMAC (prevents algorithm-switching attacks).
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (any, error) {
			// This callback runs BEFORE signature verification. Rejecting
			// non-HMAC methods here blocks the classic JWT "algorithm
			// confusion" attack.
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}
