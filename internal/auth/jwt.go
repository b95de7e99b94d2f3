package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// expiryClaim extracts the exp claim from a JWT without verifying the
// signature. Kiro access tokens are opaque to this client; the claim
// only feeds the refresh heuristic.
func expiryClaim(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
