package adminapi

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo is what the console reads out of a bearer token.
type TokenInfo struct {
	Subject   string
	ExpiresAt time.Time
}

// Expired reports whether the token carries an exp claim before now.
func (i TokenInfo) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// InspectToken decodes the claims of a JWT without verifying its signature.
// The signing key belongs to the backend; the console only needs the subject
// for logging and the expiry to fail fast.
func InspectToken(token string) (TokenInfo, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenInfo{}, fmt.Errorf("decoding token: %w", err)
	}

	var info TokenInfo
	if sub, err := claims.GetSubject(); err == nil {
		info.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	return info, nil
}

// CheckToken inspects token and returns ErrTokenExpired if it is no longer
// valid at now. Opaque (non-JWT) tokens pass unchecked.
func CheckToken(token string, now time.Time) (TokenInfo, error) {
	info, err := InspectToken(token)
	if err != nil {
		return TokenInfo{}, nil
	}
	if info.Expired(now) {
		return info, fmt.Errorf("token for %q expired at %s: %w", info.Subject, info.ExpiresAt.Format(time.RFC3339), ErrTokenExpired)
	}
	return info, nil
}
