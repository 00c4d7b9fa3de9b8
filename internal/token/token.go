// Package token extracts issuance metadata from auth-service tokens and
// applies TTL-based expiry.
package token

import (
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IssuedAt extracts the issuance timestamp from a token. Extraction rules are
// tried in a fixed order:
//
//  1. dotted format "<opaque>.<username>.<epochMillis>" — the third segment
//     parses as a positive integer of milliseconds;
//  2. JWT — unverified parse, registered "iat" claim.
//
// Returns false when no rule matches; such tokens are treated as expired.
func IssuedAt(tok string) (time.Time, bool) {
	parts := strings.Split(tok, ".")
	if len(parts) >= 3 {
		if ms, err := strconv.ParseInt(parts[2], 10, 64); err == nil && ms > 0 {
			return time.UnixMilli(ms), true
		}
	}

	var claims jwt.RegisteredClaims
	if _, _, err := new(jwt.Parser).ParseUnverified(tok, &claims); err == nil && claims.IssuedAt != nil {
		return claims.IssuedAt.Time, true
	}

	return time.Time{}, false
}

// Expired reports whether the token's issuance timestamp plus ttl lies in the
// past. Unparseable tokens are always expired.
func Expired(tok string, ttl time.Duration, now time.Time) bool {
	iat, ok := IssuedAt(tok)
	if !ok {
		return true
	}
	return now.After(iat.Add(ttl))
}

// Username returns the lowercased second segment of a dotted token, or ""
// when the token has no such segment. Used only as a log field.
func Username(tok string) string {
	parts := strings.Split(tok, ".")
	if len(parts) < 3 {
		return ""
	}
	return strings.ToLower(parts[1])
}
