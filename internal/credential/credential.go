// ABOUTME: Bearer credential model and the durable store contract
// ABOUTME: One credential is active at a time; it is replaced or cleared wholesale

package credential

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Credential is the bearer token issued by the ledger service.
// IssuedAt and ExpiresIn are advisory; the server's 401 is the authority.
type Credential struct {
	Token     string        `json:"token"`
	IssuedAt  time.Time     `json:"issued_at"`
	ExpiresIn time.Duration `json:"expires_in"`
}

// Store holds the current credential across process restarts.
// Read returns nil with no error when nothing is persisted.
type Store interface {
	Read() (*Credential, error)
	Write(cred *Credential) error
	Clear() error
}

// FromAuth builds a credential from a login/register response. When the token
// is a JWT carrying iat/exp claims those take precedence over the local clock.
func FromAuth(token string, expiresInMs int64, now time.Time) *Credential {
	cred := &Credential{
		Token:     token,
		IssuedAt:  now.UTC(),
		ExpiresIn: time.Duration(expiresInMs) * time.Millisecond,
	}

	claims, ok := parseClaims(token)
	if !ok {
		return cred
	}
	if claims.IssuedAt != nil {
		cred.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		if d := claims.ExpiresAt.Time.Sub(cred.IssuedAt); d > 0 {
			cred.ExpiresIn = d
		}
	}
	return cred
}

// ExpiresAt returns the nominal expiry, or the zero time when unknown.
func (c *Credential) ExpiresAt() time.Time {
	if c == nil || c.ExpiresIn <= 0 || c.IssuedAt.IsZero() {
		return time.Time{}
	}
	return c.IssuedAt.Add(c.ExpiresIn)
}

// Expired reports whether the nominal expiry has passed. Display only.
func (c *Credential) Expired(now time.Time) bool {
	exp := c.ExpiresAt()
	return !exp.IsZero() && now.After(exp)
}

// parseClaims decodes registered claims without verifying the signature.
// The client never holds the signing key.
func parseClaims(token string) (*jwt.RegisteredClaims, bool) {
	if strings.Count(token, ".") != 2 {
		return nil, false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}
