// Package authn verifies bearer tokens issued by the external identity
// provider and exposes the resulting claims to HTTP handlers.
//
// The identity provider itself is out of scope for this service (see
// spec §1) — this package only verifies tokens it issues and extracts the
// owner/tenant identity carried in them.
package authn

import "github.com/golang-jwt/jwt/v5"

// Claims is the set of JWT claims this service expects from the external
// identity provider. Unknown extra claims are ignored.
type Claims struct {
	jwt.RegisteredClaims
	OwnerID string `json:"owner_id"`
	Email   string `json:"email,omitempty"`
}

// OwnerUUID is a convenience accessor; owner_id is opaque to this package,
// callers that need a uuid.UUID parse it themselves.
func (c *Claims) OwnerUUID() string { return c.OwnerID }
