package authn

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates bearer tokens minted by the external identity
// provider. In "development" mode it accepts any token — or no token at
// all — and attributes the request to a fixed caller id, per spec §6.
type Verifier struct {
	pub         *rsa.PublicKey
	devMode     bool
	devCallerID string
}

// Config configures a Verifier.
type Config struct {
	// CredentialsPath points at a PEM-encoded RSA public key used to verify
	// provider-issued tokens (AUTH_PROVIDER_CREDENTIALS_PATH). Required
	// unless DevMode is set.
	CredentialsPath string
	// DevMode, when true, bypasses verification entirely and attributes
	// every request to DevCallerID. Intended for local development only.
	DevMode     bool
	DevCallerID string
}

// NewVerifier builds a Verifier from Config. When DevMode is false and no
// credentials path is configured, it returns an error — the service must
// not silently run unauthenticated in a non-development environment.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.DevMode {
		callerID := cfg.DevCallerID
		if callerID == "" {
			callerID = "dev-owner"
		}
		return &Verifier{devMode: true, devCallerID: callerID}, nil
	}

	if cfg.CredentialsPath == "" {
		return nil, fmt.Errorf("authn: AUTH_PROVIDER_CREDENTIALS_PATH is required outside development mode")
	}

	raw, err := os.ReadFile(cfg.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("authn: read provider credentials: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("authn: no PEM block found in %s", cfg.CredentialsPath)
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("authn: parse public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("authn: provider public key is not RSA")
	}
	return &Verifier{pub: rsaPub}, nil
}

// Verify parses and validates a bearer token, returning its claims.
// In dev mode, it always succeeds and returns claims for the fixed caller.
func (v *Verifier) Verify(tokenStr string) (*Claims, error) {
	if v.devMode {
		return &Claims{OwnerID: v.devCallerID}, nil
	}
	if tokenStr == "" {
		return nil, fmt.Errorf("authn: empty token")
	}

	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return v.pub, nil
		},
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("authn: verify token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("authn: invalid token claims")
	}
	if claims.OwnerID == "" {
		return nil, fmt.Errorf("authn: token missing owner_id claim")
	}
	return claims, nil
}
