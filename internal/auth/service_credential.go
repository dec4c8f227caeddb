package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// ServiceCredential is a long-lived bearer credential distinct from a
// user's short-lived JWT, used by internal/gateway when pushing a compiled
// FirewallConfig so the gateway daemon never needs a human session token.
// Grounded on the source product's authentication_key concept, narrowed to
// the single service-to-service key type this product needs.
type ServiceCredential struct {
	Name  string
	Token string // hex-encoded random secret, compared in constant time
}

// NewServiceCredential mints a fresh 256-bit random service token.
func NewServiceCredential(name string) (ServiceCredential, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return ServiceCredential{}, fmt.Errorf("generate service credential: %w", err)
	}
	return ServiceCredential{Name: name, Token: hex.EncodeToString(buf)}, nil
}

// Verify reports whether presented matches the credential's token, using a
// constant-time comparison to avoid leaking the secret through timing.
func (c ServiceCredential) Verify(presented string) bool {
	return subtle.ConstantTimeCompare([]byte(c.Token), []byte(presented)) == 1
}
