package invitations

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// newToken mints the invitation capability: 32 bytes of entropy, URL-safe.
// Unguessable by construction; possession plus a matching email is what
// authorizes acceptance.
func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating invitation token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
