package idgen

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
)

// ProvisionalPrefix marks identifiers that were minted locally and are unknown to the backend.
const ProvisionalPrefix = "tmp"

// GenerateSecureID generates a cryptographically secure ID with the given prefix and length.
// Uses only alphanumeric characters (0-9, a-z) - no dashes or special characters.
func GenerateSecureID(prefix string, length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid id length %d", length)
	}
	bytes := make([]byte, length*2)
	_, err := rand.Read(bytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	const charset = "0123456789abcdefghijklmnopqrstuvwxyz"
	encoded := make([]byte, length)
	for i := 0; i < length; i++ {
		encoded[i] = charset[bytes[i]%36]
	}

	return fmt.Sprintf("%s_%s", prefix, string(encoded)), nil
}

// GenerateCorrelationID returns a provisional identifier of the form tmp_<unixmillis>_<random>.
func GenerateCorrelationID(now time.Time) (string, error) {
	return GenerateSecureID(fmt.Sprintf("%s_%d", ProvisionalPrefix, now.UnixMilli()), 8)
}

// IsProvisional reports whether id was minted by GenerateCorrelationID or derived from one.
func IsProvisional(id string) bool {
	return strings.HasPrefix(id, ProvisionalPrefix+"_")
}
