// internal/utils/keygen.go
package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NormalizeEmail applies the canonical form used everywhere a subscriber
// identity is compared or stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeLicenseKey applies the canonical form used on every key lookup.
func NormalizeLicenseKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// GenerateLicenseKey derives a new license key from the subscriber email.
// Three segments: a deterministic hash prefix of the normalized email (so
// repeated issuance for one subscriber is traceable), six random bytes, and
// a base-36 time token. Uniqueness is ultimately enforced by the store's
// unique constraint, not here.
func GenerateLicenseKey(email string) (string, error) {
	normalized := NormalizeEmail(email)

	digest := sha256.Sum256([]byte(normalized))
	emailPart := hex.EncodeToString(digest[:])[:12]

	randomBytes := make([]byte, 6)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("generate license key entropy: %w", err)
	}
	randomPart := hex.EncodeToString(randomBytes)

	timePart := strconv.FormatInt(time.Now().UnixMilli(), 36)

	return strings.ToUpper(emailPart + "-" + randomPart + "-" + timePart), nil
}

// GeneratePaymentReference builds the correlation id recorded against the
// pending row and handed to the payment gateway.
func GeneratePaymentReference() (string, error) {
	randomBytes := make([]byte, 4)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("generate payment reference entropy: %w", err)
	}
	return fmt.Sprintf("RB-%d-%s", time.Now().UnixMilli(),
		strings.ToUpper(hex.EncodeToString(randomBytes))), nil
}
