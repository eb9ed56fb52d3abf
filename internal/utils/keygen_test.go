// internal/utils/keygen_test.go
package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@b.com", NormalizeEmail("  A@B.COM  "))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestNormalizeLicenseKey(t *testing.T) {
	assert.Equal(t, "ABC-123", NormalizeLicenseKey(" abc-123 "))
}

func TestGenerateLicenseKeyFormat(t *testing.T) {
	key, err := GenerateLicenseKey("User@Example.com")
	require.NoError(t, err)

	assert.Equal(t, key, strings.ToUpper(key), "key must be upper-cased")

	segments := strings.Split(key, "-")
	require.Len(t, segments, 3)
	assert.Len(t, segments[0], 12, "email hash prefix is fixed length")
	assert.Len(t, segments[1], 12, "six random bytes hex encoded")
	assert.NotEmpty(t, segments[2], "time token present")
}

func TestGenerateLicenseKeyEmailPrefixIsDeterministic(t *testing.T) {
	first, err := GenerateLicenseKey("user@example.com")
	require.NoError(t, err)
	second, err := GenerateLicenseKey("  USER@example.COM ")
	require.NoError(t, err)

	assert.Equal(t, strings.Split(first, "-")[0], strings.Split(second, "-")[0],
		"same normalized email must yield the same hash prefix")
}

func TestGenerateLicenseKeyIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key, err := GenerateLicenseKey("user@example.com")
		require.NoError(t, err)
		assert.False(t, seen[key], "duplicate key generated: %s", key)
		seen[key] = true
	}
}

func TestGeneratePaymentReference(t *testing.T) {
	ref, err := GeneratePaymentReference()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(ref, "RB-"))
	segments := strings.Split(ref, "-")
	require.Len(t, segments, 3)
	assert.Len(t, segments[2], 8)

	other, err := GeneratePaymentReference()
	require.NoError(t, err)
	assert.NotEqual(t, ref, other)
}
