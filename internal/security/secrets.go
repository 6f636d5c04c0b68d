package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math"
	"strings"
)

// Webhook secret requirements
const (
	MinSecretLength = 32
	MinEntropy      = 3.5 // bits per character

	generatedSecretBytes = 36 // 48 base64 characters
)

// placeholderMarkers appear in the sample secrets of documentation and
// generated configs
var placeholderMarkers = []string{"replace", "changeme", "topsecret", "password", "example"}

// ValidateSecret rejects webhook secrets below MinSecretLength or
// MinEntropy, and secrets that look like a placeholder.
func ValidateSecret(secret string) error {
	if len(secret) < MinSecretLength {
		return fmt.Errorf("secret too short (minimum %d characters, got %d)", MinSecretLength, len(secret))
	}

	lower := strings.ToLower(secret)
	for _, marker := range placeholderMarkers {
		if strings.Contains(lower, marker) {
			return fmt.Errorf("secret appears to be a placeholder value (contains %q)", marker)
		}
	}

	if h := shannonEntropy(secret); h < MinEntropy {
		return fmt.Errorf("secret has insufficient entropy (%.2f < %.2f), use 'buildgate secret' to generate one", h, MinEntropy)
	}

	return nil
}

// IsWeakSecret reports secrets that fail ValidateSecret or that are
// mostly runs of adjacent characters such as "abcdef" or "987654". The
// latter pass the entropy check but are easy to guess.
func IsWeakSecret(secret string) bool {
	return ValidateSecret(secret) != nil || isSequential(secret)
}

// GenerateSecret returns a random URL-safe secret of 48 characters.
func GenerateSecret() (string, error) {
	buf := make([]byte, generatedSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random secret: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}

// shannonEntropy returns the entropy of s in bits per byte.
func shannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}

	var counts [256]int
	for i := 0; i < len(s); i++ {
		counts[s[i]]++
	}

	n := float64(len(s))
	var h float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		h -= p * math.Log2(p)
	}
	return h
}

// isSequential reports whether more than 70% of adjacent byte pairs
// differ by exactly one.
func isSequential(s string) bool {
	if len(s) < 4 {
		return false
	}

	steps := 0
	for i := 1; i < len(s); i++ {
		if d := int(s[i]) - int(s[i-1]); d == 1 || d == -1 {
			steps++
		}
	}
	return float64(steps) > float64(len(s)-1)*0.7
}
