package qrcode

import (
	"crypto/rand"
	"fmt"
)

const (
	// Base36Alphabet matches the short lowercase tokens found on already printed codes
	Base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	// Base62Alphabet is used for strong tokens
	Base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// LegacyTokenLength keeps the token shape of existing codes (~67 bits of base36)
	LegacyTokenLength = 13
	// StrongTokenLength gives at least 128 bits of base62
	StrongTokenLength = 22
)

// TokenGenerator produces the opaque marker stamped on each payload
type TokenGenerator func() (string, error)

// NewTokenGenerator returns a generator drawing length characters uniformly
// from alphabet using crypto/rand
func NewTokenGenerator(length int, alphabet string) TokenGenerator {
	return func() (string, error) {
		return randomString(length, alphabet)
	}
}

// LegacyTokens generates tokens shaped like the ones on existing printed codes
func LegacyTokens() TokenGenerator {
	return NewTokenGenerator(LegacyTokenLength, Base36Alphabet)
}

// StrongTokens generates tokens suitable for deployments exposed to adversarial scanning
func StrongTokens() TokenGenerator {
	return NewTokenGenerator(StrongTokenLength, Base62Alphabet)
}

func randomString(length int, alphabet string) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("token length must be positive, got %d", length)
	}
	if len(alphabet) < 2 || len(alphabet) > 256 {
		return "", fmt.Errorf("token alphabet must have between 2 and 256 symbols, got %d", len(alphabet))
	}

	// bytes at or above limit are discarded so every symbol is equally likely
	limit := 256 - (256 % len(alphabet))
	out := make([]byte, 0, length)
	buf := make([]byte, length*2)

	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == length {
				break
			}
		}
	}

	return string(out), nil
}
