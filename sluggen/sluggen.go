// Package sluggen provides slug generation functionality.
// Generators should be safe for concurrent use.
package sluggen

import (
	"crypto/rand"
	"errors"
)

const (
	base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

// Generator generates URL slugs.
// Implementations should be safe for concurrent use.
type Generator interface {
	Generate(length int) (string, error)
}

// base62Generator implements Generator using base62 encoding.
// It is safe for concurrent use.
type base62Generator struct{}

// NewBase62 returns a new base62 slug generator.
func NewBase62() Generator {
	return &base62Generator{}
}

// Generate generates a random base62 string of the specified length.
// Bytes are rejection-sampled so every character is equally likely.
func (g *base62Generator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}

	// 248 is the largest multiple of 62 that fits in a byte; bytes at
	// or above it would skew the first eight characters of the alphabet.
	const limit = 248

	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, c := range buf {
			if c >= limit {
				continue
			}
			out = append(out, base62Chars[int(c)%len(base62Chars)])
			if len(out) == length {
				break
			}
		}
	}

	return string(out), nil
}
