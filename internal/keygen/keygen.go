package keygen

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// alphabet is the 62-symbol set keys are drawn from. 62^32 candidate keys
// make collisions against the live set negligible; the caller still retries
// on the off chance.
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

const (
	// DefaultPrefix namespaces every issued key.
	DefaultPrefix = "Violet-Hub-"
	// DefaultLength is the random portion, excluding the prefix.
	DefaultLength = 32
)

// Generator produces opaque access keys. Stateless.
type Generator struct {
	prefix string
	length int
}

// New creates a generator. Zero values fall back to the defaults.
func New(prefix string, length int) *Generator {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if length <= 0 {
		length = DefaultLength
	}
	return &Generator{prefix: prefix, length: length}
}

// Generate returns a fresh random key.
func (g *Generator) Generate() (string, error) {
	buf := make([]byte, g.length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	var sb strings.Builder
	sb.Grow(len(g.prefix) + g.length)
	sb.WriteString(g.prefix)
	for _, b := range buf {
		sb.WriteByte(alphabet[int(b)%len(alphabet)])
	}
	return sb.String(), nil
}

// Prefix returns the namespace tag keys are issued under.
func (g *Generator) Prefix() string {
	return g.prefix
}
