package licenses

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	pkgerrors "github.com/trydo/wts-backend/pkg/errors"
	"github.com/trydo/wts-backend/pkg/security"
)

const (
	// KeyPrefix leads every license key.
	KeyPrefix = "WTS"
	// KeyAlphabet excludes I, O, 0 and 1.
	KeyAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	keyGroups      = 4
	keyGroupLen    = 5
	maxKeyAttempts = 5
)

// KeyPattern matches a well-formed license key.
var KeyPattern = regexp.MustCompile(`^WTS-[A-HJ-NP-Z2-9]{5}-[A-HJ-NP-Z2-9]{5}-[A-HJ-NP-Z2-9]{5}-[A-HJ-NP-Z2-9]{5}$`)

// NormalizeKey uppercases and trims user supplied keys.
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// GenerateKey returns a random key such as WTS-7KQ2M-XH9PD-3RTVA-N8BWE.
func GenerateKey() (string, error) {
	raw, err := security.RandomString(KeyAlphabet, keyGroups*keyGroupLen)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.Grow(len(KeyPrefix) + keyGroups*(keyGroupLen+1))
	b.WriteString(KeyPrefix)
	for i := 0; i < keyGroups; i++ {
		b.WriteByte('-')
		b.WriteString(raw[i*keyGroupLen : (i+1)*keyGroupLen])
	}
	return b.String(), nil
}

// KeyGenerator mints keys that do not collide with stored ones.
type KeyGenerator struct {
	random   func() (string, error)
	attempts int
}

// NewKeyGenerator returns a generator backed by crypto/rand.
func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{random: GenerateKey, attempts: maxKeyAttempts}
}

// NewKeyGeneratorFrom draws candidates from random instead of crypto/rand.
func NewKeyGeneratorFrom(random func() (string, error), attempts int) *KeyGenerator {
	if random == nil {
		random = GenerateKey
	}
	if attempts <= 0 {
		attempts = maxKeyAttempts
	}
	return &KeyGenerator{random: random, attempts: attempts}
}

// Unique draws keys until exists reports a free one. It gives up with an
// internal error after a bounded number of collisions.
func (g *KeyGenerator) Unique(ctx context.Context, exists func(ctx context.Context, key string) (bool, error)) (string, error) {
	for attempt := 1; attempt <= g.attempts; attempt++ {
		key, err := g.random()
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate license key")
		}
		taken, err := exists(ctx, key)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check license key")
		}
		if !taken {
			return key, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("license key collision after %d attempts", g.attempts))
}
