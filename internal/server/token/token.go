package token

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultSuffixLength is the number of random characters appended after the ULID.
const DefaultSuffixLength = 16

// Generator produces opaque share tokens.
type Generator interface {
	Generate() (string, error)
}

// ULIDGenerator builds tokens from a lowercase ULID (millisecond timestamp plus
// 80 random bits) followed by a random alphanumeric suffix. Both parts draw
// from crypto/rand unless another entropy source is supplied.
type ULIDGenerator struct {
	now          func() time.Time
	entropy      io.Reader
	suffixLength int
}

// Option configures a ULIDGenerator.
type Option func(*ULIDGenerator)

// WithClock overrides the time component.
func WithClock(now func() time.Time) Option {
	return func(g *ULIDGenerator) { g.now = now }
}

// WithEntropy overrides the random source. It must be safe for concurrent use
// if the generator is shared.
func WithEntropy(r io.Reader) Option {
	return func(g *ULIDGenerator) { g.entropy = r }
}

// WithSuffixLength sets the length of the random suffix; 0 disables it.
func WithSuffixLength(n int) Option {
	return func(g *ULIDGenerator) { g.suffixLength = n }
}

// NewULIDGenerator creates a generator backed by crypto/rand.
func NewULIDGenerator(opts ...Option) *ULIDGenerator {
	g := &ULIDGenerator{
		now:          time.Now,
		entropy:      rand.Reader,
		suffixLength: DefaultSuffixLength,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns a new token.
func (g *ULIDGenerator) Generate() (string, error) {
	id, err := ulid.New(ulid.Timestamp(g.now()), g.entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate ulid: %w", err)
	}

	suffix, err := RandomString(g.entropy, g.suffixLength)
	if err != nil {
		return "", err
	}

	return strings.ToLower(id.String()) + suffix, nil
}

// RandomString returns a URL-safe alphanumeric string of the given length
// drawn uniformly from r.
func RandomString(r io.Reader, length int) (string, error) {
	result := make([]byte, length)
	max := big.NewInt(int64(len(charset)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(r, max)
		if err != nil {
			return "", fmt.Errorf("random source failure: %w", err)
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}

// Timestamp extracts the creation time embedded in a token produced by
// ULIDGenerator.
func Timestamp(token string) (time.Time, error) {
	if len(token) < ulid.EncodedSize {
		return time.Time{}, fmt.Errorf("token too short: %d characters", len(token))
	}
	id, err := ulid.ParseStrict(strings.ToUpper(token[:ulid.EncodedSize]))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse token: %w", err)
	}
	return ulid.Time(id.Time()), nil
}
