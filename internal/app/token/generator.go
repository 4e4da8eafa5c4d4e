package token

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Alphabet omits characters that are easy to misread (0/O, 1/l/I).
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"

const (
	defaultLength   = 10
	defaultExpected = 1_000_000
	defaultFPRate   = 0.01
	maxDraws        = 8
)

var (
	ErrInvalidLength = errors.New("token length must be positive")
	ErrExhausted     = errors.New("no unused token found")
)

// Generator issues random link tokens. A bloom filter of tokens already seen lets it skip
// candidates that are probably taken; the store's unique index stays authoritative.
type Generator struct {
	length int

	mu     sync.Mutex
	issued *bloom.BloomFilter
}

// Options tune the generator; zero values fall back to defaults.
type Options struct {
	Length        int
	ExpectedLinks uint
	FalsePositive float64
}

// NewGenerator returns a Generator sized for the expected number of links.
func NewGenerator(opts Options) *Generator {
	length := opts.Length
	if length <= 0 {
		length = defaultLength
	}
	expected := opts.ExpectedLinks
	if expected == 0 {
		expected = defaultExpected
	}
	fp := opts.FalsePositive
	if fp <= 0 || fp >= 1 {
		fp = defaultFPRate
	}

	return &Generator{
		length: length,
		issued: bloom.NewWithEstimates(expected, fp),
	}
}

// Next draws a token the generator has not seen before.
func (g *Generator) Next() (string, error) {
	for i := 0; i < maxDraws; i++ {
		candidate, err := Random(g.length)
		if err != nil {
			return "", err
		}
		if !g.Seen(candidate) {
			return candidate, nil
		}
	}
	return "", ErrExhausted
}

// Remember records a token as issued.
func (g *Generator) Remember(token string) {
	g.mu.Lock()
	g.issued.AddString(token)
	g.mu.Unlock()
}

// Seen reports whether the token was probably issued already.
func (g *Generator) Seen(token string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.issued.TestString(token)
}

// Warm loads existing tokens into the filter.
func (g *Generator) Warm(ctx context.Context, each func(ctx context.Context, fn func(token string)) error) error {
	if err := each(ctx, g.Remember); err != nil {
		return fmt.Errorf("warm token filter: %w", err)
	}
	return nil
}

// Random returns a token of the given length drawn uniformly from Alphabet.
func Random(length int) (string, error) {
	if length <= 0 {
		return "", ErrInvalidLength
	}

	limit := big.NewInt(int64(len(Alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate token: %w", err)
		}
		out[i] = Alphabet[n.Int64()]
	}
	return string(out), nil
}
