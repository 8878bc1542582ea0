// Package roomcode generates the short join codes players type to enter a room.
package roomcode

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

// DefaultAlphabet is the character set used when none is configured.
const DefaultAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultLength is the code length used when none is configured.
const DefaultLength = 6

// Source produces uniformly distributed integers in [0, n).
type Source interface {
	Intn(n int) int
}

// cryptoSource implements Source using crypto/rand.
//
// Invariant: All values produced are uniformly distributed in [0, n) for any n > 0.
type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
//
// Postcondition: Every value returned by Intn is in [0, n).
func NewCryptoSource() Source {
	return &cryptoSource{}
}

// Intn returns a cryptographically secure random int in [0, n).
//
// Precondition: n > 0. Panics if n <= 0 or if crypto/rand fails.
func (c *cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("roomcode: Intn called with n <= 0")
	}
	val, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("roomcode: crypto/rand failure: " + err.Error())
	}
	return int(val.Int64())
}

// Generator draws fixed-length codes from an alphabet.
type Generator struct {
	src      Source
	alphabet string
	length   int
}

// New creates a Generator.
//
// Precondition: length >= 1 and alphabet holds at least two bytes.
// Postcondition: Returns a Generator or an error describing the bad argument.
func New(src Source, alphabet string, length int) (*Generator, error) {
	if src == nil {
		return nil, errors.New("roomcode: source must not be nil")
	}
	if length < 1 {
		return nil, errors.New("roomcode: length must be >= 1")
	}
	if len(alphabet) < 2 {
		return nil, errors.New("roomcode: alphabet must contain at least 2 characters")
	}
	return &Generator{src: src, alphabet: alphabet, length: length}, nil
}

// NewDefault returns a crypto-backed Generator producing 6-character codes
// over A-Z and 0-9.
func NewDefault() *Generator {
	return &Generator{src: NewCryptoSource(), alphabet: DefaultAlphabet, length: DefaultLength}
}

// Next returns a fresh code. Codes are not checked for collisions.
func (g *Generator) Next() string {
	var b strings.Builder
	b.Grow(g.length)
	for i := 0; i < g.length; i++ {
		b.WriteByte(g.alphabet[g.src.Intn(len(g.alphabet))])
	}
	return b.String()
}
