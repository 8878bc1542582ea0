package roomcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// seqSource returns the queued values in order, wrapping around.
type seqSource struct {
	vals []int
	i    int
}

func (s *seqSource) Intn(n int) int {
	v := s.vals[s.i%len(s.vals)] % n
	s.i++
	return v
}

func TestGenerator_DeterministicSource(t *testing.T) {
	g, err := New(&seqSource{vals: []int{0, 1, 2, 25, 26, 35}}, DefaultAlphabet, 6)
	require.NoError(t, err)
	assert.Equal(t, "ABCZ09", g.Next())
}

func TestNew_RejectsBadArguments(t *testing.T) {
	_, err := New(nil, DefaultAlphabet, 6)
	assert.Error(t, err)
	_, err = New(NewCryptoSource(), DefaultAlphabet, 0)
	assert.Error(t, err)
	_, err = New(NewCryptoSource(), "A", 6)
	assert.Error(t, err)
}

func TestNewDefault(t *testing.T) {
	code := NewDefault().Next()
	assert.Len(t, code, DefaultLength)
}

func TestCryptoSource_PanicsOnNonPositive(t *testing.T) {
	assert.Panics(t, func() { NewCryptoSource().Intn(0) })
}

// Property: every code has the configured length and uses only alphabet bytes.
func TestPropertyCodeShape(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		alphabet := rapid.StringMatching(`[A-Z0-9]{2,36}`).Draw(t, "alphabet")
		length := rapid.IntRange(1, 16).Draw(t, "length")
		g, err := New(NewCryptoSource(), alphabet, length)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		code := g.Next()
		if len(code) != length {
			t.Fatalf("len(%q) = %d, want %d", code, len(code), length)
		}
		for _, r := range code {
			if !strings.ContainsRune(alphabet, r) {
				t.Fatalf("code %q contains %q outside alphabet %q", code, r, alphabet)
			}
		}
	})
}

// Property: the crypto source stays within [0, n).
func TestPropertyCryptoSourceRange(t *testing.T) {
	src := NewCryptoSource()
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 1000).Draw(t, "n")
		if v := src.Intn(n); v < 0 || v >= n {
			t.Fatalf("Intn(%d) = %d", n, v)
		}
	})
}
