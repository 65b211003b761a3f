package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ragpipe/internal/domain"
)

func TestCharLength(t *testing.T) {
	assert.Equal(t, 0, CharLength(""))
	assert.Equal(t, 5, CharLength("hello"))
	// runes, not bytes
	assert.Equal(t, 4, CharLength("café"))
	assert.Equal(t, 2, CharLength("学校"))
}

func TestNewLengthFunc_Chars(t *testing.T) {
	fn, err := NewLengthFunc("chars", "")
	require.NoError(t, err)
	assert.Equal(t, 3, fn("abc"))

	fn, err = NewLengthFunc("", "")
	require.NoError(t, err)
	assert.Equal(t, 3, fn("abc"))
}

func TestNewLengthFunc_Unknown(t *testing.T) {
	_, err := NewLengthFunc("words", "")
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestNewLengthFunc_Tokens(t *testing.T) {
	fn, err := NewLengthFunc("tokens", "cl100k_base")
	if err != nil {
		// the encoding is downloaded on first use
		t.Skipf("cl100k_base not available: %v", err)
	}

	text := "Tuition is due before the first day of classes."
	n := fn(text)
	assert.Greater(t, n, 0)
	assert.Less(t, n, CharLength(text))
	assert.Equal(t, 2, fn("hello world"))
	assert.Equal(t, 0, fn(""))

	counter, err := NewTokenCounter("cl100k_base")
	require.NoError(t, err)
	assert.Equal(t, counter.CountTokens(text), n)
}

func TestNewTokenCounter_UnknownEncoding(t *testing.T) {
	_, err := NewLengthFunc("tokens", "no_such_encoding")
	assert.Error(t, err)
}
