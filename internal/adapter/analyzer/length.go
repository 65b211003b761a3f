package analyzer

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"ragpipe/internal/domain"
)

// LengthFunc measures text for chunk size limits.
type LengthFunc func(text string) int

// CharLength counts characters (runes), not bytes.
func CharLength(text string) int {
	return utf8.RuneCountInString(text)
}

// TokenCounter counts BPE tokens with a tiktoken encoding.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenCounter loads the named encoding, e.g. "cl100k_base".
func NewTokenCounter(encoding string) (*TokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding %q: %w", encoding, err)
	}
	return &TokenCounter{encoding: enc}, nil
}

// CountTokens returns the number of tokens in text.
func (c *TokenCounter) CountTokens(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}

// NewLengthFunc returns the length function for a chunk.length setting.
func NewLengthFunc(kind, encoding string) (LengthFunc, error) {
	switch kind {
	case "", "chars":
		return CharLength, nil
	case "tokens":
		counter, err := NewTokenCounter(encoding)
		if err != nil {
			return nil, err
		}
		return counter.CountTokens, nil
	default:
		return nil, fmt.Errorf("%w: unknown length function %q", domain.ErrInvalidConfig, kind)
	}
}
