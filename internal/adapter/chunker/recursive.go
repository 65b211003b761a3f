package chunker

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"ragpipe/internal/adapter/analyzer"
	"ragpipe/internal/domain"
)

// DefaultSeparators are tried in order: paragraph, line, word, character.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Segment is one emitted piece of text and its byte offset in the source.
type Segment struct {
	Text   string
	Offset int
}

type span struct {
	start, end int
}

// RecursiveSplitter splits text into overlapping pieces bounded by a maximum
// length, preferring the highest-priority separator that works.
type RecursiveSplitter struct {
	size       int
	overlap    int
	separators []string
	length     analyzer.LengthFunc
	trimSpace  bool
}

// Option configures a RecursiveSplitter.
type Option func(*RecursiveSplitter)

// WithSeparators sets the separators in priority order. "" means a hard
// character cut.
func WithSeparators(separators []string) Option {
	return func(s *RecursiveSplitter) {
		s.separators = append([]string(nil), separators...)
	}
}

// WithLengthFunc sets how pieces are measured against the size limit.
func WithLengthFunc(fn analyzer.LengthFunc) Option {
	return func(s *RecursiveSplitter) {
		if fn != nil {
			s.length = fn
		}
	}
}

// WithTrimSpace controls whether leading and trailing whitespace is removed
// from emitted pieces.
func WithTrimSpace(trim bool) Option {
	return func(s *RecursiveSplitter) {
		s.trimSpace = trim
	}
}

func NewRecursiveSplitter(size, overlap int, opts ...Option) (*RecursiveSplitter, error) {
	s := &RecursiveSplitter{
		size:       size,
		overlap:    overlap,
		separators: DefaultSeparators,
		length:     analyzer.CharLength,
		trimSpace:  true,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidConfig, s.size)
	}
	if s.overlap < 0 || s.overlap >= s.size {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", domain.ErrInvalidConfig, s.size, s.overlap)
	}
	if len(s.separators) == 0 {
		return nil, fmt.Errorf("%w: at least one separator is required", domain.ErrInvalidConfig)
	}
	return s, nil
}

// Split returns the chunk texts in order.
func (s *RecursiveSplitter) Split(text string) []string {
	segments := s.Segments(text)
	out := make([]string, len(segments))
	for i, seg := range segments {
		out[i] = seg.Text
	}
	return out
}

// Segments returns the chunk texts with their offsets in text.
func (s *RecursiveSplitter) Segments(text string) []Segment {
	if text == "" {
		return nil
	}
	spans := s.split(text, span{0, len(text)}, s.separators)
	out := make([]Segment, 0, len(spans))
	for _, sp := range spans {
		out = append(out, Segment{Text: text[sp.start:sp.end], Offset: sp.start})
	}
	return out
}

func (s *RecursiveSplitter) split(text string, whole span, separators []string) []span {
	sub := text[whole.start:whole.end]

	sep := separators[len(separators)-1]
	var rest []string
	for i, candidate := range separators {
		if candidate == "" {
			sep = ""
			break
		}
		if strings.Contains(sub, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}

	var out, good []span
	for _, piece := range splitKeep(text, whole, sep) {
		if s.measure(text, piece) < s.size {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			out = append(out, s.merge(text, good)...)
			good = nil
		}
		if len(rest) == 0 {
			// unsplittable: emitted whole
			if t, ok := s.trim(text, piece); ok {
				out = append(out, t)
			}
			continue
		}
		out = append(out, s.split(text, piece, rest)...)
	}
	if len(good) > 0 {
		out = append(out, s.merge(text, good)...)
	}
	return out
}

// merge packs adjacent pieces greedily up to size, carrying trailing pieces
// worth at most overlap into the next chunk.
func (s *RecursiveSplitter) merge(text string, pieces []span) []span {
	var out, current []span
	total := 0

	for _, piece := range pieces {
		n := s.measure(text, piece)
		if total+n > s.size && len(current) > 0 {
			if joined, ok := s.join(text, current); ok {
				out = append(out, joined)
			}
			for len(current) > 0 && (total > s.overlap || total+n > s.size) {
				total -= s.measure(text, current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
	}

	if joined, ok := s.join(text, current); ok {
		out = append(out, joined)
	}
	return out
}

func (s *RecursiveSplitter) join(text string, pieces []span) (span, bool) {
	if len(pieces) == 0 {
		return span{}, false
	}
	return s.trim(text, span{pieces[0].start, pieces[len(pieces)-1].end})
}

func (s *RecursiveSplitter) trim(text string, sp span) (span, bool) {
	if s.trimSpace {
		sub := text[sp.start:sp.end]
		left := len(sub) - len(strings.TrimLeftFunc(sub, unicode.IsSpace))
		right := len(strings.TrimRightFunc(sub, unicode.IsSpace))
		if right <= left {
			return span{}, false
		}
		sp = span{sp.start + left, sp.start + right}
	}
	return sp, sp.end > sp.start
}

func (s *RecursiveSplitter) measure(text string, sp span) int {
	return s.length(text[sp.start:sp.end])
}

// splitKeep cuts whole at every occurrence of sep, keeping the separator at
// the start of the following piece. Empty pieces are dropped. An empty sep
// cuts between characters.
func splitKeep(text string, whole span, sep string) []span {
	sub := text[whole.start:whole.end]
	var pieces []span

	if sep == "" {
		for i := 0; i < len(sub); {
			_, width := utf8.DecodeRuneInString(sub[i:])
			pieces = append(pieces, span{whole.start + i, whole.start + i + width})
			i += width
		}
		return pieces
	}

	prev, pos := 0, 0
	for {
		i := strings.Index(sub[pos:], sep)
		if i < 0 {
			break
		}
		at := pos + i
		if at > prev {
			pieces = append(pieces, span{whole.start + prev, whole.start + at})
		}
		prev = at
		pos = at + len(sep)
	}
	if prev < len(sub) {
		pieces = append(pieces, span{whole.start + prev, whole.end})
	}
	return pieces
}
