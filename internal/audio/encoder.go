package audio

import (
	"context"
	"time"
)

// Span selects a sub-range of a recording. The zero Span means the whole clip.
type Span struct {
	Start  time.Duration
	Length time.Duration
}

// IsWhole reports whether the span covers the entire input.
func (s Span) IsWhole() bool {
	return s.Start == 0 && s.Length == 0
}

// Encoder re-encodes src (or a span of it) into the distribution format at dst.
type Encoder interface {
	Encode(ctx context.Context, src, dst string, span Span) error
}
