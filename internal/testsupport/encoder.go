package testsupport

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"wavbatch/internal/audio"
)

// EncodeCall captures one FakeEncoder invocation.
type EncodeCall struct {
	Src  string
	Dst  string
	Span audio.Span
}

// FakeEncoder writes placeholder output files and records every call.
type FakeEncoder struct {
	mu    sync.Mutex
	Calls []EncodeCall
	// FailSuffix makes Encode fail for any dst ending with one of the values.
	FailSuffix []string
}

// Encode implements audio.Encoder.
func (e *FakeEncoder) Encode(_ context.Context, src, dst string, span audio.Span) error {
	e.mu.Lock()
	e.Calls = append(e.Calls, EncodeCall{Src: src, Dst: dst, Span: span})
	e.mu.Unlock()

	for _, suffix := range e.FailSuffix {
		if strings.HasSuffix(dst, suffix) {
			return errors.New("fake encoder failure")
		}
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, []byte("ID3"), 0o644)
}

var _ audio.Encoder = (*FakeEncoder)(nil)
