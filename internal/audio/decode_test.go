package audio_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"wavbatch/internal/audio"
	"wavbatch/internal/ledger"
	"wavbatch/internal/services"
	"wavbatch/internal/testsupport"
)

func TestDecodeReportsDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.wav")
	testsupport.WriteWAV(t, path, 25*time.Second)

	clip, err := audio.Decode(path)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if clip.Duration != 25*time.Second {
		t.Fatalf("unexpected duration %s", clip.Duration)
	}
	if clip.SampleRate != testsupport.TestSampleRate || clip.Channels != 1 || clip.BitDepth != 16 {
		t.Fatalf("unexpected format %+v", clip)
	}
}

func TestDecodeExactLengthYieldsWholeWindows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.wav")
	testsupport.WriteWAV(t, path, 30*time.Second)

	clip, err := audio.Decode(path)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if clip.Duration != 30*time.Second {
		t.Fatalf("expected exactly 30s, got %s", clip.Duration)
	}
	windows := audio.Plan(clip.Duration, 10*time.Second)
	if len(windows) != 3 {
		t.Fatalf("expected 3 windows, got %d: %+v", len(windows), windows)
	}
	if last := windows[len(windows)-1]; last.End != 30*time.Second {
		t.Fatalf("last window should end at 30s, got %+v", last)
	}
}

func TestDecodeRejectsCorruptInput(t *testing.T) {
	corrupt := filepath.Join(t.TempDir(), "b.wav")
	if err := os.WriteFile(corrupt, []byte("this is not riff data"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	_, err := audio.Decode(corrupt)
	if err == nil {
		t.Fatal("expected decode error")
	}
	if !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected ErrDecode marker, got %v", err)
	}
	if services.FailureStatus(err) != ledger.StatusFailed {
		t.Fatalf("corrupt input should be terminal, got %q", services.FailureStatus(err))
	}
}

func TestDecodeIOErrorsAreTransient(t *testing.T) {
	dir := t.TempDir()

	_, err := audio.Decode(filepath.Join(dir, "missing.wav"))
	if !errors.Is(err, services.ErrTransient) || errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected transient error for missing file, got %v", err)
	}

	// Opening a directory succeeds but every read fails.
	unreadable := filepath.Join(dir, "d.wav")
	if err := os.Mkdir(unreadable, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	_, err = audio.Decode(unreadable)
	if !errors.Is(err, services.ErrTransient) || errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected transient error for unreadable file, got %v", err)
	}
	if services.FailureStatus(err) == ledger.StatusFailed {
		t.Fatalf("read errors must not be terminal")
	}
}
