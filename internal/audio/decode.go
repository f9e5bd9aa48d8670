package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/wav"

	"wavbatch/internal/services"
)

// Clip describes a decoded recording.
type Clip struct {
	Path       string
	Duration   time.Duration
	SampleRate int
	Channels   int
	BitDepth   int
}

// Decode parses path as a WAV container. Malformed content wraps
// services.ErrDecode so callers can route the file to the failed area;
// open and read errors wrap services.ErrTransient and leave it pending.
func Decode(path string) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, services.Wrap(services.ErrTransient, "decode", "open", path, err)
	}
	defer f.Close()

	src := &trackedReader{file: f}
	dec := wav.NewDecoder(src)
	if !dec.IsValidFile() {
		if src.err != nil {
			return Clip{}, services.Wrap(services.ErrTransient, "decode", "read", path, src.err)
		}
		return Clip{}, services.Wrap(services.ErrDecode, "decode", "validate", "not a valid wav file: "+path, dec.Err())
	}
	if err := dec.FwdToPCM(); err != nil {
		if src.err != nil {
			return Clip{}, services.Wrap(services.ErrTransient, "decode", "read", path, src.err)
		}
		return Clip{}, services.Wrap(services.ErrDecode, "decode", "data chunk", path, err)
	}

	// The RIFF header size includes trailing chunks, so the duration comes
	// from the data chunk alone.
	bytesPerSecond := int64(dec.SampleRate) * int64(dec.NumChans) * int64(dec.BitDepth) / 8
	if bytesPerSecond <= 0 {
		return Clip{}, services.Wrap(services.ErrDecode, "decode", "format", fmt.Sprintf("invalid sample format in %s", path), nil)
	}
	duration := time.Duration(dec.PCMLen()) * time.Second / time.Duration(bytesPerSecond)
	if duration <= 0 {
		return Clip{}, services.Wrap(services.ErrDecode, "decode", "duration", fmt.Sprintf("empty audio in %s", path), nil)
	}
	return Clip{
		Path:       path,
		Duration:   duration,
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}, nil
}

// trackedReader keeps the first I/O error so it can be told apart from a
// malformed container.
type trackedReader struct {
	file *os.File
	err  error
}

func (r *trackedReader) Read(p []byte) (int, error) {
	n, err := r.file.Read(p)
	r.note(err)
	return n, err
}

func (r *trackedReader) Seek(offset int64, whence int) (int64, error) {
	pos, err := r.file.Seek(offset, whence)
	r.note(err)
	return pos, err
}

func (r *trackedReader) note(err error) {
	if err == nil || r.err != nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return
	}
	r.err = err
}
