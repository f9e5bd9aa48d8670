// Package audio decodes source recordings and plans the time-sliced chunks
// produced from them.
//
// Decoding validates the container with go-audio/wav and reports the clip's
// duration in its own time base. Planning is pure arithmetic over that
// duration so chunk sets are deterministic for a given length and window.
// Encoding is delegated to an Encoder implementation (see services/ffmpeg).
package audio
