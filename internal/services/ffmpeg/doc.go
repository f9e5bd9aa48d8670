// Package ffmpeg wraps the ffmpeg command line as an audio.Encoder.
//
// Whole-file conversions and chunk slices share one invocation shape; a span
// adds input seeking (-ss) and an output duration (-t).
package ffmpeg
