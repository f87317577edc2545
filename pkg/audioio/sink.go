package audioio

import (
	"context"
	"io"
)

// Sink plays complete audio clips to a speaker.
type Sink interface {
	// Play writes a WAV clip to the device and blocks until playback ends
	// or ctx is cancelled.
	Play(ctx context.Context, wav []byte) error

	// Name returns the backend name (e.g., "alsa", "mock").
	Name() string

	// Close releases all resources.
	io.Closer
}

// SinkStats contains statistics about the audio sink.
type SinkStats struct {
	// ClipsPlayed is the total number of clips played.
	ClipsPlayed int64 `json:"clips_played"`

	// Failures is the number of clips that failed to play.
	Failures int64 `json:"failures"`

	// Backend is the name of the audio backend.
	Backend string `json:"backend"`

	// Device is the ALSA device in use.
	Device string `json:"device"`
}

// SinkWithStats extends Sink with statistics.
type SinkWithStats interface {
	Sink
	Stats() SinkStats
}
