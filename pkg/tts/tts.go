// Package tts provides text-to-speech synthesis for the unit's voice.
//
// The production provider shells out to espeak-ng with the flat, low
// pitched settings that give B-9 its mechanical sound. Providers return a
// complete WAV clip; playback belongs to package audioio.
//
// Example usage:
//
//	provider, _ := tts.NewEspeak(tts.WithVoice("en"))
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, "Affirmative.")
//	// result.Audio contains a WAV clip
package tts

import (
	"context"
	"encoding/binary"
	"time"
)

// Provider defines the TTS provider interface.
type Provider interface {
	// Synthesize converts text to a complete audio clip.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Health checks that the synthesizer is installed and runnable.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioResult represents a complete audio synthesis result.
type AudioResult struct {
	// Audio contains the clip in the specified format.
	Audio []byte

	// Format describes the audio encoding and sample rate.
	Format AudioFormat

	// Duration is the playback duration.
	Duration time.Duration

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the synthesis time in milliseconds.
	LatencyMs int64
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	// Encoding specifies the container/codec.
	Encoding Encoding

	// SampleRate in Hz (espeak-ng emits 22050).
	SampleRate int

	// Channels is 1 for mono, 2 for stereo.
	Channels int

	// BitDepth for PCM formats (e.g., 16 for PCM16).
	BitDepth int
}

// Encoding represents audio encoding types.
type Encoding string

const (
	// EncodingWAV is a RIFF/WAVE container with PCM16 data.
	EncodingWAV Encoding = "wav"

	// EncodingPCM22 is headerless 22.05kHz mono PCM16.
	EncodingPCM22 Encoding = "pcm_22050"
)

// WAVDuration reads the playback duration from a PCM WAV header.
// Returns 0 if the header is not recognized.
func WAVDuration(wav []byte) time.Duration {
	if len(wav) < 44 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return 0
	}
	byteRate := binary.LittleEndian.Uint32(wav[28:32])
	if byteRate == 0 {
		return 0
	}
	// espeak-ng streams to stdout with an unknown length; trust the body size.
	dataLen := len(wav) - 44
	return time.Duration(float64(dataLen) / float64(byteRate) * float64(time.Second))
}

// NewWAV wraps PCM16 mono samples in a minimal WAV header.
func NewWAV(pcm []byte, sampleRate int) []byte {
	out := make([]byte, 44+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], 1) // mono
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(out[32:34], 2)
	binary.LittleEndian.PutUint16(out[34:36], 16)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[44:], pcm)
	return out
}
