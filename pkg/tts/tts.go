// Package tts provides text-to-speech synthesis for the robot's voice.
//
// A Provider converts text into an audio buffer; the Speaker plays that
// buffer through an audioio.Sink and blocks until playback finishes, so
// callers can pause the microphone for exactly the duration of speech.
package tts

import (
	"context"
	"encoding/binary"
	"time"
)

// Provider is the interface for text-to-speech backends.
type Provider interface {
	// Synthesize converts text to a complete audio buffer.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Health checks if the provider is available.
	Health(ctx context.Context) error

	// Close releases provider resources.
	Close() error
}

// AudioResult contains synthesized audio and metadata.
type AudioResult struct {
	// Audio is the raw audio data in the specified format.
	// For PCM encodings this is little-endian 16-bit samples.
	Audio []byte

	// Format describes the audio encoding and sample rate.
	Format AudioFormat

	// Duration is the estimated audio playback duration.
	Duration time.Duration

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the synthesis round-trip time in milliseconds.
	LatencyMs int64
}

// Samples decodes the audio buffer as little-endian PCM16 samples.
// Only meaningful for PCM formats.
func (r *AudioResult) Samples() []int16 {
	n := len(r.Audio) / 2
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(r.Audio[i*2:]))
	}
	return samples
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	// Encoding specifies the audio codec.
	Encoding Encoding

	// SampleRate in Hz (e.g., 24000, 48000).
	SampleRate int

	// Channels is 1 for mono, 2 for stereo.
	Channels int

	// BitDepth for PCM formats (e.g., 16 for PCM16).
	BitDepth int
}

// Encoding represents audio encoding types.
type Encoding string

const (
	// EncodingPCM24 is 24kHz mono PCM16, the raw format OpenAI TTS emits.
	EncodingPCM24 Encoding = "pcm_24000"

	// EncodingPCM48 is 48kHz mono PCM16, what Opus decodes to.
	EncodingPCM48 Encoding = "pcm_48000"

	// EncodingOpus is Ogg/Opus, decoded to 48kHz PCM16 after download.
	EncodingOpus Encoding = "opus"
)

// pcmDuration estimates playback time for a PCM16 buffer.
func pcmDuration(byteLen, sampleRate, channels int) time.Duration {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	samples := byteLen / 2 / channels
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
