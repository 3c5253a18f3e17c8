// Package transcribe streams ring-buffered microphone audio to a
// realtime speech-recognition provider and emits finalized utterances.
package transcribe

import (
	"fmt"
	"time"
)

// Config holds streaming-transcription settings.
type Config struct {
	// APIKey authenticates against the provider.
	APIKey string

	// URL is the realtime websocket endpoint.
	URL string

	// SampleRate of the PCM16 audio sent upstream.
	SampleRate int

	// Language is the recognition language code.
	Language string

	// Diarization enables speaker labels when the provider supports it.
	Diarization bool

	// ChunkInterval is how often audio is pulled from the ring.
	ChunkInterval time.Duration

	// SilenceFrameDuration is the length of the silence frames
	// substituted while listening is paused.
	SilenceFrameDuration time.Duration

	// ResumeSettle is how long Resume waits before re-enabling
	// listening, letting speaker bleed drain out of the capture path.
	ResumeSettle time.Duration

	// MaxSessionDuration bounds a single recognition session, kept
	// well under the provider's hard cap. The session is reopened
	// transparently when it expires.
	MaxSessionDuration time.Duration

	// MaxBackoff caps the exponential reconnect delay.
	MaxBackoff time.Duration

	// StopTimeout bounds how long Stop waits for the worker to exit.
	StopTimeout time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		URL:                  "wss://streaming.assemblyai.com/v3/ws",
		SampleRate:           16000,
		Language:             "en",
		ChunkInterval:        100 * time.Millisecond,
		SilenceFrameDuration: 100 * time.Millisecond,
		ResumeSettle:         300 * time.Millisecond,
		MaxSessionDuration:   240 * time.Second,
		MaxBackoff:           30 * time.Second,
		StopTimeout:          2 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive")
	}
	if c.ChunkInterval <= 0 {
		return fmt.Errorf("chunk_interval must be positive")
	}
	if c.MaxSessionDuration <= 0 {
		return fmt.Errorf("max_session_duration must be positive")
	}
	return nil
}
