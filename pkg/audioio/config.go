// Package audioio provides audio capture, playback, and the shared ring
// buffer that fans captured microphone audio out to multiple consumers.
//
// Capture backends:
//   - PortAudio-style device capture (production)
//   - Mock - CI/Testing without hardware
//
// The ring buffer (Ring) sits between the capture source and everything
// that reads audio: each consumer owns an independent read cursor, so a
// slow diagnostic reader never stalls the transcription feed.
package audioio

import (
	"fmt"
	"time"
)

// Config holds audio configuration.
type Config struct {
	// SampleRate is the audio sample rate in Hz.
	// Default: 16000 (required by the streaming recognizer)
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels is the number of audio channels.
	// Default: 1 (mono)
	Channels int `yaml:"channels" json:"channels"`

	// BufferDuration is the size of capture buffers.
	// Default: 20ms (320 samples at 16kHz)
	BufferDuration time.Duration `yaml:"buffer_duration" json:"buffer_duration"`

	// RingDuration is how much audio the shared ring buffer retains.
	// Default: 10s
	RingDuration time.Duration `yaml:"ring_duration" json:"ring_duration"`

	// Device is the platform-specific device identifier.
	Device string `yaml:"device" json:"device"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SampleRate:     16000, // Linear16 speech recognition rate
		Channels:       1,     // Mono
		BufferDuration: 20 * time.Millisecond,
		RingDuration:   10 * time.Second,
		Device:         "", // Use system default
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	if c.RingDuration <= 0 {
		return fmt.Errorf("ring_duration must be positive, got %v", c.RingDuration)
	}
	return nil
}

// BufferSize returns the number of samples per capture buffer.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}

// RingCapacity returns the number of samples the ring buffer holds.
func (c *Config) RingCapacity() int {
	return int(float64(c.SampleRate) * c.RingDuration.Seconds())
}
