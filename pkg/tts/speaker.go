package tts

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cluebot/go-cluebot/pkg/audioio"
)

// speakerChunk is how much audio goes to the sink per write.
const speakerChunk = 100 * time.Millisecond

// Memory is notified of everything the robot says, so the transcriber
// can discard utterances that are just the robot hearing itself.
type Memory interface {
	Remember(text string, now time.Time)
}

// Speaker plays synthesized speech through an audio sink.
//
// Speak is deliberately synchronous: it returns only after the sink has
// drained, which lets the caller keep the microphone paused for the
// exact duration of playback.
type Speaker struct {
	provider Provider
	sink     audioio.Sink
	memory   Memory
	logger   *slog.Logger

	// OnSpeaking, when set, is called with true as playback starts and
	// false when it ends. Hardware gesture animation hangs off this.
	OnSpeaking func(speaking bool)

	speaking atomic.Bool

	// stats
	utterances atomic.Int64
	failures   atomic.Int64
}

// NewSpeaker creates a speaker that plays through the given sink.
// memory may be nil.
func NewSpeaker(provider Provider, sink audioio.Sink, memory Memory, logger *slog.Logger) *Speaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Speaker{
		provider: provider,
		sink:     sink,
		memory:   memory,
		logger:   logger.With("component", "tts.speaker"),
	}
}

// Speak synthesizes text and blocks until the audio has fully played.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	s.speaking.Store(true)
	defer s.speaking.Store(false)
	if s.OnSpeaking != nil {
		s.OnSpeaking(true)
		defer s.OnSpeaking(false)
	}

	result, err := s.provider.Synthesize(ctx, text)
	if err != nil {
		s.failures.Add(1)
		return err
	}

	samples := result.Samples()
	rate := result.Format.SampleRate
	if rate <= 0 {
		rate = 24000
	}
	step := rate * int(speakerChunk/time.Millisecond) / 1000

	for off := 0; off < len(samples); off += step {
		end := off + step
		if end > len(samples) {
			end = len(samples)
		}
		chunk := audioio.AudioChunk{
			Samples:    samples[off:end],
			SampleRate: rate,
			Channels:   result.Format.Channels,
		}
		if err := s.sink.Write(ctx, chunk); err != nil {
			s.failures.Add(1)
			return err
		}
	}

	if err := s.sink.Flush(ctx); err != nil {
		s.failures.Add(1)
		return err
	}

	if s.memory != nil {
		s.memory.Remember(text, time.Now())
	}

	s.utterances.Add(1)
	s.logger.Debug("spoke",
		"chars", result.CharCount,
		"duration", result.Duration,
		"synth_ms", result.LatencyMs,
	)
	return nil
}

// Interrupt discards any buffered audio immediately.
func (s *Speaker) Interrupt() error {
	return s.sink.Clear()
}

// Speaking reports whether an utterance is currently in progress.
func (s *Speaker) Speaking() bool {
	return s.speaking.Load()
}

// SpeakerStats contains playback statistics.
type SpeakerStats struct {
	Utterances int64 `json:"utterances"`
	Failures   int64 `json:"failures"`
	Speaking   bool  `json:"speaking"`
}

// Stats returns a snapshot of playback statistics.
func (s *Speaker) Stats() SpeakerStats {
	return SpeakerStats{
		Utterances: s.utterances.Load(),
		Failures:   s.failures.Load(),
		Speaking:   s.speaking.Load(),
	}
}
