package tts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cluebot/go-cluebot/pkg/audioio"
)

type recordingMemory struct {
	mu    sync.Mutex
	texts []string
}

func (r *recordingMemory) Remember(text string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
}

func newTestSink(t *testing.T) *audioio.MockSink {
	t.Helper()
	sink := audioio.NewMockSink(audioio.DefaultConfig(), nil)
	if err := sink.Start(context.Background()); err != nil {
		t.Fatalf("sink start: %v", err)
	}
	t.Cleanup(func() { sink.Close() })
	return sink
}

func TestSpeakerWritesAndFlushes(t *testing.T) {
	sink := newTestSink(t)
	mem := &recordingMemory{}
	speaker := NewSpeaker(NewMock(), sink, mem, nil)

	if err := speaker.Speak(context.Background(), "good morning"); err != nil {
		t.Fatalf("Speak: %v", err)
	}

	stats := sink.Stats()
	if stats.SamplesWritten == 0 {
		t.Error("no samples reached the sink")
	}
	if len(mem.texts) != 1 || mem.texts[0] != "good morning" {
		t.Errorf("memory = %v", mem.texts)
	}
	if speaker.Speaking() {
		t.Error("Speaking() still true after Speak returned")
	}
	if got := speaker.Stats().Utterances; got != 1 {
		t.Errorf("utterances = %d, want 1", got)
	}
}

func TestSpeakerEmptyTextIsNoop(t *testing.T) {
	sink := newTestSink(t)
	mock := NewMock()
	speaker := NewSpeaker(mock, sink, nil, nil)

	if err := speaker.Speak(context.Background(), ""); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if len(mock.Calls()) != 0 {
		t.Error("provider was called for empty text")
	}
}

func TestSpeakerPropagatesSynthesisError(t *testing.T) {
	sink := newTestSink(t)
	wantErr := errors.New("synthesis down")
	mock := NewMock()
	mock.SynthesizeFunc = func(ctx context.Context, text string) (*AudioResult, error) {
		return nil, wantErr
	}
	mem := &recordingMemory{}
	speaker := NewSpeaker(mock, sink, mem, nil)

	if err := speaker.Speak(context.Background(), "hi"); !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if len(mem.texts) != 0 {
		t.Error("failed utterance must not be remembered")
	}
	if got := speaker.Stats().Failures; got != 1 {
		t.Errorf("failures = %d, want 1", got)
	}
}

func TestSpeakerBlocksUntilFlush(t *testing.T) {
	sink := newTestSink(t)
	speaker := NewSpeaker(NewMock(), sink, nil, nil)

	start := time.Now()
	if err := speaker.Speak(context.Background(), "a somewhat longer utterance"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	// The mock sink simulates a token playback wait on Flush.
	if time.Since(start) == 0 {
		t.Error("Speak returned without waiting for playback")
	}
}
