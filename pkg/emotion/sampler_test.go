package emotion

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cluebot/go-cluebot/pkg/camera"
)

// fakeFrames serves an incrementing frame sequence.
type fakeFrames struct {
	seq atomic.Int64
}

func (f *fakeFrames) LatestFrame() camera.Frame {
	return camera.Frame{
		JPEG: []byte("jpeg"),
		Seq:  f.seq.Add(1),
		At:   time.Now(),
	}
}

func TestSamplerFeedsTracker(t *testing.T) {
	frames := &fakeFrames{}
	classifier := &MockClassifier{ClassifyFunc: func([]byte) (Label, error) {
		return LabelHappy, nil
	}}
	tr := NewTracker(nil)

	s := NewSampler(frames, classifier, tr, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		if cur, ok := tr.Current(); ok && cur == LabelHappy {
			break
		}
		select {
		case <-deadline:
			t.Fatal("tracker never observed a label")
		case <-time.After(5 * time.Millisecond):
		}
	}
	s.Stop()
}

func TestSamplerSurvivesClassifierError(t *testing.T) {
	frames := &fakeFrames{}
	var calls atomic.Int64
	classifier := &MockClassifier{ClassifyFunc: func([]byte) (Label, error) {
		calls.Add(1)
		return "", fmt.Errorf("model exploded")
	}}
	tr := NewTracker(nil)

	s := NewSampler(frames, classifier, tr, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("classifier called %d times, want >= 3", calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	s.Stop()

	// Failed classifications degrade to the no-detection label.
	if cur, ok := tr.Current(); !ok || cur != LabelNoDetection {
		t.Errorf("current = %v %v, want no face", cur, ok)
	}
}
