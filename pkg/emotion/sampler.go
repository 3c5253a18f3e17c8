package emotion

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cluebot/go-cluebot/pkg/camera"
)

// FrameSource provides the most recent camera frame.
// *camera.Stream satisfies it.
type FrameSource interface {
	LatestFrame() camera.Frame
}

// Sampler classifies the latest camera frame at a fixed rate and feeds
// the labels to a Tracker. It runs slower than the camera; frames
// between samples are skipped.
type Sampler struct {
	frames     FrameSource
	classifier Classifier
	tracker    *Tracker
	interval   time.Duration
	logger     *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	lastSeq int64
}

// NewSampler creates a sampler polling frames every interval.
func NewSampler(frames FrameSource, classifier Classifier, tracker *Tracker, interval time.Duration, logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{
		frames:     frames,
		classifier: classifier,
		tracker:    tracker,
		interval:   interval,
		logger:     logger.With("component", "emotion.sampler"),
	}
}

// Start begins the sampling loop.
func (s *Sampler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.loop(ctx)

	s.logger.Info("emotion sampler started", "interval", s.interval)
	return nil
}

func (s *Sampler) loop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
		}

		frame := s.frames.LatestFrame()
		if frame.Seq == 0 || frame.Seq == s.lastSeq {
			// No frame yet, or the camera stalled; treat as no face.
			s.tracker.Observe(LabelNoDetection, time.Now())
			continue
		}
		s.lastSeq = frame.Seq

		label, err := s.classifier.Classify(frame.JPEG)
		if err != nil {
			// Classifier faults must not stop the loop.
			s.logger.Debug("emotion classification failed", "error", err)
			label = LabelNoDetection
		}
		s.tracker.Observe(label, time.Now())
	}
}

// Stop halts the sampling loop and waits for it to finish.
func (s *Sampler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done
	s.logger.Info("emotion sampler stopped")
}
