package camera

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Frame is one captured camera frame.
type Frame struct {
	// JPEG is the encoded image data.
	JPEG []byte

	// Seq increments for every captured frame.
	Seq int64

	// At is the capture timestamp.
	At time.Time
}

// Listener receives frames from a Stream. Listeners run on the capture
// goroutine; a listener that panics is logged and skipped, the loop
// keeps running.
type Listener func(Frame)

// Stream captures frames from a Device at a fixed rate and fans them
// out to registered listeners.
type Stream struct {
	cfg    Config
	dev    Device
	logger *slog.Logger

	mu        sync.Mutex
	listeners map[string]Listener
	latest    Frame
	history   []Frame
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}

	framesCaptured atomic.Int64
	captureErrors  atomic.Int64
}

// NewStream creates a stream over the given device.
func NewStream(cfg Config, dev Device, logger *slog.Logger) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{
		cfg:       cfg,
		dev:       dev,
		logger:    logger.With("component", "camera"),
		listeners: make(map[string]Listener),
	}
}

// Start begins the capture loop.
func (s *Stream) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.captureLoop(ctx)

	s.logger.Info("camera stream started",
		"framerate", s.cfg.Framerate,
		"resolution", s.cfg.Width*s.cfg.Height,
	)
	return nil
}

func (s *Stream) captureLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.FrameInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
		}

		jpeg, err := s.dev.CaptureJPEG()
		if err != nil {
			s.captureErrors.Add(1)
			s.logger.Debug("frame capture failed", "error", err)
			continue
		}

		frame := Frame{
			JPEG: jpeg,
			Seq:  s.framesCaptured.Add(1),
			At:   time.Now(),
		}

		s.mu.Lock()
		s.latest = frame
		s.history = append(s.history, frame)
		if len(s.history) > s.cfg.HistorySize {
			s.history = s.history[len(s.history)-s.cfg.HistorySize:]
		}
		snapshot := make([]Listener, 0, len(s.listeners))
		for _, l := range s.listeners {
			snapshot = append(snapshot, l)
		}
		s.mu.Unlock()

		// Listeners run outside the lock so they may call back into
		// the stream (e.g. AddListener, LatestFrame).
		for _, l := range snapshot {
			s.notify(l, frame)
		}
	}
}

func (s *Stream) notify(l Listener, f Frame) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("camera listener panicked", "panic", r)
		}
	}()
	l(f)
}

// Stop halts the capture loop and waits for it to finish.
func (s *Stream) Stop() {
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
	s.logger.Info("camera stream stopped")
}

// AddListener registers a frame listener and returns its id.
func (s *Stream) AddListener(l Listener) string {
	id := uuid.New().String()
	s.mu.Lock()
	s.listeners[id] = l
	s.mu.Unlock()
	return id
}

// RemoveListener unregisters a listener by id.
func (s *Stream) RemoveListener(id string) {
	s.mu.Lock()
	delete(s.listeners, id)
	s.mu.Unlock()
}

// LatestFrame returns the most recently captured frame.
// Frame.Seq is zero if nothing has been captured yet.
func (s *Stream) LatestFrame() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// RecentFrames returns a copy of the bounded recent-frame history,
// oldest first.
func (s *Stream) RecentFrames() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Frame, len(s.history))
	copy(out, s.history)
	return out
}

// StreamStats reports capture counters.
type StreamStats struct {
	FramesCaptured int64 `json:"frames_captured"`
	CaptureErrors  int64 `json:"capture_errors"`
	Listeners      int   `json:"listeners"`
	Running        bool  `json:"running"`
}

// Stats returns current capture statistics.
func (s *Stream) Stats() StreamStats {
	s.mu.Lock()
	listeners := len(s.listeners)
	running := s.running
	s.mu.Unlock()

	return StreamStats{
		FramesCaptured: s.framesCaptured.Load(),
		CaptureErrors:  s.captureErrors.Load(),
		Listeners:      listeners,
		Running:        running,
	}
}
