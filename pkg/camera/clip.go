package camera

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ClipRecorder keeps a rolling window of recent frames so that moments
// around an interesting event can be saved after the fact.
type ClipRecorder struct {
	mu       sync.Mutex
	frames   []Frame
	window   time.Duration
	dir      string
	logger   *slog.Logger
	listener string
}

// NewClipRecorder creates a recorder retaining window worth of frames,
// saving clips under dir.
func NewClipRecorder(window time.Duration, dir string, logger *slog.Logger) *ClipRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClipRecorder{
		window: window,
		dir:    dir,
		logger: logger.With("component", "camera.clip"),
	}
}

// Attach subscribes the recorder to a stream.
func (c *ClipRecorder) Attach(s *Stream) {
	c.listener = s.AddListener(c.Record)
}

// Detach unsubscribes the recorder from a stream.
func (c *ClipRecorder) Detach(s *Stream) {
	if c.listener != "" {
		s.RemoveListener(c.listener)
		c.listener = ""
	}
}

// Record adds a frame to the rolling window, evicting anything older
// than the window.
func (c *ClipRecorder) Record(f Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.frames = append(c.frames, f)

	cutoff := f.At.Add(-c.window)
	drop := 0
	for drop < len(c.frames) && c.frames[drop].At.Before(cutoff) {
		drop++
	}
	if drop > 0 {
		c.frames = append(c.frames[:0], c.frames[drop:]...)
	}
}

// FrameCount returns the number of buffered frames.
func (c *ClipRecorder) FrameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

// Save writes the buffered frames as numbered JPEGs under a fresh
// clip directory and returns its path. The rolling window is left
// intact so overlapping clips are possible.
func (c *ClipRecorder) Save() (string, error) {
	c.mu.Lock()
	frames := make([]Frame, len(c.frames))
	copy(frames, c.frames)
	c.mu.Unlock()

	if len(frames) == 0 {
		return "", fmt.Errorf("no frames buffered")
	}

	clipDir := filepath.Join(c.dir, fmt.Sprintf("clip-%s-%s",
		frames[0].At.Format("20060102-150405"), uuid.New().String()[:8]))
	if err := c.writeFrames(clipDir, frames); err != nil {
		return "", err
	}
	return clipDir, nil
}

// SaveTo writes the buffered frames into dir, which the caller names.
// The rolling window is left intact.
func (c *ClipRecorder) SaveTo(dir string) error {
	c.mu.Lock()
	frames := make([]Frame, len(c.frames))
	copy(frames, c.frames)
	c.mu.Unlock()

	if len(frames) == 0 {
		return fmt.Errorf("no frames buffered")
	}
	return c.writeFrames(dir, frames)
}

func (c *ClipRecorder) writeFrames(dir string, frames []Frame) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create clip dir: %w", err)
	}
	for i, f := range frames {
		name := filepath.Join(dir, fmt.Sprintf("frame-%04d.jpg", i))
		if err := os.WriteFile(name, f.JPEG, 0o644); err != nil {
			return fmt.Errorf("write frame %d: %w", i, err)
		}
	}
	c.logger.Info("clip saved", "dir", dir, "frames", len(frames))
	return nil
}
