package audioio

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Ring is a fixed-capacity circular buffer of PCM16 samples with
// independent read cursors per consumer.
//
// One writer (the capture pump) appends samples; any number of consumers
// read at their own pace. A consumer that falls more than one full ring
// behind loses the oldest unread audio: its cursor snaps forward and the
// next read returns exactly the most recent capacity worth of samples.
// Reads never block; an empty result means no new audio yet.
type Ring struct {
	mu sync.Mutex

	buf      []int16
	capacity int

	writeIdx     int
	totalWritten int64

	// consumer id -> absolute read offset (monotonic, like totalWritten)
	cursors map[string]int64

	sampleRate int
	stopped    bool
	logger     *slog.Logger
}

// NewRing creates a ring buffer holding capacity samples.
func NewRing(capacity, sampleRate int, logger *slog.Logger) *Ring {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ring{
		buf:        make([]int16, capacity),
		capacity:   capacity,
		cursors:    make(map[string]int64),
		sampleRate: sampleRate,
		logger:     logger.With("component", "audioio.ring"),
	}
}

// SampleRate returns the sample rate of the audio in the ring.
func (r *Ring) SampleRate() int {
	return r.sampleRate
}

// Capacity returns the number of samples the ring holds.
func (r *Ring) Capacity() int {
	return r.capacity
}

// Write appends samples to the ring, wrapping at capacity.
// Called from the capture goroutine only. If the chunk is larger than the
// whole ring, only its most recent capacity samples are kept.
func (r *Ring) Write(samples []int16) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(samples)
	if n == 0 {
		return
	}
	if n > r.capacity {
		samples = samples[n-r.capacity:]
		n = r.capacity
	}

	end := r.writeIdx + n
	if end <= r.capacity {
		copy(r.buf[r.writeIdx:end], samples)
	} else {
		first := r.capacity - r.writeIdx
		copy(r.buf[r.writeIdx:], samples[:first])
		copy(r.buf[:n-first], samples[first:])
	}
	r.writeIdx = (r.writeIdx + n) % r.capacity
	r.totalWritten += int64(len(samples))
}

// Register adds a consumer cursor positioned at the current write offset,
// so the first read returns only audio captured after registration.
func (r *Ring) Register(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursors[id] = r.totalWritten
}

// Unregister removes a consumer cursor.
func (r *Ring) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cursors, id)
}

// ReadNew returns all unread samples for the consumer and advances its
// cursor to the current write offset. The result is clipped to at most
// capacity samples; anything older is gone. Returns nil for an unknown
// consumer or when there is nothing new.
func (r *Ring) ReadNew(id string) []int16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	cursor, ok := r.cursors[id]
	if !ok {
		return nil
	}

	unread := r.totalWritten - cursor
	if unread <= 0 {
		return nil
	}
	if unread > int64(r.capacity) {
		r.logger.Debug("consumer fell behind, dropping audio",
			"consumer", id, "dropped", unread-int64(r.capacity))
		cursor = r.totalWritten - int64(r.capacity)
		unread = int64(r.capacity)
	}

	n := int(unread)
	start := int(cursor % int64(r.capacity))
	end := int(r.totalWritten % int64(r.capacity))

	out := make([]int16, n)
	if start < end {
		copy(out, r.buf[start:end])
	} else {
		first := copy(out, r.buf[start:])
		copy(out[first:], r.buf[:end])
	}

	r.cursors[id] = r.totalWritten
	return out
}

// DrainStream returns a channel of raw PCM16 byte chunks for the consumer.
// It polls ReadNew every pollInterval, sends non-empty chunks, and closes
// the channel when the ring is stopped or ctx is done. Each call spawns an
// independent drain goroutine.
func (r *Ring) DrainStream(ctx context.Context, id string, pollInterval time.Duration) <-chan []byte {
	out := make(chan []byte, 16)

	go func() {
		defer close(out)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			if r.Stopped() {
				return
			}

			samples := r.ReadNew(id)
			if len(samples) == 0 {
				continue
			}
			chunk := AudioChunk{Samples: samples, SampleRate: r.sampleRate, Channels: 1}

			select {
			case out <- chunk.Bytes():
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// Snapshot returns the full in-order contents of the ring, independent of
// any consumer cursor. Intended for diagnostics.
func (r *Ring) Snapshot() []int16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.totalWritten < int64(r.capacity) {
		out := make([]int16, r.writeIdx)
		copy(out, r.buf[:r.writeIdx])
		return out
	}
	out := make([]int16, r.capacity)
	n := copy(out, r.buf[r.writeIdx:])
	copy(out[n:], r.buf[:r.writeIdx])
	return out
}

// TotalWritten returns the number of samples ever written.
func (r *Ring) TotalWritten() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalWritten
}

// Stop marks the ring stopped. Drain streams terminate on their next poll.
func (r *Ring) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
}

// Stopped reports whether Stop has been called.
func (r *Ring) Stopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

// Pump copies chunks from a capture source into the ring until the source
// stream closes, ctx is cancelled, or the ring is stopped.
// Run it in its own goroutine.
func Pump(ctx context.Context, src Source, ring *Ring) {
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-src.Stream():
			if !ok || ring.Stopped() {
				return
			}
			ring.Write(chunk.Samples)
		}
	}
}
