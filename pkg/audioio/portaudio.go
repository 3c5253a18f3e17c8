package audioio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

var (
	paInitOnce sync.Once
	paInitErr  error
)

func ensurePortAudio() error {
	paInitOnce.Do(func() {
		paInitErr = portaudio.Initialize()
	})
	return paInitErr
}

// PortAudioSource captures microphone audio through PortAudio.
type PortAudioSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	stream   *portaudio.Stream
	buf      []int16
	running  bool
	streamCh chan AudioChunk
	stopCh   chan struct{}
	doneCh   chan struct{}

	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

// NewPortAudioSource creates a microphone source using the default
// input device.
func NewPortAudioSource(cfg Config, logger *slog.Logger) (*PortAudioSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ensurePortAudio(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	return &PortAudioSource{
		cfg:    cfg,
		logger: logger.With("component", "audioio.portaudio"),
	}, nil
}

// Start opens the input stream and begins capture.
func (p *PortAudioSource) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("audioio: source already running")
	}

	frames := p.cfg.BufferSize()
	p.buf = make([]int16, frames)

	stream, err := portaudio.OpenDefaultStream(
		p.cfg.Channels, 0,
		float64(p.cfg.SampleRate),
		frames,
		p.buf,
	)
	if err != nil {
		return fmt.Errorf("portaudio open input: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("portaudio start input: %w", err)
	}

	p.stream = stream
	p.running = true
	p.streamCh = make(chan AudioChunk, 10)
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})

	go p.captureLoop()

	p.logger.Info("microphone started",
		"sample_rate", p.cfg.SampleRate,
		"frames_per_buffer", frames,
	)
	return nil
}

func (p *PortAudioSource) captureLoop() {
	defer close(p.doneCh)
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		if err := p.stream.Read(); err != nil {
			if err == portaudio.InputOverflowed {
				p.overruns.Add(1)
				continue
			}
			p.logger.Error("microphone read failed", "error", err)
			return
		}

		samples := make([]int16, len(p.buf))
		copy(samples, p.buf)
		chunk := AudioChunk{
			Samples:    samples,
			SampleRate: p.cfg.SampleRate,
			Channels:   p.cfg.Channels,
		}

		p.chunksRead.Add(1)
		p.samplesRead.Add(int64(len(samples)))

		select {
		case p.streamCh <- chunk:
		default:
			// Consumer fell behind; drop rather than stall capture.
			p.overruns.Add(1)
		}
	}
}

// Read returns the next captured chunk.
func (p *PortAudioSource) Read(ctx context.Context) (AudioChunk, error) {
	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-p.streamCh:
		if !ok {
			return AudioChunk{}, fmt.Errorf("audioio: source stopped")
		}
		return chunk, nil
	}
}

// Stream returns the capture channel.
func (p *PortAudioSource) Stream() <-chan AudioChunk {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.streamCh
}

// Stop halts capture.
func (p *PortAudioSource) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	<-p.doneCh
	p.stream.Stop()
	return nil
}

// Config returns the audio configuration.
func (p *PortAudioSource) Config() Config {
	return p.cfg
}

// Name returns the backend name.
func (p *PortAudioSource) Name() string {
	return "portaudio"
}

// Close stops capture and releases the stream.
func (p *PortAudioSource) Close() error {
	p.Stop()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream != nil {
		p.stream.Close()
		p.stream = nil
	}
	return nil
}

// Stats returns capture statistics.
func (p *PortAudioSource) Stats() SourceStats {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	return SourceStats{
		ChunksRead:  p.chunksRead.Load(),
		SamplesRead: p.samplesRead.Load(),
		Overruns:    p.overruns.Load(),
		Running:     running,
		Backend:     p.Name(),
	}
}

// PortAudioSink plays audio through the default output device.
type PortAudioSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	buf     []int16
	pending []int16
	running bool

	chunksWritten  atomic.Int64
	samplesWritten atomic.Int64
	underruns      atomic.Int64
}

// NewPortAudioSink creates a speaker sink using the default output
// device.
func NewPortAudioSink(cfg Config, logger *slog.Logger) (*PortAudioSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ensurePortAudio(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	return &PortAudioSink{
		cfg:    cfg,
		logger: logger.With("component", "audioio.portaudio"),
	}, nil
}

// Start opens the output stream.
func (p *PortAudioSink) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("audioio: sink already running")
	}

	frames := p.cfg.BufferSize()
	p.buf = make([]int16, frames)

	stream, err := portaudio.OpenDefaultStream(
		0, p.cfg.Channels,
		float64(p.cfg.SampleRate),
		frames,
		p.buf,
	)
	if err != nil {
		return fmt.Errorf("portaudio open output: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("portaudio start output: %w", err)
	}

	p.stream = stream
	p.running = true
	p.logger.Info("speaker started", "sample_rate", p.cfg.SampleRate)
	return nil
}

// Write buffers a chunk and plays complete device buffers.
func (p *PortAudioSink) Write(ctx context.Context, chunk AudioChunk) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return fmt.Errorf("audioio: sink not running")
	}

	p.pending = append(p.pending, chunk.Samples...)
	p.chunksWritten.Add(1)
	p.samplesWritten.Add(int64(len(chunk.Samples)))

	return p.playPendingLocked(false)
}

// Flush plays out everything buffered, padding the final device buffer
// with silence, and returns once the device has consumed it.
func (p *PortAudioSink) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return nil
	}
	return p.playPendingLocked(true)
}

func (p *PortAudioSink) playPendingLocked(pad bool) error {
	frames := len(p.buf)
	for len(p.pending) >= frames || (pad && len(p.pending) > 0) {
		n := copy(p.buf, p.pending)
		for i := n; i < frames; i++ {
			p.buf[i] = 0
		}
		p.pending = p.pending[n:]

		if err := p.stream.Write(); err != nil {
			if err == portaudio.OutputUnderflowed {
				p.underruns.Add(1)
				continue
			}
			return fmt.Errorf("portaudio write: %w", err)
		}
	}
	if len(p.pending) == 0 {
		p.pending = nil
	}
	return nil
}

// Clear discards buffered audio immediately.
func (p *PortAudioSink) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = nil
	return nil
}

// Stop halts playback.
func (p *PortAudioSink) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return nil
	}
	p.running = false
	return p.stream.Stop()
}

// Config returns the audio configuration.
func (p *PortAudioSink) Config() Config {
	return p.cfg
}

// Name returns the backend name.
func (p *PortAudioSink) Name() string {
	return "portaudio"
}

// Close stops playback and releases the stream.
func (p *PortAudioSink) Close() error {
	p.Stop()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream != nil {
		p.stream.Close()
		p.stream = nil
	}
	return nil
}

// Stats returns playback statistics.
func (p *PortAudioSink) Stats() SinkStats {
	p.mu.Lock()
	running := p.running
	buffered := int64(len(p.pending))
	p.mu.Unlock()
	return SinkStats{
		ChunksWritten:   p.chunksWritten.Load(),
		SamplesWritten:  p.samplesWritten.Load(),
		Underruns:       p.underruns.Load(),
		Running:         running,
		Backend:         p.Name(),
		BufferedSamples: buffered,
	}
}

var (
	_ SourceWithStats = (*PortAudioSource)(nil)
	_ SinkWithStats   = (*PortAudioSink)(nil)
)
