package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cluebot/go-cluebot/pkg/audioio"
)

const ringConsumerID = "transcriber"

var errStopped = errors.New("transcriber stopped")

// Transcriber pulls audio from a ring buffer, streams it to a
// recognition session, and queues finalized utterances.
//
// Sessions are bounded in length and reopened transparently; transient
// failures reconnect with exponential backoff that resets after any
// processed response. While paused, silence frames are substituted for
// real audio so the session stays alive without hearing the robot's
// own speech.
type Transcriber struct {
	cfg    Config
	ring   *audioio.Ring
	dial   Dialer
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	cur     Session
	stopCh  chan struct{}
	doneCh  chan struct{}

	listening    atomic.Bool
	lastActivity atomic.Int64 // unix nanos

	out chan string

	// wait is overridable in tests to observe backoff delays.
	wait func(d time.Duration) bool

	sessionsOpened atomic.Int64
	reconnects     atomic.Int64
	finalsEmitted  atomic.Int64
}

// New creates a transcriber reading from ring via its own consumer
// cursor.
func New(cfg Config, ring *audioio.Ring, dial Dialer, logger *slog.Logger) *Transcriber {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Transcriber{
		cfg:    cfg,
		ring:   ring,
		dial:   dial,
		logger: logger.With("component", "transcribe"),
		out:    make(chan string, 256),
	}
	t.listening.Store(true)
	t.lastActivity.Store(time.Now().UnixNano())
	t.wait = t.stoppableWait
	return t
}

// Start spawns the streaming worker. It fails if already running.
func (t *Transcriber) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return fmt.Errorf("transcriber already running")
	}
	t.running = true
	t.stopCh = make(chan struct{})
	t.doneCh = make(chan struct{})

	t.ring.Register(ringConsumerID)

	go t.worker(ctx)

	t.logger.Info("transcriber started",
		"url", t.cfg.URL,
		"language", t.cfg.Language,
	)
	return nil
}

func (t *Transcriber) worker(ctx context.Context) {
	defer close(t.doneCh)

	attempt := 0
	for {
		if t.stopped(ctx) {
			return
		}

		sess, err := t.dial(ctx)
		if err != nil {
			if !Retryable(err) {
				t.logger.Error("transcription session failed permanently", "error", err)
				return
			}
			delay := backoffDelay(attempt, t.cfg.MaxBackoff)
			t.logger.Warn("transcription connect failed, backing off",
				"error", err, "delay", delay)
			attempt++
			if !t.wait(delay) {
				return
			}
			continue
		}
		t.sessionsOpened.Add(1)

		t.mu.Lock()
		t.cur = sess
		t.mu.Unlock()

		err = t.runSession(ctx, sess, &attempt)

		t.mu.Lock()
		t.cur = nil
		t.mu.Unlock()
		sess.Close()

		switch {
		case errors.Is(err, errStopped):
			return
		case err == nil:
			// Session exhausted normally; reopen immediately.
			t.reconnects.Add(1)
		case !Retryable(err):
			t.logger.Error("transcription session failed permanently", "error", err)
			return
		default:
			delay := backoffDelay(attempt, t.cfg.MaxBackoff)
			t.logger.Warn("transcription session dropped, backing off",
				"error", err, "delay", delay)
			attempt++
			t.reconnects.Add(1)
			if !t.wait(delay) {
				return
			}
		}
	}
}

// runSession feeds audio and consumes responses until the session ends.
// A nil return means a clean end (reopen without backoff).
func (t *Transcriber) runSession(ctx context.Context, sess Session, attempt *int) error {
	sendCtx, cancelSend := context.WithCancel(ctx)
	defer cancelSend()
	go t.sendLoop(sendCtx, sess)

	// The provider caps session length; close a bit before its limit
	// and reopen instead of dying mid-stream.
	capped := &atomic.Bool{}
	capTimer := time.AfterFunc(t.cfg.MaxSessionDuration, func() {
		capped.Store(true)
		sess.Close()
	})
	defer capTimer.Stop()

	for {
		res, err := sess.Recv()
		if err != nil {
			if t.stopped(ctx) {
				return errStopped
			}
			if capped.Load() || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		// Any processed response proves the link healthy.
		*attempt = 0

		if res.Text == "" {
			continue
		}
		t.lastActivity.Store(time.Now().UnixNano())

		if !res.Final {
			continue
		}
		t.finalsEmitted.Add(1)
		select {
		case t.out <- res.Text:
		default:
			t.logger.Warn("transcript queue full, dropping utterance")
		}
	}
}

// sendLoop pushes ring audio (or silence while paused) to the session.
// Real audio captured while paused is discarded, not deferred: the
// drain keeps consuming the ring so the cursor never replays muted
// speech on resume.
func (t *Transcriber) sendLoop(ctx context.Context, sess Session) {
	drainCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stream := t.ring.DrainStream(drainCtx, ringConsumerID, t.cfg.ChunkInterval)

	ticker := time.NewTicker(t.cfg.ChunkInterval)
	defer ticker.Stop()

	silence := make([]byte, 2*int(float64(t.cfg.SampleRate)*t.cfg.SilenceFrameDuration.Seconds()))

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		case chunk, ok := <-stream:
			if !ok {
				return
			}
			if !t.listening.Load() {
				continue
			}
			if err := sess.Send(chunk); err != nil {
				return
			}
		case <-ticker.C:
			// Keep-alive cadence while muted.
			if t.listening.Load() {
				continue
			}
			if err := sess.Send(silence); err != nil {
				return
			}
		}
	}
}

// Pause mutes the audio feed. The session keeps receiving silence.
func (t *Transcriber) Pause() {
	t.listening.Store(false)
	t.logger.Debug("transcriber paused")
}

// Resume waits the settle time, then re-enables the audio feed. The
// settle lets speaker bleed from just-played audio clear the capture
// path before listening again.
func (t *Transcriber) Resume() {
	time.Sleep(t.cfg.ResumeSettle)
	t.listening.Store(true)
	t.logger.Debug("transcriber resumed")
}

// Listening reports whether real audio is being streamed.
func (t *Transcriber) Listening() bool {
	return t.listening.Load()
}

// Transcripts returns the finalized-utterance queue.
func (t *Transcriber) Transcripts() <-chan string {
	return t.out
}

// Poll waits up to timeout for the next finalized utterance.
func (t *Transcriber) Poll(timeout time.Duration) (string, bool) {
	select {
	case s := <-t.out:
		return s, true
	case <-time.After(timeout):
		return "", false
	}
}

// Drain returns all queued utterances without blocking.
func (t *Transcriber) Drain() []string {
	var out []string
	for {
		select {
		case s := <-t.out:
			out = append(out, s)
		default:
			return out
		}
	}
}

// LastActivity returns when speech (interim or final) last arrived.
func (t *Transcriber) LastActivity() time.Time {
	return time.Unix(0, t.lastActivity.Load())
}

// ResetActivity moves the activity timestamp to now. The orchestrator
// calls this after playback and after idle injection so neither is
// misread as user silence.
func (t *Transcriber) ResetActivity() {
	t.lastActivity.Store(time.Now().UnixNano())
}

// IdleFor returns how long since the last speech activity.
func (t *Transcriber) IdleFor() time.Duration {
	return time.Since(t.LastActivity())
}

// Stop shuts the worker down, waiting at most StopTimeout for it to
// exit. The underlying session may be left dangling if the provider
// call is blocked.
func (t *Transcriber) Stop() error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil
	}
	t.running = false
	close(t.stopCh)
	if t.cur != nil {
		t.cur.Close()
	}
	done := t.doneCh
	t.mu.Unlock()

	select {
	case <-done:
	case <-time.After(t.cfg.StopTimeout):
		t.logger.Warn("transcriber worker did not exit in time")
	}

	t.ring.Unregister(ringConsumerID)
	t.logger.Info("transcriber stopped")
	return nil
}

func (t *Transcriber) stopped(ctx context.Context) bool {
	select {
	case <-t.stopCh:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// stoppableWait sleeps for d unless the transcriber stops first.
func (t *Transcriber) stoppableWait(d time.Duration) bool {
	select {
	case <-t.stopCh:
		return false
	case <-time.After(d):
		return true
	}
}

// backoffDelay returns min(2^attempt, max) seconds.
func backoffDelay(attempt int, max time.Duration) time.Duration {
	if attempt > 30 {
		attempt = 30
	}
	d := time.Duration(1<<uint(attempt)) * time.Second
	if d > max {
		d = max
	}
	return d
}

// Stats reports worker counters.
type Stats struct {
	SessionsOpened int64 `json:"sessions_opened"`
	Reconnects     int64 `json:"reconnects"`
	FinalsEmitted  int64 `json:"finals_emitted"`
	Listening      bool  `json:"listening"`
}

// Stats returns current worker statistics.
func (t *Transcriber) Stats() Stats {
	return Stats{
		SessionsOpened: t.sessionsOpened.Load(),
		Reconnects:     t.reconnects.Load(),
		FinalsEmitted:  t.finalsEmitted.Load(),
		Listening:      t.listening.Load(),
	}
}
