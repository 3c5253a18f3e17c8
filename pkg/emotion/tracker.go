package emotion

import (
	"log/slog"
	"sync"
	"time"
)

// spanResolution quantizes reported durations to hundredths of a second.
const spanResolution = 10 * time.Millisecond

// Tracker maintains a run-length encoding of observed emotion labels.
//
// Observe is called by the sampling loop; the short-term buffer is
// consumed with SummaryAndReset; the permanent history is queried over
// a sliding window with RecentSummary. A delayed windowed snapshot can
// be scheduled with RequestRecentSummary and collected later with
// FetchPendingRecent.
type Tracker struct {
	mu sync.Mutex

	current    Label
	hasCurrent bool
	spanStart  time.Time

	shortTerm []Portion
	history   []Span

	// One-slot delayed snapshot. A new request supersedes any
	// unfetched previous result (last writer wins).
	pendingToken  uint64
	pendingReady  bool
	pendingResult []Portion
	pendingTimer  *time.Timer

	logger *slog.Logger
}

// NewTracker creates an empty tracker.
func NewTracker(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		logger: logger.With("component", "emotion.tracker"),
	}
}

// Observe records one sampled label at the given time. When the label
// differs from the current one, the open span is closed and appended to
// both the short-term buffer and the permanent history.
func (t *Tracker) Observe(label Label, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.hasCurrent {
		t.current = label
		t.hasCurrent = true
		t.spanStart = now
		return
	}

	if label == t.current {
		return
	}

	t.closeSpanLocked(now)
	t.current = label
	t.spanStart = now
}

// closeSpanLocked finalizes the open span at boundary now.
func (t *Tracker) closeSpanLocked(now time.Time) {
	dur := now.Sub(t.spanStart).Round(spanResolution)
	if dur < 0 {
		dur = 0
	}
	t.shortTerm = append(t.shortTerm, Portion{Label: t.current, Duration: dur})
	t.history = append(t.history, Span{Label: t.current, Start: t.spanStart, End: now})
}

// Current returns the currently open label, or false if nothing has
// been observed yet.
func (t *Tracker) Current() (Label, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current, t.hasCurrent
}

// SummaryAndReset splits the in-progress span at now, returns the
// short-term buffer, and clears it. The emotional state itself
// continues; only the reporting boundary moves. Repeated calls
// partition tracked time with no gaps and no overlaps.
func (t *Tracker) SummaryAndReset(now time.Time) []Portion {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.hasCurrent && now.After(t.spanStart) {
		t.closeSpanLocked(now)
		t.spanStart = now
	}

	out := t.shortTerm
	t.shortTerm = nil
	return out
}

// RecentSummary returns the overlap of each span with the window
// [now-window, now], in chronological order, including the in-progress
// span. It never mutates tracker state.
func (t *Tracker) RecentSummary(window time.Duration, now time.Time) []Portion {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recentSummaryLocked(window, now)
}

func (t *Tracker) recentSummaryLocked(window time.Duration, now time.Time) []Portion {
	windowStart := now.Add(-window)

	var reversed []Portion

	// In-progress span first (it is the most recent).
	if t.hasCurrent {
		if overlap := overlapIn(t.spanStart, now, windowStart, now); overlap > 0 {
			reversed = append(reversed, Portion{Label: t.current, Duration: overlap})
		}
	}

	// History is time-ordered, so walk backwards and stop at the first
	// span that ends before the window opens.
	for i := len(t.history) - 1; i >= 0; i-- {
		span := t.history[i]
		if !span.End.After(windowStart) {
			break
		}
		if overlap := overlapIn(span.Start, span.End, windowStart, now); overlap > 0 {
			reversed = append(reversed, Portion{Label: span.Label, Duration: overlap})
		}
	}

	out := make([]Portion, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		out = append(out, reversed[i])
	}
	return out
}

func overlapIn(start, end, winStart, winEnd time.Time) time.Duration {
	if start.Before(winStart) {
		start = winStart
	}
	if end.After(winEnd) {
		end = winEnd
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start).Round(spanResolution)
}

// RequestRecentSummary schedules a windowed summary to be computed
// after wait and cached for FetchPendingRecent. Any unfetched previous
// result is discarded. Returns a token identifying the request.
func (t *Tracker) RequestRecentSummary(wait, window time.Duration) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pendingTimer != nil {
		t.pendingTimer.Stop()
	}

	t.pendingToken++
	token := t.pendingToken
	t.pendingReady = false
	t.pendingResult = nil

	t.pendingTimer = time.AfterFunc(wait, func() {
		now := time.Now()
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.pendingToken != token {
			// Superseded by a newer request.
			return
		}
		result := t.recentSummaryLocked(window, now)
		if result == nil {
			result = []Portion{}
		}
		t.pendingResult = result
		t.pendingReady = true
	})

	return token
}

// FetchPendingRecent returns the cached delayed summary exactly once.
// The second value is false when no summary is ready; an empty slice
// with true means the summary was computed and found nothing.
func (t *Tracker) FetchPendingRecent() ([]Portion, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.pendingReady {
		return nil, false
	}
	out := t.pendingResult
	t.pendingReady = false
	t.pendingResult = nil
	return out, true
}

// History returns a copy of the permanent span history.
func (t *Tracker) History() []Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Span, len(t.history))
	copy(out, t.history)
	return out
}
