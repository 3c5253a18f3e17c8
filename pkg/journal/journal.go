// Package journal appends a persistent record of each session: chat
// turns, emotion summaries, and free-form timeline markers.
//
// Every write is fire-and-forget. A full disk or missing directory must
// never stall the conversation loop, so failures are logged and dropped.
package journal

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/cluebot/go-cluebot/pkg/emotion"
)

const (
	chatFile     = "conversation.jsonl"
	emotionFile  = "emotion_log.csv"
	timelineFile = "timeline.log"
)

// Turn is one exchange recorded in the chat log.
type Turn struct {
	At          time.Time `json:"at"`
	Role        string    `json:"role"`
	Text        string    `json:"text"`
	Strategy    string    `json:"strategy,omitempty"`
	Emotion     string    `json:"emotion,omitempty"`
	IdleSeconds float64   `json:"idle_seconds,omitempty"`
}

// Journal writes session records under a single directory.
// A Journal created with an empty directory discards everything,
// which keeps call sites free of nil checks.
type Journal struct {
	dir    string
	logger *slog.Logger

	mu       sync.Mutex
	chat     *os.File
	emotions *csv.Writer
	emoFile  *os.File
	timeline *os.File
	closed   bool
}

// New creates a journal rooted at dir. An empty dir disables persistence.
func New(dir string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	j := &Journal{
		dir:    dir,
		logger: logger.With("component", "journal"),
	}
	if dir == "" {
		return j, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("journal: create directory: %w", err)
	}
	return j, nil
}

// NewParticipant creates a journal under root/participants/<id>, so
// each study participant gets their own record directory.
func NewParticipant(root, id string, logger *slog.Logger) (*Journal, error) {
	if root == "" {
		return New("", logger)
	}
	return New(filepath.Join(root, "participants", id), logger)
}

// ClipDir returns a numbered subdirectory for a video clip, creating
// it. Returns "" when persistence is disabled or creation fails.
func (j *Journal) ClipDir(n int) string {
	if j.dir == "" {
		return ""
	}
	dir := filepath.Join(j.dir, fmt.Sprintf("clip-%03d", n))
	if err := os.MkdirAll(dir, 0755); err != nil {
		j.logger.Warn("create clip directory failed", "error", err)
		return ""
	}
	return dir
}

// LogTurn appends one chat turn as a JSON line.
func (j *Journal) LogTurn(turn Turn) {
	if j.dir == "" {
		return
	}
	if turn.At.IsZero() {
		turn.At = time.Now()
	}

	line, err := json.Marshal(turn)
	if err != nil {
		j.logger.Warn("marshal turn failed", "error", err)
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	f, err := j.chatLocked()
	if err != nil {
		j.logger.Warn("open chat log failed", "error", err)
		return
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		j.logger.Warn("write chat log failed", "error", err)
	}
}

// LogEmotionSummary appends one row per portion of an emotion summary,
// tagged with the turn it belongs to.
func (j *Journal) LogEmotionSummary(turn int, at time.Time, portions []emotion.Portion) {
	if j.dir == "" || len(portions) == 0 {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	w, err := j.emotionsLocked()
	if err != nil {
		j.logger.Warn("open emotion log failed", "error", err)
		return
	}
	ts := at.Format(time.RFC3339)
	for _, p := range portions {
		record := []string{
			strconv.Itoa(turn),
			ts,
			string(p.Label),
			strconv.FormatFloat(p.Duration.Seconds(), 'f', 2, 64),
		}
		if err := w.Write(record); err != nil {
			j.logger.Warn("write emotion log failed", "error", err)
			return
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		j.logger.Warn("flush emotion log failed", "error", err)
	}
}

// Mark appends a timestamped free-text event to the timeline.
func (j *Journal) Mark(event string) {
	if j.dir == "" || event == "" {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	f, err := j.timelineLocked()
	if err != nil {
		j.logger.Warn("open timeline failed", "error", err)
		return
	}
	line := fmt.Sprintf("%s %s\n", time.Now().Format(time.RFC3339), event)
	if _, err := f.WriteString(line); err != nil {
		j.logger.Warn("write timeline failed", "error", err)
	}
}

// Dir returns the journal directory, empty when persistence is disabled.
func (j *Journal) Dir() string {
	return j.dir
}

// Close flushes and closes all open files.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true

	if j.emotions != nil {
		j.emotions.Flush()
	}
	for _, f := range []*os.File{j.chat, j.emoFile, j.timeline} {
		if f != nil {
			f.Close()
		}
	}
	return nil
}

func (j *Journal) chatLocked() (*os.File, error) {
	if j.closed {
		return nil, os.ErrClosed
	}
	if j.chat == nil {
		f, err := j.openAppend(chatFile)
		if err != nil {
			return nil, err
		}
		j.chat = f
	}
	return j.chat, nil
}

func (j *Journal) emotionsLocked() (*csv.Writer, error) {
	if j.closed {
		return nil, os.ErrClosed
	}
	if j.emotions == nil {
		f, err := j.openAppend(emotionFile)
		if err != nil {
			return nil, err
		}
		j.emoFile = f
		j.emotions = csv.NewWriter(f)
	}
	return j.emotions, nil
}

func (j *Journal) timelineLocked() (*os.File, error) {
	if j.closed {
		return nil, os.ErrClosed
	}
	if j.timeline == nil {
		f, err := j.openAppend(timelineFile)
		if err != nil {
			return nil, err
		}
		j.timeline = f
	}
	return j.timeline, nil
}

func (j *Journal) openAppend(name string) (*os.File, error) {
	return os.OpenFile(filepath.Join(j.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}
