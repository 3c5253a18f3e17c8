package agent

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cluebot/go-cluebot/pkg/emotion"
	"github.com/cluebot/go-cluebot/pkg/journal"
	"github.com/cluebot/go-cluebot/pkg/llm"
	"github.com/cluebot/go-cluebot/pkg/prompt"
	"github.com/cluebot/go-cluebot/pkg/puzzle"
)

type fakeTranscripts struct {
	mu      sync.Mutex
	queue   []string
	idle    time.Duration
	paused  bool
	resets  int
	pauses  int
	resumes int
	drains  int
}

func (f *fakeTranscripts) Poll(timeout time.Duration) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return "", false
	}
	head := f.queue[0]
	f.queue = f.queue[1:]
	return head, true
}

func (f *fakeTranscripts) Drain() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drains++
	out := f.queue
	f.queue = nil
	return out
}

func (f *fakeTranscripts) IdleFor() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.idle
}

func (f *fakeTranscripts) ResetActivity() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idle = 0
	f.resets++
}

func (f *fakeTranscripts) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = true
	f.pauses++
}

func (f *fakeTranscripts) Resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = false
	f.resumes++
}

func (f *fakeTranscripts) Listening() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.paused
}

func (f *fakeTranscripts) pausedNow() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

type fakeEmotions struct {
	mu        sync.Mutex
	portions  []emotion.Portion
	pending   []emotion.Portion
	ready     bool
	requests  []time.Duration
	snapshots int
}

func (f *fakeEmotions) SummaryAndReset(now time.Time) []emotion.Portion {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots++
	out := f.portions
	f.portions = nil
	return out
}

func (f *fakeEmotions) snapshotCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshots
}

func (f *fakeEmotions) RequestRecentSummary(wait, window time.Duration) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, wait, window)
	return uint64(len(f.requests))
}

func (f *fakeEmotions) FetchPendingRecent() ([]emotion.Portion, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ready {
		return nil, false
	}
	f.ready = false
	return f.pending, true
}

type fakeSpeech struct {
	mu           sync.Mutex
	spoken       []string
	pausedDuring []bool
	transcripts  *fakeTranscripts
	err          error
}

func (f *fakeSpeech) Speak(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, text)
	if f.transcripts != nil {
		f.pausedDuring = append(f.pausedDuring, f.transcripts.pausedNow())
	}
	return f.err
}

func (f *fakeSpeech) Spoken() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.spoken))
	copy(out, f.spoken)
	return out
}

type testHarness struct {
	orch *Orchestrator
	tr   *fakeTranscripts
	emo  *fakeEmotions
	sp   *fakeSpeech
	llm  *llm.Mock
	sync *puzzle.Sync
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.PollTimeout = time.Millisecond
	cfg.StateWait = 10 * time.Millisecond
	cfg.Intro = ""
	return cfg
}

// newHarness wires an orchestrator around fakes. The sync cell responds
// to state requests by publishing state immediately, like a live UI.
func newHarness(t *testing.T, cfg Config, state puzzle.State, respond bool) *testHarness {
	t.Helper()

	catalog, err := puzzle.LoadCatalog()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	h := &testHarness{
		tr:  &fakeTranscripts{},
		emo: &fakeEmotions{},
		llm: llm.NewMock(),
	}
	h.sp = &fakeSpeech{transcripts: h.tr}
	if respond {
		var s *puzzle.Sync
		s = puzzle.NewSync(func() {
			go s.Publish(state)
		})
		h.sync = s
	} else {
		h.sync = puzzle.NewSync(func() {})
	}

	jr, err := journal.New("", nil)
	if err != nil {
		t.Fatalf("journal: %v", err)
	}

	h.orch, err = New(cfg, Deps{
		Transcripts: h.tr,
		Emotions:    h.emo,
		Sync:        h.sync,
		Builder:     prompt.NewBuilder(catalog),
		LLM:         h.llm,
		Speaker:     h.sp,
		Journal:     jr,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h
}

func emptyState() puzzle.State {
	return puzzle.State{
		Across: map[string]string{"1": "000"},
		Down:   map[string]string{"2": "00"},
	}
}

// runUntil runs the loop in the background and cancels once done
// observes a true condition, failing the test on timeout.
func runUntil(t *testing.T, orch *Orchestrator, done func() bool) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- orch.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for !done() {
		select {
		case err := <-errCh:
			return err
		case <-deadline:
			t.Fatal("condition not reached before deadline")
		case <-time.After(2 * time.Millisecond):
		}
	}
	cancel()
	return <-errCh
}

func TestTurnFlowSpeaksReplyWhileMuted(t *testing.T) {
	h := newHarness(t, fastConfig(), emptyState(), true)
	h.tr.queue = []string{"I'm stuck on one across"}

	err := runUntil(t, h.orch, func() bool { return len(h.sp.Spoken()) > 0 })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}

	spoken := h.sp.Spoken()
	if len(spoken) != 1 || spoken[0] != "Mock response" {
		t.Fatalf("spoken = %v", spoken)
	}
	if !h.sp.pausedDuring[0] {
		t.Error("transcriber was not paused during playback")
	}
	if h.tr.pausedNow() {
		t.Error("transcriber still paused after playback")
	}
	if h.orch.Turn() != 1 {
		t.Errorf("turn = %d, want 1", h.orch.Turn())
	}
	if h.tr.resets == 0 {
		t.Error("activity was not reset after playback")
	}
	if len(h.emo.requests) != 2 || h.emo.requests[0] != 2*time.Second || h.emo.requests[1] != 5*time.Second {
		t.Errorf("reaction snapshot request = %v", h.emo.requests)
	}
}

func TestSystemPromptCarriesTurnContext(t *testing.T) {
	var captured string
	h := newHarness(t, fastConfig(), emptyState(), true)
	h.llm.ChatFunc = func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
		if len(req.Messages) > 0 && req.Messages[0].Role == llm.RoleSystem {
			captured = req.Messages[0].Content
		}
		return &llm.ChatResponse{Message: llm.NewAssistantMessage(`{"strategy":"Hint-Gentle","message":"ok"}`)}, nil
	}
	h.emo.pending = []emotion.Portion{{Label: emotion.LabelHappy, Duration: 3 * time.Second}}
	h.emo.ready = true
	h.tr.queue = []string{"any ideas?"}

	err := runUntil(t, h.orch, func() bool { return len(h.sp.Spoken()) > 0 })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}

	if !strings.Contains(captured, "ClueBot") {
		t.Error("system prompt missing role")
	}
	if !strings.Contains(captured, string(emotion.LabelHappy)) {
		t.Error("system prompt missing fetched reaction emotion")
	}
}

func TestIdleNudgePromptReportsSilence(t *testing.T) {
	h := newHarness(t, fastConfig(), emptyState(), true)
	h.tr.idle = 25 * time.Second

	var mu sync.Mutex
	var system string
	h.llm.ChatFunc = func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
		mu.Lock()
		if system == "" && len(req.Messages) > 0 && req.Messages[0].Role == llm.RoleSystem {
			system = req.Messages[0].Content
		}
		mu.Unlock()
		return &llm.ChatResponse{Message: llm.NewAssistantMessage(`{"strategy":"SmallTalk","message":"still with me?"}`)}, nil
	}

	err := runUntil(t, h.orch, func() bool { return len(h.sp.Spoken()) > 0 })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}

	// The nudge exists because the user went quiet, so its prompt must
	// carry the silence duration even though activity was just reset.
	mu.Lock()
	defer mu.Unlock()
	if !strings.Contains(system, "silent for 25s") {
		t.Errorf("nudge prompt missing silence cue:\n%s", system)
	}
}

func TestSilenceEmotionsAttributedToNextTurn(t *testing.T) {
	h := newHarness(t, fastConfig(), emptyState(), true)

	dir := t.TempDir()
	jr, err := journal.New(dir, nil)
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	h.orch.deps.Journal = jr

	h.emo.portions = []emotion.Portion{{Label: emotion.LabelSad, Duration: 4 * time.Second}}
	h.tr.idle = 5 * time.Second

	// Break the silence after a few polls.
	go func() {
		time.Sleep(20 * time.Millisecond)
		h.tr.mu.Lock()
		h.tr.idle = 0
		h.tr.queue = append(h.tr.queue, "got one!")
		h.tr.mu.Unlock()
	}()

	// Snapshots: speech-start edge, turn open, post-reply close.
	err = runUntil(t, h.orch, func() bool {
		return len(h.sp.Spoken()) > 0 && h.emo.snapshotCount() >= 3
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}
	jr.Close()

	f, err := os.Open(filepath.Join(dir, "emotion_log.csv"))
	if err != nil {
		t.Fatalf("open emotion log: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read emotion log: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("emotion rows = %d, want 1", len(rows))
	}
	if rows[0][0] != "1" || rows[0][2] != string(emotion.LabelSad) {
		t.Errorf("silence emotions logged as %v, want turn 1 sad", rows[0])
	}
}

func TestIdleInjectionFiresExactlyOnce(t *testing.T) {
	h := newHarness(t, fastConfig(), emptyState(), true)
	h.tr.idle = 25 * time.Second

	var mu sync.Mutex
	var inputs []string
	h.llm.ChatFunc = func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
		mu.Lock()
		inputs = append(inputs, req.Messages[len(req.Messages)-1].Content)
		mu.Unlock()
		return &llm.ChatResponse{Message: llm.NewAssistantMessage(`{"strategy":"SmallTalk","message":"still there?"}`)}, nil
	}

	// Let the loop spin well past one poll interval after the nudge.
	err := runUntil(t, h.orch, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(inputs) >= 1 && len(h.sp.Spoken()) >= 1
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(inputs) != 1 {
		t.Fatalf("idle injections = %d, want exactly 1", len(inputs))
	}
	if inputs[0] != IdleSentinel {
		t.Errorf("injected input = %q", inputs[0])
	}
}

func TestIntroSpokenOnceBeforeLoop(t *testing.T) {
	cfg := fastConfig()
	cfg.Intro = "hello from the robot"
	h := newHarness(t, cfg, emptyState(), true)

	err := runUntil(t, h.orch, func() bool { return len(h.sp.Spoken()) > 0 })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}
	spoken := h.sp.Spoken()
	if len(spoken) != 1 || spoken[0] != "hello from the robot" {
		t.Fatalf("spoken = %v", spoken)
	}
	if !h.sp.pausedDuring[0] {
		t.Error("transcriber was not muted during the intro")
	}
	if h.orch.Turn() != 0 {
		t.Errorf("intro consumed a turn: %d", h.orch.Turn())
	}
}

func TestQuitUtteranceEndsLoop(t *testing.T) {
	h := newHarness(t, fastConfig(), emptyState(), true)
	h.tr.queue = []string{"Goodbye."}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.orch.Run(ctx); err != nil {
		t.Fatalf("Run = %v, want nil on quit", err)
	}
	if len(h.sp.Spoken()) != 0 {
		t.Error("robot spoke after quit")
	}
}

func TestMalformedReplyFallsBackToRawText(t *testing.T) {
	h := newHarness(t, fastConfig(), emptyState(), true)
	h.llm.ChatFunc = func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
		return &llm.ChatResponse{Message: llm.NewAssistantMessage("plain words, no json")}, nil
	}
	h.tr.queue = []string{"help me"}

	err := runUntil(t, h.orch, func() bool { return len(h.sp.Spoken()) > 0 })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}
	if got := h.sp.Spoken()[0]; got != "plain words, no json" {
		t.Errorf("spoken = %q", got)
	}
}

func TestStaleStateStillProducesTurn(t *testing.T) {
	// Sync whose request is never answered: AwaitFresh must time out
	// and the turn proceed anyway.
	h := newHarness(t, fastConfig(), emptyState(), false)
	h.tr.queue = []string{"hello"}

	err := runUntil(t, h.orch, func() bool { return len(h.sp.Spoken()) > 0 })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}
	if len(h.sp.Spoken()) != 1 {
		t.Fatalf("spoken = %v", h.sp.Spoken())
	}
}

func TestLLMFailureSkipsTurnNotLoop(t *testing.T) {
	h := newHarness(t, fastConfig(), emptyState(), true)
	calls := 0
	h.llm.ChatFunc = func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("transport down")
		}
		return &llm.ChatResponse{Message: llm.NewAssistantMessage(`{"strategy":"Encouragement","message":"second try"}`)}, nil
	}
	h.tr.queue = []string{"first", "second"}

	err := runUntil(t, h.orch, func() bool { return len(h.sp.Spoken()) > 0 })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}
	if got := h.sp.Spoken(); len(got) != 1 || got[0] != "second try" {
		t.Errorf("spoken = %v", got)
	}
}

type alwaysEcho struct{}

func (alwaysEcho) IsEcho(string, time.Time) bool { return true }

func TestEchoUtterancesAreDropped(t *testing.T) {
	h := newHarness(t, fastConfig(), emptyState(), true)
	h.orch.deps.Echo = alwaysEcho{}
	h.tr.queue = []string{"an echo of the robot"}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := h.orch.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run = %v", err)
	}
	if len(h.sp.Spoken()) != 0 {
		t.Error("echo reached the LLM and was spoken")
	}
}

func TestNewlyCompletedAnnouncedOnce(t *testing.T) {
	state := puzzle.State{
		Across: map[string]string{"1": "CAT"},
		Down:   map[string]string{"2": "00"},
	}
	var prompts []string
	var mu sync.Mutex
	h := newHarness(t, fastConfig(), state, true)
	h.llm.ChatFunc = func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
		mu.Lock()
		prompts = append(prompts, req.Messages[0].Content)
		mu.Unlock()
		return &llm.ChatResponse{Message: llm.NewAssistantMessage(`{"strategy":"Encouragement","message":"nice"}`)}, nil
	}
	h.tr.queue = []string{"got one", "what next"}

	err := runUntil(t, h.orch, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(prompts) >= 2
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if !strings.Contains(prompts[0], "Just solved") {
		t.Error("first turn did not announce the solve")
	}
	if strings.Contains(prompts[1], "Just solved") {
		t.Error("second turn re-announced the solve")
	}
}
