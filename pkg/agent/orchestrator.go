// Package agent runs the conversation loop that ties the sensors to the
// voice: it polls finalized utterances, tracks silence, snapshots the
// user's facial emotion, asks the LLM for a reply, and speaks it.
package agent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cluebot/go-cluebot/pkg/emotion"
	"github.com/cluebot/go-cluebot/pkg/journal"
	"github.com/cluebot/go-cluebot/pkg/llm"
	"github.com/cluebot/go-cluebot/pkg/prompt"
	"github.com/cluebot/go-cluebot/pkg/puzzle"
)

// IdleSentinel is the synthetic utterance injected when the user has
// been silent past the idle threshold. The prompt builder renders it as
// a cue to re-engage rather than as literal speech.
const IdleSentinel = "[[IDLE]]"

// Transcripts is the slice of the transcriber the loop needs.
type Transcripts interface {
	Poll(timeout time.Duration) (string, bool)
	Drain() []string
	IdleFor() time.Duration
	ResetActivity()
	Pause()
	Resume()
	Listening() bool
}

// Emotions is the slice of the emotion tracker the loop needs.
type Emotions interface {
	SummaryAndReset(now time.Time) []emotion.Portion
	RequestRecentSummary(wait, window time.Duration) uint64
	FetchPendingRecent() ([]emotion.Portion, bool)
}

// Speech plays a reply aloud, returning only once playback finished.
type Speech interface {
	Speak(ctx context.Context, text string) error
}

// EchoCheck reports whether an utterance is the robot hearing itself.
type EchoCheck interface {
	IsEcho(utterance string, now time.Time) bool
}

// StatusSink receives dashboard status updates. May be nil.
type StatusSink interface {
	UpdateStatus(update func(*puzzle.RobotStatus))
}

// Deps are the collaborators the orchestrator drives. Transcripts,
// Emotions, Sync, Builder, LLM, Speaker and Journal are required;
// Echo and Status may be nil.
type Deps struct {
	Transcripts Transcripts
	Emotions    Emotions
	Sync        *puzzle.Sync
	Builder     *prompt.Builder
	LLM         llm.Provider
	Speaker     Speech
	Journal     *journal.Journal
	Echo        EchoCheck
	Status      StatusSink
	Logger      *slog.Logger
}

// Orchestrator owns all conversational turn state: the turn counter,
// the rolling message history, the completed-clue set, and the previous
// reply used for strategy continuity.
type Orchestrator struct {
	cfg  Config
	deps Deps
	log  *slog.Logger

	turn    int
	history []llm.Message
	seen    map[puzzle.ClueRef]bool
	prev    llm.Reply

	// prevIdle drives edge-triggered silence logging.
	prevIdle int
}

// New creates an orchestrator. cfg is validated; deps are trusted.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:  cfg,
		deps: deps,
		log:  logger.With("component", "agent"),
		seen: make(map[puzzle.ClueRef]bool),
	}, nil
}

// Turn returns the number of completed turns.
func (o *Orchestrator) Turn() int {
	return o.turn
}

// Run executes the conversation loop until ctx is cancelled or the user
// asks to quit. It is single-threaded: every wait inside is bounded, so
// cancellation is observed within one poll interval.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.deps.Journal.Mark("session started")
	defer o.deps.Journal.Mark("session ended")

	if o.cfg.Intro != "" {
		o.deps.Transcripts.Pause()
		if err := o.deps.Speaker.Speak(ctx, o.cfg.Intro); err != nil {
			o.log.Error("intro playback failed", "error", err)
		}
		o.deps.Transcripts.Resume()
		o.deps.Transcripts.ResetActivity()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		o.logIdleEdges()

		text, ok := o.deps.Transcripts.Poll(o.cfg.PollTimeout)
		if !ok {
			if idleFor := o.deps.Transcripts.IdleFor(); idleFor >= o.cfg.IdleThreshold {
				// Refresh activity so one silence produces one nudge,
				// not one per poll. The silence duration is captured
				// first: the nudge's prompt must still report it.
				o.deps.Transcripts.ResetActivity()
				o.deps.Journal.Mark("idle injection")
				o.log.Info("idle threshold reached, nudging")
				o.runTurn(ctx, IdleSentinel, idleFor)
			}
			continue
		}

		if o.deps.Echo != nil && o.deps.Echo.IsEcho(text, time.Now()) {
			o.log.Debug("dropped echo of own speech", "text", text)
			continue
		}

		if o.isQuit(text) {
			o.log.Info("quit utterance heard", "text", text)
			o.deps.Journal.Mark("user quit")
			return nil
		}

		o.runTurn(ctx, text, o.deps.Transcripts.IdleFor())
	}
}

// runTurn executes steps for a single conversational turn. Failures
// inside a turn are logged and absorbed; only Run's loop conditions can
// end the session.
func (o *Orchestrator) runTurn(ctx context.Context, userText string, idleFor time.Duration) {
	o.turn++
	now := time.Now()
	idleSec := int(idleFor.Seconds())

	// Close out the emotion spans accumulated while the user was
	// thinking and talking.
	portions := o.deps.Emotions.SummaryAndReset(now)
	o.deps.Journal.LogEmotionSummary(o.turn, now, portions)

	state, fresh := o.deps.Sync.AwaitFresh(o.cfg.StateWait)
	if !fresh {
		o.log.Warn("state sync timed out, using stale snapshot")
	}
	newly := puzzle.NewlyCompleted(state, o.seen)

	userEmotion := emotion.LabelNeutral
	var outcome string
	if reaction, ready := o.deps.Emotions.FetchPendingRecent(); ready {
		userEmotion = emotion.Predominant(reaction)
		outcome = "reaction to previous reply: " + emotion.FormatPortions(reaction)
	}

	sys := o.deps.Builder.Build(prompt.Input{
		State:             state,
		Emotion:           string(userEmotion),
		IdleSeconds:       idleSec,
		IdleThreshold:     int(o.cfg.IdleThreshold.Seconds()),
		RecentlyCompleted: newly,
		PrevStrategy:      o.prev.Strategy,
		PrevMessage:       o.prev.Message,
		OutcomeNote:       outcome,
	})

	messages := make([]llm.Message, 0, len(o.history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: sys})
	messages = append(messages, o.history...)
	messages = append(messages, llm.NewUserMessage(userText))

	resp, err := o.deps.LLM.Chat(ctx, &llm.ChatRequest{Messages: messages})
	if err != nil {
		o.log.Error("llm call failed, skipping turn", "turn", o.turn, "error", err)
		o.deps.Journal.Mark("llm failure: " + err.Error())
		return
	}

	reply := llm.ParseReply(resp.Message.Content, o.prev.Strategy)

	o.deps.Journal.LogTurn(journal.Turn{
		At:          now,
		Role:        "user",
		Text:        userText,
		Emotion:     string(userEmotion),
		IdleSeconds: float64(idleSec),
	})
	o.deps.Journal.LogTurn(journal.Turn{
		Role:     "assistant",
		Text:     reply.Message,
		Strategy: reply.Strategy,
	})

	o.appendHistory(llm.NewUserMessage(userText))
	o.appendHistory(llm.NewAssistantMessage(reply.Message))

	o.updateStatus(userText, reply)

	// Mute the microphone for exactly the duration of playback so the
	// robot does not transcribe itself.
	o.deps.Transcripts.Pause()
	if err := o.deps.Speaker.Speak(ctx, reply.Message); err != nil {
		o.log.Error("speech playback failed", "turn", o.turn, "error", err)
	}
	o.deps.Transcripts.Resume()

	// Close the spans covering playback, then schedule the delayed
	// windowed snapshot that becomes next turn's reaction context.
	after := time.Now()
	o.deps.Journal.LogEmotionSummary(o.turn, after, o.deps.Emotions.SummaryAndReset(after))
	o.deps.Emotions.RequestRecentSummary(o.cfg.ReactionDelay, o.cfg.ReactionWindow)

	// Anything transcribed during playback is leftover echo, and the
	// playback time itself must not count as user silence.
	if dropped := o.deps.Transcripts.Drain(); len(dropped) > 0 {
		o.log.Debug("dropped transcripts during playback", "count", len(dropped))
	}
	o.deps.Transcripts.ResetActivity()

	o.prev = reply
}

// logIdleEdges logs transitions between speech and silence exactly once
// per edge. On the speech-start edge the emotion spans accumulated
// during the silence are closed out and journaled against the turn
// about to run, so they are not folded into the speaking segment.
func (o *Orchestrator) logIdleEdges() {
	idle := int(o.deps.Transcripts.IdleFor().Seconds())
	switch {
	case idle == 0 && o.prevIdle > 0:
		o.log.Debug("speech activity resumed")
		now := time.Now()
		o.deps.Journal.LogEmotionSummary(o.turn+1, now, o.deps.Emotions.SummaryAndReset(now))
		o.deps.Journal.Mark("speech started")
	case idle > 0 && o.prevIdle == 0:
		o.log.Debug("silence started")
	}
	o.prevIdle = idle
}

func (o *Orchestrator) appendHistory(msg llm.Message) {
	o.history = append(o.history, msg)
	if o.cfg.HistorySize > 0 && len(o.history) > o.cfg.HistorySize {
		o.history = o.history[len(o.history)-o.cfg.HistorySize:]
	}
}

func (o *Orchestrator) updateStatus(userText string, reply llm.Reply) {
	if o.deps.Status == nil {
		return
	}
	shown := userText
	if shown == IdleSentinel {
		shown = ""
	}
	o.deps.Status.UpdateStatus(func(st *puzzle.RobotStatus) {
		st.Turn = o.turn
		if shown != "" {
			st.LastUserMessage = shown
		}
		st.LastBotMessage = reply.Message
		st.Strategy = reply.Strategy
		st.Listening = o.deps.Transcripts.Listening()
	})
}

func (o *Orchestrator) isQuit(text string) bool {
	norm := strings.ToLower(strings.TrimSpace(text))
	norm = strings.Trim(norm, ".!?")
	for _, phrase := range o.cfg.QuitPhrases {
		if norm == phrase {
			return true
		}
	}
	return false
}
