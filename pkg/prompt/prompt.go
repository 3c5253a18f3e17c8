// Package prompt assembles the system prompt for each conversational
// turn. Build is a pure function of its inputs.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cluebot/go-cluebot/pkg/puzzle"
)

// Input is everything one turn's prompt depends on.
type Input struct {
	// State is the freshest grid snapshot.
	State puzzle.State

	// Emotion is the user's predominant recent facial emotion.
	Emotion string

	// IdleSeconds is how long the user has been silent.
	IdleSeconds int

	// IdleThreshold is when silence becomes worth mentioning.
	IdleThreshold int

	// RecentlyCompleted are entries solved since the last turn.
	RecentlyCompleted []puzzle.ClueRef

	// PrevStrategy and PrevMessage are the previous turn's reply.
	PrevStrategy string
	PrevMessage  string

	// OutcomeNote is a free-text observation about how the previous
	// turn landed.
	OutcomeNote string
}

// Builder renders system prompts for a fixed clue catalog.
type Builder struct {
	catalog puzzle.Catalog
}

// NewBuilder creates a builder over the given catalog.
func NewBuilder(catalog puzzle.Catalog) *Builder {
	return &Builder{catalog: catalog}
}

const roleAndSchema = `You are ClueBot, a personable robot solving a crossword together with the user. Speak aloud in first person. Goals, in priority order: keep the user's mood positive, help solve clues without spelling out whole answers, and adapt your social strategy each turn using the user's facial-emotion feedback (angry, disgust, fear, happy, sad, surprise, neutral).

Return exactly this JSON, nothing else:
{"strategy": "<current strategy label plus running notes, semicolon separated, under 250 chars>", "message": "<spoken reply, 1-2 concise sentences>"}

Strategy toolkit: Hint-Gentle | Hint-Detailed | Encouragement | Joke | SmallTalk | SilentWait. Blend when useful.
`

const adaptPolicy = `Emotion adaptation policy: happy or surprise means the last tactic worked, keep it or build on it. Neutral means continue or tweak. Sad, angry, disgust or fear means the last tactic failed, pivot: a failed Joke becomes Encouragement or Hint-Detailed; Hint-Gentle becomes Hint-Detailed; Encouragement gains a concrete hint; SmallTalk refocuses on the puzzle; SilentWait re-engages. Record pivots and confirmed successes as notes inside the strategy string so the reasoning chain survives across turns.
`

const responseRules = `Response rules: one or two upbeat sentences. Hints stay partial, phrased as a suggestion or question. Humour mild, dropped if the last joke failed. For SilentWait the message is "...". JSON only, no markdown.
`

// Build assembles the full system prompt for one turn.
func (b *Builder) Build(in Input) string {
	var sb strings.Builder

	sb.WriteString(roleAndSchema)
	sb.WriteString("\n")

	// Last-turn snapshot.
	sb.WriteString("Last turn:\n")
	fmt.Fprintf(&sb, "  Prev strategy: %s\n", orDash(in.PrevStrategy))
	fmt.Fprintf(&sb, "  You said: %s\n", orDash(in.PrevMessage))
	fmt.Fprintf(&sb, "  User emotion: %s\n", orDash(in.Emotion))
	fmt.Fprintf(&sb, "  Outcome note: %s\n", orDash(in.OutcomeNote))
	sb.WriteString("\n")

	sb.WriteString(adaptPolicy)
	sb.WriteString("\n")

	// Current puzzle context.
	sb.WriteString("Current puzzle state (ground truth for this turn):\n")

	if len(in.RecentlyCompleted) > 0 {
		names := make([]string, len(in.RecentlyCompleted))
		for i, ref := range in.RecentlyCompleted {
			names[i] = ref.String()
		}
		fmt.Fprintf(&sb, "Just solved: %s\n", strings.Join(names, ", "))
	}

	focal := b.chooseFocal(in.State)
	fmt.Fprintf(&sb, "Focused clue: (%s) %q, pattern %q\n",
		focal.String(), b.catalog.Text(focal), prettyPattern(in.State.Fill(focal)))

	if interesting := b.pickInteresting(in.State, focal, 3); len(interesting) > 0 {
		fmt.Fprintf(&sb, "Other promising: %s\n", strings.Join(interesting, "; "))
	}

	fmt.Fprintf(&sb, "Remaining blanks: %s\n", summarizeRest(in.State, focal))

	if in.IdleThreshold > 0 && in.IdleSeconds >= in.IdleThreshold {
		fmt.Fprintf(&sb, "\nThe user has been silent for %ds. Consider offering help or small talk.\n", in.IdleSeconds)
	}

	sb.WriteString("\n")
	sb.WriteString(responseRules)

	return sb.String()
}

// chooseFocal picks the clue to talk about: the one the UI reports
// focused, else the first incomplete entry, else the first across.
func (b *Builder) chooseFocal(st puzzle.State) puzzle.ClueRef {
	if st.Context.Number != "" && st.Context.Direction != "" {
		return puzzle.ClueRef{Direction: st.Context.Direction, Number: st.Context.Number}
	}
	for _, dir := range []string{"across", "down"} {
		entries := st.Across
		if dir == "down" {
			entries = st.Down
		}
		for _, num := range sortedKeys(entries) {
			if strings.ContainsRune(entries[num], puzzle.Blank) {
				return puzzle.ClueRef{Direction: dir, Number: num}
			}
		}
	}
	for _, num := range sortedKeys(b.catalog.Across) {
		return puzzle.ClueRef{Direction: "across", Number: num}
	}
	return puzzle.ClueRef{}
}

// pickInteresting lists up to k incomplete entries with the most
// letters already filled, the ones closest to done.
func (b *Builder) pickInteresting(st puzzle.State, exclude puzzle.ClueRef, k int) []string {
	type candidate struct {
		ref     puzzle.ClueRef
		filled  int
		pattern string
	}
	var cands []candidate

	collect := func(entries map[string]string, dir string) {
		for num, pattern := range entries {
			ref := puzzle.ClueRef{Direction: dir, Number: num}
			if ref == exclude || !strings.ContainsRune(pattern, puzzle.Blank) {
				continue
			}
			cands = append(cands, candidate{ref: ref, filled: lettersFilled(pattern), pattern: pattern})
		}
	}
	collect(st.Across, "across")
	collect(st.Down, "down")

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].filled != cands[j].filled {
			return cands[i].filled > cands[j].filled
		}
		return cands[i].ref.String() < cands[j].ref.String()
	})

	if len(cands) > k {
		cands = cands[:k]
	}
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = fmt.Sprintf("(%s) %q, pattern %q",
			c.ref.String(), b.catalog.Text(c.ref), prettyPattern(c.pattern))
	}
	return out
}

// summarizeRest compacts every other incomplete entry into one line.
func summarizeRest(st puzzle.State, exclude puzzle.ClueRef) string {
	var lines []string

	summarize := func(entries map[string]string, dir, tag string) {
		var group []string
		for _, num := range sortedKeys(entries) {
			ref := puzzle.ClueRef{Direction: dir, Number: num}
			if ref == exclude || !strings.ContainsRune(entries[num], puzzle.Blank) {
				continue
			}
			group = append(group, num+":"+prettyPattern(entries[num]))
		}
		if len(group) > 0 {
			lines = append(lines, tag+": "+strings.Join(group, ", "))
		}
	}
	summarize(st.Across, "across", "A")
	summarize(st.Down, "down", "D")

	if len(lines) == 0 {
		return "(all filled!)"
	}
	return strings.Join(lines, " | ")
}

func prettyPattern(pattern string) string {
	return strings.Map(func(r rune) rune {
		if r == puzzle.Blank {
			return '_'
		}
		return r
	}, pattern)
}

func lettersFilled(pattern string) int {
	n := 0
	for _, r := range pattern {
		if r != puzzle.Blank {
			n++
		}
	}
	return n
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return clueLess(keys[i], keys[j])
	})
	return keys
}

func clueLess(a, b string) bool {
	if len(a) != len(b) && isDigits(a) && isDigits(b) {
		return len(a) < len(b)
	}
	return a < b
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
