package prompt

import (
	"strings"
	"testing"

	"github.com/cluebot/go-cluebot/pkg/puzzle"
)

func testCatalog(t *testing.T) puzzle.Catalog {
	t.Helper()
	c, err := puzzle.LoadCatalog()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return c
}

func testState() puzzle.State {
	return puzzle.State{
		Across: map[string]string{
			"1": "COFFEE",
			"4": "OR00T",
			"7": "0AT",
		},
		Down: map[string]string{
			"1": "SNOW",
			"2": "0000000",
		},
		Context: puzzle.ClueContext{Direction: "across", Number: "4"},
	}
}

func TestBuildMentionsFocusedClue(t *testing.T) {
	b := NewBuilder(testCatalog(t))

	out := b.Build(Input{State: testState(), Emotion: "neutral"})

	if !strings.Contains(out, "4-across") {
		t.Error("prompt should name the focused clue")
	}
	if !strings.Contains(out, "Planet's path") {
		t.Error("prompt should include the focused clue text")
	}
	if !strings.Contains(out, `"OR__T"`) {
		t.Errorf("prompt should show the pretty fill pattern:\n%s", out)
	}
}

func TestBuildIsPure(t *testing.T) {
	b := NewBuilder(testCatalog(t))
	in := Input{
		State:        testState(),
		Emotion:      "happy",
		IdleSeconds:  3,
		PrevStrategy: "Hint-Gentle",
		PrevMessage:  "Try the first letter.",
	}

	if b.Build(in) != b.Build(in) {
		t.Error("Build must be deterministic for identical input")
	}
}

func TestBuildIdleSection(t *testing.T) {
	b := NewBuilder(testCatalog(t))

	quiet := b.Build(Input{State: testState(), IdleSeconds: 25, IdleThreshold: 20})
	if !strings.Contains(quiet, "silent for 25s") {
		t.Error("idle section missing above threshold")
	}

	active := b.Build(Input{State: testState(), IdleSeconds: 5, IdleThreshold: 20})
	if strings.Contains(active, "silent for") {
		t.Error("idle section present below threshold")
	}
}

func TestBuildRecentlyCompleted(t *testing.T) {
	b := NewBuilder(testCatalog(t))

	out := b.Build(Input{
		State:             testState(),
		RecentlyCompleted: []puzzle.ClueRef{{Direction: "across", Number: "1"}},
	})
	if !strings.Contains(out, "Just solved: 1-across") {
		t.Error("prompt should announce newly completed entries")
	}
}

func TestBuildFocalFallback(t *testing.T) {
	b := NewBuilder(testCatalog(t))

	st := testState()
	st.Context = puzzle.ClueContext{}

	out := b.Build(Input{State: st})
	// Without UI focus, the first incomplete entry becomes focal.
	if !strings.Contains(out, "Focused clue: (4-across)") {
		t.Errorf("unexpected focal selection:\n%s", out)
	}
}

func TestBuildPrevTurnDashes(t *testing.T) {
	b := NewBuilder(testCatalog(t))

	out := b.Build(Input{State: testState()})
	if !strings.Contains(out, "Prev strategy: -") {
		t.Error("missing previous turn placeholder")
	}
}
