package puzzle

import (
	"testing"
	"time"
)

func sampleState() State {
	return State{
		Across: map[string]string{
			"1": "COFFEE",
			"4": "ORB0T",
			"7": "CAT",
		},
		Down: map[string]string{
			"1": "000",
			"2": "SILENCE",
		},
		Context: ClueContext{Direction: "across", Number: "4"},
	}
}

func TestCompleted(t *testing.T) {
	got := sampleState().Completed()

	want := []ClueRef{
		{"across", "1"},
		{"across", "7"},
		{"down", "2"},
	}
	if len(got) != len(want) {
		t.Fatalf("completed = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("completed[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestNewlyCompleted(t *testing.T) {
	seen := make(map[ClueRef]bool)
	st := sampleState()

	first := NewlyCompleted(st, seen)
	if len(first) != 3 {
		t.Fatalf("first pass found %d entries, want 3", len(first))
	}

	// Same state again: nothing new.
	if again := NewlyCompleted(st, seen); len(again) != 0 {
		t.Errorf("second pass found %v, want none", again)
	}

	// Solver fills 4-across.
	st.Across["4"] = "ORBIT"
	third := NewlyCompleted(st, seen)
	if len(third) != 1 || third[0] != (ClueRef{"across", "4"}) {
		t.Errorf("third pass = %v, want [4-across]", third)
	}
}

func TestCloneIsDeep(t *testing.T) {
	st := sampleState()
	cp := st.Clone()
	cp.Across["1"] = "X"

	if st.Across["1"] != "COFFEE" {
		t.Error("Clone shares the across map")
	}
}

func TestSyncAwaitFresh(t *testing.T) {
	requested := make(chan struct{}, 1)
	s := NewSync(func() {
		requested <- struct{}{}
		// The UI answers asynchronously.
	})

	go func() {
		<-requested
		s.Publish(sampleState())
	}()

	st, fresh := s.AwaitFresh(time.Second)
	if !fresh {
		t.Fatal("expected a fresh snapshot")
	}
	if st.Across["1"] != "COFFEE" {
		t.Errorf("snapshot content wrong: %v", st.Across)
	}
}

func TestSyncAwaitFreshTimeout(t *testing.T) {
	s := NewSync(func() {})
	s.Publish(sampleState())

	start := time.Now()
	st, fresh := s.AwaitFresh(30 * time.Millisecond)
	if fresh {
		t.Error("no publish happened, snapshot cannot be fresh")
	}
	if time.Since(start) < 30*time.Millisecond {
		t.Error("AwaitFresh returned before the timeout")
	}
	// Stale fallback still carries the last-known state.
	if st.Across["1"] != "COFFEE" {
		t.Errorf("stale snapshot content wrong: %v", st.Across)
	}
}

func TestSyncLatestBeforePublish(t *testing.T) {
	s := NewSync(nil)
	if _, ok := s.Latest(); ok {
		t.Error("Latest should report no state before the first publish")
	}
}

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Title == "" {
		t.Error("catalog title missing")
	}
	if got := c.Text(ClueRef{"across", "4"}); got != "Planet's path" {
		t.Errorf("clue text = %q", got)
	}
	if got := c.Text(ClueRef{"diagonal", "4"}); got != "" {
		t.Errorf("unknown direction should yield empty text, got %q", got)
	}
}

func TestParseCatalogRejectsEmpty(t *testing.T) {
	if _, err := ParseCatalog([]byte(`{"title":"x"}`)); err == nil {
		t.Error("empty catalog should fail to parse")
	}
	if _, err := ParseCatalog([]byte(`not json`)); err == nil {
		t.Error("malformed catalog should fail to parse")
	}
}
