package journal

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cluebot/go-cluebot/pkg/emotion"
)

func TestLogTurnAppendsJSONLines(t *testing.T) {
	dir := t.TempDir()
	j, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer j.Close()

	j.LogTurn(Turn{Role: "user", Text: "I'm stuck on 4 across"})
	j.LogTurn(Turn{Role: "assistant", Text: "Think planets.", Strategy: "Hint-Gentle"})

	data, err := os.ReadFile(filepath.Join(dir, chatFile))
	if err != nil {
		t.Fatalf("read chat log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}

	var second Turn
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if second.Strategy != "Hint-Gentle" || second.Role != "assistant" {
		t.Errorf("turn = %+v", second)
	}
	if second.At.IsZero() {
		t.Error("At was not defaulted")
	}
}

func TestLogEmotionSummaryWritesCSV(t *testing.T) {
	dir := t.TempDir()
	j, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer j.Close()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	j.LogEmotionSummary(3, at, []emotion.Portion{
		{Label: emotion.LabelHappy, Duration: 3200 * time.Millisecond},
		{Label: emotion.LabelNeutral, Duration: 1500 * time.Millisecond},
	})

	f, err := os.Open(filepath.Join(dir, emotionFile))
	if err != nil {
		t.Fatalf("open emotion log: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0][0] != "3" || rows[0][2] != string(emotion.LabelHappy) || rows[0][3] != "3.20" {
		t.Errorf("row = %v", rows[0])
	}
}

func TestMarkAppendsTimeline(t *testing.T) {
	dir := t.TempDir()
	j, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer j.Close()

	j.Mark("session started")
	j.Mark("idle nudge sent")

	data, err := os.ReadFile(filepath.Join(dir, timelineFile))
	if err != nil {
		t.Fatalf("read timeline: %v", err)
	}
	if !strings.Contains(string(data), "idle nudge sent") {
		t.Errorf("timeline = %q", data)
	}
}

func TestDisabledJournalWritesNothing(t *testing.T) {
	j, err := New("", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer j.Close()

	j.LogTurn(Turn{Role: "user", Text: "hello"})
	j.LogEmotionSummary(1, time.Now(), []emotion.Portion{{Label: emotion.LabelSad, Duration: time.Second}})
	j.Mark("event")

	if j.Dir() != "" {
		t.Error("disabled journal reports a directory")
	}
}

func TestWritesAfterCloseAreDropped(t *testing.T) {
	dir := t.TempDir()
	j, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	j.LogTurn(Turn{Role: "user", Text: "before"})
	j.Close()

	// Must not panic or reopen the file.
	j.LogTurn(Turn{Role: "user", Text: "after"})

	data, _ := os.ReadFile(filepath.Join(dir, chatFile))
	if strings.Contains(string(data), "after") {
		t.Error("write after Close reached the file")
	}
}
