package emotion

import (
	"testing"
	"time"
)

func TestTrackerObserveTransitions(t *testing.T) {
	tr := NewTracker(nil)
	base := time.Now()

	tr.Observe(LabelNeutral, base)
	tr.Observe(LabelNeutral, base.Add(time.Second))
	tr.Observe(LabelHappy, base.Add(3*time.Second))
	tr.Observe(LabelSad, base.Add(4*time.Second))

	hist := tr.History()
	if len(hist) != 2 {
		t.Fatalf("history has %d spans, want 2", len(hist))
	}
	if hist[0].Label != LabelNeutral || hist[0].Duration() != 3*time.Second {
		t.Errorf("span 0 = %s %v, want neutral 3s", hist[0].Label, hist[0].Duration())
	}
	if hist[1].Label != LabelHappy || hist[1].Duration() != time.Second {
		t.Errorf("span 1 = %s %v, want happy 1s", hist[1].Label, hist[1].Duration())
	}

	if cur, ok := tr.Current(); !ok || cur != LabelSad {
		t.Errorf("current = %v %v, want sad", cur, ok)
	}
}

func TestSummaryAndResetPartitionsTime(t *testing.T) {
	tr := NewTracker(nil)
	base := time.Now()

	tr.Observe(LabelNeutral, base)
	tr.Observe(LabelHappy, base.Add(2*time.Second))

	var total time.Duration
	for _, p := range tr.SummaryAndReset(base.Add(5 * time.Second)) {
		total += p.Duration
	}

	tr.Observe(LabelSad, base.Add(7*time.Second))
	for _, p := range tr.SummaryAndReset(base.Add(10 * time.Second)) {
		total += p.Duration
	}

	// Summed durations must partition all tracked time exactly.
	if total != 10*time.Second {
		t.Errorf("summaries cover %v, want 10s", total)
	}

	// The synthetic splits must not change the current label.
	if cur, ok := tr.Current(); !ok || cur != LabelSad {
		t.Errorf("current = %v %v, want sad", cur, ok)
	}
}

func TestSummaryAndResetClearsBuffer(t *testing.T) {
	tr := NewTracker(nil)
	base := time.Now()

	tr.Observe(LabelHappy, base)
	first := tr.SummaryAndReset(base.Add(time.Second))
	if len(first) != 1 {
		t.Fatalf("first summary has %d portions, want 1", len(first))
	}

	// No time elapsed since the split: nothing to report.
	second := tr.SummaryAndReset(base.Add(time.Second))
	if len(second) != 0 {
		t.Errorf("second summary has %d portions, want 0", len(second))
	}
}

func TestRecentSummaryWindow(t *testing.T) {
	tr := NewTracker(nil)
	base := time.Now()

	tr.Observe(LabelNeutral, base)                    // [0, 4) neutral
	tr.Observe(LabelHappy, base.Add(4*time.Second))   // [4, 8) happy
	tr.Observe(LabelSad, base.Add(8*time.Second))     // [8, ...) sad

	now := base.Add(10 * time.Second)
	got := tr.RecentSummary(5*time.Second, now) // window [5, 10]

	want := []Portion{
		{LabelHappy, 3 * time.Second},
		{LabelSad, 2 * time.Second},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d portions, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("portion %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRecentSummaryDoesNotMutate(t *testing.T) {
	tr := NewTracker(nil)
	base := time.Now()

	tr.Observe(LabelNeutral, base)
	tr.Observe(LabelHappy, base.Add(time.Second))
	tr.Observe(LabelSad, base.Add(2*time.Second))

	now := base.Add(3 * time.Second)
	first := tr.RecentSummary(10*time.Second, now)
	second := tr.RecentSummary(10*time.Second, now)

	if len(first) != len(second) {
		t.Fatalf("repeated calls differ: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("portion %d differs: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestRecentSummarySkipsOldSpans(t *testing.T) {
	tr := NewTracker(nil)
	base := time.Now()

	tr.Observe(LabelAngry, base)
	tr.Observe(LabelNeutral, base.Add(time.Second))

	now := base.Add(60 * time.Second)
	got := tr.RecentSummary(5*time.Second, now)

	if len(got) != 1 || got[0].Label != LabelNeutral {
		t.Fatalf("expected only the in-progress span, got %v", got)
	}
	if got[0].Duration != 5*time.Second {
		t.Errorf("overlap = %v, want 5s", got[0].Duration)
	}
}

func TestPendingRecentCycle(t *testing.T) {
	tr := NewTracker(nil)
	base := time.Now()
	tr.Observe(LabelHappy, base.Add(-3*time.Second))

	tr.RequestRecentSummary(50*time.Millisecond, 5*time.Second)

	if _, ok := tr.FetchPendingRecent(); ok {
		t.Fatal("summary ready before the wait elapsed")
	}

	time.Sleep(150 * time.Millisecond)

	got, ok := tr.FetchPendingRecent()
	if !ok {
		t.Fatal("summary not ready after the wait elapsed")
	}
	if len(got) != 1 || got[0].Label != LabelHappy {
		t.Errorf("pending summary = %v, want one happy portion", got)
	}

	// A fetched result is consumed.
	if _, ok := tr.FetchPendingRecent(); ok {
		t.Error("second fetch should report not ready")
	}
}

func TestPendingRecentSupersede(t *testing.T) {
	tr := NewTracker(nil)
	tr.Observe(LabelHappy, time.Now().Add(-time.Second))

	first := tr.RequestRecentSummary(10*time.Millisecond, time.Second)
	second := tr.RequestRecentSummary(50*time.Millisecond, time.Second)
	if second <= first {
		t.Fatalf("tokens must increase: %d then %d", first, second)
	}

	// The first timer fires but its token is stale.
	time.Sleep(30 * time.Millisecond)
	if _, ok := tr.FetchPendingRecent(); ok {
		t.Error("superseded request should not produce a result")
	}

	time.Sleep(60 * time.Millisecond)
	if _, ok := tr.FetchPendingRecent(); !ok {
		t.Error("latest request should produce a result")
	}
}

func TestPredominant(t *testing.T) {
	portions := []Portion{
		{LabelNeutral, 2 * time.Second},
		{LabelHappy, 3 * time.Second},
		{LabelNoDetection, 10 * time.Second},
		{LabelHappy, time.Second},
	}
	if got := Predominant(portions); got != LabelHappy {
		t.Errorf("Predominant = %s, want happy", got)
	}

	if got := Predominant(nil); got != LabelNeutral {
		t.Errorf("Predominant(nil) = %s, want neutral", got)
	}

	onlyMisses := []Portion{{LabelNoDetection, time.Second}}
	if got := Predominant(onlyMisses); got != LabelNoDetection {
		t.Errorf("Predominant(no face only) = %s, want no face", got)
	}
}

func TestFormatPortions(t *testing.T) {
	portions := []Portion{
		{LabelHappy, 3200 * time.Millisecond},
		{LabelNeutral, 1500 * time.Millisecond},
	}
	got := FormatPortions(portions)
	want := "happy 3.2s, neutral 1.5s"
	if got != want {
		t.Errorf("FormatPortions = %q, want %q", got, want)
	}

	if got := FormatPortions(nil); got != "none" {
		t.Errorf("FormatPortions(nil) = %q", got)
	}
}
