package audioio

import (
	"context"
	"testing"
	"time"
)

func seq(start, n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(start + i)
	}
	return out
}

func equalSamples(a, b []int16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRingReadNewInOrder(t *testing.T) {
	r := NewRing(1000, 16000, nil)
	r.Register("stt")

	var got []int16
	for i := 0; i < 10; i++ {
		r.Write(seq(i*50, 50))
		got = append(got, r.ReadNew("stt")...)
	}

	want := seq(0, 500)
	if !equalSamples(got, want) {
		t.Fatalf("read %d samples, not the written sequence", len(got))
	}

	if extra := r.ReadNew("stt"); extra != nil {
		t.Errorf("expected nil after draining, got %d samples", len(extra))
	}
}

func TestRingConsumerFallsBehind(t *testing.T) {
	r := NewRing(100, 16000, nil)
	r.Register("slow")

	// Write 3.5 rings worth without reading.
	r.Write(seq(0, 200))
	r.Write(seq(200, 150))

	got := r.ReadNew("slow")
	if len(got) != 100 {
		t.Fatalf("expected clip to capacity (100), got %d", len(got))
	}
	if !equalSamples(got, seq(250, 100)) {
		t.Errorf("expected the most recent 100 samples, got [%d..%d]", got[0], got[len(got)-1])
	}
}

func TestRingWriteLargerThanCapacity(t *testing.T) {
	r := NewRing(64, 16000, nil)
	r.Register("c")

	r.Write(seq(0, 200))

	got := r.ReadNew("c")
	if !equalSamples(got, seq(136, 64)) {
		t.Errorf("expected tail of oversized write, got %d samples", len(got))
	}
	if r.TotalWritten() != 200 {
		t.Errorf("TotalWritten = %d, want 200", r.TotalWritten())
	}
}

func TestRingRegisterSkipsHistory(t *testing.T) {
	r := NewRing(1000, 16000, nil)

	r.Write(seq(0, 300))
	r.Register("late")

	if got := r.ReadNew("late"); got != nil {
		t.Fatalf("expected no audio before registration, got %d samples", len(got))
	}

	r.Write(seq(300, 40))
	if got := r.ReadNew("late"); !equalSamples(got, seq(300, 40)) {
		t.Errorf("expected only post-registration audio, got %d samples", len(got))
	}
}

func TestRingIndependentCursors(t *testing.T) {
	r := NewRing(1000, 16000, nil)
	r.Register("a")
	r.Register("b")

	r.Write(seq(0, 100))
	if got := r.ReadNew("a"); len(got) != 100 {
		t.Fatalf("consumer a: got %d samples, want 100", len(got))
	}

	r.Write(seq(100, 100))
	if got := r.ReadNew("b"); !equalSamples(got, seq(0, 200)) {
		t.Errorf("consumer b should see all 200 samples, got %d", len(got))
	}
	if got := r.ReadNew("a"); !equalSamples(got, seq(100, 100)) {
		t.Errorf("consumer a should see only the second write, got %d samples", len(got))
	}
}

func TestRingUnknownConsumer(t *testing.T) {
	r := NewRing(100, 16000, nil)
	r.Write(seq(0, 50))

	if got := r.ReadNew("nobody"); got != nil {
		t.Errorf("expected nil for unregistered consumer, got %d samples", len(got))
	}
}

func TestRingSnapshot(t *testing.T) {
	r := NewRing(100, 16000, nil)

	r.Write(seq(0, 30))
	if got := r.Snapshot(); !equalSamples(got, seq(0, 30)) {
		t.Errorf("partial snapshot: got %d samples, want 30", len(got))
	}

	r.Write(seq(30, 100))
	if got := r.Snapshot(); !equalSamples(got, seq(30, 100)) {
		t.Errorf("wrapped snapshot should hold the latest 100 samples")
	}
}

func TestRingDrainStream(t *testing.T) {
	r := NewRing(16000, 16000, nil)
	r.Register("drain")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out := r.DrainStream(ctx, "drain", time.Millisecond)

	r.Write(seq(0, 160))

	select {
	case chunk := <-out:
		if len(chunk) != 320 {
			t.Errorf("expected 320 bytes (160 samples), got %d", len(chunk))
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for drained chunk")
	}

	r.Stop()

	select {
	case _, ok := <-out:
		if ok {
			// One buffered chunk may still arrive; the channel must close after.
			if _, ok := <-out; ok {
				t.Error("drain channel still open after Stop")
			}
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for drain channel to close")
	}
}

func TestPumpFillsRing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BufferDuration = 5 * time.Millisecond

	src := NewMockSource(cfg, nil, WithSineWave(440, 0.5))
	r := NewRing(cfg.RingCapacity(), cfg.SampleRate, nil)
	r.Register("pump")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("source start: %v", err)
	}
	defer src.Close()

	go Pump(ctx, src, r)

	deadline := time.After(time.Second)
	for r.TotalWritten() == 0 {
		select {
		case <-deadline:
			t.Fatal("pump never wrote to the ring")
		case <-time.After(5 * time.Millisecond):
		}
	}

	got := r.ReadNew("pump")
	if len(got) == 0 {
		t.Fatal("expected samples from pump")
	}
	nonZero := false
	for _, s := range got {
		if s != 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		t.Error("sine source produced only silence")
	}
}
