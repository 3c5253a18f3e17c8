package transcribe

import (
	"testing"
	"time"
)

func TestEchoFilterMatchesSpokenPhrase(t *testing.T) {
	f := NewEchoFilter(10*time.Second, 0.8)
	now := time.Now()

	f.Remember("Try seven across, the answer is ORBIT.", now)

	if !f.IsEcho("try seven across the answer is orbit", now.Add(time.Second)) {
		t.Error("verbatim playback should be classified as echo")
	}
	if !f.IsEcho("seven across the answer is orbit", now.Add(time.Second)) {
		t.Error("near-verbatim playback should be classified as echo")
	}
}

func TestEchoFilterPassesUserSpeech(t *testing.T) {
	f := NewEchoFilter(10*time.Second, 0.8)
	now := time.Now()

	f.Remember("Try seven across, the answer is ORBIT.", now)

	if f.IsEcho("what about twelve down instead", now.Add(time.Second)) {
		t.Error("unrelated speech should not be classified as echo")
	}
}

func TestEchoFilterForgetsOldPhrases(t *testing.T) {
	f := NewEchoFilter(time.Second, 0.8)
	now := time.Now()

	f.Remember("hello there solver", now)

	if f.IsEcho("hello there solver", now.Add(5*time.Second)) {
		t.Error("phrases outside the window should be forgotten")
	}
}

func TestEchoFilterEmptyUtterance(t *testing.T) {
	f := NewEchoFilter(time.Second, 0.8)
	if f.IsEcho("", time.Now()) {
		t.Error("empty utterance is never an echo")
	}
}
