package transcribe

import (
	"strings"
	"sync"
	"time"
	"unicode"
)

// EchoFilter suppresses transcriptions that are really the robot
// hearing its own speech through the microphone. Spoken phrases are
// remembered for a window; an utterance whose words mostly overlap a
// remembered phrase is classified as an echo.
type EchoFilter struct {
	mu      sync.Mutex
	spoken  []spokenPhrase
	window  time.Duration
	overlap float64
}

type spokenPhrase struct {
	words map[string]struct{}
	at    time.Time
}

// NewEchoFilter creates a filter remembering phrases for window.
// overlap is the word-overlap ratio above which an utterance counts as
// an echo (0.8 is a good default).
func NewEchoFilter(window time.Duration, overlap float64) *EchoFilter {
	return &EchoFilter{
		window:  window,
		overlap: overlap,
	}
}

// Remember records a phrase the robot just spoke.
func (f *EchoFilter) Remember(text string, now time.Time) {
	words := normalizeWords(text)
	if len(words) == 0 {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.pruneLocked(now)
	f.spoken = append(f.spoken, spokenPhrase{words: words, at: now})
}

// IsEcho reports whether the utterance matches a recently spoken
// phrase.
func (f *EchoFilter) IsEcho(utterance string, now time.Time) bool {
	words := normalizeWords(utterance)
	if len(words) == 0 {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.pruneLocked(now)

	for _, phrase := range f.spoken {
		matched := 0
		for w := range words {
			if _, ok := phrase.words[w]; ok {
				matched++
			}
		}
		if float64(matched)/float64(len(words)) >= f.overlap {
			return true
		}
	}
	return false
}

func (f *EchoFilter) pruneLocked(now time.Time) {
	cutoff := now.Add(-f.window)
	keep := f.spoken[:0]
	for _, p := range f.spoken {
		if p.at.After(cutoff) {
			keep = append(keep, p)
		}
	}
	f.spoken = keep
}

func normalizeWords(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := make(map[string]struct{}, len(fields))
	for _, w := range fields {
		out[w] = struct{}{}
	}
	return out
}
