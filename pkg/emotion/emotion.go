// Package emotion classifies camera frames into facial-emotion labels and
// tracks how long each emotion persisted as a sequence of time spans.
package emotion

import (
	"fmt"
	"strings"
	"time"
)

// Label is a discrete facial-emotion class.
type Label string

const (
	LabelNeutral     Label = "neutral"
	LabelHappy       Label = "happy"
	LabelSad         Label = "sad"
	LabelAngry       Label = "angry"
	LabelSurprise    Label = "surprise"
	LabelFear        Label = "fear"
	LabelDisgust     Label = "disgust"
	LabelNoDetection Label = "no face"
)

// Span is a contiguous interval during which the label was constant.
type Span struct {
	Label Label     `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns the span length.
func (s Span) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Portion is a label with an accumulated duration, as reported by
// summaries.
type Portion struct {
	Label    Label         `json:"label"`
	Duration time.Duration `json:"duration"`
}

// Predominant returns the label with the largest total duration across
// portions, ignoring the no-detection label unless nothing else is
// present. Returns neutral for an empty slice.
func Predominant(portions []Portion) Label {
	totals := make(map[Label]time.Duration)
	for _, p := range portions {
		totals[p.Label] += p.Duration
	}

	best := LabelNeutral
	var bestDur time.Duration
	for label, dur := range totals {
		if label == LabelNoDetection {
			continue
		}
		if dur > bestDur {
			best = label
			bestDur = dur
		}
	}
	if bestDur == 0 {
		if dur := totals[LabelNoDetection]; dur > 0 {
			return LabelNoDetection
		}
	}
	return best
}

// FormatPortions renders portions as a compact human-readable list,
// e.g. "happy 3.2s, neutral 1.5s".
func FormatPortions(portions []Portion) string {
	if len(portions) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(portions))
	for _, p := range portions {
		parts = append(parts, fmt.Sprintf("%s %.1fs", p.Label, p.Duration.Seconds()))
	}
	return strings.Join(parts, ", ")
}
