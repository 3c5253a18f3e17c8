// Package puzzle tracks the crossword grid state published by the
// browser UI and exposes it to the conversation loop.
package puzzle

import (
	"sort"
	"strconv"
	"strings"
)

// Blank is the character the UI uses for an unfilled cell.
const Blank = '0'

// ClueContext identifies the clue the solver is currently focused on.
type ClueContext struct {
	Direction string `json:"direction"`
	Number    string `json:"number"`
}

// State is one snapshot of the grid: clue number -> fill pattern, with
// Blank marking empty cells.
type State struct {
	Across  map[string]string `json:"across"`
	Down    map[string]string `json:"down"`
	Context ClueContext       `json:"clue_context"`
}

// ClueRef names one entry in the grid.
type ClueRef struct {
	Direction string
	Number    string
}

func (r ClueRef) String() string {
	return r.Number + "-" + r.Direction
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := State{
		Across:  make(map[string]string, len(s.Across)),
		Down:    make(map[string]string, len(s.Down)),
		Context: s.Context,
	}
	for k, v := range s.Across {
		out.Across[k] = v
	}
	for k, v := range s.Down {
		out.Down[k] = v
	}
	return out
}

// Completed returns every fully filled entry, across first, numerically
// ordered.
func (s State) Completed() []ClueRef {
	var out []ClueRef
	out = append(out, completedIn(s.Across, "across")...)
	out = append(out, completedIn(s.Down, "down")...)
	return out
}

func completedIn(entries map[string]string, direction string) []ClueRef {
	var out []ClueRef
	for num, pattern := range entries {
		if pattern == "" || strings.ContainsRune(pattern, Blank) {
			continue
		}
		out = append(out, ClueRef{Direction: direction, Number: num})
	}
	sort.Slice(out, func(i, j int) bool {
		return clueNum(out[i].Number) < clueNum(out[j].Number)
	})
	return out
}

func clueNum(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 1 << 30
	}
	return n
}

// NewlyCompleted returns the completed entries not already in seen, and
// adds them to seen. The orchestrator owns seen across turns so solved
// entries are announced once.
func NewlyCompleted(s State, seen map[ClueRef]bool) []ClueRef {
	var out []ClueRef
	for _, ref := range s.Completed() {
		if seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, ref)
	}
	return out
}

// Fill returns the pattern for a clue reference, or "" if unknown.
func (s State) Fill(ref ClueRef) string {
	switch ref.Direction {
	case "across":
		return s.Across[ref.Number]
	case "down":
		return s.Down[ref.Number]
	}
	return ""
}
