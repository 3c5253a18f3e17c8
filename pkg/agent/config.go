package agent

import (
	"fmt"
	"time"
)

// Config holds orchestrator tuning parameters.
type Config struct {
	// PollTimeout bounds each transcription-queue poll.
	PollTimeout time.Duration `yaml:"poll_timeout" json:"poll_timeout"`

	// IdleThreshold is how long silence runs before the robot nudges.
	IdleThreshold time.Duration `yaml:"idle_threshold" json:"idle_threshold"`

	// StateWait bounds the wait for a fresh grid snapshot from the UI.
	StateWait time.Duration `yaml:"state_wait" json:"state_wait"`

	// ReactionDelay is how long after speaking to sample the user's face.
	ReactionDelay time.Duration `yaml:"reaction_delay" json:"reaction_delay"`

	// ReactionWindow is the emotion window captured after ReactionDelay.
	ReactionWindow time.Duration `yaml:"reaction_window" json:"reaction_window"`

	// HistorySize caps the rolling message history sent to the LLM.
	HistorySize int `yaml:"history_size" json:"history_size"`

	// QuitPhrases end the session when heard verbatim (case-insensitive).
	QuitPhrases []string `yaml:"quit_phrases" json:"quit_phrases"`

	// Intro is spoken once before the loop starts. Empty skips it.
	Intro string `yaml:"intro" json:"intro"`
}

// DefaultConfig returns the standard loop timing.
func DefaultConfig() Config {
	return Config{
		PollTimeout:    500 * time.Millisecond,
		IdleThreshold:  20 * time.Second,
		StateWait:      400 * time.Millisecond,
		ReactionDelay:  2 * time.Second,
		ReactionWindow: 5 * time.Second,
		HistorySize:    12,
		QuitPhrases:    []string{"quit", "exit", "goodbye", "stop playing"},
		Intro:          "Hi, I'm ClueBot! Let's solve this crossword together.",
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.PollTimeout <= 0 {
		return fmt.Errorf("agent: poll timeout must be positive, got %v", c.PollTimeout)
	}
	if c.IdleThreshold <= 0 {
		return fmt.Errorf("agent: idle threshold must be positive, got %v", c.IdleThreshold)
	}
	if c.StateWait < 0 {
		return fmt.Errorf("agent: state wait must not be negative, got %v", c.StateWait)
	}
	if c.HistorySize < 0 {
		return fmt.Errorf("agent: history size must not be negative, got %d", c.HistorySize)
	}
	return nil
}
