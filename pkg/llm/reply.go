package llm

import (
	"encoding/json"
	"strings"
)

// Reply is the structured answer the conversation loop expects from
// the model.
type Reply struct {
	// Strategy is the model's private note about how it is coaching
	// the solver; carried into the next prompt, never spoken.
	Strategy string `json:"strategy"`

	// Message is the text to speak.
	Message string `json:"message"`
}

// ParseReply decodes a structured reply. A malformed reply degrades
// gracefully: the raw text becomes the spoken message and the previous
// strategy is retained.
func ParseReply(raw, prevStrategy string) Reply {
	text := stripCodeFence(strings.TrimSpace(raw))

	var r Reply
	if err := json.Unmarshal([]byte(text), &r); err == nil && r.Message != "" {
		if r.Strategy == "" {
			r.Strategy = prevStrategy
		}
		return r
	}

	return Reply{
		Strategy: prevStrategy,
		Message:  strings.TrimSpace(raw),
	}
}

// stripCodeFence unwraps ```json ... ``` style fencing that chat
// models like to add around JSON.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:] // drop the language tag line
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
