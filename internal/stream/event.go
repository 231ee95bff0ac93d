// Package stream parses and renders the worker's stream-json output.
//
// The worker emits one JSON event per line. The classifier turns that stream
// into role-attributed display lines for the live view; it tolerates
// malformed lines because it races a live-writing producer, and it must never
// crash the invocation it is observing.
package stream

import "encoding/json"

// Event is the top-level structure of one stream-json line.
type Event struct {
	Type      string   `json:"type"` // system, assistant, user, result, stream_event
	Subtype   string   `json:"subtype,omitempty"`
	SessionID string   `json:"session_id,omitempty"`
	AgentName string   `json:"agent_name,omitempty"`
	Message   *Payload `json:"message,omitempty"`

	// Result fields, flattened at top level.
	Result   string `json:"result,omitempty"`
	IsError  bool   `json:"is_error,omitempty"`
	NumTurns int    `json:"num_turns,omitempty"`

	// Partial streaming deltas.
	Event *DeltaEvent `json:"event,omitempty"`
}

// Payload carries the content blocks of an assistant or user message.
type Payload struct {
	Content []Content `json:"content"`
}

// Content is one nested content block.
type Content struct {
	Type      string          `json:"type"` // text, tool_use, tool_result
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   any             `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// DeltaEvent wraps an incremental streaming update.
type DeltaEvent struct {
	Type  string `json:"type"`
	Delta *Delta `json:"delta,omitempty"`
}

// Delta is one incremental text fragment.
type Delta struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// inputMap decodes a tool_use input into a generic map.
// Returns nil when the input is absent or not an object.
func (c *Content) inputMap() map[string]any {
	if len(c.Input) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Input, &m); err != nil {
		return nil
	}
	return m
}
