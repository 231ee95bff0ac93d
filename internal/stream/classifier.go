package stream

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Display limits. Bash previews are truncated to a safe length; text blocks
// show only their first few lines; deltas below the minimum length are noise
// from incremental token streaming and are dropped.
const (
	maxCommandPreview = 120
	maxTextLines      = 3
	maxResultPreview  = 200
	minDeltaLen       = 80
	truncationSuffix  = "..."
)

// LineKind tags a rendered display line.
type LineKind int

const (
	LineText LineKind = iota
	LineTool
	LineToolError
	LineSystem
	LineSpawn
	LineSessionEnd
)

// Line is one role-attributed, human-readable display line.
type Line struct {
	Role Role
	Kind LineKind
	Text string
}

// Classifier turns stream-json lines into display lines. It holds the
// session-to-role binding for one invocation; a fresh Classifier is created
// per invocation and discarded after. Not safe for concurrent use; events
// must be fed in arrival order because role attribution depends on
// previously seen session names.
type Classifier struct {
	roles    *Registry
	bindings map[string]Role
	current  Role
}

// NewClassifier creates a Classifier using the given role registry.
func NewClassifier(roles *Registry) *Classifier {
	return &Classifier{
		roles:    roles,
		bindings: make(map[string]Role),
		current:  RoleLead,
	}
}

// Binding returns the role bound to a session or agent name.
func (c *Classifier) Binding(name string) (Role, bool) {
	r, ok := c.bindings[name]
	return r, ok
}

// bind records a session-to-role binding. Bindings are monotonic: a name,
// once bound, keeps its role for the rest of the invocation.
func (c *Classifier) bind(name string) Role {
	if r, ok := c.bindings[name]; ok {
		return r
	}
	r := c.roles.Resolve(name)
	c.bindings[name] = r
	return r
}

// ParseLine processes one raw output line and returns zero or more display
// lines. Malformed JSON is dropped silently; the classifier races a live
// writer and partial lines are expected.
func (c *Classifier) ParseLine(raw string) []Line {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw[0] != '{' {
		return nil
	}

	var ev Event
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		return nil
	}

	switch ev.Type {
	case "system":
		return c.systemLine(&ev)
	case "assistant":
		return c.assistantLines(&ev)
	case "user":
		return c.toolResultLines(&ev)
	case "result":
		return c.resultLine(&ev)
	case "stream_event":
		return c.deltaLine(&ev)
	default:
		return nil
	}
}

// systemLine renders a system notice under the lead role.
func (c *Classifier) systemLine(ev *Event) []Line {
	text := ev.Subtype
	if text == "" {
		text = "system"
	}
	return []Line{{Role: RoleLead, Kind: LineSystem, Text: text}}
}

// resultLine emits a session-end marker with the reported stop reason.
// It does not end the classifier's own stream: a concurrently running
// teammate may still emit events after one session finishes.
func (c *Classifier) resultLine(ev *Event) []Line {
	reason := ev.Subtype
	if reason == "" {
		reason = "done"
	}
	return []Line{{
		Role: c.current,
		Kind: LineSessionEnd,
		Text: fmt.Sprintf("session ended (%s)", reason),
	}}
}

// assistantLines renders an assistant message's content blocks. A message
// carrying an agent name updates the binding and switches the current role
// for subsequent unattributed content.
func (c *Classifier) assistantLines(ev *Event) []Line {
	if ev.AgentName != "" {
		c.current = c.bind(ev.AgentName)
	}
	if ev.Message == nil {
		return nil
	}

	var lines []Line
	for i := range ev.Message.Content {
		block := &ev.Message.Content[i]
		switch block.Type {
		case "text":
			if block.Text == "" {
				continue
			}
			lines = append(lines, Line{
				Role: c.current,
				Kind: LineText,
				Text: firstLines(block.Text, maxTextLines),
			})
		case "tool_use":
			lines = append(lines, c.toolLine(block)...)
		}
	}
	return lines
}

// toolLine renders one tool invocation with a type-specific summary.
func (c *Classifier) toolLine(block *Content) []Line {
	input := block.inputMap()

	switch block.Name {
	case "Bash":
		if cmd, ok := stringField(input, "command"); ok {
			return c.tool("$ " + truncate(cmd, maxCommandPreview))
		}
	case "Read", "Glob", "Grep":
		if target, ok := firstStringField(input, "file_path", "pattern", "path"); ok {
			return c.tool(block.Name + " " + target)
		}
	case "Edit", "Write":
		if path, ok := stringField(input, "file_path"); ok {
			return c.tool("✎ " + block.Name + " " + path)
		}
	case "SendMessage":
		to, _ := firstStringField(input, "recipient", "to")
		summary, _ := firstStringField(input, "summary", "content", "message")
		from := string(c.current)
		return c.tool(fmt.Sprintf("%s → %s: %s", from, to, truncate(summary, maxCommandPreview)))
	case "Task":
		return c.spawnLine(input)
	}
	return c.tool(block.Name)
}

// spawnLine renders a new-teammate spawn and registers the spawned name in
// the binding immediately, before the teammate emits its first event.
func (c *Classifier) spawnLine(input map[string]any) []Line {
	name, ok := firstStringField(input, "name", "subagent_type", "description")
	if !ok {
		return c.tool("Task")
	}
	role := c.bind(name)
	return []Line{{
		Role: role,
		Kind: LineSpawn,
		Text: fmt.Sprintf("spawning %s", name),
	}}
}

// toolResultLines renders tool results only when they carry an error; routine
// acknowledgements would flood the display.
func (c *Classifier) toolResultLines(ev *Event) []Line {
	if ev.Message == nil {
		return nil
	}
	var lines []Line
	for i := range ev.Message.Content {
		block := &ev.Message.Content[i]
		if block.Type != "tool_result" || !block.IsError {
			continue
		}
		lines = append(lines, Line{
			Role: c.current,
			Kind: LineToolError,
			Text: truncate(resultText(block.Content), maxResultPreview),
		})
	}
	return lines
}

// deltaLine renders partial text deltas above the minimum length threshold.
func (c *Classifier) deltaLine(ev *Event) []Line {
	if ev.Event == nil || ev.Event.Delta == nil {
		return nil
	}
	text := ev.Event.Delta.Text
	if len(text) < minDeltaLen {
		return nil
	}
	return []Line{{Role: c.current, Kind: LineText, Text: firstLines(text, maxTextLines)}}
}

func (c *Classifier) tool(text string) []Line {
	return []Line{{Role: c.current, Kind: LineTool, Text: text}}
}

// resultText extracts a string from tool_result content, which can be a
// plain string or an array of content blocks.
func resultText(content any) string {
	if s, ok := content.(string); ok {
		return s
	}
	if arr, ok := content.([]any); ok {
		for _, item := range arr {
			if m, ok := item.(map[string]any); ok {
				if text, ok := m["text"].(string); ok {
					return text
				}
			}
		}
	}
	return "tool error"
}

func stringField(m map[string]any, key string) (string, bool) {
	if m == nil {
		return "", false
	}
	s, ok := m[key].(string)
	return s, ok && s != ""
}

func firstStringField(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := stringField(m, k); ok {
			return s, true
		}
	}
	return "", false
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= len(truncationSuffix) {
		return s[:maxLen]
	}
	return s[:maxLen-len(truncationSuffix)] + truncationSuffix
}

// firstLines keeps at most n lines of s, marking elision.
func firstLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[:n], "\n") + "\n" + truncationSuffix
}
