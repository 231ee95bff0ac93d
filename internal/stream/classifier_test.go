package stream

import (
	"strings"
	"testing"
)

func classify(t *testing.T, c *Classifier, lines ...string) []Line {
	t.Helper()
	var out []Line
	for _, l := range lines {
		out = append(out, c.ParseLine(l)...)
	}
	return out
}

func TestParseLineMalformed(t *testing.T) {
	c := NewClassifier(NewRegistry())
	tests := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"truncated json", `{"type": "assistant", "mess`},
		{"plain text", "claude: starting up"},
		{"non-object json", `["a", "b"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.ParseLine(tt.line); got != nil {
				t.Errorf("expected no lines, got %v", got)
			}
		})
	}
}

func TestSystemNoticeUnderLead(t *testing.T) {
	c := NewClassifier(NewRegistry())
	lines := classify(t, c, `{"type": "system", "subtype": "init"}`)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0].Role != RoleLead {
		t.Errorf("expected lead role, got %s", lines[0].Role)
	}
	if lines[0].Kind != LineSystem {
		t.Errorf("expected system kind")
	}
}

func TestAssistantTextSwitchesRole(t *testing.T) {
	c := NewClassifier(NewRegistry())
	lines := classify(t, c,
		`{"type": "assistant", "agent_name": "security-sam", "message": {"content": [{"type": "text", "text": "checking input validation"}]}}`,
		`{"type": "assistant", "message": {"content": [{"type": "text", "text": "follow-up without attribution"}]}}`,
	)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].Role != RoleSecurity {
		t.Errorf("expected security role, got %s", lines[0].Role)
	}
	// Unattributed content stays with the current role.
	if lines[1].Role != RoleSecurity {
		t.Errorf("expected security role to persist, got %s", lines[1].Role)
	}
}

func TestUnresolvedAgentNameMapsToUnknown(t *testing.T) {
	c := NewClassifier(NewRegistry())
	lines := classify(t, c,
		`{"type": "assistant", "agent_name": "blorp", "message": {"content": [{"type": "text", "text": "hi"}]}}`,
	)
	if len(lines) != 1 || lines[0].Role != RoleUnknown {
		t.Fatalf("expected one unknown-role line, got %v", lines)
	}
}

func TestTextTruncatedToFirstLines(t *testing.T) {
	c := NewClassifier(NewRegistry())
	text := "l1\\nl2\\nl3\\nl4\\nl5"
	lines := classify(t, c,
		`{"type": "assistant", "message": {"content": [{"type": "text", "text": "`+text+`"}]}}`,
	)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if strings.Contains(lines[0].Text, "l4") {
		t.Errorf("expected truncation before line 4, got %q", lines[0].Text)
	}
	if !strings.Contains(lines[0].Text, truncationSuffix) {
		t.Errorf("expected truncation marker, got %q", lines[0].Text)
	}
}

func TestToolSummaries(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{
			"bash truncated",
			`{"type": "assistant", "message": {"content": [{"type": "tool_use", "name": "Bash", "input": {"command": "` + strings.Repeat("x", 300) + `"}}]}}`,
			truncationSuffix,
		},
		{
			"read shows path",
			`{"type": "assistant", "message": {"content": [{"type": "tool_use", "name": "Read", "input": {"file_path": "internal/foo.go"}}]}}`,
			"Read internal/foo.go",
		},
		{
			"grep shows pattern",
			`{"type": "assistant", "message": {"content": [{"type": "tool_use", "name": "Grep", "input": {"pattern": "func main"}}]}}`,
			"Grep func main",
		},
		{
			"edit emphasized",
			`{"type": "assistant", "message": {"content": [{"type": "tool_use", "name": "Edit", "input": {"file_path": "main.go"}}]}}`,
			"✎ Edit main.go",
		},
		{
			"send message",
			`{"type": "assistant", "message": {"content": [{"type": "tool_use", "name": "SendMessage", "input": {"recipient": "tester-tina", "summary": "please verify"}}]}}`,
			"→ tester-tina: please verify",
		},
		{
			"generic tool falls back to name",
			`{"type": "assistant", "message": {"content": [{"type": "tool_use", "name": "WebFetch", "input": {"url": "https://example.com"}}]}}`,
			"WebFetch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(NewRegistry())
			lines := classify(t, c, tt.line)
			if len(lines) != 1 {
				t.Fatalf("expected 1 line, got %d", len(lines))
			}
			if !strings.Contains(lines[0].Text, tt.want) {
				t.Errorf("expected %q in %q", tt.want, lines[0].Text)
			}
		})
	}
}

func TestBashPreviewLength(t *testing.T) {
	c := NewClassifier(NewRegistry())
	long := strings.Repeat("a", 500)
	lines := classify(t, c,
		`{"type": "assistant", "message": {"content": [{"type": "tool_use", "name": "Bash", "input": {"command": "`+long+`"}}]}}`,
	)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if len(lines[0].Text) > maxCommandPreview+4 {
		t.Errorf("preview too long: %d chars", len(lines[0].Text))
	}
}

func TestSpawnRegistersBindingImmediately(t *testing.T) {
	c := NewClassifier(NewRegistry())
	lines := classify(t, c,
		`{"type": "assistant", "message": {"content": [{"type": "tool_use", "name": "Task", "input": {"name": "tester-tina", "prompt": "run the suite"}}]}}`,
	)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0].Kind != LineSpawn {
		t.Errorf("expected spawn line")
	}
	if lines[0].Role != RoleTester {
		t.Errorf("expected tester role, got %s", lines[0].Role)
	}
	// The spawned name is bound before its first event.
	if role, ok := c.Binding("tester-tina"); !ok || role != RoleTester {
		t.Errorf("expected binding for tester-tina, got %v %v", role, ok)
	}
}

func TestToolResultOnlyOnError(t *testing.T) {
	c := NewClassifier(NewRegistry())
	ok := `{"type": "user", "message": {"content": [{"type": "tool_result", "tool_use_id": "t1", "content": "all good"}]}}`
	bad := `{"type": "user", "message": {"content": [{"type": "tool_result", "tool_use_id": "t2", "content": "command not found", "is_error": true}]}}`

	if lines := c.ParseLine(ok); lines != nil {
		t.Errorf("routine tool result must not render, got %v", lines)
	}
	lines := c.ParseLine(bad)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0].Kind != LineToolError {
		t.Errorf("expected tool-error kind")
	}
	if !strings.Contains(lines[0].Text, "command not found") {
		t.Errorf("expected error text, got %q", lines[0].Text)
	}
}

func TestDeltaThreshold(t *testing.T) {
	c := NewClassifier(NewRegistry())
	short := `{"type": "stream_event", "event": {"type": "content_block_delta", "delta": {"type": "text_delta", "text": "hi"}}}`
	long := `{"type": "stream_event", "event": {"type": "content_block_delta", "delta": {"type": "text_delta", "text": "` + strings.Repeat("w", 100) + `"}}}`

	if lines := c.ParseLine(short); lines != nil {
		t.Errorf("short delta must not render, got %v", lines)
	}
	if lines := c.ParseLine(long); len(lines) != 1 {
		t.Errorf("long delta must render, got %v", lines)
	}
}

func TestResultEmitsSessionEndWithoutEndingStream(t *testing.T) {
	c := NewClassifier(NewRegistry())
	lines := classify(t, c,
		`{"type": "result", "subtype": "success", "result": "done", "num_turns": 12}`,
		`{"type": "assistant", "message": {"content": [{"type": "text", "text": "teammate still talking"}]}}`,
	)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].Kind != LineSessionEnd {
		t.Errorf("expected session-end kind")
	}
	if !strings.Contains(lines[0].Text, "success") {
		t.Errorf("expected stop reason in %q", lines[0].Text)
	}
}

func TestEventOrderDeterminesAttribution(t *testing.T) {
	// A spawn binding made earlier attributes a later named message.
	c := NewClassifier(NewRegistry())
	classify(t, c,
		`{"type": "assistant", "message": {"content": [{"type": "tool_use", "name": "Task", "input": {"name": "quality-quinn"}}]}}`,
	)
	lines := classify(t, c,
		`{"type": "assistant", "agent_name": "quality-quinn", "message": {"content": [{"type": "text", "text": "reviewing"}]}}`,
	)
	if len(lines) != 1 || lines[0].Role != RoleQuality {
		t.Fatalf("expected quality role, got %v", lines)
	}
}
