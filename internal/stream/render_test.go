package stream

import (
	"strings"
	"testing"
)

func TestPlainRendererPrefixesRole(t *testing.T) {
	r := NewPlainRenderer()
	out := r.Format(Line{Role: RoleSecurity, Kind: LineText, Text: "checking"})
	if out != "[security-reviewer] checking" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestPlainRendererCarriesNoEscapes(t *testing.T) {
	r := NewPlainRenderer()
	out := r.Format(Line{Role: RoleLead, Kind: LineToolError, Text: "boom"})
	if strings.Contains(out, "\x1b[") {
		t.Errorf("plain output must not contain ANSI escapes: %q", out)
	}
}

func TestRendererHandlesCustomRole(t *testing.T) {
	// A custom role absent from the style table must still render.
	r := NewPlainRenderer()
	out := r.Format(Line{Role: Role("compliance-reviewer"), Kind: LineText, Text: "ok"})
	if !strings.Contains(out, "[compliance-reviewer]") {
		t.Errorf("unexpected output %q", out)
	}
}
