package stream

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var roleStyles = map[Role]lipgloss.Style{
	RoleLead:         lipgloss.NewStyle().Foreground(lipgloss.Color("6")),  // cyan
	RoleResearcher:   lipgloss.NewStyle().Foreground(lipgloss.Color("4")),  // blue
	RoleImplementer:  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),  // green
	RoleTester:       lipgloss.NewStyle().Foreground(lipgloss.Color("3")),  // yellow
	RoleSecurity:     lipgloss.NewStyle().Foreground(lipgloss.Color("1")),  // red
	RoleQuality:      lipgloss.NewStyle().Foreground(lipgloss.Color("5")),  // magenta
	RoleArchitecture: lipgloss.NewStyle().Foreground(lipgloss.Color("12")), // bright blue
	RoleUnknown:      lipgloss.NewStyle().Foreground(lipgloss.Color("8")),  // gray
}

var (
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

// Renderer formats display lines for a terminal. When plain, output carries
// no styling (non-terminal stdout, NO_COLOR, or dumb terminals).
type Renderer struct {
	plain bool
}

// NewRenderer creates a Renderer, detecting whether stdout is a terminal.
func NewRenderer() *Renderer {
	plain := os.Getenv("NO_COLOR") != "" ||
		os.Getenv("TERM") == "dumb" ||
		!term.IsTerminal(int(os.Stdout.Fd()))
	return &Renderer{plain: plain}
}

// NewPlainRenderer creates a Renderer that never styles output.
func NewPlainRenderer() *Renderer {
	return &Renderer{plain: true}
}

// Format renders one display line as a single string, prefixed with the
// role label.
func (r *Renderer) Format(l Line) string {
	prefix := fmt.Sprintf("[%s]", l.Role)
	text := l.Text

	if r.plain {
		return prefix + " " + text
	}

	style, ok := roleStyles[l.Role]
	if !ok {
		// Custom roles reuse the unknown style to stay readable.
		style = roleStyles[RoleUnknown]
	}

	switch l.Kind {
	case LineToolError:
		return style.Render(prefix) + " " + errorStyle.Render(text)
	case LineSystem, LineSessionEnd:
		return style.Render(prefix) + " " + dimStyle.Render(text)
	default:
		return style.Render(prefix) + " " + text
	}
}
