package host

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var variantColors = map[Variant]lipgloss.Color{
	VariantInfo:    lipgloss.Color("#5B8DEF"),
	VariantSuccess: lipgloss.Color("#7FD88F"),
	VariantWarning: lipgloss.Color("#F5A623"),
	VariantError:   lipgloss.Color("#FF6B6B"),
}

// ConsoleNotifier renders toasts and prompts to a writer instead of the host.
// serve --dry-run and preview use it.
type ConsoleNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleNotifier writes to out.
func NewConsoleNotifier(out io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{out: out}
}

// ShowToast prints a one-line styled toast.
func (c *ConsoleNotifier) ShowToast(_ context.Context, toast Toast) error {
	color, ok := variantColors[toast.Variant]
	if !ok {
		color = variantColors[VariantInfo]
	}
	title := lipgloss.NewStyle().Bold(true).Foreground(color).Render(toast.Title)
	body := lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).Render(toast.Message)
	return c.write(fmt.Sprintf("%s %s\n", title, body))
}

// Prompt prints the injected message in a bordered box.
func (c *ConsoleNotifier) Prompt(_ context.Context, sessionID string, parts []Part) error {
	texts := make([]string, 0, len(parts))
	for _, part := range parts {
		if part.Type == "text" {
			texts = append(texts, part.Text)
		}
	}
	return c.write(RenderPrompt(sessionID, strings.Join(texts, "\n")) + "\n")
}

// RenderPrompt boxes text under a session heading.
func RenderPrompt(sessionID, text string) string {
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("PROMPT · %s", sessionID))
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(strings.TrimRight(text, "\n"))
	return lipgloss.JoinVertical(lipgloss.Left, head, box)
}

func (c *ConsoleNotifier) write(s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.out, s)
	return err
}
