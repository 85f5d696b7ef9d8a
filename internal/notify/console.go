// Package notify delivers user-facing messages to the terminal.
package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/mirepoix/souschef/internal/domain"
)

var _ domain.Notifier = (*Console)(nil)

var (
	// Soft sky blue for routine messages.
	msgStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bae6fd"))

	// Soft coral for urgent alerts (timer done, step gone wrong).
	urgentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fca5a5")).
			Bold(true)
)

// Console writes styled notifications to a writer, one per line.
// Safe for concurrent use; the timer tick goroutine and the realtime
// goroutine both notify.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole creates a console notifier writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Notify prints a routine message.
func (c *Console) Notify(_ context.Context, message string) error {
	return c.write(msgStyle.Render(message))
}

// NotifyUrgent prints an attention-demanding message.
func (c *Console) NotifyUrgent(_ context.Context, message string) error {
	return c.write(urgentStyle.Render("!! " + message))
}

func (c *Console) write(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.out, line)
	return err
}
