// Package ttywriter implements the TTY sink (§6, §4.3.7): a formatted
// block notice written to a process's controlling terminal, styled with
// lipgloss the way the teacher's wizard prompter styles its console
// output. Styling is enabled only when NO_COLOR is unset and stdout is a
// terminal (term.IsTerminal), the way the teacher's supportsColor helper
// decides on color; the process's controlling terminal itself is found
// through the openTTY function passed to New.
package ttywriter

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/wardsec/authcore/internal/vnode"
	"golang.org/x/term"
)

// Writer renders a block notice to a process's controlling TTY.
type Writer struct {
	openTTY func(proc *vnode.Identity) (io.WriteCloser, error)
	color   bool

	title   lipgloss.Style
	body    lipgloss.Style
	policy  lipgloss.Style
}

// New constructs a Writer. openTTY resolves a process's controlling
// terminal to a writable handle (platform-specific; nil defaults to
// never finding one, which is the safe behavior off-platform).
func New(openTTY func(proc *vnode.Identity) (io.WriteCloser, error)) *Writer {
	color := os.Getenv("NO_COLOR") == "" && term.IsTerminal(int(os.Stdout.Fd()))
	w := &Writer{openTTY: openTTY, color: color}
	if color {
		accent := lipgloss.Color("#ff5f5f")
		w.title = lipgloss.NewStyle().Bold(true).Foreground(accent)
		w.body = lipgloss.NewStyle()
		w.policy = lipgloss.NewStyle().Faint(true)
	} else {
		w.title = lipgloss.NewStyle()
		w.body = lipgloss.NewStyle()
		w.policy = lipgloss.NewStyle()
	}
	return w
}

// HasTTY reports whether proc has a resolvable controlling terminal.
func (w *Writer) HasTTY(proc *vnode.Identity) bool {
	if w == nil || w.openTTY == nil || proc == nil {
		return false
	}
	f, err := w.openTTY(proc)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

// WriteBlockNotice implements collab.TTYWriter: it writes a short,
// styled, multi-line notice naming the policy that blocked the process.
// Implementations must be non-blocking with respect to the authorizing
// path, so the TTY is opened and written synchronously but never waits
// on input.
func (w *Writer) WriteBlockNotice(proc *vnode.Identity, policyName, customMessage string) error {
	if w == nil || w.openTTY == nil || proc == nil {
		return nil
	}
	tty, err := w.openTTY(proc)
	if err != nil {
		return err
	}
	defer tty.Close()

	_, err = io.WriteString(tty, w.render(policyName, customMessage))
	return err
}

func (w *Writer) render(policyName, customMessage string) string {
	var b strings.Builder
	b.WriteString(w.title.Render("Operation blocked"))
	b.WriteByte('\n')
	if strings.TrimSpace(customMessage) != "" {
		b.WriteString(w.body.Render(customMessage))
		b.WriteByte('\n')
	}
	b.WriteString(w.policy.Render(fmt.Sprintf("rule: %s", policyName)))
	b.WriteByte('\n')
	return b.String()
}
