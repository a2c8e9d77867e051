// Package terminal shows flow progress and notifications on a terminal.
package terminal

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

// Notifier prints colored one-line notifications.
type Notifier struct {
	mu  sync.Mutex
	out io.Writer
}

func NewNotifier(out io.Writer) *Notifier {
	return &Notifier{out: out}
}

func (n *Notifier) Success(msg string) {
	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	n.println(green("✓"), msg)
}

func (n *Notifier) Failure(msg string) {
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	n.println(red("✗"), msg)
}

func (n *Notifier) println(mark, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.out, "%s %s\n", mark, msg)
}

// Spinner is the busy indicator. It stays silent when the output is not a
// terminal.
type Spinner struct {
	s       *spinner.Spinner
	enabled bool
}

func NewSpinner(out io.Writer, enabled bool) *Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
	return &Spinner{s: s, enabled: enabled}
}

func (s *Spinner) Start(label string) {
	if !s.enabled {
		return
	}
	s.s.Suffix = " " + label + "..."
	s.s.Start()
}

func (s *Spinner) Stop() {
	if !s.enabled {
		return
	}
	s.s.Stop()
}
