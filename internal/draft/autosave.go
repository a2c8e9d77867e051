package draft

import (
	"context"
	"sync"
	"time"

	"cv-builder/internal/form"
)

// Quiet windows used by the page: typing waits longer than a discrete change.
const (
	DefaultInputDelay  = time.Second
	DefaultChangeDelay = 500 * time.Millisecond
)

// AutoSaver coalesces bursts of edits into one save after a quiet window.
// Every Input or Change call restarts the window.
type AutoSaver struct {
	mu          sync.Mutex
	saveMu      sync.Mutex
	timer       *time.Timer
	gen         uint64
	pending     bool
	stopped     bool
	inputDelay  time.Duration
	changeDelay time.Duration
	save        func()
}

func NewAutoSaver(save func(), inputDelay, changeDelay time.Duration) *AutoSaver {
	if inputDelay <= 0 {
		inputDelay = DefaultInputDelay
	}
	if changeDelay <= 0 {
		changeDelay = DefaultChangeDelay
	}
	return &AutoSaver{save: save, inputDelay: inputDelay, changeDelay: changeDelay}
}

// ForModel returns an AutoSaver that collects m and saves it for whoever
// userID reports at fire time.
func (d *Drafts) ForModel(m *form.Model, userID func() string, inputDelay, changeDelay time.Duration) *AutoSaver {
	return NewAutoSaver(func() {
		d.Save(context.Background(), m.Collect(), userID())
	}, inputDelay, changeDelay)
}

// Input records a keystroke-style edit.
func (a *AutoSaver) Input() { a.schedule(a.inputDelay) }

// Change records a committed change such as a select or checkbox.
func (a *AutoSaver) Change() { a.schedule(a.changeDelay) }

func (a *AutoSaver) schedule(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	a.pending = true
	a.gen++
	gen := a.gen
	a.timer = time.AfterFunc(d, func() { a.fire(gen) })
}

func (a *AutoSaver) fire(gen uint64) {
	a.mu.Lock()
	// a newer edit superseded this timer
	if gen != a.gen || !a.pending || a.stopped {
		a.mu.Unlock()
		return
	}
	a.pending = false
	a.timer = nil
	a.mu.Unlock()
	a.run()
}

func (a *AutoSaver) run() {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()
	a.save()
}

// Pending reports whether a save is scheduled.
func (a *AutoSaver) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending
}

// Flush cancels any scheduled save and saves now.
func (a *AutoSaver) Flush() {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.pending = false
	stopped := a.stopped
	a.mu.Unlock()
	if !stopped {
		a.run()
	}
}

// Settle cancels the scheduled save, writing it first when flush is set and
// a save was pending, then runs fn with saving held off. A timer that fired
// before Settle finishes its save first; one that fires during fn saves
// after it.
func (a *AutoSaver) Settle(flush bool, fn func()) {
	a.mu.Lock()
	pending := a.pending && !a.stopped
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.pending = false
	a.mu.Unlock()

	a.saveMu.Lock()
	defer a.saveMu.Unlock()
	if flush && pending {
		a.save()
	}
	fn()
}

// Stop cancels any scheduled save; later edits are ignored.
func (a *AutoSaver) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	a.pending = false
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
