package toast

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level represents the toast severity. Values match Bootstrap alert classes.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelDanger  Level = "danger"
	LevelSuccess Level = "success"
)

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	switch l {
	case LevelInfo, LevelWarning, LevelDanger, LevelSuccess:
		return true
	}
	return false
}

// DefaultTimeout is how long a toast stays up unless dismissed.
const DefaultTimeout = 5000 * time.Millisecond

// Toast is a single notification banner.
type Toast struct {
	ID        string
	Level     Level
	Message   string
	CreatedAt time.Time
}

// Timer is the subset of *time.Timer the Center needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules fn after d. time.AfterFunc satisfies it via
// SystemAfterFunc.
type AfterFunc func(d time.Duration, fn func()) Timer

// SystemAfterFunc schedules with the real clock.
func SystemAfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// Center is the per-session notification stack.
type Center struct {
	mu       sync.Mutex
	items    []Toast
	timers   map[string]Timer
	timeout  time.Duration
	after    AfterFunc
	dispatch func(func())
	now      func() time.Time
	onChange func()
}

// Option configures a Center.
type Option func(*Center)

// WithTimeout overrides the auto-dismiss delay. Zero or negative disables
// auto-dismiss.
func WithTimeout(d time.Duration) Option {
	return func(c *Center) { c.timeout = d }
}

// WithAfterFunc replaces the timer source, mainly for tests.
func WithAfterFunc(fn AfterFunc) Option {
	return func(c *Center) { c.after = fn }
}

// WithDispatcher routes timer callbacks through fn, normally the session's
// Dispatch so removal runs on the event loop.
func WithDispatcher(fn func(func())) Option {
	return func(c *Center) { c.dispatch = fn }
}

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Center) { c.now = now }
}

// OnChange registers a callback invoked after the stack changes from a
// timer. Changes made directly by Show or Dismiss do not call it; the caller
// is already on the event loop and will re-render.
func OnChange(fn func()) Option {
	return func(c *Center) { c.onChange = fn }
}

// NewCenter creates an empty notification stack.
func NewCenter(opts ...Option) *Center {
	c := &Center{
		timers:   make(map[string]Timer),
		timeout:  DefaultTimeout,
		after:    SystemAfterFunc,
		dispatch: func(fn func()) { fn() },
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Show appends a toast and schedules its removal. Unknown levels fall back
// to info. Returns the new toast's ID.
func (c *Center) Show(level Level, message string) string {
	if !level.Valid() {
		level = LevelInfo
	}

	t := Toast{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		CreatedAt: c.now(),
	}

	c.mu.Lock()
	c.items = append(c.items, t)
	c.mu.Unlock()

	if c.timeout > 0 {
		id := t.ID
		timer := c.after(c.timeout, func() {
			c.dispatch(func() {
				if c.remove(id) && c.onChange != nil {
					c.onChange()
				}
			})
		})
		c.mu.Lock()
		if c.has(id) {
			c.timers[id] = timer
		} else {
			// Dismissed between append and scheduling.
			timer.Stop()
		}
		c.mu.Unlock()
	}

	return t.ID
}

// Info shows an info toast.
func (c *Center) Info(message string) string { return c.Show(LevelInfo, message) }

// Warning shows a warning toast.
func (c *Center) Warning(message string) string { return c.Show(LevelWarning, message) }

// Danger shows a danger toast.
func (c *Center) Danger(message string) string { return c.Show(LevelDanger, message) }

// Success shows a success toast.
func (c *Center) Success(message string) string { return c.Show(LevelSuccess, message) }

// Dismiss removes a toast before its timer fires. It reports whether the
// toast was still visible.
func (c *Center) Dismiss(id string) bool {
	return c.remove(id)
}

// Items returns a copy of the visible toasts, oldest first.
func (c *Center) Items() []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Toast, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of visible toasts.
func (c *Center) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Clear removes every toast and stops their timers.
func (c *Center) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, timer := range c.timers {
		timer.Stop()
		delete(c.timers, id)
	}
	c.items = nil
}

func (c *Center) remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if timer, ok := c.timers[id]; ok {
		timer.Stop()
		delete(c.timers, id)
	}
	for i, t := range c.items {
		if t.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

// has must be called with mu held.
func (c *Center) has(id string) bool {
	for _, t := range c.items {
		if t.ID == id {
			return true
		}
	}
	return false
}
