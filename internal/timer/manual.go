package timer

import (
	"sort"
	"time"

	"github.com/behrlich/unet/internal/interfaces"
)

// Manual is a deterministic Timer for tests: time only advances when
// Advance is called, and pending callbacks fire synchronously on the
// calling goroutine in deadline order, matching the single-threaded
// event-loop model the real Timer runs under in production.
type Manual struct {
	now     time.Time
	pending []*manualEntry
}

type manualEntry struct {
	deadline  time.Time
	fn        func()
	cancelled bool
}

func (e *manualEntry) Cancel() { e.cancelled = true }

// NewManual creates a manual clock starting at an arbitrary fixed epoch.
func NewManual() *Manual {
	return &Manual{now: time.Unix(0, 0)}
}

func (m *Manual) After(d time.Duration, fn func()) interfaces.TimerHandle {
	e := &manualEntry{deadline: m.now.Add(d), fn: fn}
	m.pending = append(m.pending, e)
	return e
}

func (m *Manual) Now() time.Time { return m.now }

// Advance moves the clock forward by d, firing every non-cancelled timer
// whose deadline is now due, in deadline order. A callback that arms a
// new timer during this call will have its new timer considered by a
// subsequent Advance, not the current one.
func (m *Manual) Advance(d time.Duration) {
	m.now = m.now.Add(d)

	due := m.pending[:0:0]
	var remaining []*manualEntry
	for _, e := range m.pending {
		if !e.cancelled && !e.deadline.After(m.now) {
			due = append(due, e)
		} else if !e.cancelled {
			remaining = append(remaining, e)
		}
	}
	m.pending = remaining

	sort.Slice(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	for _, e := range due {
		if !e.cancelled {
			e.fn()
		}
	}
}

var _ interfaces.Timer = (*Manual)(nil)
