// Package refresh turns record-store changes into batched view refreshes.
package refresh

import (
	"sync"
	"time"
)

// DefaultDebounce is the coalescing window for change notifications.
const DefaultDebounce = 300 * time.Millisecond

// Debouncer coalesces session change notifications. The window starts at the
// first notification after a flush and is not extended by later ones, so a
// steady stream of changes still refreshes once per window.
type Debouncer struct {
	window time.Duration
	flush  func(ids []string)

	mu      sync.Mutex
	pending map[string]bool
	order   []string
	timer   *time.Timer
	stopped bool
}

// NewDebouncer creates a Debouncer that calls flush with the distinct ids
// seen during each window, in first-seen order.
func NewDebouncer(window time.Duration, flush func(ids []string)) *Debouncer {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Debouncer{
		window:  window,
		flush:   flush,
		pending: make(map[string]bool),
	}
}

// Notify records changed session ids.
func (d *Debouncer) Notify(ids ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	for _, id := range ids {
		if id == "" || d.pending[id] {
			continue
		}
		d.pending[id] = true
		d.order = append(d.order, id)
	}
	if d.timer == nil && len(d.order) > 0 {
		d.timer = time.AfterFunc(d.window, d.fire)
	}
}

// Flush delivers pending ids immediately.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()
	d.fire()
}

// Stop drops pending ids and ignores later notifications.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = make(map[string]bool)
	d.order = nil
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	ids := d.order
	d.order = nil
	d.pending = make(map[string]bool)
	d.timer = nil
	stopped := d.stopped
	d.mu.Unlock()

	if stopped || len(ids) == 0 {
		return
	}
	d.flush(ids)
}
