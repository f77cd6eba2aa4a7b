package refresh

import (
	"context"
	"log/slog"
	"time"
)

// RunOpts wires the change sources of a running server to its hub.
type RunOpts struct {
	Watcher     *Watcher      // nil disables change polling
	Debounce    time.Duration // defaults to DefaultDebounce
	AutoRefresh string        // cron spec, empty disables
	Hub         *Hub
	Logger      *slog.Logger
}

// Run feeds watcher changes through a debouncer into hub and, when
// configured, publishes periodic auto-refresh events. It blocks until ctx is
// cancelled.
func Run(ctx context.Context, opts RunOpts) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hub := opts.Hub
	if hub == nil {
		hub = NewHub()
	}

	deb := NewDebouncer(opts.Debounce, func(ids []string) {
		logger.Debug("refresh: sessions changed", "count", len(ids))
		hub.Publish(Event{Type: EventSessionsChanged, SessionIDs: ids})
	})
	defer deb.Stop()

	if opts.AutoRefresh != "" {
		p, err := NewPoller(opts.AutoRefresh, func(context.Context) {
			hub.Publish(Event{Type: EventAutoRefresh})
		})
		if err != nil {
			return err
		}
		p.Start(ctx)
		logger.Info("refresh: auto-refresh enabled", "schedule", p.Spec())
	}

	var changes <-chan []string
	if opts.Watcher != nil {
		changes = opts.Watcher.Run(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ids, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			deb.Notify(ids...)
		}
	}
}
