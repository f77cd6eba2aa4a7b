package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zulandar/sessionlens/internal/models"
	"gorm.io/gorm"
)

// DefaultPollInterval is how often the Watcher reads the sessions table.
const DefaultPollInterval = 5 * time.Second

// sessionSnapshot holds the last-known change markers of one session.
type sessionSnapshot struct {
	Status           string
	ValidationStatus string
	LastActivityAt   int64
	UpdatedAt        int64
}

// Watcher polls the sessions table and reports sessions whose status,
// validation status or activity changed since the previous poll.
type Watcher struct {
	db           *gorm.DB
	pollInterval time.Duration
	log          *slog.Logger

	mu       sync.Mutex
	snapshot map[string]sessionSnapshot
	seeded   bool
}

// WatcherOpts holds parameters for creating a Watcher.
type WatcherOpts struct {
	DB           *gorm.DB
	PollInterval time.Duration // defaults to DefaultPollInterval
	Logger       *slog.Logger  // defaults to slog.Default()
}

// NewWatcher creates a Watcher.
func NewWatcher(opts WatcherOpts) (*Watcher, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("refresh: watcher: db is required")
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		db:           opts.DB,
		pollInterval: poll,
		log:          logger,
		snapshot:     make(map[string]sessionSnapshot),
	}, nil
}

// Poll runs one detection cycle and returns the changed session ids. The
// first call seeds the snapshot and returns nothing.
func (w *Watcher) Poll(ctx context.Context) ([]string, error) {
	var sessions []models.Session
	err := w.db.WithContext(ctx).
		Select("id, status, validation_status, last_activity_at, updated_at").
		Order("id").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("refresh: watcher: poll sessions: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var changed []string
	current := make(map[string]bool, len(sessions))
	for _, s := range sessions {
		current[s.ID] = true
		snap := snapshotOf(s)
		old, exists := w.snapshot[s.ID]
		w.snapshot[s.ID] = snap
		if !w.seeded {
			continue
		}
		if !exists || old != snap {
			changed = append(changed, s.ID)
		}
	}

	// Deleted sessions.
	for id := range w.snapshot {
		if !current[id] {
			delete(w.snapshot, id)
			if w.seeded {
				changed = append(changed, id)
			}
		}
	}

	w.seeded = true
	return changed, nil
}

// Run polls on the configured interval and sends changed session ids to the
// returned channel, which is closed when ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) <-chan []string {
	ch := make(chan []string, 16)
	go func() {
		defer close(ch)
		if _, err := w.Poll(ctx); err != nil {
			w.log.Warn("refresh: watcher seed failed", "error", err)
		}
		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ids, err := w.Poll(ctx)
				if err != nil {
					w.log.Warn("refresh: watcher poll failed", "error", err)
					continue
				}
				if len(ids) == 0 {
					continue
				}
				select {
				case ch <- ids:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch
}

func snapshotOf(s models.Session) sessionSnapshot {
	snap := sessionSnapshot{
		Status:           s.Status,
		ValidationStatus: s.ValidationStatus,
		UpdatedAt:        s.UpdatedAt.UnixNano(),
	}
	if s.LastActivityAt != nil {
		snap.LastActivityAt = s.LastActivityAt.UnixNano()
	}
	return snap
}
