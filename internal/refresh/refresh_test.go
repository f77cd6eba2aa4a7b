package refresh

import (
	"context"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/zulandar/sessionlens/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "refresh.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Session{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type flushRecorder struct {
	mu      sync.Mutex
	batches [][]string
	signal  chan struct{}
}

func newFlushRecorder() *flushRecorder {
	return &flushRecorder{signal: make(chan struct{}, 16)}
}

func (r *flushRecorder) flush(ids []string) {
	r.mu.Lock()
	r.batches = append(r.batches, ids)
	r.mu.Unlock()
	r.signal <- struct{}{}
}

func (r *flushRecorder) get() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.batches...)
}

func (r *flushRecorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.signal:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for flush")
	}
}

func TestDebouncer_CoalescesDistinctIDs(t *testing.T) {
	rec := newFlushRecorder()
	d := NewDebouncer(50*time.Millisecond, rec.flush)
	defer d.Stop()

	d.Notify("a", "b")
	d.Notify("a")
	d.Notify("c", "")
	rec.wait(t)

	got := rec.get()
	if len(got) != 1 {
		t.Fatalf("batches = %v, want 1", got)
	}
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(got[0], want) {
		t.Errorf("batch = %v, want %v", got[0], want)
	}
}

func TestDebouncer_WindowNotExtended(t *testing.T) {
	rec := newFlushRecorder()
	d := NewDebouncer(80*time.Millisecond, rec.flush)
	defer d.Stop()

	start := time.Now()
	d.Notify("a")
	time.Sleep(40 * time.Millisecond)
	d.Notify("b")
	rec.wait(t)
	if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
		t.Errorf("flush after %v, window should run from the first notification", elapsed)
	}
	if got := rec.get(); len(got) != 1 || len(got[0]) != 2 {
		t.Errorf("batches = %v, want one batch [a b]", got)
	}
}

func TestDebouncer_FlushAndStop(t *testing.T) {
	rec := newFlushRecorder()
	d := NewDebouncer(time.Hour, rec.flush)

	d.Notify("a")
	d.Flush()
	rec.wait(t)
	if got := rec.get(); len(got) != 1 || got[0][0] != "a" {
		t.Fatalf("batches = %v", got)
	}

	d.Stop()
	d.Notify("b")
	d.Flush()
	if got := rec.get(); len(got) != 1 {
		t.Errorf("stopped debouncer flushed again: %v", got)
	}
}

func TestDebouncer_DefaultWindow(t *testing.T) {
	d := NewDebouncer(0, func([]string) {})
	if d.window != DefaultDebounce {
		t.Errorf("window = %v, want %v", d.window, DefaultDebounce)
	}
}

func TestHub_PublishSubscribe(t *testing.T) {
	h := NewHub()
	ch1, cancel1 := h.Subscribe()
	ch2, cancel2 := h.Subscribe()
	defer cancel2()
	if h.Subscribers() != 2 {
		t.Fatalf("Subscribers = %d, want 2", h.Subscribers())
	}

	h.Publish(Event{Type: EventSessionsChanged, SessionIDs: []string{"a"}})
	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case e := <-ch:
			if e.Type != EventSessionsChanged || e.At.IsZero() {
				t.Errorf("event = %+v", e)
			}
		case <-time.After(time.Second):
			t.Fatal("no event delivered")
		}
	}

	cancel1()
	cancel1()
	if _, ok := <-ch1; ok {
		t.Error("cancelled subscription should be closed")
	}
	if h.Subscribers() != 1 {
		t.Errorf("Subscribers = %d, want 1", h.Subscribers())
	}
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub()
	_, cancel := h.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.Publish(Event{Type: EventAutoRefresh})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}

func TestNewWatcher_RequiresDB(t *testing.T) {
	if _, err := NewWatcher(WatcherOpts{}); err == nil {
		t.Fatal("expected error for nil db")
	}
}

func TestWatcher_SeedsThenDetectsChanges(t *testing.T) {
	db := testDB(t)
	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	db.Create(&models.Session{ID: "a", PublicSessionID: "PA", StartedAt: t0})
	db.Create(&models.Session{ID: "b", PublicSessionID: "PB", StartedAt: t0})

	w, err := NewWatcher(WatcherOpts{DB: db})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	ctx := context.Background()

	ids, err := w.Poll(ctx)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("seed poll emitted %v", ids)
	}

	ids, _ = w.Poll(ctx)
	if len(ids) != 0 {
		t.Errorf("unchanged poll emitted %v", ids)
	}

	activity := t0.Add(time.Minute)
	db.Model(&models.Session{}).Where("id = ?", "a").Update("last_activity_at", activity)
	db.Model(&models.Session{}).Where("id = ?", "b").Update("validation_status", models.ValidationInvalid)
	db.Create(&models.Session{ID: "c", PublicSessionID: "PC", StartedAt: t0})

	ids, _ = w.Poll(ctx)
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("changed = %v, want %v", ids, want)
	}

	db.Delete(&models.Session{}, "id = ?", "c")
	ids, _ = w.Poll(ctx)
	if want := []string{"c"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("changed = %v, want %v (deleted)", ids, want)
	}
}

func TestNewPoller(t *testing.T) {
	p, err := NewPoller("", func(context.Context) {})
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}
	if p.Spec() != DefaultAutoRefresh {
		t.Errorf("Spec = %q, want default", p.Spec())
	}
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if next := p.Next(now); next.Sub(now) != 30*time.Second {
		t.Errorf("Next = %v, want +30s", next.Sub(now))
	}

	p, err = NewPoller("0 * * * *", func(context.Context) {})
	if err != nil {
		t.Fatalf("NewPoller hourly: %v", err)
	}
	if next := p.Next(now.Add(time.Minute)); !next.Equal(now.Add(time.Hour)) {
		t.Errorf("Next = %v, want top of next hour", next)
	}

	if _, err := NewPoller("not a schedule", func(context.Context) {}); err == nil {
		t.Error("expected parse error")
	}
}

func TestPoller_Fires(t *testing.T) {
	fired := make(chan struct{}, 4)
	p, err := NewPoller("@every 1s", func(context.Context) { fired <- struct{}{} })
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("poller did not fire")
	}
}

func TestRun_PublishesDebouncedChanges(t *testing.T) {
	db := testDB(t)
	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	db.Create(&models.Session{ID: "a", PublicSessionID: "PA", StartedAt: t0})

	w, _ := NewWatcher(WatcherOpts{DB: db, PollInterval: 20 * time.Millisecond})
	hub := NewHub()
	events, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, RunOpts{Watcher: w, Debounce: 30 * time.Millisecond, Hub: hub})
	}()

	time.Sleep(60 * time.Millisecond)
	db.Model(&models.Session{}).Where("id = ?", "a").Update("status", "completed")

	select {
	case e := <-events:
		if e.Type != EventSessionsChanged || len(e.SessionIDs) != 1 || e.SessionIDs[0] != "a" {
			t.Errorf("event = %+v", e)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no change event published")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run = %v", err)
	}
}

func TestRun_InvalidAutoRefresh(t *testing.T) {
	err := Run(context.Background(), RunOpts{AutoRefresh: "bogus"})
	if err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}
