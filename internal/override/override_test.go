package override

import (
	"testing"
	"time"

	"github.com/zulandar/sessionlens/internal/models"
	"github.com/zulandar/sessionlens/internal/timing"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func openTestBadger(t *testing.T) *BadgerKV {
	t.Helper()
	kv, err := OpenBadger(BadgerOpts{InMemory: true})
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	return kv
}

func kvImpls(t *testing.T) map[string]KV {
	return map[string]KV{
		"memory": NewMemoryKV(),
		"badger": openTestBadger(t),
	}
}

func TestKV_Contract(t *testing.T) {
	for name, kv := range kvImpls(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := kv.Get("override:missing"); err != ErrKeyNotFound {
				t.Errorf("Get missing err = %v, want ErrKeyNotFound", err)
			}
			if err := kv.Put("override:a", []byte("1")); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if err := kv.Put("other:b", []byte("2")); err != nil {
				t.Fatalf("Put: %v", err)
			}
			v, err := kv.Get("override:a")
			if err != nil || string(v) != "1" {
				t.Errorf("Get = %q, %v; want 1", v, err)
			}
			keys, err := kv.Keys("override:")
			if err != nil || len(keys) != 1 || keys[0] != "override:a" {
				t.Errorf("Keys = %v, %v", keys, err)
			}
			if err := kv.Delete("override:a"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := kv.Get("override:a"); err != ErrKeyNotFound {
				t.Errorf("Get after delete err = %v", err)
			}
		})
	}
}

func TestOpenBadger_RequiresPath(t *testing.T) {
	if _, err := OpenBadger(BadgerOpts{}); err == nil {
		t.Fatal("expected error without path")
	}
}

func TestOpenBadger_Persists(t *testing.T) {
	dir := t.TempDir()
	kv, err := OpenBadger(BadgerOpts{Path: dir, SyncWrites: true})
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	cache, _ := NewCache(kv)
	if err := cache.Save(Patch{SessionID: "A", Session: &SessionFields{Status: strPtr("completed")}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	kv.Close()

	kv2, err := OpenBadger(BadgerOpts{Path: dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer kv2.Close()
	cache2, _ := NewCache(kv2)
	if got := cache2.State("A"); got != StateLocallyOverridden {
		t.Errorf("State after restart = %q, want locally-overridden", got)
	}
}

func TestNewCache_NilKV(t *testing.T) {
	if _, err := NewCache(nil); err == nil {
		t.Fatal("expected error for nil kv")
	}
}

func TestCache_Lifecycle(t *testing.T) {
	cache, _ := NewCache(NewMemoryKV())

	if got := cache.State("A"); got != StateClean {
		t.Errorf("initial state = %q, want clean", got)
	}
	cache.Begin("A")
	if got := cache.State("A"); got != StatePendingRemote {
		t.Errorf("state = %q, want pending-remote", got)
	}
	if err := cache.Save(Patch{SessionID: "A", Session: &SessionFields{Status: strPtr("x")}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got := cache.State("A"); got != StateLocallyOverridden {
		t.Errorf("state = %q, want locally-overridden", got)
	}

	cache.Begin("A")
	if err := cache.Commit("A"); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got := cache.State("A"); got != StateCommitted {
		t.Errorf("state = %q, want committed", got)
	}
	if p, _ := cache.Load("A"); p != nil {
		t.Errorf("patch should be gone after commit, got %+v", p)
	}
}

func TestCache_LastWriterWins(t *testing.T) {
	cache, _ := NewCache(NewMemoryKV())
	cache.Save(Patch{SessionID: "A", Responses: map[string]ResponseFields{"r1": {Answer: strPtr("first")}}})
	cache.Save(Patch{SessionID: "A", Responses: map[string]ResponseFields{"r2": {Answer: strPtr("second")}}})

	p, err := cache.Load("A")
	if err != nil || p == nil {
		t.Fatalf("Load = %v, %v", p, err)
	}
	if _, ok := p.Responses["r1"]; ok {
		t.Error("earlier patch should be replaced, not merged")
	}
	if *p.Responses["r2"].Answer != "second" {
		t.Errorf("r2 = %q, want second", *p.Responses["r2"].Answer)
	}
}

func TestCache_ClearAndList(t *testing.T) {
	cache, _ := NewCache(NewMemoryKV())
	cache.Save(Patch{SessionID: "B"})
	cache.Save(Patch{SessionID: "A"})

	list, err := cache.List()
	if err != nil || len(list) != 2 || list[0].SessionID != "A" {
		t.Fatalf("List = %+v, %v", list, err)
	}
	if err := cache.Clear("A"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got := cache.State("A"); got != StateClean {
		t.Errorf("state = %q, want clean", got)
	}
	list, _ = cache.List()
	if len(list) != 1 || list[0].SessionID != "B" {
		t.Errorf("List after clear = %+v", list)
	}
}

func TestCache_SaveRequiresSessionID(t *testing.T) {
	cache, _ := NewCache(NewMemoryKV())
	if err := cache.Save(Patch{}); err == nil {
		t.Fatal("expected error for empty session id")
	}
}

func TestPatch_ApplySession(t *testing.T) {
	done := time.Date(2026, 3, 1, 10, 20, 0, 0, time.UTC)
	s := models.Session{ID: "A", Status: "active", ValidationStatus: models.ValidationPending}
	p := &Patch{Session: &SessionFields{
		Status:           strPtr("completed"),
		CompletedAt:      &done,
		ValidationStatus: strPtr(models.ValidationValid),
		ValidatedBy:      strPtr("admin"),
		SuspicionScore:   intPtr(12),
	}}
	p.ApplySession(&s)
	if s.Status != "completed" || s.ValidationStatus != models.ValidationValid || s.SuspicionScore != 12 {
		t.Errorf("session = %+v", s)
	}
	if s.CompletedAt == nil || !s.CompletedAt.Equal(done) {
		t.Errorf("CompletedAt = %v", s.CompletedAt)
	}
	if s.ValidatedBy == nil || *s.ValidatedBy != "admin" {
		t.Errorf("ValidatedBy = %v", s.ValidatedBy)
	}
}

func TestPatch_NeverFabricatesRecords(t *testing.T) {
	p := &Patch{
		Responses: map[string]ResponseFields{"r1": {Answer: strPtr("new")}, "ghost": {Answer: strPtr("x")}},
		Dialogue:  map[string]DialogueFields{"ghost": {Content: strPtr("x")}},
		Timing:    map[string]TimingFields{"t1": {DurationSeconds: intPtr(90)}, "ghost": {DurationSeconds: intPtr(1)}},
		Ratings:   map[string]RatingFields{"ghost": {Rating: intPtr(5)}},
	}

	rows := []models.Response{{ID: "r1", Answer: "old"}}
	p.ApplyResponses(rows)
	if len(rows) != 1 || rows[0].Answer != "new" {
		t.Errorf("rows = %+v", rows)
	}

	entries := []timing.Entry{{TimingEntry: models.TimingEntry{ID: "t1", DurationSeconds: 30}, Key: "X"}}
	p.ApplyTiming(entries)
	if len(entries) != 1 || entries[0].DurationSeconds != 90 {
		t.Errorf("entries = %+v", entries)
	}

	var turns []models.DialogueTurn
	p.ApplyDialogue(turns)
	if len(turns) != 0 {
		t.Error("dialogue patch must not create turns")
	}

	ratings := []models.ScenarioRating{{ID: "sr1", Rating: 3}}
	p.ApplyRatings(ratings)
	if ratings[0].Rating != 3 {
		t.Errorf("unrelated rating changed: %+v", ratings[0])
	}
}

func TestPatch_Empty(t *testing.T) {
	var nilPatch *Patch
	if !nilPatch.Empty() {
		t.Error("nil patch should be empty")
	}
	if (&Patch{SessionID: "A"}).Empty() != true {
		t.Error("patch without edits should be empty")
	}
	if (&Patch{Ratings: map[string]RatingFields{"x": {}}}).Empty() {
		t.Error("patch with ratings should not be empty")
	}
}
