// Package timing merges authoritative per-event slide timing with the
// end-of-session snapshot decoded from meta-question rows.
package timing

import (
	"github.com/zulandar/sessionlens/internal/models"
	"github.com/zulandar/sessionlens/internal/payload"
	"github.com/zulandar/sessionlens/internal/slide"
)

// Entry is a timing record with its resolved slide key.
type Entry struct {
	models.TimingEntry
	Key  string `json:"key"`
	Page bool   `json:"page"`
}

// Reconcile returns one deduplicated timing list. Every entry is keyed
// through the catalog; page entries key on their literal id. When catalog
// is non-empty, non-page entries whose key is not in it are dropped. A
// fallback entry survives only if no primary entry resolved to its key.
//
// Output holds the surviving primaries in input order followed by the
// surviving fallbacks in input order.
func Reconcile(primary, fallback []models.TimingEntry, catalog *slide.Catalog) []Entry {
	out := make([]Entry, 0, len(primary)+len(fallback))
	seen := make(map[string]bool)

	for _, e := range primary {
		entry, ok := resolve(e, catalog)
		if !ok {
			continue
		}
		seen[entry.Key] = true
		out = append(out, entry)
	}
	for _, e := range fallback {
		entry, ok := resolve(e, catalog)
		if !ok || seen[entry.Key] {
			continue
		}
		out = append(out, entry)
	}
	return out
}

// resolve computes an entry's key and reports whether it should be kept.
func resolve(e models.TimingEntry, catalog *slide.Catalog) (Entry, bool) {
	if slide.IsPageID(e.SlideID) {
		return Entry{TimingEntry: e, Key: e.SlideID, Page: true}, true
	}

	key, ok := catalog.Resolve(e.SlideID, e.Title)
	if !ok {
		switch {
		case e.SlideID != "":
			key = e.SlideID
		case slide.Normalize(e.Title) != "":
			key = slide.Normalize(e.Title)
		default:
			return Entry{}, false
		}
	}
	if catalog.Len() > 0 && !catalog.Contains(key) {
		return Entry{}, false
	}
	if e.Title == "" {
		e.Title = catalog.Title(key)
	}
	return Entry{TimingEntry: e, Key: key}, true
}

// Total sums the duration of entries.
func Total(entries []Entry) int {
	total := 0
	for _, e := range entries {
		total += e.DurationSeconds
	}
	return total
}

// FallbackEntries decodes the slide timing snapshot carried in a session's
// response rows.
func FallbackEntries(sessionID string, rows []models.Response) ([]models.TimingEntry, payload.DecodeInfo) {
	entries, info := payload.Decode[models.TimingEntry](rows, payload.SlideTimingID)
	for i := range entries {
		entries[i].ID = payload.FallbackID(sessionID, i)
		entries[i].SessionID = sessionID
		entries[i].Source = models.SourceFallback
	}
	return entries, info
}
