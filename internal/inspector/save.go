package inspector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/zulandar/sessionlens/internal/models"
	"github.com/zulandar/sessionlens/internal/override"
	"github.com/zulandar/sessionlens/internal/payload"
	"github.com/zulandar/sessionlens/internal/segment"
	"github.com/zulandar/sessionlens/internal/store"
)

// Save outcomes.
const (
	OutcomeCommitted     = "committed"
	OutcomeLocallyCached = "locally_cached"
)

// LocalOnlyNotice is shown when an edit could only be kept on this machine.
const LocalOnlyNotice = "Saved locally only: the record store could not be updated. " +
	"The change shows on this machine until a later save succeeds or the local override is cleared."

// SaveResult reports where an edit ended up.
type SaveResult struct {
	Outcome     string `json:"outcome"`
	Notice      string `json:"notice,omitempty"`
	RemoteError string `json:"remoteError,omitempty"`
	Imputed     int    `json:"imputed,omitempty"` // owner-imputed timing rows inserted
}

// SaveEdits validates e, writes it to the record store and falls back to
// the local override cache when that write fails. Invalid edits return
// ErrValidation and are never cached. Edits planned against a section that
// could not be read return ErrUnavailable and write nothing.
func (s *Service) SaveEdits(ctx context.Context, sessionID string, e Edits) (*SaveResult, error) {
	if err := s.check(e); err != nil {
		return nil, err
	}
	if e.Empty() {
		return nil, fmt.Errorf("%w: no changes", ErrValidation)
	}

	view, err := s.GetSessionDetails(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if down := unreadable(e, view.Degraded); len(down) > 0 {
		return nil, fmt.Errorf("%w: save %s: cannot read %s", ErrUnavailable, sessionID, strings.Join(down, ", "))
	}

	p, inserts, err := s.buildPatch(sessionID, e, view)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Detached from ctx: a client disconnect is not a remote failure.
	s.cache.Begin(sessionID)
	remote := remotePatch(p)
	werr := s.records.ApplyEdits(context.WithoutCancel(ctx), remote, inserts)
	if werr == nil {
		if err := s.cache.Commit(sessionID); err != nil {
			s.log.Warn("inspector: drop committed override", "session", sessionID, "error", err)
		}
		saveTotal.WithLabelValues(OutcomeCommitted).Inc()
		s.log.Info("inspector: edits committed", "session", sessionID, "editedBy", e.EditedBy, "imputed", len(inserts))
		return &SaveResult{Outcome: OutcomeCommitted, Imputed: len(inserts)}, nil
	}
	if errors.Is(werr, store.ErrNotFound) {
		if err := s.cache.Clear(sessionID); err != nil {
			s.log.Warn("inspector: clear override", "session", sessionID, "error", err)
		}
		return nil, fmt.Errorf("inspector: save %s: %w", sessionID, werr)
	}

	s.log.Warn("inspector: remote write failed, caching locally", "session", sessionID, "error", werr)
	if err := s.cache.Save(*p); err != nil {
		saveTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("inspector: save %s: remote: %v: local: %w", sessionID, werr, err)
	}
	saveTotal.WithLabelValues(OutcomeLocallyCached).Inc()
	return &SaveResult{
		Outcome:     OutcomeLocallyCached,
		Notice:      LocalOnlyNotice,
		RemoteError: werr.Error(),
	}, nil
}

// ClearLocalOverride discards the cached patch for sessionID so the next
// read shows the record store's data.
func (s *Service) ClearLocalOverride(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.cache.Clear(sessionID); err != nil {
		return fmt.Errorf("inspector: clear override %s: %w", sessionID, err)
	}
	overrideClearTotal.Inc()
	s.log.Info("inspector: local override cleared", "session", sessionID)
	return nil
}

// ListOverrides returns every cached patch.
func (s *Service) ListOverrides() ([]override.Patch, error) {
	patches, err := s.cache.List()
	if err != nil {
		return nil, fmt.Errorf("inspector: list overrides: %w", err)
	}
	return patches, nil
}

// buildPatch converts e into a patch against view. Timing totals are spread
// across each group's entries; fallback entries cannot be updated remotely
// and are returned as owner-imputed inserts instead.
func (s *Service) buildPatch(sessionID string, e Edits, view *Details) (*override.Patch, []models.TimingEntry, error) {
	p := &override.Patch{
		SessionID: sessionID,
		EditedBy:  e.EditedBy,
		Reason:    e.Reason,
		SavedAt:   s.now(),
	}

	if e.Session != nil {
		f, err := s.sessionFields(e, view.Session)
		if err != nil {
			return nil, nil, err
		}
		p.Session = f
	}

	if len(e.Responses) > 0 {
		known := make(map[string]bool)
		for _, rows := range view.Responses {
			for _, r := range rows {
				known[r.ID] = true
			}
		}
		p.Responses = make(map[string]override.ResponseFields, len(e.Responses))
		for id, answer := range e.Responses {
			if !known[id] {
				return nil, nil, fmt.Errorf("%w: responses: unknown id %q", ErrValidation, id)
			}
			a := answer
			p.Responses[id] = override.ResponseFields{Answer: &a}
		}
	}
	if len(e.Dialogue) > 0 {
		known := make(map[string]bool, len(view.Dialogue))
		for _, t := range view.Dialogue {
			// Fallback turns have no row to update.
			if !payload.IsFallbackID(t.ID) {
				known[t.ID] = true
			}
		}
		p.Dialogue = make(map[string]override.DialogueFields, len(e.Dialogue))
		for id, d := range e.Dialogue {
			if !known[id] {
				return nil, nil, fmt.Errorf("%w: dialogue: unknown id %q", ErrValidation, id)
			}
			p.Dialogue[id] = override.DialogueFields{Role: d.Role, Content: d.Content}
		}
	}
	if len(e.Ratings) > 0 {
		known := make(map[string]bool, len(view.Ratings))
		for _, r := range view.Ratings {
			known[r.ID] = true
		}
		p.Ratings = make(map[string]override.RatingFields, len(e.Ratings))
		for id, r := range e.Ratings {
			if !known[id] {
				return nil, nil, fmt.Errorf("%w: ratings: unknown id %q", ErrValidation, id)
			}
			p.Ratings[id] = override.RatingFields{Rating: r.Rating, Comment: r.Comment}
		}
	}

	var inserts []models.TimingEntry
	if len(e.TimingTotals) > 0 {
		keys := make([]string, 0, len(e.TimingTotals))
		for k := range e.TimingTotals {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		p.Timing = make(map[string]override.TimingFields)
		for _, key := range keys {
			g, ok := segment.Find(view.Timing.Groups, key)
			if !ok {
				return nil, nil, fmt.Errorf("%w: timing: unknown slide %q", ErrValidation, key)
			}
			for _, a := range segment.Plan(g, e.TimingTotals[key], s.ceilings) {
				d := a.DurationSeconds
				p.Timing[a.Entry.ID] = override.TimingFields{DurationSeconds: &d}
				if a.Entry.Source != models.SourceFallback {
					continue
				}
				row := a.Entry.TimingEntry
				row.ID = uuid.NewString()
				row.SessionID = sessionID
				row.DurationSeconds = d
				row.Source = models.SourceOwnerImputed
				inserts = append(inserts, row)
			}
		}
	}
	return p, inserts, nil
}

// unreadable returns the degraded sections e is planned against. Timing
// totals are spread over primary rows and the fallback snapshot, which is
// carried by response rows.
func unreadable(e Edits, degraded []string) []string {
	if len(degraded) == 0 {
		return nil
	}
	need := make(map[string]bool)
	if len(e.Responses) > 0 {
		need[SectionResponses] = true
	}
	if len(e.TimingTotals) > 0 {
		need[SectionTiming] = true
		need[SectionSlides] = true
		need[SectionResponses] = true
	}
	if len(e.Dialogue) > 0 {
		need[SectionDialogue] = true
	}
	if len(e.Ratings) > 0 {
		need[SectionRatings] = true
	}
	var out []string
	for _, d := range degraded {
		if need[d] {
			out = append(out, d)
		}
	}
	return out
}

// sessionFields parses session edits and checks them against the current
// merged session.
func (s *Service) sessionFields(e Edits, current models.Session) (*override.SessionFields, error) {
	in := e.Session
	started, err := parseTime("session.startedAt", in.StartedAt)
	if err != nil {
		return nil, err
	}
	completed, err := parseTime("session.completedAt", in.CompletedAt)
	if err != nil {
		return nil, err
	}
	lastActivity, err := parseTime("session.lastActivityAt", in.LastActivityAt)
	if err != nil {
		return nil, err
	}

	f := &override.SessionFields{
		Mode:             in.Mode,
		ModesUsed:        in.ModesUsed,
		StartedAt:        started,
		CompletedAt:      completed,
		LastActivityAt:   lastActivity,
		Status:           in.Status,
		SuspicionScore:   in.SuspicionScore,
		SuspiciousFlags:  in.SuspiciousFlags,
		ValidationStatus: in.ValidationStatus,
		ValidatedBy:      in.ValidatedBy,
	}

	merged := current
	(&override.Patch{Session: f}).ApplySession(&merged)
	if merged.CompletedAt != nil && merged.CompletedAt.Before(merged.StartedAt) {
		return nil, fmt.Errorf("%w: session: completedAt %s is before startedAt %s", ErrValidation,
			merged.CompletedAt.Format(TimeLayout), merged.StartedAt.Format(TimeLayout))
	}

	if in.ValidationStatus != nil && *in.ValidationStatus != current.ValidationStatus {
		now := s.now()
		f.ValidatedAt = &now
		if f.ValidatedBy == nil && e.EditedBy != "" {
			by := e.EditedBy
			f.ValidatedBy = &by
		}
	}
	return f, nil
}

// remotePatch returns p without fallback timing ids, which exist only in
// the reconciled view.
func remotePatch(p *override.Patch) *override.Patch {
	if len(p.Timing) == 0 {
		return p
	}
	out := *p
	out.Timing = make(map[string]override.TimingFields, len(p.Timing))
	for id, f := range p.Timing {
		if payload.IsFallbackID(id) {
			continue
		}
		out.Timing[id] = f
	}
	return &out
}
