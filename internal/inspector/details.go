package inspector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zulandar/sessionlens/internal/completeness"
	"github.com/zulandar/sessionlens/internal/dialogue"
	"github.com/zulandar/sessionlens/internal/models"
	"github.com/zulandar/sessionlens/internal/override"
	"github.com/zulandar/sessionlens/internal/payload"
	"github.com/zulandar/sessionlens/internal/segment"
	"github.com/zulandar/sessionlens/internal/slide"
	"github.com/zulandar/sessionlens/internal/timing"
	"golang.org/x/sync/errgroup"
)

// Sections that degrade independently when their sub-query fails.
const (
	SectionResponses = "responses"
	SectionTiming    = "timing"
	SectionDialogue  = "dialogue"
	SectionRatings   = "ratings"
	SectionQuestions = "questions"
	SectionSlides    = "slides"
	SectionOverride  = "override"
)

// Details is the reconciled view of one session.
type Details struct {
	Session      models.Session               `json:"session"`
	Responses    map[string][]models.Response `json:"responses"`
	Timing       TimingView                   `json:"timing"`
	Dialogue     []models.DialogueTurn        `json:"dialogue"`
	Ratings      []models.ScenarioRating      `json:"ratings"`
	Completeness completeness.Status          `json:"completeness"`
	Override     OverrideInfo                 `json:"override"`
	Degraded     []string                     `json:"degraded,omitempty"`
}

// TimingView holds the merged timing entries and their per-slide groups.
type TimingView struct {
	Entries      []timing.Entry  `json:"entries"`
	Groups       []segment.Group `json:"groups"`
	TotalSeconds int             `json:"totalSeconds"`
}

// OverrideInfo describes the local patch layered onto a view.
type OverrideInfo struct {
	State    override.State `json:"state"`
	Applied  bool           `json:"applied"`
	SavedAt  *time.Time     `json:"savedAt,omitempty"`
	EditedBy string         `json:"editedBy,omitempty"`
	Reason   string         `json:"reason,omitempty"`
}

// snapshot is the raw result of one fan-out.
type snapshot struct {
	session   *models.Session
	responses []models.Response
	timing    []models.TimingEntry
	dialogue  []models.DialogueTurn
	ratings   []models.ScenarioRating
	questions []models.QuestionDefinition
	slides    []models.Slide

	mu       sync.Mutex
	degraded map[string]bool
}

func (s *snapshot) degrade(section string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.degraded[section] = true
}

func (s *snapshot) isDegraded(section string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded[section]
}

func (s *snapshot) degradedList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.degraded))
	for k := range s.degraded {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// GetSessionDetails fetches and reconciles one session.
func (s *Service) GetSessionDetails(ctx context.Context, sessionID string) (*Details, error) {
	start := s.now()
	snap, err := s.fetch(ctx, sessionID)
	if err != nil {
		reconcileTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	d := s.merge(sessionID, snap)
	reconcileTotal.WithLabelValues(outcomeOf(d)).Inc()
	reconcileDuration.Observe(s.now().Sub(start).Seconds())
	return d, nil
}

// GetCompleteness returns the derived completeness of one session.
func (s *Service) GetCompleteness(ctx context.Context, sessionID string) (completeness.Status, error) {
	d, err := s.GetSessionDetails(ctx, sessionID)
	if err != nil {
		return completeness.Status{}, err
	}
	return d.Completeness, nil
}

func outcomeOf(d *Details) string {
	if len(d.Degraded) > 0 {
		return "degraded"
	}
	return "ok"
}

// fetch runs every sub-query concurrently. Sub-queries run detached from
// ctx so one caller going away does not leave half-cancelled queries behind
// for others; if ctx ends first the results are discarded. Only the session
// read is fatal.
func (s *Service) fetch(ctx context.Context, sessionID string) (*snapshot, error) {
	snap := &snapshot{degraded: make(map[string]bool)}
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))

	g.Go(func() error {
		sess, err := s.records.GetSession(gctx, sessionID)
		if err != nil {
			return err
		}
		snap.session = sess
		return nil
	})
	section := func(name string, fn func(context.Context) error) {
		g.Go(func() error {
			if err := fn(gctx); err != nil {
				if errors.Is(err, context.Canceled) && gctx.Err() != nil {
					return nil
				}
				s.log.Warn("inspector: section degraded", "session", sessionID, "section", name, "error", err)
				degradedTotal.WithLabelValues(name).Inc()
				snap.degrade(name)
			}
			return nil
		})
	}
	section(SectionResponses, func(ctx context.Context) (err error) {
		snap.responses, err = s.records.ListResponses(ctx, sessionID, "")
		return err
	})
	section(SectionTiming, func(ctx context.Context) (err error) {
		snap.timing, err = s.records.ListTiming(ctx, sessionID)
		return err
	})
	section(SectionDialogue, func(ctx context.Context) (err error) {
		snap.dialogue, err = s.records.ListDialogue(ctx, sessionID)
		return err
	})
	section(SectionRatings, func(ctx context.Context) (err error) {
		snap.ratings, err = s.records.ListRatings(ctx, sessionID)
		return err
	})
	section(SectionQuestions, func(ctx context.Context) (err error) {
		snap.questions, err = s.records.ListQuestions(ctx, false)
		return err
	})
	section(SectionSlides, func(ctx context.Context) (err error) {
		snap.slides, err = s.records.ListSlides(ctx, true)
		return err
	})

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-done:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			return nil, fmt.Errorf("inspector: %w", err)
		}
		return snap, nil
	}
}

// merge reconciles a snapshot and layers the local patch on top.
func (s *Service) merge(sessionID string, snap *snapshot) *Details {
	patch, err := s.cache.Load(sessionID)
	if err != nil {
		s.log.Warn("inspector: load override", "session", sessionID, "error", err)
		snap.degrade(SectionOverride)
		patch = nil
	}

	sess := *snap.session
	patch.ApplySession(&sess)

	answers, meta := splitMeta(snap.responses)
	patch.ApplyResponses(answers)
	byCategory := groupByCategory(answers)

	fallbackTiming, info := timing.FallbackEntries(sessionID, meta)
	s.noteDecode(sessionID, payload.SlideTimingID, info)
	entries := timing.Reconcile(snap.timing, fallbackTiming, slide.NewCatalog(snap.slides))
	patch.ApplyTiming(entries)

	fallbackTurns, info := dialogue.FallbackTurns(sessionID, meta)
	s.noteDecode(sessionID, payload.DialogueLogID, info)
	turns := dialogue.Reconcile(snap.dialogue, fallbackTurns)
	patch.ApplyDialogue(turns)

	ratings := append([]models.ScenarioRating{}, snap.ratings...)
	patch.ApplyRatings(ratings)

	var catalog []models.QuestionDefinition
	if !snap.isDegraded(SectionQuestions) {
		catalog = snap.questions
	}
	status := completeness.Evaluate(sess, byCategory, catalog)

	ov := OverrideInfo{State: s.cache.State(sessionID)}
	if patch != nil {
		saved := patch.SavedAt
		ov.Applied = true
		ov.SavedAt = &saved
		ov.EditedBy = patch.EditedBy
		ov.Reason = patch.Reason
	}

	return &Details{
		Session:   sess,
		Responses: byCategory,
		Timing: TimingView{
			Entries:      entries,
			Groups:       segment.Aggregate(entries),
			TotalSeconds: timing.Total(entries),
		},
		Dialogue:     turns,
		Ratings:      ratings,
		Completeness: status,
		Override:     ov,
		Degraded:     snap.degradedList(),
	}
}

func (s *Service) noteDecode(sessionID, baseID string, info payload.DecodeInfo) {
	recordDecode(baseID, info)
	if info.Malformed {
		s.log.Debug("inspector: fallback payload malformed", "session", sessionID, "payload", baseID)
	}
	if len(info.MissingParts) > 0 {
		s.log.Warn("inspector: fallback payload has gaps", "session", sessionID, "payload", baseID,
			"batch", info.BatchID, "missing", info.MissingParts)
	}
}

// splitMeta separates participant answers from meta-question rows.
func splitMeta(rows []models.Response) (answers, meta []models.Response) {
	answers = make([]models.Response, 0, len(rows))
	for _, r := range rows {
		if payload.IsMetaQuestion(r.QuestionID) {
			meta = append(meta, r)
			continue
		}
		answers = append(answers, r)
	}
	return answers, meta
}

func groupByCategory(rows []models.Response) map[string][]models.Response {
	out := make(map[string][]models.Response, len(models.Categories))
	for _, c := range models.Categories {
		out[c] = []models.Response{}
	}
	for _, r := range rows {
		out[r.Category] = append(out[r.Category], r)
	}
	return out
}
