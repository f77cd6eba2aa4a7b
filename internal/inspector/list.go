package inspector

import (
	"context"
	"fmt"

	"github.com/zulandar/sessionlens/internal/completeness"
	"github.com/zulandar/sessionlens/internal/models"
	"github.com/zulandar/sessionlens/internal/override"
	"github.com/zulandar/sessionlens/internal/store"
	"golang.org/x/sync/errgroup"
)

// Summary is one row of the session table.
type Summary struct {
	Session      models.Session      `json:"session"`
	Completeness completeness.Status `json:"completeness"`
	Override     override.State      `json:"override"`
	Degraded     bool                `json:"degraded,omitempty"`
}

// ListSessions returns sessions matching f with their completeness. A
// session whose responses cannot be read is listed with raw-mode
// completeness over no answers and marked degraded.
func (s *Service) ListSessions(ctx context.Context, f store.SessionFilter) ([]Summary, error) {
	sessions, err := s.records.ListSessions(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("inspector: list sessions: %w", err)
	}
	catalog, err := s.records.ListQuestions(ctx, false)
	if err != nil {
		s.log.Warn("inspector: question catalog unavailable, using raw completeness", "error", err)
		degradedTotal.WithLabelValues(SectionQuestions).Inc()
		catalog = nil
	}

	out := make([]Summary, len(sessions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.listConc)
	for i := range sessions {
		g.Go(func() error {
			out[i] = s.summarize(gctx, sessions[i], catalog)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) summarize(ctx context.Context, sess models.Session, catalog []models.QuestionDefinition) Summary {
	sum := Summary{Override: s.cache.State(sess.ID)}

	patch, err := s.cache.Load(sess.ID)
	if err != nil {
		s.log.Warn("inspector: load override", "session", sess.ID, "error", err)
		sum.Degraded = true
	}
	patch.ApplySession(&sess)

	rows, err := s.records.ListResponses(ctx, sess.ID, "")
	if err != nil {
		s.log.Warn("inspector: section degraded", "session", sess.ID, "section", SectionResponses, "error", err)
		degradedTotal.WithLabelValues(SectionResponses).Inc()
		sum.Degraded = true
		rows = nil
	}
	answers, _ := splitMeta(rows)
	patch.ApplyResponses(answers)

	sum.Session = sess
	sum.Completeness = completeness.Evaluate(sess, groupByCategory(answers), catalog)
	return sum
}
