// Package completeness decides whether a session's responses are present
// against the question catalog as it stood when the session began.
package completeness

import (
	"strings"

	"github.com/zulandar/sessionlens/internal/models"
	"github.com/zulandar/sessionlens/internal/payload"
)

// Basis values report how a category's presence was decided.
const (
	BasisCatalog = "catalog"
	BasisRaw     = "raw"
)

// Category is the presence result for one response category.
type Category struct {
	Present  bool     `json:"present"`
	Expected int      `json:"expected"`
	Answered int      `json:"answered"`
	Basis    string   `json:"basis"`
	Missing  []string `json:"missing,omitempty"`
}

// Status is the derived completeness of one session.
type Status struct {
	SessionID   string   `json:"sessionId"`
	Demographic Category `json:"demographic"`
	Pre         Category `json:"pre"`
	Post        Category `json:"post"`
	Complete    bool     `json:"complete"`
}

// ByName returns the result for a category name.
func (s Status) ByName(category string) Category {
	switch category {
	case models.CategoryDemographic:
		return s.Demographic
	case models.CategoryPre:
		return s.Pre
	case models.CategoryPost:
		return s.Post
	}
	return Category{}
}

// Expected returns the question ids of catalog that count against session
// for category: matching type, active, in scope for one of the session's
// modes, and created no later than the session start.
func Expected(session models.Session, category string, catalog []models.QuestionDefinition) []string {
	modes := make(map[string]bool)
	for _, m := range session.Modes() {
		modes[m] = true
	}

	var ids []string
	seen := make(map[string]bool)
	for _, q := range catalog {
		if q.Type != category || !q.IsActive {
			continue
		}
		if q.ModeScope != models.ScopeBoth && q.ModeScope != "" && !modes[q.ModeScope] {
			continue
		}
		if q.CreatedAt.After(session.StartedAt) {
			continue
		}
		if seen[q.QuestionID] {
			continue
		}
		seen[q.QuestionID] = true
		ids = append(ids, q.QuestionID)
	}
	return ids
}

// Evaluate computes the status of session. responses maps a category name
// to its rows. A nil catalog means the catalog could not be read; every
// category then falls back to raw-answer mode.
func Evaluate(session models.Session, responses map[string][]models.Response, catalog []models.QuestionDefinition) Status {
	st := Status{SessionID: session.ID}
	st.Demographic = evaluateCategory(session, models.CategoryDemographic, responses[models.CategoryDemographic], catalog)
	st.Pre = evaluateCategory(session, models.CategoryPre, responses[models.CategoryPre], catalog)
	st.Post = evaluateCategory(session, models.CategoryPost, responses[models.CategoryPost], catalog)
	st.Complete = st.Demographic.Present && st.Pre.Present && st.Post.Present
	return st
}

func evaluateCategory(session models.Session, category string, rows []models.Response, catalog []models.QuestionDefinition) Category {
	answered := make(map[string]bool)
	for _, r := range rows {
		if payload.IsMetaQuestion(r.QuestionID) || !nonEmpty(r.Answer) {
			continue
		}
		answered[r.QuestionID] = true
	}

	expected := Expected(session, category, catalog)
	if len(expected) == 0 {
		return Category{
			Present:  len(answered) > 0,
			Answered: len(answered),
			Basis:    BasisRaw,
		}
	}

	c := Category{Expected: len(expected), Basis: BasisCatalog}
	for _, id := range expected {
		if answered[id] {
			c.Answered++
		} else {
			c.Missing = append(c.Missing, id)
		}
	}
	c.Present = c.Answered == c.Expected
	return c
}

// nonEmpty reports whether an answer carries a value. Empty JSON
// containers and null count as empty.
func nonEmpty(answer string) bool {
	switch strings.TrimSpace(answer) {
	case "", "null", `""`, "[]", "{}":
		return false
	}
	return true
}
