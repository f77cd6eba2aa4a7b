// Package override keeps administrative edits that could not reach the
// authoritative store and layers them on top of freshly fetched data.
package override

import (
	"time"

	"github.com/zulandar/sessionlens/internal/models"
	"github.com/zulandar/sessionlens/internal/timing"
)

// SessionFields holds session-level replacements. Nil fields are untouched.
type SessionFields struct {
	Mode             *string    `json:"mode,omitempty"`
	ModesUsed        *[]string  `json:"modesUsed,omitempty"`
	StartedAt        *time.Time `json:"startedAt,omitempty"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	LastActivityAt   *time.Time `json:"lastActivityAt,omitempty"`
	Status           *string    `json:"status,omitempty"`
	SuspicionScore   *int       `json:"suspicionScore,omitempty"`
	SuspiciousFlags  *[]string  `json:"suspiciousFlags,omitempty"`
	ValidationStatus *string    `json:"validationStatus,omitempty"`
	ValidatedBy      *string    `json:"validatedBy,omitempty"`
	ValidatedAt      *time.Time `json:"validatedAt,omitempty"`
}

// ResponseFields holds replacements for one response row.
type ResponseFields struct {
	Answer *string `json:"answer,omitempty"`
}

// DialogueFields holds replacements for one dialogue turn.
type DialogueFields struct {
	Role    *string `json:"role,omitempty"`
	Content *string `json:"content,omitempty"`
}

// TimingFields holds replacements for one timing entry.
type TimingFields struct {
	DurationSeconds *int       `json:"durationSeconds,omitempty"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
}

// RatingFields holds replacements for one scenario rating.
type RatingFields struct {
	Rating  *int    `json:"rating,omitempty"`
	Comment *string `json:"comment,omitempty"`
}

// Patch is the complete set of edits for one session, keyed by record id.
type Patch struct {
	SessionID string                    `json:"sessionId"`
	Session   *SessionFields            `json:"session,omitempty"`
	Responses map[string]ResponseFields `json:"responses,omitempty"`
	Dialogue  map[string]DialogueFields `json:"dialogue,omitempty"`
	Timing    map[string]TimingFields   `json:"timing,omitempty"`
	Ratings   map[string]RatingFields   `json:"ratings,omitempty"`
	EditedBy  string                    `json:"editedBy,omitempty"`
	SavedAt   time.Time                 `json:"savedAt"`
	Reason    string                    `json:"reason,omitempty"`
}

// Empty reports whether the patch carries no edits.
func (p *Patch) Empty() bool {
	return p == nil || (p.Session == nil && len(p.Responses) == 0 && len(p.Dialogue) == 0 &&
		len(p.Timing) == 0 && len(p.Ratings) == 0)
}

// ApplySession overwrites session scalars set in the patch.
func (p *Patch) ApplySession(s *models.Session) {
	if p == nil || p.Session == nil || s == nil {
		return
	}
	f := p.Session
	if f.Mode != nil {
		s.Mode = *f.Mode
	}
	if f.ModesUsed != nil {
		s.ModesUsed = append([]string(nil), (*f.ModesUsed)...)
	}
	if f.StartedAt != nil {
		s.StartedAt = *f.StartedAt
	}
	if f.CompletedAt != nil {
		t := *f.CompletedAt
		s.CompletedAt = &t
	}
	if f.LastActivityAt != nil {
		t := *f.LastActivityAt
		s.LastActivityAt = &t
	}
	if f.Status != nil {
		s.Status = *f.Status
	}
	if f.SuspicionScore != nil {
		s.SuspicionScore = *f.SuspicionScore
	}
	if f.SuspiciousFlags != nil {
		s.SuspiciousFlags = append([]string(nil), (*f.SuspiciousFlags)...)
	}
	if f.ValidationStatus != nil {
		s.ValidationStatus = *f.ValidationStatus
	}
	if f.ValidatedBy != nil {
		v := *f.ValidatedBy
		s.ValidatedBy = &v
	}
	if f.ValidatedAt != nil {
		t := *f.ValidatedAt
		s.ValidatedAt = &t
	}
}

// ApplyResponses patches rows in place by id. Ids absent from rows are
// ignored.
func (p *Patch) ApplyResponses(rows []models.Response) {
	if p == nil || len(p.Responses) == 0 {
		return
	}
	for i := range rows {
		f, ok := p.Responses[rows[i].ID]
		if !ok {
			continue
		}
		if f.Answer != nil {
			rows[i].Answer = *f.Answer
		}
	}
}

// ApplyDialogue patches turns in place by id.
func (p *Patch) ApplyDialogue(turns []models.DialogueTurn) {
	if p == nil || len(p.Dialogue) == 0 {
		return
	}
	for i := range turns {
		f, ok := p.Dialogue[turns[i].ID]
		if !ok {
			continue
		}
		if f.Role != nil {
			turns[i].Role = *f.Role
		}
		if f.Content != nil {
			turns[i].Content = *f.Content
		}
	}
}

// ApplyTiming patches reconciled timing entries in place by id.
func (p *Patch) ApplyTiming(entries []timing.Entry) {
	if p == nil || len(p.Timing) == 0 {
		return
	}
	for i := range entries {
		f, ok := p.Timing[entries[i].ID]
		if !ok {
			continue
		}
		if f.DurationSeconds != nil {
			entries[i].DurationSeconds = *f.DurationSeconds
		}
		if f.StartedAt != nil {
			t := *f.StartedAt
			entries[i].StartedAt = &t
		}
		if f.EndedAt != nil {
			t := *f.EndedAt
			entries[i].EndedAt = &t
		}
	}
}

// ApplyRatings patches scenario ratings in place by id.
func (p *Patch) ApplyRatings(ratings []models.ScenarioRating) {
	if p == nil || len(p.Ratings) == 0 {
		return
	}
	for i := range ratings {
		f, ok := p.Ratings[ratings[i].ID]
		if !ok {
			continue
		}
		if f.Rating != nil {
			ratings[i].Rating = *f.Rating
		}
		if f.Comment != nil {
			ratings[i].Comment = *f.Comment
		}
	}
}
