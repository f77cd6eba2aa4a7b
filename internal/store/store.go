// Package store reads and writes the authoritative session records.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/sessionlens/internal/models"
	"github.com/zulandar/sessionlens/internal/override"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the gorm-backed record store.
type Store struct {
	db *gorm.DB
}

// New wraps an open connection.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("store: db is required")
	}
	return &Store{db: db}, nil
}

// DB returns the underlying connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// SessionFilter narrows ListSessions.
type SessionFilter struct {
	Status           string
	ValidationStatus string
	Mode             string
	Since            time.Time // started at or after
	Limit            int
}

// GetSession returns the session with the given id.
func (s *Store) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var sess models.Session
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("store: session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get session %s: %w", id, err)
	}
	return &sess, nil
}

// ListSessions returns sessions newest first.
func (s *Store) ListSessions(ctx context.Context, f SessionFilter) ([]models.Session, error) {
	q := s.db.WithContext(ctx).Model(&models.Session{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.ValidationStatus != "" {
		q = q.Where("validation_status = ?", f.ValidationStatus)
	}
	if f.Mode != "" {
		q = q.Where("mode = ?", f.Mode)
	}
	if !f.Since.IsZero() {
		q = q.Where("started_at >= ?", f.Since)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var sessions []models.Session
	if err := q.Order("started_at DESC, id").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	return sessions, nil
}

// ListResponses returns a session's response rows, including meta rows. An
// empty category returns every category.
func (s *Store) ListResponses(ctx context.Context, sessionID, category string) ([]models.Response, error) {
	q := s.db.WithContext(ctx).Where("session_id = ?", sessionID)
	if category != "" {
		q = q.Where("category = ?", category)
	}
	var rows []models.Response
	if err := q.Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: list responses %s: %w", sessionID, err)
	}
	return rows, nil
}

// ListTiming returns a session's primary timing rows in visit order.
func (s *Store) ListTiming(ctx context.Context, sessionID string) ([]models.TimingEntry, error) {
	var entries []models.TimingEntry
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("started_at, id").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("store: list timing %s: %w", sessionID, err)
	}
	return entries, nil
}

// ListDialogue returns a session's dialogue turns in time order.
func (s *Store) ListDialogue(ctx context.Context, sessionID string) ([]models.DialogueTurn, error) {
	var turns []models.DialogueTurn
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp, id").
		Find(&turns).Error
	if err != nil {
		return nil, fmt.Errorf("store: list dialogue %s: %w", sessionID, err)
	}
	return turns, nil
}

// ListRatings returns a session's scenario ratings.
func (s *Store) ListRatings(ctx context.Context, sessionID string) ([]models.ScenarioRating, error) {
	var ratings []models.ScenarioRating
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("scenario_id, id").
		Find(&ratings).Error
	if err != nil {
		return nil, fmt.Errorf("store: list ratings %s: %w", sessionID, err)
	}
	return ratings, nil
}

// ListQuestions returns the question catalog.
func (s *Store) ListQuestions(ctx context.Context, activeOnly bool) ([]models.QuestionDefinition, error) {
	q := s.db.WithContext(ctx).Model(&models.QuestionDefinition{})
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var defs []models.QuestionDefinition
	if err := q.Order("type, question_id").Find(&defs).Error; err != nil {
		return nil, fmt.Errorf("store: list questions: %w", err)
	}
	return defs, nil
}

// ListSlides returns the slide catalog in display order.
func (s *Store) ListSlides(ctx context.Context, activeOnly bool) ([]models.Slide, error) {
	q := s.db.WithContext(ctx).Model(&models.Slide{})
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var slides []models.Slide
	if err := q.Order("sort_order, id").Find(&slides).Error; err != nil {
		return nil, fmt.Errorf("store: list slides: %w", err)
	}
	return slides, nil
}

// ApplyEdits writes p and inserts in one transaction. Record ids in p that
// do not exist are skipped; the store never creates records from a patch.
func (s *Store) ApplyEdits(ctx context.Context, p *override.Patch, inserts []models.TimingEntry) error {
	if p == nil {
		return fmt.Errorf("store: patch is required")
	}
	sid := p.SessionID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if p.Session != nil {
			var sess models.Session
			err := tx.Where("id = ?", sid).First(&sess).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("session %s: %w", sid, ErrNotFound)
			}
			if err != nil {
				return err
			}
			p.ApplySession(&sess)
			if err := tx.Save(&sess).Error; err != nil {
				return fmt.Errorf("update session: %w", err)
			}
		}

		for id, f := range p.Responses {
			if f.Answer == nil {
				continue
			}
			err := tx.Model(&models.Response{}).
				Where("id = ? AND session_id = ?", id, sid).
				Update("answer", *f.Answer).Error
			if err != nil {
				return fmt.Errorf("update response %s: %w", id, err)
			}
		}

		for id, f := range p.Dialogue {
			updates := map[string]interface{}{}
			if f.Role != nil {
				updates["role"] = *f.Role
			}
			if f.Content != nil {
				updates["content"] = *f.Content
			}
			if len(updates) == 0 {
				continue
			}
			err := tx.Model(&models.DialogueTurn{}).
				Where("id = ? AND session_id = ?", id, sid).
				Updates(updates).Error
			if err != nil {
				return fmt.Errorf("update dialogue %s: %w", id, err)
			}
		}

		for id, f := range p.Timing {
			updates := map[string]interface{}{}
			if f.DurationSeconds != nil {
				updates["duration_seconds"] = *f.DurationSeconds
			}
			if f.StartedAt != nil {
				updates["started_at"] = *f.StartedAt
			}
			if f.EndedAt != nil {
				updates["ended_at"] = *f.EndedAt
			}
			if len(updates) == 0 {
				continue
			}
			err := tx.Model(&models.TimingEntry{}).
				Where("id = ? AND session_id = ?", id, sid).
				Updates(updates).Error
			if err != nil {
				return fmt.Errorf("update timing %s: %w", id, err)
			}
		}

		for id, f := range p.Ratings {
			updates := map[string]interface{}{}
			if f.Rating != nil {
				updates["rating"] = *f.Rating
			}
			if f.Comment != nil {
				updates["comment"] = *f.Comment
			}
			if len(updates) == 0 {
				continue
			}
			err := tx.Model(&models.ScenarioRating{}).
				Where("id = ? AND session_id = ?", id, sid).
				Updates(updates).Error
			if err != nil {
				return fmt.Errorf("update rating %s: %w", id, err)
			}
		}

		if len(inserts) > 0 {
			if err := tx.Create(&inserts).Error; err != nil {
				return fmt.Errorf("insert timing: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: apply edits %s: %w", sid, err)
	}
	return nil
}

// AddResponses appends rows for an existing session. Used to record encoded
// telemetry snapshots.
func (s *Store) AddResponses(ctx context.Context, sessionID string, rows []models.Response) error {
	if len(rows) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Session{}).Where("id = ?", sessionID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
		}
		for i := range rows {
			rows[i].SessionID = sessionID
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("store: add responses %s: %w", sessionID, err)
	}
	return nil
}
