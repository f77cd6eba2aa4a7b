// Package inspector reconciles a session's authoritative records with its
// fallback telemetry and local override patches, and saves administrative
// edits with an offline fallback.
package inspector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/zulandar/sessionlens/internal/models"
	"github.com/zulandar/sessionlens/internal/override"
	"github.com/zulandar/sessionlens/internal/segment"
	"github.com/zulandar/sessionlens/internal/store"
)

// ErrValidation marks edits rejected before any write was attempted.
var ErrValidation = errors.New("inspector: invalid edits")

// ErrUnavailable marks edits refused because a section they are planned
// against could not be read.
var ErrUnavailable = errors.New("inspector: records unavailable")

// Records is the authoritative record store.
type Records interface {
	GetSession(ctx context.Context, id string) (*models.Session, error)
	ListSessions(ctx context.Context, f store.SessionFilter) ([]models.Session, error)
	ListResponses(ctx context.Context, sessionID, category string) ([]models.Response, error)
	ListTiming(ctx context.Context, sessionID string) ([]models.TimingEntry, error)
	ListDialogue(ctx context.Context, sessionID string) ([]models.DialogueTurn, error)
	ListRatings(ctx context.Context, sessionID string) ([]models.ScenarioRating, error)
	ListQuestions(ctx context.Context, activeOnly bool) ([]models.QuestionDefinition, error)
	ListSlides(ctx context.Context, activeOnly bool) ([]models.Slide, error)
	ApplyEdits(ctx context.Context, p *override.Patch, inserts []models.TimingEntry) error
}

// Opts holds parameters for creating a Service.
type Opts struct {
	Records  Records
	Cache    *override.Cache
	Logger   *slog.Logger     // defaults to slog.Default()
	Ceilings segment.Ceilings // zero values use the segment defaults
	Now      func() time.Time // defaults to time.Now
	ListConc int              // concurrent per-session reads in ListSessions, defaults to 8
}

// Service runs the inspector operations.
type Service struct {
	records  Records
	cache    *override.Cache
	log      *slog.Logger
	ceilings segment.Ceilings
	now      func() time.Time
	listConc int
	validate *validator.Validate
}

// New creates a Service.
func New(opts Opts) (*Service, error) {
	if opts.Records == nil {
		return nil, fmt.Errorf("inspector: records is required")
	}
	if opts.Cache == nil {
		return nil, fmt.Errorf("inspector: cache is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	conc := opts.ListConc
	if conc <= 0 {
		conc = 8
	}
	return &Service{
		records:  opts.Records,
		cache:    opts.Cache,
		log:      logger,
		ceilings: opts.Ceilings,
		now:      now,
		listConc: conc,
		validate: newValidator(),
	}, nil
}
