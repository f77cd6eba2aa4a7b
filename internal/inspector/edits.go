package inspector

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// TimeLayout is the timestamp format accepted in edits.
const TimeLayout = time.RFC3339

// Edits is one administrative save. Nil fields are left untouched. Each
// save replaces any previously cached edit for the session, so clients send
// the complete set of pending changes.
type Edits struct {
	EditedBy     string                  `json:"editedBy" validate:"max=64"`
	Reason       string                  `json:"reason" validate:"max=500"`
	Session      *SessionEdits           `json:"session,omitempty"`
	Responses    map[string]string       `json:"responses,omitempty" validate:"dive,keys,required,endkeys,max=65535"`
	Dialogue     map[string]DialogueEdit `json:"dialogue,omitempty" validate:"dive,keys,required,endkeys"`
	TimingTotals map[string]int          `json:"timingTotals,omitempty" validate:"dive,keys,required,endkeys,gte=0"`
	Ratings      map[string]RatingEdit   `json:"ratings,omitempty" validate:"dive,keys,required,endkeys"`
}

// SessionEdits changes session-level fields. Timestamps are RFC 3339.
type SessionEdits struct {
	Mode             *string   `json:"mode,omitempty" validate:"omitnil,oneof=text avatar"`
	ModesUsed        *[]string `json:"modesUsed,omitempty" validate:"omitnil,dive,oneof=text avatar"`
	StartedAt        *string   `json:"startedAt,omitempty" validate:"omitnil,datetime=2006-01-02T15:04:05Z07:00"`
	CompletedAt      *string   `json:"completedAt,omitempty" validate:"omitnil,datetime=2006-01-02T15:04:05Z07:00"`
	LastActivityAt   *string   `json:"lastActivityAt,omitempty" validate:"omitnil,datetime=2006-01-02T15:04:05Z07:00"`
	Status           *string   `json:"status,omitempty" validate:"omitnil,min=1,max=16"`
	SuspicionScore   *int      `json:"suspicionScore,omitempty" validate:"omitnil,gte=0,lte=100"`
	SuspiciousFlags  *[]string `json:"suspiciousFlags,omitempty" validate:"omitnil,dive,required,max=64"`
	ValidationStatus *string   `json:"validationStatus,omitempty" validate:"omitnil,oneof=pending valid invalid"`
	ValidatedBy      *string   `json:"validatedBy,omitempty" validate:"omitnil,max=64"`
}

// DialogueEdit changes one dialogue turn.
type DialogueEdit struct {
	Role    *string `json:"role,omitempty" validate:"omitnil,oneof=user assistant"`
	Content *string `json:"content,omitempty"`
}

// RatingEdit changes one scenario rating.
type RatingEdit struct {
	Rating  *int    `json:"rating,omitempty" validate:"omitnil,gte=0,lte=10"`
	Comment *string `json:"comment,omitempty" validate:"omitnil,max=2000"`
}

// Empty reports whether e changes nothing.
func (e Edits) Empty() bool {
	return e.Session == nil && len(e.Responses) == 0 && len(e.Dialogue) == 0 &&
		len(e.TimingTotals) == 0 && len(e.Ratings) == 0
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// check runs the struct tag rules and reports every failing field.
func (s *Service) check(e Edits) error {
	err := s.validate.Struct(e)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}

func parseTime(field string, v *string) (*time.Time, error) {
	if v == nil {
		return nil, nil
	}
	t, err := time.Parse(TimeLayout, *v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: malformed timestamp %q", ErrValidation, field, *v)
	}
	return &t, nil
}
