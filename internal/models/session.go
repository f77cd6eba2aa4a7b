package models

import "time"

// Session modes.
const (
	ModeText   = "text"
	ModeAvatar = "avatar"
)

// Validation statuses set by administrators.
const (
	ValidationPending = "pending"
	ValidationValid   = "valid"
	ValidationInvalid = "invalid"
)

// Session is one participant's run through the study.
type Session struct {
	ID               string     `gorm:"primaryKey;size:64" json:"id"`
	PublicSessionID  string     `gorm:"size:64;uniqueIndex" json:"publicSessionId"`
	Mode             string     `gorm:"size:16;index" json:"mode"`
	ModesUsed        []string   `gorm:"type:json;serializer:json" json:"modesUsed"`
	StartedAt        time.Time  `gorm:"not null;index" json:"startedAt"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	LastActivityAt   *time.Time `gorm:"index" json:"lastActivityAt,omitempty"`
	Status           string     `gorm:"size:16;default:active;index" json:"status"`
	SuspicionScore   int        `gorm:"default:0" json:"suspicionScore"`
	SuspiciousFlags  []string   `gorm:"type:json;serializer:json" json:"suspiciousFlags"`
	ValidationStatus string     `gorm:"size:16;default:pending" json:"validationStatus"`
	ValidatedBy      *string    `gorm:"size:64" json:"validatedBy,omitempty"`
	ValidatedAt      *time.Time `json:"validatedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Modes returns the modes recorded for the session. Sessions written before
// multi-mode tracking only carry Mode.
func (s *Session) Modes() []string {
	if len(s.ModesUsed) > 0 {
		return s.ModesUsed
	}
	if s.Mode != "" {
		return []string{s.Mode}
	}
	return nil
}
