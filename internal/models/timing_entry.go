package models

import "time"

// Timing entry sources.
const (
	SourcePrimary      = "primary"
	SourceFallback     = "fallback"
	SourceOwnerImputed = "owner-imputed"
)

// TimingEntry records dwell time on one slide or page visit.
type TimingEntry struct {
	ID              string     `gorm:"primaryKey;size:64" json:"id"`
	SessionID       string     `gorm:"size:64;not null;index" json:"sessionId"`
	SlideID         string     `gorm:"size:128" json:"slideId"`
	Title           string     `gorm:"size:256" json:"slideTitle"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
	DurationSeconds int        `gorm:"default:0" json:"durationSeconds"`
	Source          string     `gorm:"size:16;default:primary" json:"source,omitempty"`
	Mode            string     `gorm:"size:16" json:"mode,omitempty"`
}
