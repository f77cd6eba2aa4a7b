package models

import "time"

// Dialogue roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DialogueTurn is one message of the tutoring dialogue.
type DialogueTurn struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	SessionID string    `gorm:"size:64;not null;index" json:"sessionId"`
	Role      string    `gorm:"size:16;not null" json:"role"`
	Content   string    `gorm:"type:mediumtext" json:"content"`
	SlideID   string    `gorm:"size:128" json:"slideId,omitempty"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
	Source    string    `gorm:"size:16;default:primary" json:"source,omitempty"`
}
