package models

import "time"

// Question mode scopes.
const (
	ScopeBoth   = "both"
	ScopeText   = "text"
	ScopeAvatar = "avatar"
)

// QuestionDefinition is one versioned entry of the question catalog. Its
// CreatedAt decides which sessions it counts against.
type QuestionDefinition struct {
	QuestionID string    `gorm:"primaryKey;size:128" json:"questionId"`
	Type       string    `gorm:"size:16;not null;index" json:"type"`
	ModeScope  string    `gorm:"size:16;default:both" json:"modeScope"`
	Prompt     string    `gorm:"type:text" json:"prompt,omitempty"`
	IsActive   bool      `gorm:"not null;index" json:"isActive"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Slide is one learning-content unit of the slide catalog.
type Slide struct {
	ID        string `gorm:"primaryKey;size:128" json:"id"`
	Title     string `gorm:"size:256;not null" json:"title"`
	SortOrder int    `gorm:"default:0" json:"sortOrder"`
	IsActive  bool   `gorm:"not null;index" json:"isActive"`
}
