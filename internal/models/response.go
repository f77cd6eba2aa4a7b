package models

import "time"

// Response categories.
const (
	CategoryDemographic = "demographic"
	CategoryPre         = "pre"
	CategoryPost        = "post"
)

// Categories lists every response category in display order.
var Categories = []string{CategoryDemographic, CategoryPre, CategoryPost}

// Response is one answer row. Meta-question rows reuse this table to carry
// batch-encoded telemetry.
type Response struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	SessionID  string    `gorm:"size:64;not null;index:idx_response_session" json:"sessionId"`
	Category   string    `gorm:"size:16;not null;index:idx_response_session" json:"category"`
	QuestionID string    `gorm:"size:191;not null" json:"questionId"`
	Answer     string    `gorm:"type:text" json:"answer"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
}
