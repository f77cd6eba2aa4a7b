package models

import "time"

// ScenarioRating is a participant's rating of one study scenario.
type ScenarioRating struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	SessionID  string    `gorm:"size:64;not null;index" json:"sessionId"`
	ScenarioID string    `gorm:"size:64;not null" json:"scenarioId"`
	Rating     int       `json:"rating"`
	Comment    string    `gorm:"type:text" json:"comment,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
