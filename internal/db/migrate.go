package db

import (
	"fmt"

	"github.com/zulandar/sessionlens/internal/config"
	"github.com/zulandar/sessionlens/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns every GORM model backing the record store.
func AllModels() []interface{} {
	return []interface{}{
		&models.Session{},
		&models.Response{},
		&models.TimingEntry{},
		&models.DialogueTurn{},
		&models.ScenarioRating{},
		&models.QuestionDefinition{},
		&models.Slide{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// DropTables removes every table created by AutoMigrate.
func DropTables(db *gorm.DB) error {
	if err := db.Migrator().DropTable(AllModels()...); err != nil {
		return fmt.Errorf("db: drop tables: %w", err)
	}
	return nil
}

// SeedCatalog upserts question definitions and slides from configuration.
// A question's created_at is kept once written so sessions keep the catalog
// version they were measured against.
func SeedCatalog(db *gorm.DB, catalog config.CatalogConfig) error {
	for _, qc := range catalog.Questions {
		q := models.QuestionDefinition{
			QuestionID: qc.ID,
			Type:       qc.Type,
			ModeScope:  qc.ModeScope,
			Prompt:     qc.Prompt,
			IsActive:   qc.IsActive(),
			CreatedAt:  qc.CreatedAt,
		}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"type", "mode_scope", "prompt", "is_active"}),
		}).Create(&q)
		if result.Error != nil {
			return fmt.Errorf("db: seed question %q: %w", qc.ID, result.Error)
		}
	}

	for _, sc := range catalog.Slides {
		s := models.Slide{
			ID:        sc.ID,
			Title:     sc.Title,
			SortOrder: sc.SortOrder,
			IsActive:  sc.IsActive(),
		}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "sort_order", "is_active"}),
		}).Create(&s)
		if result.Error != nil {
			return fmt.Errorf("db: seed slide %q: %w", sc.ID, result.Error)
		}
	}
	return nil
}
