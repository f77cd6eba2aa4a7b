package db

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/sessionlens/internal/config"
	"github.com/zulandar/sessionlens/internal/models"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Connect(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return db
}

func boolPtr(b bool) *bool { return &b }

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.DatabaseConfig
		database string
		prefix   string
	}{
		{
			name:     "default local",
			cfg:      config.DatabaseConfig{Host: "127.0.0.1", Port: 3306, User: "root"},
			database: "sessionlens_pilot",
			prefix:   "root@tcp(127.0.0.1:3306)/sessionlens_pilot?",
		},
		{
			name:     "with password",
			cfg:      config.DatabaseConfig{Host: "10.0.0.5", Port: 3307, User: "admin", Password: "s3cret"},
			database: "study",
			prefix:   "admin:s3cret@tcp(10.0.0.5:3307)/study?",
		},
		{
			name:   "no database",
			cfg:    config.DatabaseConfig{Host: "db.internal", Port: 3306, User: "root"},
			prefix: "root@tcp(db.internal:3306)/?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DSN(tt.cfg, tt.database)
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("DSN() = %q, want prefix %q", got, tt.prefix)
			}
			if !strings.Contains(got, "parseTime=true") {
				t.Errorf("DSN missing parseTime=true: %s", got)
			}
		})
	}
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Driver: "oracle"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if !strings.Contains(err.Error(), `unsupported driver "oracle"`) {
		t.Errorf("error = %q", err.Error())
	}
}

func TestConnect_SQLiteRequiresPath(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Driver: "sqlite"})
	if err == nil {
		t.Fatal("expected error for empty sqlite path")
	}
}

func TestConnectAdmin_RequiresMySQL(t *testing.T) {
	_, err := ConnectAdmin(config.DatabaseConfig{Driver: "sqlite", Path: "x.db"})
	if err == nil {
		t.Fatal("expected error for sqlite admin connect")
	}
	if !strings.Contains(err.Error(), "requires mysql") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestAllModels_Count(t *testing.T) {
	models := AllModels()
	if len(models) != 7 {
		t.Errorf("AllModels() returned %d models, want 7", len(models))
	}
}

func TestAutoMigrate_CreatesTables(t *testing.T) {
	db := testDB(t)
	for _, m := range AllModels() {
		if !db.Migrator().HasTable(m) {
			t.Errorf("table for %T not created", m)
		}
	}
}

func TestDropTables(t *testing.T) {
	db := testDB(t)
	if err := DropTables(db); err != nil {
		t.Fatalf("DropTables: %v", err)
	}
	if db.Migrator().HasTable(&models.Session{}) {
		t.Error("sessions table should be gone")
	}
}

func TestSeedCatalog_Upserts(t *testing.T) {
	db := testDB(t)
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	catalog := config.CatalogConfig{
		Questions: []config.QuestionConfig{
			{ID: "q_age", Type: "demographic", ModeScope: "both", Prompt: "Age?", CreatedAt: created},
			{ID: "q_old", Type: "post", ModeScope: "text", Active: boolPtr(false), CreatedAt: created},
		},
		Slides: []config.SlideConfig{
			{ID: "s1", Title: "Cells", SortOrder: 1},
			{ID: "s2", Title: "Mitosis", SortOrder: 2, Active: boolPtr(false)},
		},
	}
	if err := SeedCatalog(db, catalog); err != nil {
		t.Fatalf("SeedCatalog: %v", err)
	}

	var q models.QuestionDefinition
	if err := db.First(&q, "question_id = ?", "q_old").Error; err != nil {
		t.Fatalf("load q_old: %v", err)
	}
	if q.IsActive {
		t.Error("q_old should be inactive")
	}
	if q.ModeScope != "text" {
		t.Errorf("q_old.ModeScope = %q, want text", q.ModeScope)
	}

	// Re-seed with a changed prompt and a later created_at.
	catalog.Questions[0].Prompt = "How old are you?"
	catalog.Questions[0].CreatedAt = created.Add(24 * time.Hour)
	catalog.Slides[0].Title = "Introduction to Cells"
	if err := SeedCatalog(db, catalog); err != nil {
		t.Fatalf("SeedCatalog (again): %v", err)
	}

	var count int64
	db.Model(&models.QuestionDefinition{}).Count(&count)
	if count != 2 {
		t.Errorf("question count = %d, want 2", count)
	}
	if err := db.First(&q, "question_id = ?", "q_age").Error; err != nil {
		t.Fatalf("load q_age: %v", err)
	}
	if q.Prompt != "How old are you?" {
		t.Errorf("Prompt = %q, want updated", q.Prompt)
	}
	if !q.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want original %v", q.CreatedAt, created)
	}

	var s models.Slide
	if err := db.First(&s, "id = ?", "s1").Error; err != nil {
		t.Fatalf("load s1: %v", err)
	}
	if s.Title != "Introduction to Cells" {
		t.Errorf("Title = %q, want updated", s.Title)
	}
	if err := db.First(&s, "id = ?", "s2").Error; err != nil {
		t.Fatalf("load s2: %v", err)
	}
	if s.IsActive {
		t.Error("s2 should be inactive")
	}
}

func TestSeedCatalog_Empty(t *testing.T) {
	if err := SeedCatalog(nil, config.CatalogConfig{}); err != nil {
		t.Errorf("SeedCatalog(nil, empty) = %v, want nil", err)
	}
}
