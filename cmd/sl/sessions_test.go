package main

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/sessionlens/internal/completeness"
	"github.com/zulandar/sessionlens/internal/inspector"
	"github.com/zulandar/sessionlens/internal/models"
)

var sessionStart = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// seedSession inserts session s1 with two answers and one primary timing row.
func seedSession(t *testing.T, configPath string) {
	t.Helper()
	gdb := openTestDB(t, configPath)
	values := []interface{}{
		&models.Session{ID: "s1", PublicSessionID: "P-001", Mode: models.ModeText, StartedAt: sessionStart},
		&models.Response{ID: "r_age", SessionID: "s1", Category: models.CategoryDemographic, QuestionID: "q_age", Answer: "41", CreatedAt: sessionStart},
		&models.Response{ID: "r_pre", SessionID: "s1", Category: models.CategoryPre, QuestionID: "q_pre", Answer: "yes", CreatedAt: sessionStart},
		&models.TimingEntry{ID: "t1", SessionID: "s1", SlideID: "s1", Title: "Introduction to Cells", DurationSeconds: 50, Source: models.SourcePrimary},
	}
	for _, v := range values {
		if err := gdb.Create(v).Error; err != nil {
			t.Fatalf("seed %T: %v", v, err)
		}
	}
}

// initWithSnapshot prepares a database holding s1 plus a timing snapshot
// whose s2 entry has no primary row.
func initWithSnapshot(t *testing.T) string {
	t.Helper()
	path := writeTestConfig(t)
	if out, err := runRoot(t, "", "db", "init", "--config", path); err != nil {
		t.Fatalf("db init: %v\n%s", err, out)
	}
	seedSession(t, path)

	timingPath := filepath.Join(filepath.Dir(path), "timing.json")
	if err := writeTestFile(timingPath, `[
		{"slideId": "s1", "durationSeconds": 40},
		{"slideId": "s2", "slideTitle": "Mitosis", "durationSeconds": 30}
	]`); err != nil {
		t.Fatal(err)
	}
	out, err := runRoot(t, "", "snapshot", "s1", "--config", path, "--timing", timingPath)
	if err != nil {
		t.Fatalf("snapshot: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Encoded 2 timing entries") {
		t.Errorf("unexpected snapshot output: %s", out)
	}
	return path
}

func TestInspectCmd_Text(t *testing.T) {
	path := initWithSnapshot(t)

	out, err := runRoot(t, "", "inspect", "s1", "--config", path)
	if err != nil {
		t.Fatalf("inspect: %v\n%s", err, out)
	}
	for _, want := range []string{
		"Session:     s1",
		"Public ID:   P-001",
		"Override:    clean",
		"Completeness: incomplete",
		"Timing (total 1m 20s)",
		"Mitosis",
		"q_age",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "meta_slide_timing") {
		t.Errorf("meta rows should not be listed as answers:\n%s", out)
	}
}

func TestInspectCmd_JSON(t *testing.T) {
	path := initWithSnapshot(t)

	out, err := runRoot(t, "", "inspect", "s1", "--config", path, "--json")
	if err != nil {
		t.Fatalf("inspect --json: %v\n%s", err, out)
	}
	var d inspector.Details
	if err := json.Unmarshal([]byte(out), &d); err != nil {
		t.Fatalf("decode details: %v\n%s", err, out)
	}
	if d.Timing.TotalSeconds != 80 {
		t.Errorf("TotalSeconds = %d, want 80 (primary s1 + fallback s2)", d.Timing.TotalSeconds)
	}
	if len(d.Timing.Groups) != 2 {
		t.Errorf("groups = %d, want 2", len(d.Timing.Groups))
	}
	if len(d.Degraded) != 0 {
		t.Errorf("Degraded = %v, want none", d.Degraded)
	}
}

func TestInspectCmd_NotFound(t *testing.T) {
	path := writeTestConfig(t)
	if _, err := runRoot(t, "", "db", "init", "--config", path); err != nil {
		t.Fatalf("db init: %v", err)
	}
	_, err := runRoot(t, "", "inspect", "missing", "--config", path)
	if err == nil {
		t.Fatal("expected error for missing session")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %q, want not found", err.Error())
	}
}

func TestInspectCmd_RequiresID(t *testing.T) {
	if _, err := runRoot(t, "", "inspect"); err == nil {
		t.Fatal("expected error without a session id")
	}
}

func TestInspectCmd_MissingConfig(t *testing.T) {
	_, err := runRoot(t, "", "inspect", "s1", "--config", "/nonexistent/sessionlens.yaml")
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "load config")
	}
}

func TestCompletenessCmd(t *testing.T) {
	path := initWithSnapshot(t)

	out, err := runRoot(t, "", "completeness", "s1", "--config", path, "--json")
	if err != nil {
		t.Fatalf("completeness: %v\n%s", err, out)
	}
	var st completeness.Status
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}
	if !st.Demographic.Present || !st.Pre.Present {
		t.Errorf("demographic and pre should be present: %+v", st)
	}
	if st.Post.Present || st.Complete {
		t.Errorf("post should be missing: %+v", st)
	}
	if len(st.Post.Missing) != 1 || st.Post.Missing[0] != "q_post" {
		t.Errorf("Post.Missing = %v, want [q_post]", st.Post.Missing)
	}

	out, err = runRoot(t, "", "completeness", "s1", "--config", path)
	if err != nil {
		t.Fatalf("completeness: %v", err)
	}
	if !strings.Contains(out, "Completeness: incomplete") || !strings.Contains(out, "q_post") {
		t.Errorf("unexpected text output:\n%s", out)
	}
}

func TestEditCmd_CommitsAndImputes(t *testing.T) {
	path := initWithSnapshot(t)
	editsPath := filepath.Join(filepath.Dir(path), "edits.json")
	if err := writeTestFile(editsPath, `{
		"responses": {"r_pre": "no"},
		"timingTotals": {"s2": 45},
		"session": {"validationStatus": "valid"}
	}`); err != nil {
		t.Fatal(err)
	}

	out, err := runRoot(t, "", "edit", "s1", "--config", path, "-f", editsPath, "--by", "admin", "--reason", "backfill")
	if err != nil {
		t.Fatalf("edit: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Saved edits for s1") {
		t.Errorf("unexpected output: %s", out)
	}
	if !strings.Contains(out, "Inserted 1 owner-imputed timing entries") {
		t.Errorf("expected the fallback s2 entry to be imputed: %s", out)
	}

	out, err = runRoot(t, "", "inspect", "s1", "--config", path, "--json")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var d inspector.Details
	if err := json.Unmarshal([]byte(out), &d); err != nil {
		t.Fatalf("decode details: %v", err)
	}
	if d.Timing.TotalSeconds != 95 {
		t.Errorf("TotalSeconds = %d, want 95", d.Timing.TotalSeconds)
	}
	if got := d.Responses[models.CategoryPre][0].Answer; got != "no" {
		t.Errorf("pre answer = %q, want no", got)
	}
	if d.Session.ValidationStatus != models.ValidationValid {
		t.Errorf("ValidationStatus = %q, want valid", d.Session.ValidationStatus)
	}
	if d.Session.ValidatedBy == nil || *d.Session.ValidatedBy != "admin" {
		t.Errorf("ValidatedBy = %v, want admin", d.Session.ValidatedBy)
	}
	if d.Override.Applied {
		t.Error("committed edits should leave no local override")
	}
}

func TestEditCmd_FromStdin(t *testing.T) {
	path := initWithSnapshot(t)
	out, err := runRoot(t, `{"responses": {"r_age": "42"}}`, "edit", "s1", "--config", path, "-f", "-")
	if err != nil {
		t.Fatalf("edit: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Saved edits for s1") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestEditCmd_InvalidEdits(t *testing.T) {
	path := initWithSnapshot(t)

	tests := []struct {
		name  string
		edits string
		want  string
	}{
		{"bad status", `{"session": {"validationStatus": "maybe"}}`, "invalid edits"},
		{"no changes", `{}`, "no changes"},
		{"unknown field", `{"bogus": 1}`, "parse edits"},
		{"unknown timing group", `{"timingTotals": {"nope": 10}}`, "invalid edits"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runRoot(t, tt.edits, "edit", "s1", "--config", path, "-f", "-")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.want)
			}
		})
	}

	out, err := runRoot(t, "", "override", "list", "--config", path)
	if err != nil {
		t.Fatalf("override list: %v", err)
	}
	if !strings.Contains(out, "No local overrides.") {
		t.Errorf("rejected edits must not be cached:\n%s", out)
	}
}

func TestEditCmd_RequiresFile(t *testing.T) {
	_, err := runRoot(t, "", "edit", "s1")
	if err == nil {
		t.Fatal("expected error without --file")
	}
	if !strings.Contains(err.Error(), "file") {
		t.Errorf("error = %q, want to mention file", err.Error())
	}
}

func TestSnapshotCmd_RequiresInput(t *testing.T) {
	path := writeTestConfig(t)
	_, err := runRoot(t, "", "snapshot", "s1", "--config", path)
	if err == nil {
		t.Fatal("expected error without --timing or --dialogue")
	}
	if !strings.Contains(err.Error(), "nothing to record") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestSnapshotCmd_Dialogue(t *testing.T) {
	path := writeTestConfig(t)
	if _, err := runRoot(t, "", "db", "init", "--config", path); err != nil {
		t.Fatalf("db init: %v", err)
	}
	seedSession(t, path)

	dialoguePath := filepath.Join(filepath.Dir(path), "dialogue.json")
	if err := writeTestFile(dialoguePath, `[
		{"role": "user", "content": "What is mitosis?", "timestamp": "2026-03-02T09:05:00Z"},
		{"role": "assistant", "content": "Cell division.", "timestamp": "2026-03-02T09:05:10Z"}
	]`); err != nil {
		t.Fatal(err)
	}
	if out, err := runRoot(t, "", "snapshot", "s1", "--config", path, "--dialogue", dialoguePath); err != nil {
		t.Fatalf("snapshot: %v\n%s", err, out)
	}

	out, err := runRoot(t, "", "inspect", "s1", "--config", path)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !strings.Contains(out, "Dialogue (2 turns)") {
		t.Errorf("expected the snapshot transcript:\n%s", out)
	}
	if !strings.Contains(out, "user *: What is mitosis?") {
		t.Errorf("fallback turns should be marked:\n%s", out)
	}
}

func TestSnapshotCmd_UnknownSession(t *testing.T) {
	path := writeTestConfig(t)
	if _, err := runRoot(t, "", "db", "init", "--config", path); err != nil {
		t.Fatalf("db init: %v", err)
	}
	timingPath := filepath.Join(filepath.Dir(path), "timing.json")
	if err := writeTestFile(timingPath, `[{"slideId": "s1", "durationSeconds": 5}]`); err != nil {
		t.Fatal(err)
	}
	_, err := runRoot(t, "", "snapshot", "ghost", "--config", path, "--timing", timingPath)
	if err == nil {
		t.Fatal("expected error for unknown session")
	}
}

func TestOverrideCmd_ListAndClear(t *testing.T) {
	path := initWithSnapshot(t)

	out, err := runRoot(t, "", "override", "list", "--config", path)
	if err != nil {
		t.Fatalf("override list: %v", err)
	}
	if !strings.Contains(out, "No local overrides.") {
		t.Errorf("unexpected output: %s", out)
	}

	out, err = runRoot(t, "", "override", "clear", "s1", "--config", path)
	if err != nil {
		t.Fatalf("override clear: %v", err)
	}
	if !strings.Contains(out, "Cleared local override for s1") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestOverrideCmd_Help(t *testing.T) {
	out, err := runRoot(t, "", "override", "--help")
	if err != nil {
		t.Fatalf("override --help: %v", err)
	}
	if !strings.Contains(out, "list") || !strings.Contains(out, "clear") {
		t.Errorf("expected list and clear subcommands, got: %s", out)
	}
}
