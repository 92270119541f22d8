package schedule

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nerrad567/verdant-core/internal/point"
)

// setupTestDB creates an in-memory SQLite database with the schedule tables.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE schedule_templates (
			uid               TEXT PRIMARY KEY,
			name              TEXT NOT NULL,
			lights_on_time    INTEGER NOT NULL DEFAULT 0,
			lights_off_time   INTEGER NOT NULL DEFAULT 0,
			autopilot_windows TEXT NOT NULL DEFAULT '[]',
			duration_events   TEXT NOT NULL DEFAULT '[]',
			volume_events     TEXT NOT NULL DEFAULT '[]',
			locked            INTEGER NOT NULL DEFAULT 0,
			created_at        TEXT NOT NULL,
			updated_at        TEXT NOT NULL
		);
		CREATE TABLE schedule_instances (
			id                TEXT PRIMARY KEY,
			template_uid      TEXT NOT NULL DEFAULT '',
			name              TEXT NOT NULL,
			lights_on_time    INTEGER NOT NULL DEFAULT 0,
			lights_off_time   INTEGER NOT NULL DEFAULT 0,
			autopilot_windows TEXT NOT NULL DEFAULT '[]',
			duration_events   TEXT NOT NULL DEFAULT '[]',
			volume_events     TEXT NOT NULL DEFAULT '[]',
			created_at        TEXT NOT NULL
		);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func pumpOutput(flowLPM float64) *point.OutputDefinition {
	return &point.OutputDefinition{
		PointID:      "ro1",
		AssignedType: "pump",
		ConfigValues: map[string]any{"flow_rate_lpm": flowLPM},
	}
}

func TestStore_SaveAndGetTemplate(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	tmpl := validSchedule()
	if err := store.SaveTemplate(ctx, tmpl); err != nil {
		t.Fatalf("SaveTemplate() error = %v", err)
	}

	got, err := store.GetTemplate(ctx, tmpl.UID)
	if err != nil {
		t.Fatalf("GetTemplate() error = %v", err)
	}
	if got.Name != "Veg Day" {
		t.Errorf("Name = %q, want Veg Day", got.Name)
	}
	if len(got.AutopilotWindows) != 1 || len(got.DurationEvents) != 1 || len(got.VolumeEvents) != 1 {
		t.Errorf("event counts = %d/%d/%d, want 1/1/1",
			len(got.AutopilotWindows), len(got.DurationEvents), len(got.VolumeEvents))
	}
	if got.AutopilotWindows[0].SettlingTimeMinutes != 20 {
		t.Errorf("SettlingTimeMinutes = %d, want 20", got.AutopilotWindows[0].SettlingTimeMinutes)
	}
}

func TestStore_SaveTemplate_GeneratesUID(t *testing.T) {
	store := NewStore(setupTestDB(t))

	tmpl := validSchedule()
	tmpl.UID = ""
	if err := store.SaveTemplate(context.Background(), tmpl); err != nil {
		t.Fatalf("SaveTemplate() error = %v", err)
	}
	if tmpl.UID == "" {
		t.Error("SaveTemplate() should assign a UID")
	}
}

func TestStore_SaveTemplate_RejectsInvalid(t *testing.T) {
	store := NewStore(setupTestDB(t))

	tmpl := validSchedule()
	tmpl.Name = ""
	err := store.SaveTemplate(context.Background(), tmpl)
	if !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("SaveTemplate() error = %v, want ErrInvalidSchedule", err)
	}
}

func TestStore_GetTemplate_NotFound(t *testing.T) {
	store := NewStore(setupTestDB(t))

	_, err := store.GetTemplate(context.Background(), "missing")
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("GetTemplate() error = %v, want ErrTemplateNotFound", err)
	}
}

func TestStore_CreateInstance_ComputesVolumeDurations(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	tmpl := validSchedule()
	tmpl.VolumeEvents = []VolumeEvent{{StartTime: 900, DoseVolume: 1.5}}
	if err := store.SaveTemplate(ctx, tmpl); err != nil {
		t.Fatalf("SaveTemplate() error = %v", err)
	}

	// 1.5 L at 2 L/min = 45 s
	inst, err := store.CreateInstance(ctx, tmpl.UID, pumpOutput(2.0))
	if err != nil {
		t.Fatalf("CreateInstance() error = %v", err)
	}
	if inst.VolumeEvents[0].CalculatedDurationSeconds != 45 {
		t.Errorf("CalculatedDurationSeconds = %d, want 45", inst.VolumeEvents[0].CalculatedDurationSeconds)
	}

	// Round trip
	got, err := store.GetInstance(ctx, inst.ID)
	if err != nil {
		t.Fatalf("GetInstance() error = %v", err)
	}
	if got.VolumeEvents[0].CalculatedDurationSeconds != 45 {
		t.Errorf("stored CalculatedDurationSeconds = %d, want 45", got.VolumeEvents[0].CalculatedDurationSeconds)
	}
	if got.TemplateUID != tmpl.UID {
		t.Errorf("TemplateUID = %q, want %q", got.TemplateUID, tmpl.UID)
	}
}

func TestStore_CreateInstance_UnresolvableVolumeMarkedInvalid(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	tmpl := validSchedule()
	if err := store.SaveTemplate(ctx, tmpl); err != nil {
		t.Fatalf("SaveTemplate() error = %v", err)
	}

	// Output with no flow rate configured
	output := &point.OutputDefinition{PointID: "ro1", AssignedType: "pump"}
	inst, err := store.CreateInstance(ctx, tmpl.UID, output)
	if err != nil {
		t.Fatalf("CreateInstance() error = %v", err)
	}
	if inst.VolumeEvents[0].CalculatedDurationSeconds != 0 {
		t.Errorf("CalculatedDurationSeconds = %d, want 0 for unresolvable volume",
			inst.VolumeEvents[0].CalculatedDurationSeconds)
	}
}

func TestStore_CreateInstance_LocksTemplate(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	tmpl := validSchedule()
	if err := store.SaveTemplate(ctx, tmpl); err != nil {
		t.Fatalf("SaveTemplate() error = %v", err)
	}
	if _, err := store.CreateInstance(ctx, tmpl.UID, pumpOutput(2.0)); err != nil {
		t.Fatalf("CreateInstance() error = %v", err)
	}

	if err := store.SaveTemplate(ctx, tmpl); !errors.Is(err, ErrTemplateLocked) {
		t.Errorf("SaveTemplate() on locked error = %v, want ErrTemplateLocked", err)
	}
	if err := store.DeleteTemplate(ctx, tmpl.UID); !errors.Is(err, ErrTemplateLocked) {
		t.Errorf("DeleteTemplate() on locked error = %v, want ErrTemplateLocked", err)
	}
}

func TestStore_DeleteInstance(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	tmpl := validSchedule()
	if err := store.SaveTemplate(ctx, tmpl); err != nil {
		t.Fatalf("SaveTemplate() error = %v", err)
	}
	inst, err := store.CreateInstance(ctx, tmpl.UID, pumpOutput(2.0))
	if err != nil {
		t.Fatalf("CreateInstance() error = %v", err)
	}

	if err := store.DeleteInstance(ctx, inst.ID); err != nil {
		t.Fatalf("DeleteInstance() error = %v", err)
	}
	if _, err := store.GetInstance(ctx, inst.ID); !errors.Is(err, ErrInstanceNotFound) {
		t.Errorf("GetInstance() after delete error = %v, want ErrInstanceNotFound", err)
	}
	if err := store.DeleteInstance(ctx, inst.ID); !errors.Is(err, ErrInstanceNotFound) {
		t.Errorf("DeleteInstance() on missing error = %v, want ErrInstanceNotFound", err)
	}
}

func TestJanitor_Sweep(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	tmpl := validSchedule()
	if err := store.SaveTemplate(ctx, tmpl); err != nil {
		t.Fatalf("SaveTemplate() error = %v", err)
	}

	kept, err := store.CreateInstance(ctx, tmpl.UID, pumpOutput(2.0))
	if err != nil {
		t.Fatalf("CreateInstance() error = %v", err)
	}
	orphan, err := store.CreateInstance(ctx, tmpl.UID, pumpOutput(2.0))
	if err != nil {
		t.Fatalf("CreateInstance() error = %v", err)
	}

	referenced := func(context.Context) (map[string]struct{}, error) {
		return map[string]struct{}{kept.ID: {}}, nil
	}

	janitor, err := NewJanitor(store, referenced, "0 3 * * *")
	if err != nil {
		t.Fatalf("NewJanitor() error = %v", err)
	}

	removed, err := janitor.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Sweep() removed %d, want 1", removed)
	}

	if _, err := store.GetInstance(ctx, kept.ID); err != nil {
		t.Errorf("referenced instance was removed: %v", err)
	}
	if _, err := store.GetInstance(ctx, orphan.ID); !errors.Is(err, ErrInstanceNotFound) {
		t.Errorf("orphan should be removed, got error = %v", err)
	}
}

func TestNewJanitor_BadSpec(t *testing.T) {
	store := NewStore(setupTestDB(t))
	referenced := func(context.Context) (map[string]struct{}, error) {
		return nil, nil
	}

	if _, err := NewJanitor(store, referenced, "not a cron spec"); err == nil {
		t.Error("NewJanitor() with bad spec should fail")
	}
}
