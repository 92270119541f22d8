package point

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the point tables.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE output_definitions (
			point_id      TEXT PRIMARY KEY,
			assigned_type TEXT NOT NULL,
			config_values TEXT NOT NULL DEFAULT '{}',
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		);
		CREATE TABLE input_configs (
			point_id          TEXT PRIMARY KEY,
			name              TEXT NOT NULL DEFAULT '',
			unit              TEXT NOT NULL DEFAULT '',
			scale_min         REAL NOT NULL DEFAULT 0,
			scale_max         REAL NOT NULL DEFAULT 100,
			display_precision INTEGER NOT NULL DEFAULT 1,
			created_at        TEXT NOT NULL,
			updated_at        TEXT NOT NULL
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

func TestSQLiteRepository_SaveAndGetOutput(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	def := &OutputDefinition{
		PointID:      "ro1",
		AssignedType: "irrigation_valve",
		ConfigValues: map[string]any{"flow_rate_lpm": 2.5},
	}

	if err := repo.SaveOutput(ctx, def); err != nil {
		t.Fatalf("SaveOutput() error = %v", err)
	}

	got, err := repo.GetOutput(ctx, "ro1")
	if err != nil {
		t.Fatalf("GetOutput() error = %v", err)
	}

	if got.AssignedType != "irrigation_valve" {
		t.Errorf("AssignedType = %q, want %q", got.AssignedType, "irrigation_valve")
	}
	if rate, ok := got.FlowRateLPM(); !ok || rate != 2.5 {
		t.Errorf("FlowRateLPM() = %v, %v, want 2.5, true", rate, ok)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set on save")
	}
}

func TestSQLiteRepository_SaveOutput_Upsert(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	def := &OutputDefinition{PointID: "ro1", AssignedType: "pump"}
	if err := repo.SaveOutput(ctx, def); err != nil {
		t.Fatalf("SaveOutput() error = %v", err)
	}

	// Reassign the same point to a different type
	def.AssignedType = "light"
	if err := repo.SaveOutput(ctx, def); err != nil {
		t.Fatalf("SaveOutput() reassign error = %v", err)
	}

	got, err := repo.GetOutput(ctx, "ro1")
	if err != nil {
		t.Fatalf("GetOutput() error = %v", err)
	}
	if got.AssignedType != "light" {
		t.Errorf("AssignedType = %q, want %q after reassign", got.AssignedType, "light")
	}
}

func TestSQLiteRepository_SaveOutput_InvalidType(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	def := &OutputDefinition{PointID: "ro1", AssignedType: "hovercraft"}
	err := repo.SaveOutput(ctx, def)
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("SaveOutput() error = %v, want ErrUnknownType", err)
	}
}

func TestSQLiteRepository_GetOutput_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	_, err := repo.GetOutput(ctx, "ro99")
	if !errors.Is(err, ErrOutputNotFound) {
		t.Errorf("GetOutput() error = %v, want ErrOutputNotFound", err)
	}
}

func TestSQLiteRepository_ListOutputs(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	for _, id := range []string{"ro2", "ro1", "ro3"} {
		if err := repo.SaveOutput(ctx, &OutputDefinition{PointID: id, AssignedType: "pump"}); err != nil {
			t.Fatalf("SaveOutput(%s) error = %v", id, err)
		}
	}

	defs, err := repo.ListOutputs(ctx)
	if err != nil {
		t.Fatalf("ListOutputs() error = %v", err)
	}
	if len(defs) != 3 {
		t.Fatalf("ListOutputs() returned %d, want 3", len(defs))
	}
	// Ordered by point ID
	if defs[0].PointID != "ro1" || defs[2].PointID != "ro3" {
		t.Errorf("ListOutputs() not ordered: %s, %s, %s", defs[0].PointID, defs[1].PointID, defs[2].PointID)
	}
}

func TestSQLiteRepository_DeleteOutput(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	if err := repo.SaveOutput(ctx, &OutputDefinition{PointID: "ro1", AssignedType: "pump"}); err != nil {
		t.Fatalf("SaveOutput() error = %v", err)
	}

	if err := repo.DeleteOutput(ctx, "ro1"); err != nil {
		t.Fatalf("DeleteOutput() error = %v", err)
	}

	if _, err := repo.GetOutput(ctx, "ro1"); !errors.Is(err, ErrOutputNotFound) {
		t.Errorf("GetOutput() after delete error = %v, want ErrOutputNotFound", err)
	}

	if err := repo.DeleteOutput(ctx, "ro1"); !errors.Is(err, ErrOutputNotFound) {
		t.Errorf("DeleteOutput() on missing error = %v, want ErrOutputNotFound", err)
	}
}

func TestSQLiteRepository_SaveAndGetInput(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	cfg := &InputConfig{
		PointID:          "ai1",
		Name:             "Substrate Moisture A",
		Unit:             "%",
		ScaleMin:         0,
		ScaleMax:         100,
		DisplayPrecision: 1,
	}

	if err := repo.SaveInput(ctx, cfg); err != nil {
		t.Fatalf("SaveInput() error = %v", err)
	}

	got, err := repo.GetInput(ctx, "ai1")
	if err != nil {
		t.Fatalf("GetInput() error = %v", err)
	}
	if got.Name != "Substrate Moisture A" {
		t.Errorf("Name = %q, want %q", got.Name, "Substrate Moisture A")
	}
	if got.Unit != "%" {
		t.Errorf("Unit = %q, want %q", got.Unit, "%")
	}
}

func TestSQLiteRepository_GetInput_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	_, err := repo.GetInput(ctx, "ai99")
	if !errors.Is(err, ErrInputNotFound) {
		t.Errorf("GetInput() error = %v, want ErrInputNotFound", err)
	}
}

func TestSQLiteRepository_DeleteInput(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	if err := repo.SaveInput(ctx, &InputConfig{PointID: "ai1"}); err != nil {
		t.Fatalf("SaveInput() error = %v", err)
	}
	if err := repo.DeleteInput(ctx, "ai1"); err != nil {
		t.Fatalf("DeleteInput() error = %v", err)
	}
	if err := repo.DeleteInput(ctx, "ai1"); !errors.Is(err, ErrInputNotFound) {
		t.Errorf("DeleteInput() on missing error = %v, want ErrInputNotFound", err)
	}
}
