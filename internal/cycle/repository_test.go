package cycle

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the cycles table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE cycles (
			id               TEXT PRIMARY KEY,
			name             TEXT NOT NULL,
			state            TEXT NOT NULL,
			cycle_start_date TEXT,
			current_step     INTEGER NOT NULL DEFAULT 1,
			step_start_date  TEXT,
			sequence         TEXT NOT NULL DEFAULT '[]',
			output_point_id  TEXT,
			output_role      TEXT,
			inputs           TEXT NOT NULL DEFAULT '[]',
			created_at       TEXT NOT NULL,
			updated_at       TEXT NOT NULL
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

func TestSQLiteRepository_SaveAndGet(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	c := validCycle()
	c.State = StateSavedActive
	c.CycleStartDate = time.Date(2026, 8, 1, 6, 0, 0, 0, time.UTC)
	c.StepStartDate = c.CycleStartDate
	c.CurrentStep = 1

	if err := repo.Save(ctx, c); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if got.State != StateSavedActive {
		t.Errorf("State = %s, want SAVED_ACTIVE", got.State)
	}
	if len(got.Sequence) != 2 || got.Sequence[1].DurationDays != 7 {
		t.Errorf("Sequence = %+v, want two steps with 7-day second", got.Sequence)
	}
	if got.Output == nil || got.Output.PointID != "ro1" || got.Output.Role != RolePrimaryActuator {
		t.Errorf("Output = %+v, want ro1/%s", got.Output, RolePrimaryActuator)
	}
	if len(got.Inputs) != 2 {
		t.Errorf("Inputs = %+v, want 2", got.Inputs)
	}
	if !got.CycleStartDate.Equal(c.CycleStartDate) {
		t.Errorf("CycleStartDate = %v, want %v", got.CycleStartDate, c.CycleStartDate)
	}
}

func TestSQLiteRepository_Save_NoOutput(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	c := validCycle()
	c.Output = nil
	if err := repo.Save(ctx, c); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Output != nil {
		t.Errorf("Output = %+v, want nil", got.Output)
	}
}

func TestSQLiteRepository_Save_RejectsInvalid(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	c := validCycle()
	c.Inputs = append(c.Inputs, Association{PointID: "ai3", Role: RoleAutopilotControl})
	if err := repo.Save(context.Background(), c); !errors.Is(err, ErrInvalidCycle) {
		t.Errorf("Save() error = %v, want ErrInvalidCycle", err)
	}
}

func TestSQLiteRepository_Get_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_ListByState(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	active := validCycle()
	active.ID = "c-active"
	active.State = StateSavedActive
	paused := validCycle()
	paused.ID = "c-paused"
	paused.State = StatePaused

	for _, c := range []*ActiveCycle{active, paused} {
		if err := repo.Save(ctx, c); err != nil {
			t.Fatalf("Save(%s) error = %v", c.ID, err)
		}
	}

	got, err := repo.ListByState(ctx, StateSavedActive)
	if err != nil {
		t.Fatalf("ListByState() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "c-active" {
		t.Errorf("ListByState() = %+v, want only c-active", got)
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Save(ctx, validCycle()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := repo.Delete(ctx, "c1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.Get(ctx, "c1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, "c1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() on missing error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_ReferencedInstanceIDs(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	a := validCycle()
	a.ID = "ca"
	b := validCycle()
	b.ID = "cb"
	b.Sequence = []Step{{Step: 1, ScheduleInstanceID: "inst-3", DurationDays: 3}}

	for _, c := range []*ActiveCycle{a, b} {
		if err := repo.Save(ctx, c); err != nil {
			t.Fatalf("Save(%s) error = %v", c.ID, err)
		}
	}

	referenced, err := repo.ReferencedInstanceIDs(ctx)
	if err != nil {
		t.Fatalf("ReferencedInstanceIDs() error = %v", err)
	}

	for _, want := range []string{"inst-1", "inst-2", "inst-3"} {
		if _, ok := referenced[want]; !ok {
			t.Errorf("missing referenced instance %s", want)
		}
	}
	if len(referenced) != 3 {
		t.Errorf("referenced count = %d, want 3", len(referenced))
	}
}
