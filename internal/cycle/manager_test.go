package cycle

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeInstanceDeleter records deleted instance IDs.
type fakeInstanceDeleter struct {
	deleted []string
	fail    bool
}

func (f *fakeInstanceDeleter) DeleteInstance(_ context.Context, id string) error {
	if f.fail {
		return errors.New("boom")
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func newTestManager(t *testing.T) (*Manager, *fakeInstanceDeleter) {
	t.Helper()

	deleter := &fakeInstanceDeleter{}
	manager := NewManager(NewSQLiteRepository(setupTestDB(t)), deleter)
	return manager, deleter
}

// saveActivatable persists a cycle ready for activation.
func saveActivatable(t *testing.T, m *Manager, id string) {
	t.Helper()

	c := validCycle()
	c.ID = id
	c.State = StateSavedDormant
	if err := m.Save(context.Background(), c); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
}

func TestManager_CreateAndGet(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	c, err := manager.Create(ctx, "Veg Room A")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if c.State != StateDraft {
		t.Errorf("State = %s, want DRAFT", c.State)
	}
	if c.ID == "" {
		t.Error("Create() should assign an ID")
	}

	got, err := manager.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "Veg Room A" {
		t.Errorf("Name = %q, want Veg Room A", got.Name)
	}
}

func TestManager_ActivateStampsDates(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()
	saveActivatable(t, manager, "c1")

	before := time.Now().UTC()
	if err := manager.Activate(ctx, "c1"); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	got, err := manager.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.State != StateSavedActive {
		t.Errorf("State = %s, want SAVED_ACTIVE", got.State)
	}
	if got.CycleStartDate.Before(before) || got.CurrentStep != 1 {
		t.Errorf("activation should stamp start dates and step: %+v", got)
	}
}

func TestManager_PauseResumeKeepsDates(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()
	saveActivatable(t, manager, "c1")

	if err := manager.Activate(ctx, "c1"); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	started, _ := manager.Get(ctx, "c1")

	if err := manager.Deactivate(ctx, "c1"); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}
	if err := manager.Activate(ctx, "c1"); err != nil {
		t.Fatalf("re-Activate() error = %v", err)
	}

	resumed, _ := manager.Get(ctx, "c1")
	if !resumed.CycleStartDate.Equal(started.CycleStartDate) {
		t.Error("resume must not restamp the cycle start date")
	}
}

func TestManager_InvalidTransition(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	c, err := manager.Create(ctx, "Draft")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// DRAFT cannot go straight to SAVED_ACTIVE
	if err := manager.Activate(ctx, c.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Activate() from DRAFT error = %v, want ErrInvalidTransition", err)
	}
}

func TestManager_CompleteEvictsAndClearsActivation(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()
	saveActivatable(t, manager, "c1")

	if err := manager.Activate(ctx, "c1"); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	manager.RecordActivation("c1", time.Now())

	if err := manager.Complete(ctx, "c1"); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if set := manager.EvaluationSet(); len(set) != 0 {
		t.Errorf("EvaluationSet() = %d cycles after completion, want 0", len(set))
	}
	if _, ok := manager.LastActivation("c1"); ok {
		t.Error("activation memory should be cleared on completion")
	}

	// Record survives eviction
	got, err := manager.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("Get() after completion error = %v", err)
	}
	if got.State != StateCompleted {
		t.Errorf("State = %s, want COMPLETED", got.State)
	}
}

func TestManager_MarkErrorFromAnyState(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	c, err := manager.Create(ctx, "Doomed")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := manager.MarkError(ctx, c.ID, "test"); err != nil {
		t.Fatalf("MarkError() error = %v", err)
	}

	got, _ := manager.Get(ctx, c.ID)
	if got.State != StateError {
		t.Errorf("State = %s, want ERROR", got.State)
	}
}

func TestManager_DeleteCascadesInstances(t *testing.T) {
	manager, deleter := newTestManager(t)
	ctx := context.Background()
	saveActivatable(t, manager, "c1")

	manager.RecordActivation("c1", time.Now())
	if err := manager.Delete(ctx, "c1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if len(deleter.deleted) != 2 {
		t.Errorf("deleted %d instances, want 2 (inst-1, inst-2)", len(deleter.deleted))
	}
	if _, ok := manager.LastActivation("c1"); ok {
		t.Error("activation memory should be cleared on delete")
	}
	if _, err := manager.Get(ctx, "c1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
}

func TestManager_DeleteToleratesInstanceFailure(t *testing.T) {
	manager, deleter := newTestManager(t)
	deleter.fail = true
	ctx := context.Background()
	saveActivatable(t, manager, "c1")

	// Instance deletion failure is logged, not fatal; janitor sweeps later
	if err := manager.Delete(ctx, "c1"); err != nil {
		t.Errorf("Delete() error = %v, want nil despite instance failures", err)
	}
}

func TestManager_AdvanceStep(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()
	saveActivatable(t, manager, "c1")
	if err := manager.Activate(ctx, "c1"); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	now := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	advanced, err := manager.AdvanceStep(ctx, "c1", now)
	if err != nil {
		t.Fatalf("AdvanceStep() error = %v", err)
	}
	if advanced.CurrentStep != 2 {
		t.Errorf("CurrentStep = %d, want 2", advanced.CurrentStep)
	}
	if !advanced.StepStartDate.Equal(now) {
		t.Errorf("StepStartDate = %v, want %v", advanced.StepStartDate, now)
	}

	// Persisted, not just in memory
	got, _ := manager.Get(ctx, "c1")
	if got.CurrentStep != 2 {
		t.Errorf("persisted CurrentStep = %d, want 2", got.CurrentStep)
	}
}

func TestManager_TransitionObserver(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()
	saveActivatable(t, manager, "c1")

	type transition struct{ from, to State }
	var seen []transition
	manager.AddTransitionObserver(func(_ string, from, to State) {
		seen = append(seen, transition{from, to})
	})

	if err := manager.Activate(ctx, "c1"); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if err := manager.Deactivate(ctx, "c1"); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}

	want := []transition{
		{StateSavedDormant, StateSavedActive},
		{StateSavedActive, StatePaused},
	}
	if len(seen) != len(want) {
		t.Fatalf("observed %d transitions, want %d", len(seen), len(want))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("transition[%d] = %+v, want %+v", i, seen[i], want[i])
		}
	}
}

func TestManager_LoadAllSkipsTerminal(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	manager := NewManager(repo, &fakeInstanceDeleter{})
	ctx := context.Background()

	active := validCycle()
	active.ID = "c-active"
	active.State = StateSavedActive
	done := validCycle()
	done.ID = "c-done"
	done.State = StateCompleted

	for _, c := range []*ActiveCycle{active, done} {
		if err := repo.Save(ctx, c); err != nil {
			t.Fatalf("Save(%s) error = %v", c.ID, err)
		}
	}

	if err := manager.LoadAll(ctx); err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}

	set := manager.EvaluationSet()
	if len(set) != 1 || set[0].ID != "c-active" {
		t.Errorf("EvaluationSet() = %+v, want only c-active", set)
	}
}
