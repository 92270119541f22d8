package cycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InstanceDeleter is the slice of the schedule store the manager needs for
// cascade deletion.
type InstanceDeleter interface {
	DeleteInstance(ctx context.Context, id string) error
}

// TransitionObserver is notified after every persisted state transition.
type TransitionObserver func(cycleID string, from, to State)

// Logger defines the logging interface used by the cycle package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Manager owns the in-memory set of live cycles and their lifecycle
// transitions. Every mutation is persisted before it takes effect in
// memory; completed and errored cycles are evicted from the set but keep
// their persisted record.
//
// Autopilot activation memory lives here too. It is deliberately never
// persisted: a restart clears it, which is a known gap (a dose right
// before a restart can be followed by a second dose sooner than the
// settling time intends).
type Manager struct {
	repo      Repository
	instances InstanceDeleter
	logger    Logger

	mu     sync.RWMutex
	cycles map[string]*ActiveCycle

	activationMu   sync.Mutex
	lastActivation map[string]time.Time

	observerMu sync.RWMutex
	observers  []TransitionObserver
}

// NewManager creates a cycle manager.
func NewManager(repo Repository, instances InstanceDeleter) *Manager {
	return &Manager{
		repo:           repo,
		instances:      instances,
		logger:         noopLogger{},
		cycles:         make(map[string]*ActiveCycle),
		lastActivation: make(map[string]time.Time),
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// AddTransitionObserver registers a transition observer.
func (m *Manager) AddTransitionObserver(obs TransitionObserver) {
	m.observerMu.Lock()
	m.observers = append(m.observers, obs)
	m.observerMu.Unlock()
}

// LoadAll populates the in-memory set from persistence. Terminal cycles
// are not resident. Call once on startup before the engine begins.
func (m *Manager) LoadAll(ctx context.Context) error {
	cycles, err := m.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading cycles: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cycles = make(map[string]*ActiveCycle, len(cycles))
	for i := range cycles {
		c := cycles[i]
		if c.State == StateCompleted || c.State == StateError {
			continue
		}
		m.cycles[c.ID] = c.DeepCopy()
	}

	m.logger.Info("cycles loaded", "resident", len(m.cycles), "total", len(cycles))
	return nil
}

// Create persists a new draft cycle.
func (m *Manager) Create(ctx context.Context, name string) (*ActiveCycle, error) {
	c := &ActiveCycle{
		ID:    uuid.NewString(),
		Name:  name,
		State: StateDraft,
	}
	if err := m.repo.Save(ctx, c); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.cycles[c.ID] = c.DeepCopy()
	m.mu.Unlock()

	m.logger.Info("cycle created", "cycle_id", c.ID, "name", name)
	return c.DeepCopy(), nil
}

// Get returns a copy of a cycle, from memory if resident.
func (m *Manager) Get(ctx context.Context, id string) (*ActiveCycle, error) {
	m.mu.RLock()
	resident, ok := m.cycles[id]
	m.mu.RUnlock()
	if ok {
		return resident.DeepCopy(), nil
	}
	return m.repo.Get(ctx, id)
}

// List returns copies of all persisted cycles.
func (m *Manager) List(ctx context.Context) ([]ActiveCycle, error) {
	return m.repo.List(ctx)
}

// Save validates and persists a cycle's configuration.
func (m *Manager) Save(ctx context.Context, c *ActiveCycle) error {
	if err := m.repo.Save(ctx, c); err != nil {
		return err
	}

	m.mu.Lock()
	if c.State == StateCompleted || c.State == StateError {
		delete(m.cycles, c.ID)
	} else {
		m.cycles[c.ID] = c.DeepCopy()
	}
	m.mu.Unlock()
	return nil
}

// Delete removes a cycle, its schedule instances and its activation
// memory. Instance deletion failures are logged, not fatal; the janitor
// sweeps leftovers.
func (m *Manager) Delete(ctx context.Context, id string) error {
	c, err := m.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := m.repo.Delete(ctx, id); err != nil {
		return err
	}

	for _, step := range c.Sequence {
		if step.ScheduleInstanceID == "" {
			continue
		}
		if err := m.instances.DeleteInstance(ctx, step.ScheduleInstanceID); err != nil {
			m.logger.Warn("failed to delete schedule instance",
				"cycle_id", id, "instance", step.ScheduleInstanceID, "error", err)
		}
	}

	m.mu.Lock()
	delete(m.cycles, id)
	m.mu.Unlock()
	m.ClearActivation(id)

	m.logger.Info("cycle deleted", "cycle_id", id)
	return nil
}

// EvaluationSet returns copies of all resident cycles in StateSavedActive.
func (m *Manager) EvaluationSet() []*ActiveCycle {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*ActiveCycle
	for _, c := range m.cycles {
		if c.State == StateSavedActive {
			out = append(out, c.DeepCopy())
		}
	}
	return out
}

// ─── Lifecycle Transitions ──────────────────────────────────────────────────

// Activate moves a cycle into StateSavedActive. First activation stamps
// the cycle and step start dates; resuming from pause keeps them.
func (m *Manager) Activate(ctx context.Context, id string) error {
	return m.transition(ctx, id, StateSavedActive, func(c *ActiveCycle) {
		if c.CycleStartDate.IsZero() {
			now := time.Now().UTC()
			c.CycleStartDate = now
			c.StepStartDate = now
			c.CurrentStep = 1
		}
	})
}

// Deactivate pauses an active cycle.
func (m *Manager) Deactivate(ctx context.Context, id string) error {
	return m.transition(ctx, id, StatePaused, nil)
}

// Complete terminates a cycle normally and evicts it from evaluation.
func (m *Manager) Complete(ctx context.Context, id string) error {
	return m.transition(ctx, id, StateCompleted, nil)
}

// MarkError moves a cycle into StateError, evicting it from evaluation.
// Reachable from any state.
func (m *Manager) MarkError(ctx context.Context, id string, reason string) error {
	m.logger.Error("cycle entered error state", "cycle_id", id, "reason", reason)
	return m.transition(ctx, id, StateError, nil)
}

// AdvanceStep moves an active cycle to its next step, stamping the step
// start. The caller decides whether a next step exists.
func (m *Manager) AdvanceStep(ctx context.Context, id string, now time.Time) (*ActiveCycle, error) {
	m.mu.Lock()
	c, ok := m.cycles[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	updated := c.DeepCopy()
	m.mu.Unlock()

	updated.CurrentStep++
	updated.StepStartDate = now

	if err := m.repo.Save(ctx, updated); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.cycles[id] = updated.DeepCopy()
	m.mu.Unlock()

	m.logger.Info("cycle advanced to next step", "cycle_id", id, "step", updated.CurrentStep)
	return updated, nil
}

func (m *Manager) transition(ctx context.Context, id string, to State, mutate func(*ActiveCycle)) error {
	c, err := m.Get(ctx, id)
	if err != nil {
		return err
	}

	from := c.State
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	c.State = to
	if mutate != nil {
		mutate(c)
	}

	if err := m.repo.Save(ctx, c); err != nil {
		return err
	}

	m.mu.Lock()
	if to == StateCompleted || to == StateError {
		delete(m.cycles, id)
	} else {
		m.cycles[id] = c.DeepCopy()
	}
	m.mu.Unlock()

	if to == StateCompleted || to == StateError {
		m.ClearActivation(id)
	}

	m.logger.Info("cycle state changed", "cycle_id", id, "from", string(from), "to", string(to))
	m.notifyTransition(id, from, to)
	return nil
}

func (m *Manager) notifyTransition(id string, from, to State) {
	m.observerMu.RLock()
	observers := m.observers
	m.observerMu.RUnlock()
	for _, obs := range observers {
		obs(id, from, to)
	}
}

// ─── Autopilot Activation Memory ────────────────────────────────────────────

// RecordActivation stores the time of the latest autopilot dose for a
// cycle.
func (m *Manager) RecordActivation(id string, t time.Time) {
	m.activationMu.Lock()
	m.lastActivation[id] = t
	m.activationMu.Unlock()
}

// LastActivation returns the latest autopilot dose time for a cycle.
func (m *Manager) LastActivation(id string) (time.Time, bool) {
	m.activationMu.Lock()
	defer m.activationMu.Unlock()
	t, ok := m.lastActivation[id]
	return t, ok
}

// ClearActivation forgets the activation memory for a cycle.
func (m *Manager) ClearActivation(id string) {
	m.activationMu.Lock()
	delete(m.lastActivation, id)
	m.activationMu.Unlock()
}

// ClearAllActivations forgets all activation memory. Called on startup;
// activation memory never survives a restart.
func (m *Manager) ClearAllActivations() {
	m.activationMu.Lock()
	m.lastActivation = make(map[string]time.Time)
	m.activationMu.Unlock()
}
