package point

import (
	"context"
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides point configuration with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups,
// which matters because the engine resolves output definitions every tick.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by cache-invalidating save/delete operations.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	outputs map[string]*OutputDefinition // Cached definitions by point ID
	inputs  map[string]*InputConfig      // Cached input configs by point ID
	cacheMu sync.RWMutex                 // Protects both caches
	logger  Logger
}

// NewRegistry creates a new point registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:    repo,
		outputs: make(map[string]*OutputDefinition),
		inputs:  make(map[string]*InputConfig),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all point configuration from the repository.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	outputs, err := r.repo.ListOutputs(ctx)
	if err != nil {
		return fmt.Errorf("loading output definitions: %w", err)
	}
	inputs, err := r.repo.ListInputs(ctx)
	if err != nil {
		return fmt.Errorf("loading input configs: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	// Clear and rebuild caches with deep copies
	r.outputs = make(map[string]*OutputDefinition, len(outputs))
	for i := range outputs {
		d := outputs[i]
		r.outputs[d.PointID] = d.DeepCopy()
	}
	r.inputs = make(map[string]*InputConfig, len(inputs))
	for i := range inputs {
		c := inputs[i]
		r.inputs[c.PointID] = &c
	}

	r.logger.Info("point cache refreshed", "outputs", len(outputs), "inputs", len(inputs))
	return nil
}

// GetOutput retrieves an output definition by point ID.
// Returns ErrOutputNotFound if the point has no definition.
// The returned definition is a deep copy; callers can safely modify it.
func (r *Registry) GetOutput(ctx context.Context, pointID string) (*OutputDefinition, error) {
	// Try cache first
	r.cacheMu.RLock()
	cached, ok := r.outputs[pointID]
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}

	// Fall back to repository (might be a new definition not yet cached)
	def, err := r.repo.GetOutput(ctx, pointID)
	if err != nil {
		return nil, err
	}

	// Cache for future lookups (store a deep copy)
	r.cacheMu.Lock()
	r.outputs[pointID] = def.DeepCopy()
	r.cacheMu.Unlock()

	return def, nil
}

// ListOutputs retrieves all output definitions.
// The returned definitions are deep copies; callers can safely modify them.
func (r *Registry) ListOutputs(ctx context.Context) ([]OutputDefinition, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	// Return from cache if populated
	if len(r.outputs) > 0 {
		defs := make([]OutputDefinition, 0, len(r.outputs))
		for _, d := range r.outputs {
			defs = append(defs, *d.DeepCopy())
		}
		return defs, nil
	}

	// Fall back to repository
	return r.repo.ListOutputs(ctx)
}

// SaveOutput validates and persists an output definition, then updates
// the cache.
func (r *Registry) SaveOutput(ctx context.Context, def *OutputDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	if err := r.repo.SaveOutput(ctx, def); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.outputs[def.PointID] = def.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("output definition saved", "point_id", def.PointID, "assigned_type", def.AssignedType)
	return nil
}

// DeleteOutput removes an output definition and evicts it from the cache.
func (r *Registry) DeleteOutput(ctx context.Context, pointID string) error {
	if err := r.repo.DeleteOutput(ctx, pointID); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.outputs, pointID)
	r.cacheMu.Unlock()

	r.logger.Info("output definition deleted", "point_id", pointID)
	return nil
}

// GetInput retrieves an input config by point ID.
// Returns ErrInputNotFound if the point has no config.
func (r *Registry) GetInput(ctx context.Context, pointID string) (*InputConfig, error) {
	r.cacheMu.RLock()
	cached, ok := r.inputs[pointID]
	r.cacheMu.RUnlock()

	if ok {
		copied := *cached
		return &copied, nil
	}

	cfg, err := r.repo.GetInput(ctx, pointID)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	stored := *cfg
	r.inputs[pointID] = &stored
	r.cacheMu.Unlock()

	return cfg, nil
}

// ListInputs retrieves all input configs.
func (r *Registry) ListInputs(ctx context.Context) ([]InputConfig, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	if len(r.inputs) > 0 {
		configs := make([]InputConfig, 0, len(r.inputs))
		for _, c := range r.inputs {
			configs = append(configs, *c)
		}
		return configs, nil
	}

	return r.repo.ListInputs(ctx)
}

// SaveInput validates and persists an input config, then updates the cache.
func (r *Registry) SaveInput(ctx context.Context, cfg *InputConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := r.repo.SaveInput(ctx, cfg); err != nil {
		return err
	}

	r.cacheMu.Lock()
	stored := *cfg
	r.inputs[cfg.PointID] = &stored
	r.cacheMu.Unlock()

	return nil
}

// DeleteInput removes an input config and evicts it from the cache.
func (r *Registry) DeleteInput(ctx context.Context, pointID string) error {
	if err := r.repo.DeleteInput(ctx, pointID); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.inputs, pointID)
	r.cacheMu.Unlock()

	return nil
}
