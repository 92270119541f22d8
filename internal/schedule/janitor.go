package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ReferencedInstanceIDs reports the set of instance IDs currently bound to
// any cycle step. Supplied by the cycle layer so the janitor stays free of
// a dependency on cycle persistence.
type ReferencedInstanceIDs func(ctx context.Context) (map[string]struct{}, error)

// Janitor deletes schedule instances no longer referenced by any cycle.
// Orphans appear when cycle deletion is interrupted between removing the
// cycle record and removing its instances.
type Janitor struct {
	store      *Store
	referenced ReferencedInstanceIDs
	cron       *cron.Cron
	logger     Logger
}

// NewJanitor creates a janitor sweeping on the given cron spec, e.g.
// "0 3 * * *" for a nightly 03:00 sweep.
func NewJanitor(store *Store, referenced ReferencedInstanceIDs, spec string) (*Janitor, error) {
	j := &Janitor{
		store:      store,
		referenced: referenced,
		cron:       cron.New(),
		logger:     noopLogger{},
	}

	if _, err := j.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := j.Sweep(ctx); err != nil {
			j.logger.Error("instance sweep failed", "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid janitor spec %q: %w", spec, err)
	}

	return j, nil
}

// SetLogger sets the logger for the janitor.
func (j *Janitor) SetLogger(logger Logger) {
	j.logger = logger
}

// Start begins the scheduled sweeps.
func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts scheduling and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// Sweep deletes all orphaned instances and returns how many were removed.
// Safe to call directly, e.g. once at startup.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	ids, err := j.store.InstanceIDs(ctx)
	if err != nil {
		return 0, err
	}

	referenced, err := j.referenced(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading referenced instances: %w", err)
	}

	removed := 0
	for _, id := range ids {
		if _, ok := referenced[id]; ok {
			continue
		}
		if err := j.store.DeleteInstance(ctx, id); err != nil {
			j.logger.Warn("failed to delete orphaned instance", "instance", id, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		j.logger.Info("orphaned schedule instances removed", "count", removed)
	}
	return removed, nil
}
