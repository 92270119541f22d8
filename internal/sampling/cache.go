package sampling

import (
	"sync"
	"time"
)

// Status classifies the freshness of a point's latest reading.
type Status int

const (
	// StatusOK means a fresh reading is available.
	StatusOK Status = iota

	// StatusStale means the latest reading is older than the staleness
	// horizon. Autopilot must not act on stale readings.
	StatusStale

	// StatusError means the sampling hardware reported a fault for the
	// point.
	StatusError

	// StatusNoData means no reading has ever been received.
	StatusNoData
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusStale:
		return "stale"
	case StatusError:
		return "error"
	case StatusNoData:
		return "no_data"
	default:
		return "unknown"
	}
}

// Sample is one analogue reading for an input point.
type Sample struct {
	PointID   string
	Value     float64
	Timestamp time.Time
}

// Logger defines the logging interface used by the Cache.
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

// Cache holds the latest reading per input point. Readings arrive over
// MQTT from the sampling subsystem; the control engine reads them every
// tick. Freshness is evaluated at read time against the staleness horizon,
// so a point whose feed goes quiet degrades to stale without any sweeper.
//
// All methods are safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	samples map[string]Sample
	faults  map[string]bool

	maxAge time.Duration
	now    func() time.Time
	logger Logger
}

// NewCache creates a sample cache with the given staleness horizon.
func NewCache(maxAge time.Duration) *Cache {
	return &Cache{
		samples: make(map[string]Sample),
		faults:  make(map[string]bool),
		maxAge:  maxAge,
		now:     time.Now,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the cache.
func (c *Cache) SetLogger(logger Logger) {
	c.logger = logger
}

// SetNowFunc overrides the clock. Intended for tests.
func (c *Cache) SetNowFunc(now func() time.Time) {
	c.now = now
}

// Record stores a reading for a point. A zero timestamp is stamped with
// the current time.
func (c *Cache) Record(pointID string, value float64, ts time.Time) {
	if ts.IsZero() {
		ts = c.now()
	}

	c.mu.Lock()
	c.samples[pointID] = Sample{PointID: pointID, Value: value, Timestamp: ts}
	// A fresh reading clears a previously reported fault
	delete(c.faults, pointID)
	c.mu.Unlock()
}

// RecordFault marks or clears a hardware-reported fault for a point.
// While faulted the point reports StatusError regardless of sample age.
func (c *Cache) RecordFault(pointID string, faulted bool) {
	c.mu.Lock()
	if faulted {
		c.faults[pointID] = true
	} else {
		delete(c.faults, pointID)
	}
	c.mu.Unlock()

	if faulted {
		c.logger.Warn("input point reported fault", "point_id", pointID)
	}
}

// CurrentValue returns the latest reading and its status. The value is
// only meaningful when the status is StatusOK.
func (c *Cache) CurrentValue(pointID string) (float64, Status) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.faults[pointID] {
		return 0, StatusError
	}

	sample, ok := c.samples[pointID]
	if !ok {
		return 0, StatusNoData
	}
	if c.now().Sub(sample.Timestamp) > c.maxAge {
		return sample.Value, StatusStale
	}
	return sample.Value, StatusOK
}

// CurrentStatus returns the freshness status for a point.
func (c *Cache) CurrentStatus(pointID string) Status {
	_, status := c.CurrentValue(pointID)
	return status
}

// Snapshot returns a copy of all cached samples, keyed by point ID.
func (c *Cache) Snapshot() map[string]Sample {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Sample, len(c.samples))
	for id, s := range c.samples {
		out[id] = s
	}
	return out
}
