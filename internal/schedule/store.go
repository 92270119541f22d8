package schedule

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/verdant-core/internal/point"
)

// Logger defines the logging interface used by the Store.
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

// Store persists schedule templates and instances in SQLite.
//
// Templates are the editable library. Instances are immutable copies taken
// when a cycle step is bound to a template; creating an instance locks the
// template against further edits so running cycles never see their
// schedule change underneath them.
type Store struct {
	db     *sql.DB
	logger Logger
}

// NewStore creates a schedule store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, logger: noopLogger{}}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// ─── Templates ──────────────────────────────────────────────────────────────

// SaveTemplate validates and upserts a template. A template that has been
// locked by instance creation rejects further saves.
func (s *Store) SaveTemplate(ctx context.Context, tmpl *Schedule) error {
	if tmpl.UID == "" {
		tmpl.UID = uuid.NewString()
	}
	tmpl.Normalize()
	if err := tmpl.Validate(); err != nil {
		return err
	}

	locked, err := s.templateLocked(ctx, tmpl.UID)
	if err != nil && !errors.Is(err, ErrTemplateNotFound) {
		return err
	}
	if locked {
		return fmt.Errorf("%w: %s", ErrTemplateLocked, tmpl.UID)
	}

	windows, durations, volumes, err := marshalEvents(tmpl)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		INSERT INTO schedule_templates
			(uid, name, lights_on_time, lights_off_time, autopilot_windows, duration_events, volume_events, locked, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			name = excluded.name,
			lights_on_time = excluded.lights_on_time,
			lights_off_time = excluded.lights_off_time,
			autopilot_windows = excluded.autopilot_windows,
			duration_events = excluded.duration_events,
			volume_events = excluded.volume_events,
			updated_at = excluded.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		tmpl.UID, tmpl.Name, tmpl.LightsOnTime, tmpl.LightsOffTime,
		windows, durations, volumes, now, now,
	)
	if err != nil {
		return fmt.Errorf("saving template: %w", err)
	}

	s.logger.Info("schedule template saved", "uid", tmpl.UID, "name", tmpl.Name)
	return nil
}

// GetTemplate retrieves a template by UID.
func (s *Store) GetTemplate(ctx context.Context, uid string) (*Schedule, error) {
	query := `SELECT uid, name, lights_on_time, lights_off_time, autopilot_windows, duration_events, volume_events
		FROM schedule_templates WHERE uid = ?`

	var tmpl Schedule
	var windows, durations, volumes string
	err := s.db.QueryRowContext(ctx, query, uid).Scan(
		&tmpl.UID, &tmpl.Name, &tmpl.LightsOnTime, &tmpl.LightsOffTime,
		&windows, &durations, &volumes,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, uid)
		}
		return nil, fmt.Errorf("querying template: %w", err)
	}

	if err := unmarshalEvents(&tmpl, windows, durations, volumes); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// ListTemplates retrieves all templates ordered by name.
func (s *Store) ListTemplates(ctx context.Context) ([]Schedule, error) {
	query := `SELECT uid, name, lights_on_time, lights_off_time, autopilot_windows, duration_events, volume_events
		FROM schedule_templates ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying templates: %w", err)
	}
	defer rows.Close()

	var templates []Schedule
	for rows.Next() {
		var tmpl Schedule
		var windows, durations, volumes string
		if err := rows.Scan(&tmpl.UID, &tmpl.Name, &tmpl.LightsOnTime, &tmpl.LightsOffTime,
			&windows, &durations, &volumes); err != nil {
			return nil, fmt.Errorf("scanning template: %w", err)
		}
		if err := unmarshalEvents(&tmpl, windows, durations, volumes); err != nil {
			return nil, err
		}
		templates = append(templates, tmpl)
	}
	return templates, rows.Err()
}

// DeleteTemplate removes an unlocked template.
func (s *Store) DeleteTemplate(ctx context.Context, uid string) error {
	locked, err := s.templateLocked(ctx, uid)
	if err != nil {
		return err
	}
	if locked {
		return fmt.Errorf("%w: %s", ErrTemplateLocked, uid)
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM schedule_templates WHERE uid = ?", uid); err != nil {
		return fmt.Errorf("deleting template: %w", err)
	}
	return nil
}

func (s *Store) templateLocked(ctx context.Context, uid string) (bool, error) {
	var locked bool
	err := s.db.QueryRowContext(ctx, "SELECT locked FROM schedule_templates WHERE uid = ?", uid).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("%w: %s", ErrTemplateNotFound, uid)
	}
	if err != nil {
		return false, fmt.Errorf("querying template lock: %w", err)
	}
	return locked, nil
}

// ─── Instances ──────────────────────────────────────────────────────────────

// CreateInstance copies a template into an immutable instance bound to the
// given output, pre-computing volume event durations against the output's
// flow rate. A volume event whose duration cannot be resolved gets a zero
// duration and is skipped at runtime with a warning.
//
// Creating an instance locks the source template.
func (s *Store) CreateInstance(ctx context.Context, templateUID string, output *point.OutputDefinition) (*Instance, error) {
	tmpl, err := s.GetTemplate(ctx, templateUID)
	if err != nil {
		return nil, err
	}

	inst := &Instance{
		ID:          uuid.NewString(),
		TemplateUID: templateUID,
		Schedule:    *tmpl.DeepCopy(),
		CreatedAt:   time.Now().UTC(),
	}

	for i := range inst.VolumeEvents {
		inst.VolumeEvents[i].CalculatedDurationSeconds = volumeDurationSeconds(inst.VolumeEvents[i].DoseVolume, output)
		if inst.VolumeEvents[i].CalculatedDurationSeconds == 0 {
			s.logger.Warn("volume event has no resolvable duration",
				"template", templateUID, "start_minute", inst.VolumeEvents[i].StartTime)
		}
	}

	windows, durations, volumes, err := marshalEvents(&inst.Schedule)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO schedule_instances
			(id, template_uid, name, lights_on_time, lights_off_time, autopilot_windows, duration_events, volume_events, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inst.ID, inst.TemplateUID, inst.Name, inst.LightsOnTime, inst.LightsOffTime,
		windows, durations, volumes, inst.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting instance: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "UPDATE schedule_templates SET locked = 1 WHERE uid = ?", templateUID); err != nil {
		return nil, fmt.Errorf("locking template: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing instance: %w", err)
	}

	s.logger.Info("schedule instance created", "instance", inst.ID, "template", templateUID)
	return inst, nil
}

// GetInstance retrieves an instance by ID.
func (s *Store) GetInstance(ctx context.Context, id string) (*Instance, error) {
	query := `SELECT id, template_uid, name, lights_on_time, lights_off_time, autopilot_windows, duration_events, volume_events, created_at
		FROM schedule_instances WHERE id = ?`

	var inst Instance
	var windows, durations, volumes, createdAt string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&inst.ID, &inst.TemplateUID, &inst.Name, &inst.LightsOnTime, &inst.LightsOffTime,
		&windows, &durations, &volumes, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
		}
		return nil, fmt.Errorf("querying instance: %w", err)
	}

	if err := unmarshalEvents(&inst.Schedule, windows, durations, volumes); err != nil {
		return nil, err
	}
	inst.UID = inst.TemplateUID
	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		inst.CreatedAt = t
	}
	return &inst, nil
}

// DeleteInstance removes an instance by ID.
func (s *Store) DeleteInstance(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM schedule_instances WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting instance: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	}
	return nil
}

// InstanceIDs returns the IDs of all stored instances.
func (s *Store) InstanceIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM schedule_instances")
	if err != nil {
		return nil, fmt.Errorf("querying instance ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning instance id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// volumeDurationSeconds converts litres to seconds against the output's
// flow rate. Returns 0 when the output cannot dose by volume or the flow
// rate is unconfigured.
func volumeDurationSeconds(litres float64, output *point.OutputDefinition) int {
	if output == nil || litres <= 0 {
		return 0
	}
	caps, err := output.Capabilities()
	if err != nil || !caps.SupportsVolume {
		return 0
	}
	flowLPM, ok := output.FlowRateLPM()
	if !ok {
		return 0
	}

	seconds := int(math.Round(litres / flowLPM * 60))
	if seconds <= 0 {
		return 0
	}
	return seconds
}

func marshalEvents(s *Schedule) (windows, durations, volumes string, err error) {
	w, err := json.Marshal(emptyIfNilWindows(s.AutopilotWindows))
	if err != nil {
		return "", "", "", fmt.Errorf("marshalling windows: %w", err)
	}
	d, err := json.Marshal(emptyIfNilDurations(s.DurationEvents))
	if err != nil {
		return "", "", "", fmt.Errorf("marshalling duration events: %w", err)
	}
	v, err := json.Marshal(emptyIfNilVolumes(s.VolumeEvents))
	if err != nil {
		return "", "", "", fmt.Errorf("marshalling volume events: %w", err)
	}
	return string(w), string(d), string(v), nil
}

func unmarshalEvents(s *Schedule, windows, durations, volumes string) error {
	if err := json.Unmarshal([]byte(windows), &s.AutopilotWindows); err != nil {
		return fmt.Errorf("unmarshalling windows: %w", err)
	}
	if err := json.Unmarshal([]byte(durations), &s.DurationEvents); err != nil {
		return fmt.Errorf("unmarshalling duration events: %w", err)
	}
	if err := json.Unmarshal([]byte(volumes), &s.VolumeEvents); err != nil {
		return fmt.Errorf("unmarshalling volume events: %w", err)
	}
	return nil
}

func emptyIfNilWindows(in []AutopilotWindow) []AutopilotWindow {
	if in == nil {
		return []AutopilotWindow{}
	}
	return in
}

func emptyIfNilDurations(in []DurationEvent) []DurationEvent {
	if in == nil {
		return []DurationEvent{}
	}
	return in
}

func emptyIfNilVolumes(in []VolumeEvent) []VolumeEvent {
	if in == nil {
		return []VolumeEvent{}
	}
	return in
}
