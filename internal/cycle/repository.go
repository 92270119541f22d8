package cycle

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for cycle persistence.
type Repository interface {
	Get(ctx context.Context, id string) (*ActiveCycle, error)
	List(ctx context.Context) ([]ActiveCycle, error)
	ListByState(ctx context.Context, state State) ([]ActiveCycle, error)
	Save(ctx context.Context, c *ActiveCycle) error
	Delete(ctx context.Context, id string) error

	// ReferencedInstanceIDs returns every schedule instance ID bound to
	// any cycle step. Feeds the schedule janitor.
	ReferencedInstanceIDs(ctx context.Context) (map[string]struct{}, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const cycleColumns = `id, name, state, cycle_start_date, current_step, step_start_date,
	sequence, output_point_id, output_role, inputs, created_at, updated_at`

// Get retrieves a cycle by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*ActiveCycle, error) {
	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM cycles WHERE id = ?", cycleColumns), id)

	c, err := scanCycleRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("querying cycle: %w", err)
	}
	return c, nil
}

// List retrieves all cycles ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]ActiveCycle, error) {
	return r.list(ctx, fmt.Sprintf("SELECT %s FROM cycles ORDER BY name", cycleColumns))
}

// ListByState retrieves all cycles in the given state.
func (r *SQLiteRepository) ListByState(ctx context.Context, state State) ([]ActiveCycle, error) {
	return r.list(ctx,
		fmt.Sprintf("SELECT %s FROM cycles WHERE state = ? ORDER BY name", cycleColumns),
		string(state))
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]ActiveCycle, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying cycles: %w", err)
	}
	defer rows.Close()

	var cycles []ActiveCycle
	for rows.Next() {
		c, scanErr := scanCycleRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning cycle: %w", scanErr)
		}
		cycles = append(cycles, *c)
	}
	return cycles, rows.Err()
}

// Save validates and upserts a cycle.
func (r *SQLiteRepository) Save(ctx context.Context, c *ActiveCycle) error {
	if err := c.Validate(); err != nil {
		return err
	}

	sequenceJSON, err := json.Marshal(c.Sequence)
	if err != nil {
		return fmt.Errorf("marshalling sequence: %w", err)
	}
	inputsJSON, err := json.Marshal(c.Inputs)
	if err != nil {
		return fmt.Errorf("marshalling inputs: %w", err)
	}

	var outputPointID, outputRole sql.NullString
	if c.Output != nil {
		outputPointID = sql.NullString{String: c.Output.PointID, Valid: true}
		outputRole = sql.NullString{String: c.Output.Role, Valid: true}
	}

	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	query := `
		INSERT INTO cycles
			(id, name, state, cycle_start_date, current_step, step_start_date,
			 sequence, output_point_id, output_role, inputs, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			state = excluded.state,
			cycle_start_date = excluded.cycle_start_date,
			current_step = excluded.current_step,
			step_start_date = excluded.step_start_date,
			sequence = excluded.sequence,
			output_point_id = excluded.output_point_id,
			output_role = excluded.output_role,
			inputs = excluded.inputs,
			updated_at = excluded.updated_at`

	_, err = r.db.ExecContext(ctx, query,
		c.ID, c.Name, string(c.State),
		nullableTime(c.CycleStartDate), c.CurrentStep, nullableTime(c.StepStartDate),
		string(sequenceJSON), outputPointID, outputRole, string(inputsJSON),
		c.CreatedAt.Format(time.RFC3339), c.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving cycle: %w", err)
	}
	return nil
}

// Delete removes a cycle record.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM cycles WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting cycle: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// ReferencedInstanceIDs collects every schedule instance ID bound to a
// cycle step across all cycles.
func (r *SQLiteRepository) ReferencedInstanceIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT sequence FROM cycles")
	if err != nil {
		return nil, fmt.Errorf("querying cycle sequences: %w", err)
	}
	defer rows.Close()

	referenced := make(map[string]struct{})
	for rows.Next() {
		var sequenceJSON string
		if err := rows.Scan(&sequenceJSON); err != nil {
			return nil, fmt.Errorf("scanning sequence: %w", err)
		}
		var sequence []Step
		if err := json.Unmarshal([]byte(sequenceJSON), &sequence); err != nil {
			return nil, fmt.Errorf("unmarshalling sequence: %w", err)
		}
		for _, step := range sequence {
			if step.ScheduleInstanceID != "" {
				referenced[step.ScheduleInstanceID] = struct{}{}
			}
		}
	}
	return referenced, rows.Err()
}

// ─── Row Scanning Helpers ───────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCycleRow(scanner rowScanner) (*ActiveCycle, error) {
	var c ActiveCycle
	var state string
	var cycleStart, stepStart, outputPointID, outputRole sql.NullString
	var sequenceJSON, inputsJSON string
	var createdAt, updatedAt string

	err := scanner.Scan(
		&c.ID, &c.Name, &state,
		&cycleStart, &c.CurrentStep, &stepStart,
		&sequenceJSON, &outputPointID, &outputRole, &inputsJSON,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.State = State(state)
	if err := json.Unmarshal([]byte(sequenceJSON), &c.Sequence); err != nil {
		return nil, fmt.Errorf("unmarshalling sequence: %w", err)
	}
	if err := json.Unmarshal([]byte(inputsJSON), &c.Inputs); err != nil {
		return nil, fmt.Errorf("unmarshalling inputs: %w", err)
	}

	if outputPointID.Valid {
		c.Output = &Association{PointID: outputPointID.String, Role: outputRole.String}
	}

	c.CycleStartDate = parseNullableTime(cycleStart)
	c.StepStartDate = parseNullableTime(stepStart)
	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		c.CreatedAt = t
	}
	if t, parseErr := time.Parse(time.RFC3339, updatedAt); parseErr == nil {
		c.UpdatedAt = t
	}

	return &c, nil
}

func nullableTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func parseNullableTime(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}
