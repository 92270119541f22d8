package point

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for point configuration persistence.
// This abstraction allows different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// Output definitions
	GetOutput(ctx context.Context, pointID string) (*OutputDefinition, error)
	ListOutputs(ctx context.Context) ([]OutputDefinition, error)
	SaveOutput(ctx context.Context, def *OutputDefinition) error
	DeleteOutput(ctx context.Context, pointID string) error

	// Input configs
	GetInput(ctx context.Context, pointID string) (*InputConfig, error)
	ListInputs(ctx context.Context) ([]InputConfig, error)
	SaveInput(ctx context.Context, cfg *InputConfig) error
	DeleteInput(ctx context.Context, pointID string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetOutput retrieves an output definition by point ID.
func (r *SQLiteRepository) GetOutput(ctx context.Context, pointID string) (*OutputDefinition, error) {
	query := `SELECT point_id, assigned_type, config_values, created_at, updated_at
		FROM output_definitions WHERE point_id = ?`

	row := r.db.QueryRowContext(ctx, query, pointID)
	def, err := scanOutputRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOutputNotFound
		}
		return nil, fmt.Errorf("querying output definition: %w", err)
	}
	return def, nil
}

// ListOutputs retrieves all output definitions ordered by point ID.
func (r *SQLiteRepository) ListOutputs(ctx context.Context) ([]OutputDefinition, error) {
	query := `SELECT point_id, assigned_type, config_values, created_at, updated_at
		FROM output_definitions ORDER BY point_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying output definitions: %w", err)
	}
	defer rows.Close()

	var defs []OutputDefinition
	for rows.Next() {
		def, scanErr := scanOutputRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning output definition: %w", scanErr)
		}
		defs = append(defs, *def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating output definitions: %w", err)
	}
	return defs, nil
}

// SaveOutput inserts or replaces an output definition.
// Assigning a new type to an existing point is an update, not an error.
func (r *SQLiteRepository) SaveOutput(ctx context.Context, def *OutputDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	configJSON, err := json.Marshal(configOrEmpty(def.ConfigValues))
	if err != nil {
		return fmt.Errorf("marshalling config values: %w", err)
	}

	now := time.Now().UTC()
	if def.CreatedAt.IsZero() {
		def.CreatedAt = now
	}
	def.UpdatedAt = now

	query := `
		INSERT INTO output_definitions (point_id, assigned_type, config_values, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(point_id) DO UPDATE SET
			assigned_type = excluded.assigned_type,
			config_values = excluded.config_values,
			updated_at = excluded.updated_at`

	_, err = r.db.ExecContext(ctx, query,
		def.PointID,
		def.AssignedType,
		string(configJSON),
		def.CreatedAt.Format(time.RFC3339),
		def.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving output definition: %w", err)
	}
	return nil
}

// DeleteOutput removes an output definition by point ID.
func (r *SQLiteRepository) DeleteOutput(ctx context.Context, pointID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM output_definitions WHERE point_id = ?", pointID)
	if err != nil {
		return fmt.Errorf("deleting output definition: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrOutputNotFound
	}
	return nil
}

// GetInput retrieves an input config by point ID.
func (r *SQLiteRepository) GetInput(ctx context.Context, pointID string) (*InputConfig, error) {
	query := `SELECT point_id, name, unit, scale_min, scale_max, display_precision, created_at, updated_at
		FROM input_configs WHERE point_id = ?`

	row := r.db.QueryRowContext(ctx, query, pointID)
	cfg, err := scanInputRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInputNotFound
		}
		return nil, fmt.Errorf("querying input config: %w", err)
	}
	return cfg, nil
}

// ListInputs retrieves all input configs ordered by point ID.
func (r *SQLiteRepository) ListInputs(ctx context.Context) ([]InputConfig, error) {
	query := `SELECT point_id, name, unit, scale_min, scale_max, display_precision, created_at, updated_at
		FROM input_configs ORDER BY point_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying input configs: %w", err)
	}
	defer rows.Close()

	var configs []InputConfig
	for rows.Next() {
		cfg, scanErr := scanInputRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning input config: %w", scanErr)
		}
		configs = append(configs, *cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating input configs: %w", err)
	}
	return configs, nil
}

// SaveInput inserts or replaces an input config.
func (r *SQLiteRepository) SaveInput(ctx context.Context, cfg *InputConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now

	query := `
		INSERT INTO input_configs (point_id, name, unit, scale_min, scale_max, display_precision, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(point_id) DO UPDATE SET
			name = excluded.name,
			unit = excluded.unit,
			scale_min = excluded.scale_min,
			scale_max = excluded.scale_max,
			display_precision = excluded.display_precision,
			updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		cfg.PointID,
		cfg.Name,
		cfg.Unit,
		cfg.ScaleMin,
		cfg.ScaleMax,
		cfg.DisplayPrecision,
		cfg.CreatedAt.Format(time.RFC3339),
		cfg.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving input config: %w", err)
	}
	return nil
}

// DeleteInput removes an input config by point ID.
func (r *SQLiteRepository) DeleteInput(ctx context.Context, pointID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM input_configs WHERE point_id = ?", pointID)
	if err != nil {
		return fmt.Errorf("deleting input config: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrInputNotFound
	}
	return nil
}

// ─── Row Scanning Helpers ───────────────────────────────────────────────────

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanOutputRow(scanner rowScanner) (*OutputDefinition, error) {
	var d OutputDefinition
	var configJSON string
	var createdAt, updatedAt string

	err := scanner.Scan(&d.PointID, &d.AssignedType, &configJSON, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if configJSON != "" && configJSON != "{}" {
		if jsonErr := json.Unmarshal([]byte(configJSON), &d.ConfigValues); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling config values: %w", jsonErr)
		}
	}

	// Parse timestamps (stored as RFC3339)
	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		d.CreatedAt = t
	}
	if t, parseErr := time.Parse(time.RFC3339, updatedAt); parseErr == nil {
		d.UpdatedAt = t
	}

	return &d, nil
}

func scanInputRow(scanner rowScanner) (*InputConfig, error) {
	var c InputConfig
	var createdAt, updatedAt string

	err := scanner.Scan(
		&c.PointID,
		&c.Name,
		&c.Unit,
		&c.ScaleMin,
		&c.ScaleMax,
		&c.DisplayPrecision,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		c.CreatedAt = t
	}
	if t, parseErr := time.Parse(time.RFC3339, updatedAt); parseErr == nil {
		c.UpdatedAt = t
	}

	return &c, nil
}

func configOrEmpty(values map[string]any) map[string]any {
	if values == nil {
		return map[string]any{}
	}
	return values
}
