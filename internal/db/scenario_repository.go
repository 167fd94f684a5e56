package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/polycalc/internal/scenario"
)

// ErrScenarioNotFound is returned by Get for an unknown code.
var ErrScenarioNotFound = errors.New("scenario not found")

// ScenarioInfo is a listing row of a stored scenario.
type ScenarioInfo struct {
	Code      string    `json:"code"`
	VersionID string    `json:"versionId"`
	Views     int32     `json:"views"`
	CreatedAt time.Time `json:"createdAt"`
}

// ScenarioRepository manages the scenarios table.
type ScenarioRepository struct {
	db *pgxpool.Pool
}

// NewScenarioRepository creates a new ScenarioRepository.
func NewScenarioRepository(db *pgxpool.Pool) *ScenarioRepository {
	return &ScenarioRepository{db: db}
}

// Ping checks the connection, used by the health endpoint.
func (r *ScenarioRepository) Ping(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	return nil
}

// Save stores a scenario under its share code and returns the code.
// Saving the same scenario twice is a no-op.
func (r *ScenarioRepository) Save(ctx context.Context, sc scenario.Scenario) (string, error) {
	code, err := scenario.Code(sc)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(sc)
	if err != nil {
		return "", fmt.Errorf("encoding scenario %s: %w", code, err)
	}

	query := `
		INSERT INTO scenarios (code, version_id, body)
		VALUES ($1, $2, $3)
		ON CONFLICT (code) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query, code, sc.VersionID, body); err != nil {
		return "", fmt.Errorf("inserting scenario %s: %w", code, err)
	}
	return code, nil
}

// Get loads a scenario by code and counts the view.
func (r *ScenarioRepository) Get(ctx context.Context, code string) (*scenario.Scenario, error) {
	query := `
		UPDATE scenarios SET views = views + 1
		WHERE code = $1
		RETURNING body
	`

	var body []byte
	if err := r.db.QueryRow(ctx, query, code).Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrScenarioNotFound, code)
		}
		return nil, fmt.Errorf("querying scenario %s: %w", code, err)
	}

	var sc scenario.Scenario
	if err := json.Unmarshal(body, &sc); err != nil {
		return nil, fmt.Errorf("decoding scenario %s: %w", code, err)
	}
	return &sc, nil
}

// DefaultListLimit is used by ListRecent for a non-positive limit.
const DefaultListLimit = 20

// ListRecent returns the newest scenarios first.
func (r *ScenarioRepository) ListRecent(ctx context.Context, limit int) ([]ScenarioInfo, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT code, version_id, views, created_at
		FROM scenarios
		ORDER BY created_at DESC, code
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent scenarios: %w", err)
	}
	defer rows.Close()

	out := make([]ScenarioInfo, 0, limit)
	for rows.Next() {
		var info ScenarioInfo
		if err := rows.Scan(&info.Code, &info.VersionID, &info.Views, &info.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning scenario row: %w", err)
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scenario rows: %w", err)
	}
	return out, nil
}
