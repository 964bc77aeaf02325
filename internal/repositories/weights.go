package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/djx/internal/models"
)

// StoredWeight is one cached scope factor.
type StoredWeight struct {
	Scope     models.WeightScope
	Identity  string
	Factor    float64
	UpdatedAt time.Time
}

// WeightRepository caches the optimistic scope factors across restarts.
type WeightRepository struct {
	db *sql.DB
}

// NewWeightRepository creates a weight cache store.
func NewWeightRepository(db *sql.DB) *WeightRepository {
	return &WeightRepository{db: db}
}

// Upsert writes one factor, replacing any previous value for the identity.
func (r *WeightRepository) Upsert(scope models.WeightScope, identity string, factor float64) error {
	query := `
		INSERT INTO scope_weights (scope, identity, factor, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(scope, identity) DO UPDATE SET
			factor = excluded.factor,
			updated_at = excluded.updated_at
	`
	if _, err := r.db.Exec(query, string(scope), identity, factor, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to upsert weight: %w", err)
	}
	return nil
}

// Get reads one cached factor.
func (r *WeightRepository) Get(scope models.WeightScope, identity string) (*StoredWeight, error) {
	row := r.db.QueryRow(
		`SELECT scope, identity, factor, updated_at FROM scope_weights WHERE scope = ? AND identity = ?`,
		string(scope), identity,
	)

	var weight StoredWeight
	var scopeStr string
	if err := row.Scan(&scopeStr, &weight.Identity, &weight.Factor, &weight.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read weight: %w", err)
	}
	weight.Scope = models.WeightScope(scopeStr)
	return &weight, nil
}

// Factor reads one cached factor, reporting whether the identity was ever
// persisted. A fresh weight controller hydrates from this so edits continue
// from the last persisted value instead of restarting at 1.0.
func (r *WeightRepository) Factor(scope models.WeightScope, identity string) (float64, bool, error) {
	weight, err := r.Get(scope, identity)
	if err != nil {
		return 0, false, err
	}
	if weight == nil {
		return 0, false, nil
	}
	return weight.Factor, true, nil
}

// All returns every cached factor, most recently updated first.
func (r *WeightRepository) All() ([]StoredWeight, error) {
	rows, err := r.db.Query(
		`SELECT scope, identity, factor, updated_at FROM scope_weights ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list weights: %w", err)
	}
	defer rows.Close()

	var weights []StoredWeight
	for rows.Next() {
		var weight StoredWeight
		var scopeStr string
		if err := rows.Scan(&scopeStr, &weight.Identity, &weight.Factor, &weight.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan weight: %w", err)
		}
		weight.Scope = models.WeightScope(scopeStr)
		weights = append(weights, weight)
	}
	return weights, rows.Err()
}

// Delete removes one cached factor.
func (r *WeightRepository) Delete(scope models.WeightScope, identity string) error {
	if _, err := r.db.Exec(
		`DELETE FROM scope_weights WHERE scope = ? AND identity = ?`,
		string(scope), identity,
	); err != nil {
		return fmt.Errorf("failed to delete weight: %w", err)
	}
	return nil
}
