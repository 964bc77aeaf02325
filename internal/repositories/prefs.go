package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/djx/internal/models"
)

// PrefsRepository persists the client-authoritative DJ preferences as a
// single row, created on first read.
type PrefsRepository struct {
	db       *sql.DB
	defaults models.DjConfig
}

// NewPrefsRepository creates a preferences store. defaults seed the row when
// none exists yet (typically the [dj] config section).
func NewPrefsRepository(db *sql.DB, defaults models.DjConfig) *PrefsRepository {
	return &PrefsRepository{db: db, defaults: defaults}
}

// Get reads the stored preferences, inserting the defaults on first use.
func (r *PrefsRepository) Get() (models.DjConfig, error) {
	var config models.DjConfig
	err := r.db.QueryRow(`SELECT auto_pick, pause_on_afk FROM dj_prefs WHERE id = 1`).
		Scan(&config.AutoPickEnabled, &config.PauseOnAfkEnabled)
	if err == nil {
		return config, nil
	}
	if err != sql.ErrNoRows {
		return models.DjConfig{}, fmt.Errorf("failed to read preferences: %w", err)
	}

	if err := r.insertDefaults(); err != nil {
		return models.DjConfig{}, err
	}
	return r.defaults, nil
}

// SetAutoPick persists the auto-pick flag.
func (r *PrefsRepository) SetAutoPick(enabled bool) error {
	return r.set("auto_pick", enabled)
}

// SetPauseOnAfk persists the AFK-pause flag.
func (r *PrefsRepository) SetPauseOnAfk(enabled bool) error {
	return r.set("pause_on_afk", enabled)
}

func (r *PrefsRepository) set(column string, enabled bool) error {
	// Ensure the row exists before updating it.
	if _, err := r.Get(); err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE dj_prefs SET %s = ?, updated_at = ? WHERE id = 1`, column)
	if _, err := r.db.Exec(query, enabled, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to update %s: %w", column, err)
	}
	return nil
}

func (r *PrefsRepository) insertDefaults() error {
	query := `
		INSERT INTO dj_prefs (id, auto_pick, pause_on_afk, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`
	if _, err := r.db.Exec(query, r.defaults.AutoPickEnabled, r.defaults.PauseOnAfkEnabled, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to seed preferences: %w", err)
	}
	return nil
}
