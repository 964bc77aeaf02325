package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/djx/internal/models"
	"github.com/desertthunder/djx/internal/repositories"
	"github.com/desertthunder/djx/internal/shared"
	"github.com/desertthunder/djx/internal/ui"
	"github.com/urfave/cli/v3"
)

// DjPick requests exactly one pick from the selector. Works even while the
// auto-pick preference is off; the two flags are intentionally distinct.
func (r *Runner) DjPick(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	resp, err := r.selector.PickOnce(ctx)
	if err != nil {
		return err
	}

	r.writePlain("Pick request: %s\n", resp.Status)
	return nil
}

// DjEnable flips the selector's advisory enabled flag on.
func (r *Runner) DjEnable(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	if err := r.selector.Enable(ctx); err != nil {
		return err
	}
	r.writePlain("%s selector enabled\n", ui.OK("✓"))
	return nil
}

// DjDisable flips the selector's advisory enabled flag off.
func (r *Runner) DjDisable(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	if err := r.selector.Disable(ctx); err != nil {
		return err
	}
	r.writePlain("%s selector disabled\n", ui.Warn("✗"))
	return nil
}

// DjStatus shows the selector's advisory state alongside the local
// client-authoritative preferences.
func (r *Runner) DjStatus(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	status, err := r.selector.Status(ctx)
	if err != nil {
		return err
	}

	prefs, err := r.localPrefs()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"selector": status,
			"local": map[string]bool{
				"auto_pick":    prefs.AutoPickEnabled,
				"pause_on_afk": prefs.PauseOnAfkEnabled,
			},
		}, true)
	}

	r.writePlain("%s\n", ui.Title("DJ Status"))
	r.writePlain("Selector enabled: %s\n", onOff(status.Enabled))
	for key, value := range status.Stats {
		r.writePlain("%s: %v\n", key, value)
	}
	r.writePlain("\nLocal auto-pick: %s\n", onOff(prefs.AutoPickEnabled))
	r.writePlain("Local pause-on-AFK: %s\n", onOff(prefs.PauseOnAfkEnabled))
	r.writePlain("%s\n", ui.Help("Local flags gate this client only; the selector flag is advisory."))
	return nil
}

// DjAuto sets the local auto-pick preference.
func (r *Runner) DjAuto(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	enabled, err := parseToggle(cmd.StringArg("toggle"))
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewPrefsRepository(db, r.defaultPrefs())
	if err := repo.SetAutoPick(enabled); err != nil {
		return err
	}

	r.writePlain("Auto-pick: %s\n", onOff(enabled))
	return nil
}

// DjAfkPause sets the local pause-on-AFK preference.
func (r *Runner) DjAfkPause(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	enabled, err := parseToggle(cmd.StringArg("toggle"))
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewPrefsRepository(db, r.defaultPrefs())
	if err := repo.SetPauseOnAfk(enabled); err != nil {
		return err
	}

	r.writePlain("Pause on AFK: %s\n", onOff(enabled))
	return nil
}

func (r *Runner) defaultPrefs() models.DjConfig {
	return models.DjConfig{
		AutoPickEnabled:   r.config.DJ.AutoPick,
		PauseOnAfkEnabled: r.config.DJ.PauseOnAfk,
	}
}

func (r *Runner) localPrefs() (models.DjConfig, error) {
	db, err := r.openDatabase()
	if err != nil {
		return models.DjConfig{}, err
	}
	defer db.Close()

	return repositories.NewPrefsRepository(db, r.defaultPrefs()).Get()
}

func parseToggle(arg string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("%w: expected on or off, got %q", shared.ErrInvalidInput, arg)
}

func onOff(enabled bool) string {
	if enabled {
		return ui.OK("on")
	}
	return ui.Warn("off")
}
