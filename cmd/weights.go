package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/djx/internal/formatter"
	"github.com/desertthunder/djx/internal/models"
	"github.com/desertthunder/djx/internal/repositories"
	"github.com/desertthunder/djx/internal/shared"
	"github.com/desertthunder/djx/internal/ui"
	"github.com/desertthunder/djx/internal/weights"
	"github.com/urfave/cli/v3"
)

// weightIdentity builds the target identity from the scope flags.
func weightIdentity(cmd *cli.Command) (weights.Identity, error) {
	scope := models.WeightScope(cmd.String("scope"))

	var id weights.Identity
	switch scope {
	case models.ScopeTrack:
		id = weights.TrackIdentity(cmd.String("title"), cmd.String("artist"))
	case models.ScopeArtist:
		id = weights.ArtistIdentity(cmd.String("artist"))
	case models.ScopeGenre:
		id = weights.GenreIdentity(cmd.String("genre"))
	default:
		return id, fmt.Errorf("%w: unknown scope %q", shared.ErrInvalidInput, scope)
	}

	if !id.Valid() {
		return id, fmt.Errorf("%w: scope %s requires its identity flags", shared.ErrMissingArgument, scope)
	}
	return id, nil
}

// adjustWeight runs one edit through a controller backed by the weight cache,
// flushing immediately since the process exits right after.
func (r *Runner) adjustWeight(cmd *cli.Command, edit func(*weights.Controller, weights.Identity) string) error {
	r.reloadConfig(cmd)

	id, err := weightIdentity(cmd)
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	controller := weights.NewController(r.selector, repositories.NewWeightRepository(db), r.logger)
	message := edit(controller, id)
	controller.Flush()

	r.writePlain("%s\n", message)
	return nil
}

// WeightsIncrement raises a weight by one step.
func (r *Runner) WeightsIncrement(ctx context.Context, cmd *cli.Command) error {
	return r.adjustWeight(cmd, func(c *weights.Controller, id weights.Identity) string {
		factor := c.Increment(id)
		return fmt.Sprintf("%s %s → %.2f", ui.OK("↑"), id.Key(), factor)
	})
}

// WeightsDecrement lowers a weight by one step, never below the floor.
func (r *Runner) WeightsDecrement(ctx context.Context, cmd *cli.Command) error {
	return r.adjustWeight(cmd, func(c *weights.Controller, id weights.Identity) string {
		factor := c.Decrement(id)
		return fmt.Sprintf("%s %s → %.2f", ui.Warn("↓"), id.Key(), factor)
	})
}

// WeightsBan zeroes a weight immediately.
func (r *Runner) WeightsBan(ctx context.Context, cmd *cli.Command) error {
	return r.adjustWeight(cmd, func(c *weights.Controller, id weights.Identity) string {
		c.Ban(id)
		return fmt.Sprintf("%s %s banned", ui.Err("✗"), id.Key())
	})
}

// WeightsShow lists the cached weights, or a track's authoritative
// server-side weights when --title and --artist are given.
func (r *Runner) WeightsShow(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	title := cmd.String("title")
	artist := cmd.String("artist")
	if title != "" && artist != "" {
		return r.showSongMeta(ctx, title, artist)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	cached, err := repositories.NewWeightRepository(db).All()
	if err != nil {
		return err
	}

	if cmd.Bool("csv") {
		data, err := formatter.WeightsToCSV(cached)
		if err != nil {
			return err
		}
		return r.writePlain("%s", string(data))
	}

	r.writePlain("%s\n", ui.Title("Weights"))
	r.writePlain("%s", formatter.WeightsToText(cached))
	return nil
}

func (r *Runner) showSongMeta(ctx context.Context, title, artist string) error {
	meta, err := r.selector.GetSongMeta(ctx, title, artist)
	if err != nil {
		return err
	}

	if !meta.Found {
		r.writePlain("Track not known to the selector: %s - %s\n", artist, title)
		return nil
	}

	effective := weights.EffectiveWeight(meta.RowWeight, meta.Weights.Track, meta.Weights.Artist, meta.Weights.Genre)

	r.writePlain("%s\n", ui.Title(fmt.Sprintf("%s - %s", artist, title)))
	r.writePlain("Genre: %s\n", meta.Genre)
	r.writePlain("Row weight: %.2f\n", meta.RowWeight)
	r.writePlain("Track factor: %.2f\n", meta.Weights.Track)
	r.writePlain("Artist factor: %.2f\n", meta.Weights.Artist)
	r.writePlain("Genre factor: %.2f\n", meta.Weights.Genre)
	r.writePlain("Effective: %s\n", ui.OK(fmt.Sprintf("%.3f", effective)))
	return nil
}
