package main

import (
	"context"

	"github.com/desertthunder/djx/internal/formatter"
	"github.com/desertthunder/djx/internal/ui"
	"github.com/urfave/cli/v3"
)

// State prints the current playback snapshot.
func (r *Runner) State(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	if err := r.connectBridge(ctx); err != nil {
		return err
	}

	snapshot, err := r.bridge.State(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(snapshot, true)
	}

	r.writePlain("%s\n", ui.Title("Playback"))
	r.writePlain("%s", formatter.SnapshotToText(snapshot))
	return nil
}
