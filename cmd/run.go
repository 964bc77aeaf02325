package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/desertthunder/djx/internal/channel"
	"github.com/desertthunder/djx/internal/dj"
	"github.com/desertthunder/djx/internal/models"
	"github.com/desertthunder/djx/internal/repositories"
	"github.com/desertthunder/djx/internal/session"
	"github.com/desertthunder/djx/internal/weights"
	"github.com/urfave/cli/v3"
)

const reauthInterval = 15 * time.Second

// Run starts the automation daemon: the push channel, the state reporter,
// the prefetch scheduler, the AFK policy, and the command dispatcher, all
// coordinated through one PlayerSession and one session guardian.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	prefsRepo := repositories.NewPrefsRepository(db, r.defaultPrefs())
	prefs, err := prefsRepo.Get()
	if err != nil {
		return err
	}

	state := dj.NewPlayerSession(prefs, prefsRepo, r.logger)
	state.SetPickTimeout(r.config.DJ.PickTimeout())

	guardian := session.NewGuardian(r.bridge, func(ctx context.Context) error {
		if err := r.installToken(ctx); err != nil {
			return err
		}
		return r.bridge.Authorize(ctx)
	}, r.logger)
	guardian.OnReset(state.Reset)

	// The dispatcher is built after the channel, so the handler closes over
	// a pointer filled in below.
	var dispatcher *dj.Dispatcher
	conn := channel.New(r.config.Selector.ChannelURL, func(ctx context.Context, msg channel.Message) {
		dispatcher.Handle(ctx, msg)
	}, r.logger)

	reporter := dj.NewReporter(state, guardian, r.bridge, conn, r.logger)
	reporter.SetTiming(0, r.config.DJ.Heartbeat())

	scheduler := dj.NewScheduler(state, guardian, r.bridge, conn, r.logger)
	scheduler.SetTiming(r.config.DJ.Tick(), r.config.DJ.PrefetchThreshold())

	afk := dj.NewAfkPolicy(state, guardian, r.bridge, r.logger)
	dispatcher = dj.NewDispatcher(state, guardian, r.bridge, conn, afk, reporter, r.logger)

	controller := weights.NewController(r.selector, repositories.NewWeightRepository(db), r.logger)

	// A skip reacts faster than the scheduler tick, and every track change
	// refreshes the local factor cache from the selector.
	reporter.Subscribe(scheduler.Evaluate)
	reporter.Subscribe(r.seedWeights(reporter, controller))

	if err := guardian.Authorize(ctx); err != nil {
		r.logger.Warn("initial authorization failed, will retry", "err", err)
		guardian.ForceReauthorize("startup")
	}

	r.logger.Info("daemon started",
		"selector", r.config.Selector.BaseURL,
		"channel", r.config.Selector.ChannelURL,
		"provider", r.config.Provider.BaseURL)

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		conn.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		reporter.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		r.reauthLoop(ctx, guardian)
	}()

	<-ctx.Done()
	wg.Wait()
	controller.Flush()
	r.logger.Info("daemon stopped")
	return nil
}

// reauthLoop restores a forced-out session. The selector token mode retries
// without interaction; the OAuth mode can only tell the operator to run the
// auth command again.
func (r *Runner) reauthLoop(ctx context.Context, guardian *session.Guardian) {
	ticker := time.NewTicker(reauthInterval)
	defer ticker.Stop()

	warned := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if guardian.State() != models.Reauthorizing {
				warned = false
				continue
			}

			if r.config.Provider.AuthMode == "oauth" {
				if !warned {
					r.logger.Warn("session ended; run 'djx auth login' to re-authorize")
					warned = true
				}
				continue
			}

			if err := guardian.Reauthorize(ctx); err != nil {
				r.logger.Warn("reauthorization failed, will retry", "err", err)
			}
		}
	}
}

// seedWeights reconciles the local factor cache from the selector whenever
// the playing track changes.
func (r *Runner) seedWeights(reporter *dj.Reporter, controller *weights.Controller) dj.Subscriber {
	var lastSeeded string

	return func(ctx context.Context) {
		snapshot := reporter.Last()
		if snapshot == nil || snapshot.CurrentTrack == nil {
			return
		}

		track := snapshot.CurrentTrack
		key := track.Title + "|" + track.Artist
		if key == lastSeeded {
			return
		}
		lastSeeded = key

		meta, err := r.selector.GetSongMeta(ctx, track.Title, track.Artist)
		if err != nil {
			r.logger.Debug("song meta read failed", "err", err)
			return
		}
		controller.SeedMeta(track.Title, track.Artist, meta)
	}
}
