package dj

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/djx/internal/models"
	"github.com/desertthunder/djx/internal/provider"
	"github.com/desertthunder/djx/internal/shared"
)

// AfkPolicy pauses playback when the operator goes away and resumes it when
// they return, acting only on edge transitions. It runs independently of the
// auto-pick flag; the pause_on_afk preference suppresses it entirely.
type AfkPolicy struct {
	session *PlayerSession
	gate    SessionGate
	player  provider.Player
	logger  *log.Logger

	mu                  sync.Mutex
	pausedByPolicy      bool
	wasPlayingBeforeAfk bool
}

// NewAfkPolicy creates the presence policy engine.
func NewAfkPolicy(session *PlayerSession, gate SessionGate, player provider.Player, logger *log.Logger) *AfkPolicy {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &AfkPolicy{
		session: session,
		gate:    gate,
		player:  player,
		logger:  shared.WithLogger(logger, "component", "afk"),
	}
}

// Handle reacts to one presence transition push. Steady-state pushes
// (is_afk with neither edge flag) are ignored.
func (a *AfkPolicy) Handle(ctx context.Context, state models.AfkState) {
	if !a.session.PauseOnAfkEnabled() || !a.gate.Authorized() {
		return
	}

	switch {
	case state.JustWentAfk:
		a.handleWentAway(ctx)
	case state.JustReturned:
		a.handleReturned(ctx)
	}
}

func (a *AfkPolicy) handleWentAway(ctx context.Context) {
	snapshot, err := a.player.State(ctx)
	if err != nil {
		a.gate.HandleProviderError(err)
		return
	}
	if !snapshot.IsPlaying {
		return
	}

	if err := a.player.Pause(ctx); err != nil {
		a.gate.HandleProviderError(err)
		return
	}

	a.mu.Lock()
	a.pausedByPolicy = true
	a.wasPlayingBeforeAfk = true
	a.mu.Unlock()
	a.logger.Info("paused for away operator")
}

func (a *AfkPolicy) handleReturned(ctx context.Context) {
	a.mu.Lock()
	resume := a.pausedByPolicy && a.wasPlayingBeforeAfk
	a.pausedByPolicy = false
	a.wasPlayingBeforeAfk = false
	a.mu.Unlock()

	if !resume {
		return
	}

	if err := a.player.Play(ctx); err != nil {
		a.gate.HandleProviderError(err)
		return
	}
	a.logger.Info("resumed for returned operator")
}

// NoteManualPause records that a human paused playback. Human intent
// supersedes policy: a later return must not auto-resume.
func (a *AfkPolicy) NoteManualPause() {
	a.clearFlags()
}

// NoteManualPlay records that a human started playback, clearing any stale
// policy state.
func (a *AfkPolicy) NoteManualPlay() {
	a.clearFlags()
}

func (a *AfkPolicy) clearFlags() {
	a.mu.Lock()
	a.pausedByPolicy = false
	a.wasPlayingBeforeAfk = false
	a.mu.Unlock()
}
