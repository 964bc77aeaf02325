package dj

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/djx/internal/channel"
	"github.com/desertthunder/djx/internal/provider"
	"github.com/desertthunder/djx/internal/shared"
)

// Default scheduler timing. The prefetch threshold must exceed the
// selector's worst-case generation latency (~30s) so a picked track lands
// before the current one ends.
const (
	DefaultTick              = 5 * time.Second
	DefaultPrefetchThreshold = 90 * time.Second
)

// SessionGate is the slice of the session guardian the automation
// components need: the authorization gate and auth-error routing.
type SessionGate interface {
	Authorized() bool
	HandleProviderError(err error) bool
}

// Scheduler keeps the queue supplied. On every tick (and on playback
// changes) it reconciles the shadow queue against the live provider queue
// and decides whether to request a pick, never holding more than one
// outstanding request.
type Scheduler struct {
	session   *PlayerSession
	gate      SessionGate
	player    provider.Player
	emitter   Emitter
	logger    *log.Logger
	tick      time.Duration
	threshold time.Duration
}

// NewScheduler creates a prefetch scheduler with default timing.
func NewScheduler(session *PlayerSession, gate SessionGate, player provider.Player, emitter Emitter, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Scheduler{
		session:   session,
		gate:      gate,
		player:    player,
		emitter:   emitter,
		logger:    shared.WithLogger(logger, "component", "scheduler"),
		tick:      DefaultTick,
		threshold: DefaultPrefetchThreshold,
	}
}

// SetTiming overrides the tick cadence and prefetch threshold. Zero or
// negative values keep the defaults.
func (s *Scheduler) SetTiming(tick, threshold time.Duration) {
	if tick > 0 {
		s.tick = tick
	}
	if threshold > 0 {
		s.threshold = threshold
	}
}

// Run evaluates on a fixed cadence until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Evaluate(ctx)
		}
	}
}

// Evaluate runs one scheduling decision: reconcile the shadow queue, then
// trigger a pick request when the queue is about to run dry. Also invoked by
// the reporter on playback changes so a skip reacts faster than the tick.
func (s *Scheduler) Evaluate(ctx context.Context) {
	if !s.gate.Authorized() || !s.session.AutoPickEnabled() {
		return
	}

	state, err := s.player.State(ctx)
	if err != nil {
		if s.gate.HandleProviderError(err) {
			return
		}
		s.logger.Warn("state read failed", "err", err)
		return
	}

	queue, err := s.player.Queue(ctx)
	if err != nil {
		if s.gate.HandleProviderError(err) {
			return
		}
		s.logger.Warn("queue read failed", "err", err)
		return
	}

	// Nothing playing with an empty live queue means the operator skipped
	// past anything we queued; the shadow list is stale.
	if !state.IsPlaying && queue.Upcoming == 0 && s.session.ShadowLen() > 0 {
		s.session.ClearShadow("provider queue empty")
	}

	shadowLen := s.session.ShadowLen()
	remaining := time.Duration(state.RemainingSeconds) * time.Second
	nearEnd := state.CurrentTrack != nil && remaining < s.threshold

	trigger := (!state.IsPlaying && shadowLen == 0) ||
		(shadowLen == 0 && (queue.Upcoming == 0 || nearEnd)) ||
		(shadowLen == 1 && nearEnd)

	if trigger {
		s.requestPick(ctx, queue.Upcoming, shadowLen)
	}
}

func (s *Scheduler) requestPick(ctx context.Context, queueLen, shadowLen int) {
	id, ok := s.session.TryBeginPick()
	if !ok {
		return
	}

	payload := channel.PickRequestPayload{
		QueueLength:   queueLen,
		DjQueuedCount: shadowLen,
		Timestamp:     time.Now().UTC(),
	}

	if err := s.emitter.Emit(ctx, channel.KindPickRequest, payload); err != nil {
		// The request never left, so the slot must not stay claimed for
		// the full timeout window.
		s.session.ClearPick(id, "emit failed")
		s.logger.Warn("pick request emit failed", "err", err)
		return
	}

	s.logger.Info("pick requested", "id", id, "queue_length", queueLen, "dj_queued", shadowLen)
}
