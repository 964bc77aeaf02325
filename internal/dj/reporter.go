package dj

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/djx/internal/channel"
	"github.com/desertthunder/djx/internal/models"
	"github.com/desertthunder/djx/internal/provider"
	"github.com/desertthunder/djx/internal/shared"
)

// Reporter polling defaults. The bridge cannot push, so changes are detected
// by diffing successive snapshots; the heartbeat keeps the observer fed even
// when nothing changes mid-track.
const (
	DefaultPollInterval = time.Second
	DefaultHeartbeat    = 30 * time.Second
)

// Subscriber is notified after every detected playback change.
type Subscriber func(ctx context.Context)

// Reporter keeps the selector informed of playback state. It emits a
// normalized snapshot on every change plus a fixed heartbeat while playing,
// and confirms shadow entries once their track is actually playing.
type Reporter struct {
	session *PlayerSession
	gate    SessionGate
	player  provider.Player
	emitter Emitter
	logger  *log.Logger

	poll      time.Duration
	heartbeat time.Duration

	mu          sync.Mutex
	last        *models.PlaybackSnapshot
	lastEmit    time.Time
	subscribers []Subscriber
}

// NewReporter creates a state reporter with default timing.
func NewReporter(session *PlayerSession, gate SessionGate, player provider.Player, emitter Emitter, logger *log.Logger) *Reporter {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Reporter{
		session:   session,
		gate:      gate,
		player:    player,
		emitter:   emitter,
		logger:    shared.WithLogger(logger, "component", "reporter"),
		poll:      DefaultPollInterval,
		heartbeat: DefaultHeartbeat,
	}
}

// SetTiming overrides the poll interval and heartbeat. Zero or negative
// values keep the defaults.
func (r *Reporter) SetTiming(poll, heartbeat time.Duration) {
	if poll > 0 {
		r.poll = poll
	}
	if heartbeat > 0 {
		r.heartbeat = heartbeat
	}
}

// Subscribe registers a change listener. Listeners run on the reporter's
// poll goroutine after the snapshot is emitted.
func (r *Reporter) Subscribe(fn Subscriber) {
	r.mu.Lock()
	r.subscribers = append(r.subscribers, fn)
	r.mu.Unlock()
}

// Run polls the provider until ctx is done.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Poll(ctx)
		}
	}
}

// Poll reads the provider once, emitting a snapshot when playback changed or
// the heartbeat interval lapsed while playing.
func (r *Reporter) Poll(ctx context.Context) {
	snapshot, ok := r.read(ctx)
	if !ok {
		return
	}

	r.mu.Lock()
	changed := snapshotChanged(r.last, snapshot)
	heartbeatDue := snapshot.IsPlaying && time.Since(r.lastEmit) >= r.heartbeat
	r.last = snapshot
	subscribers := make([]Subscriber, len(r.subscribers))
	copy(subscribers, r.subscribers)
	r.mu.Unlock()

	if changed && snapshot.CurrentTrack != nil {
		r.session.ConfirmPlaying(snapshot.CurrentTrack.Title, snapshot.CurrentTrack.Artist)
	}

	if changed || heartbeatDue {
		r.emit(ctx, snapshot)
	}

	if changed {
		for _, fn := range subscribers {
			fn(ctx)
		}
	}
}

// Report reads the provider and emits a snapshot unconditionally.
func (r *Reporter) Report(ctx context.Context) {
	snapshot, ok := r.read(ctx)
	if !ok {
		return
	}

	r.mu.Lock()
	r.last = snapshot
	r.mu.Unlock()

	r.emit(ctx, snapshot)
}

// Last returns the most recent snapshot, or nil before the first read.
func (r *Reporter) Last() *models.PlaybackSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func (r *Reporter) read(ctx context.Context) (*models.PlaybackSnapshot, bool) {
	if !r.gate.Authorized() {
		return nil, false
	}

	snapshot, err := r.player.State(ctx)
	if err != nil {
		if r.gate.HandleProviderError(err) {
			return nil, false
		}
		r.logger.Warn("state read failed", "err", err)
		return nil, false
	}
	return snapshot, true
}

func (r *Reporter) emit(ctx context.Context, snapshot *models.PlaybackSnapshot) {
	if err := r.emitter.Emit(ctx, channel.KindStateUpdate, snapshot); err != nil {
		r.logger.Warn("state_update emit failed", "err", err)
		return
	}
	r.mu.Lock()
	r.lastEmit = time.Now()
	r.mu.Unlock()
}

// snapshotChanged reports whether the parts an observer cares about moved:
// play state, now-playing identity, or volume. Progress alone is covered by
// the heartbeat.
func snapshotChanged(prev, next *models.PlaybackSnapshot) bool {
	if prev == nil {
		return true
	}
	if prev.IsPlaying != next.IsPlaying || prev.Volume != next.Volume {
		return true
	}
	return trackKey(prev.CurrentTrack) != trackKey(next.CurrentTrack)
}

func trackKey(track *models.Track) string {
	if track == nil {
		return ""
	}
	return shared.NormalizeTrackKey(track.Title, track.Artist)
}
