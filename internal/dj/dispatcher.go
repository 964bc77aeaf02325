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

// DefaultDedupWindow bounds how long a repeated queue_next query is treated
// as a duplicate delivery rather than a fresh request.
const DefaultDedupWindow = 30 * time.Second

// Dispatcher translates inbound channel commands into provider calls and
// scheduler state changes.
type Dispatcher struct {
	session  *PlayerSession
	gate     SessionGate
	player   provider.Player
	emitter  Emitter
	afk      *AfkPolicy
	reporter *Reporter
	logger   *log.Logger

	mu          sync.Mutex
	dedupWindow time.Duration
	lastQuery   string
	lastQueueAt time.Time
}

// NewDispatcher creates a command dispatcher.
func NewDispatcher(session *PlayerSession, gate SessionGate, player provider.Player, emitter Emitter, afk *AfkPolicy, reporter *Reporter, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Dispatcher{
		session:     session,
		gate:        gate,
		player:      player,
		emitter:     emitter,
		afk:         afk,
		reporter:    reporter,
		logger:      shared.WithLogger(logger, "component", "dispatcher"),
		dedupWindow: DefaultDedupWindow,
	}
}

// SetDedupWindow overrides the duplicate-command window. Zero or negative
// values are ignored.
func (d *Dispatcher) SetDedupWindow(window time.Duration) {
	if window <= 0 {
		return
	}
	d.mu.Lock()
	d.dedupWindow = window
	d.mu.Unlock()
}

// Handle executes one inbound message. Presence pushes route to the AFK
// policy; everything else gates on an authorized session. Failures degrade
// silently except auth-shaped ones, which invalidate the session.
func (d *Dispatcher) Handle(ctx context.Context, msg channel.Message) {
	if msg.Kind == channel.KindAfkState {
		payload, err := channel.DecodeData[channel.AfkPayload](msg)
		if err != nil {
			d.logger.Warn("bad afk payload", "err", err)
			return
		}
		d.afk.Handle(ctx, models.AfkState{
			IsAfk:        payload.IsAfk,
			JustWentAfk:  payload.JustWentAfk,
			JustReturned: payload.JustReturned,
		})
		return
	}

	if !d.gate.Authorized() {
		d.logger.Debug("dropping command without session", "kind", msg.Kind)
		return
	}

	switch msg.Kind {
	case channel.KindPlay:
		d.afk.NoteManualPlay()
		d.run(ctx, msg.Kind, d.player.Play)
	case channel.KindPause:
		d.afk.NoteManualPause()
		d.run(ctx, msg.Kind, d.player.Pause)
	case channel.KindNext:
		d.run(ctx, msg.Kind, d.player.Next)
	case channel.KindPrevious:
		d.run(ctx, msg.Kind, d.player.Previous)
	case channel.KindSetVolume:
		payload, err := channel.DecodeData[channel.VolumePayload](msg)
		if err != nil {
			d.logger.Warn("bad volume payload", "err", err)
			return
		}
		d.run(ctx, msg.Kind, func(ctx context.Context) error {
			return d.player.SetVolume(ctx, payload.Volume)
		})
	case channel.KindSearchAndPlay:
		payload, err := channel.DecodeData[channel.QueryPayload](msg)
		if err != nil {
			d.logger.Warn("bad query payload", "err", err)
			return
		}
		d.handleSearchAndPlay(ctx, payload.Query)
	case channel.KindQueueNext:
		payload, err := channel.DecodeData[channel.QueryPayload](msg)
		if err != nil {
			d.logger.Warn("bad query payload", "err", err)
			return
		}
		d.handleQueueNext(ctx, payload.Query)
	case channel.KindGetState:
		d.reporter.Report(ctx)
	default:
		d.logger.Warn("unknown command", "kind", msg.Kind)
	}
}

func (d *Dispatcher) run(ctx context.Context, kind string, op func(context.Context) error) {
	if err := op(ctx); err != nil {
		if d.gate.HandleProviderError(err) {
			return
		}
		d.logger.Warn("command failed", "kind", kind, "err", err)
		return
	}
	d.reporter.Report(ctx)
}

func (d *Dispatcher) handleSearchAndPlay(ctx context.Context, query string) {
	result, ok := d.search(ctx, query)
	if !ok {
		return
	}

	if err := d.player.PlayNow(ctx, result.ProviderTrackID); err != nil {
		if d.gate.HandleProviderError(err) {
			return
		}
		d.logger.Warn("play now failed", "query", query, "err", err)
		return
	}
	d.reporter.Report(ctx)
}

// handleQueueNext resolves a query to a concrete track and slots it after
// the current one. A fulfilled queue command satisfies the outstanding pick
// request, whichever correlation id it carried.
func (d *Dispatcher) handleQueueNext(ctx context.Context, query string) {
	if d.isDuplicate(query) {
		d.logger.Debug("dropping duplicate queue command", "query", query)
		return
	}

	result, ok := d.search(ctx, query)
	if !ok {
		return
	}

	state, err := d.player.State(ctx)
	if err != nil {
		if d.gate.HandleProviderError(err) {
			return
		}
		d.logger.Warn("state read failed", "err", err)
		return
	}

	if !state.IsPlaying && state.CurrentTrack == nil {
		err = d.player.PlayNow(ctx, result.ProviderTrackID)
	} else {
		err = d.player.InsertNext(ctx, result.ProviderTrackID)
		if err != nil && !provider.IsAuthError(err) {
			// Some bridge versions reject direct insertion.
			d.logger.Debug("insert rejected, replacing queue", "err", err)
			err = d.player.ReplaceQueue(ctx, result.ProviderTrackID)
		}
	}
	if err != nil {
		if d.gate.HandleProviderError(err) {
			return
		}
		d.logger.Warn("queue command failed", "query", query, "err", err)
		return
	}

	d.session.AddShadow(models.ShadowQueueEntry{
		Title:           result.Track.Title,
		Artist:          result.Track.Artist,
		ProviderTrackID: result.ProviderTrackID,
	})
	d.session.ClearPick("", "track queued")
	d.recordQuery(query)

	if err := d.emitter.Emit(ctx, channel.KindSongQueued, channel.SongQueuedPayload{
		Title:  result.Track.Title,
		Artist: result.Track.Artist,
		Query:  query,
	}); err != nil {
		d.logger.Warn("song_queued emit failed", "err", err)
	}
}

// search resolves a query, reporting empty results back to the selector via
// backup_request rather than retrying.
func (d *Dispatcher) search(ctx context.Context, query string) (provider.SearchResult, bool) {
	results, err := d.player.Search(ctx, query)
	if err != nil {
		if d.gate.HandleProviderError(err) {
			return provider.SearchResult{}, false
		}
		d.logger.Warn("search failed", "query", query, "err", err)
		return provider.SearchResult{}, false
	}

	if len(results) == 0 {
		d.logger.Info("no results, requesting backup", "query", query)
		if err := d.emitter.Emit(ctx, channel.KindBackupRequest, channel.BackupRequestPayload{
			FailedQuery: query,
			Timestamp:   time.Now().UTC(),
		}); err != nil {
			d.logger.Warn("backup_request emit failed", "err", err)
		}
		return provider.SearchResult{}, false
	}

	return results[0], true
}

func (d *Dispatcher) isDuplicate(query string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return query == d.lastQuery && time.Since(d.lastQueueAt) < d.dedupWindow
}

func (d *Dispatcher) recordQuery(query string) {
	d.mu.Lock()
	d.lastQuery = query
	d.lastQueueAt = time.Now()
	d.mu.Unlock()
}
