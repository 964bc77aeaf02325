package dj

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/desertthunder/djx/internal/channel"
	"github.com/desertthunder/djx/internal/models"
	"github.com/desertthunder/djx/internal/provider"
	"github.com/desertthunder/djx/internal/shared"
	mocks "github.com/desertthunder/djx/internal/testing"
)

func message(t *testing.T, kind string, payload any) channel.Message {
	t.Helper()
	data, err := channel.Encode(kind, payload)
	if err != nil {
		t.Fatalf("failed to encode message: %v", err)
	}
	msg, err := channel.Decode(data)
	if err != nil {
		t.Fatalf("failed to decode message: %v", err)
	}
	return msg
}

func newDispatcher(session *PlayerSession, gate SessionGate, player *mocks.MockPlayer, emitter *mocks.MockEmitter) *Dispatcher {
	afk := NewAfkPolicy(session, gate, player, nil)
	reporter := NewReporter(session, gate, player, emitter, nil)
	return NewDispatcher(session, gate, player, emitter, afk, reporter, nil)
}

func searchablePlayer(state models.PlaybackSnapshot, results ...provider.SearchResult) *mocks.MockPlayer {
	return &mocks.MockPlayer{
		StateFunc: func(ctx context.Context) (*models.PlaybackSnapshot, error) {
			s := state
			return &s, nil
		},
		SearchFunc: func(ctx context.Context, query string) ([]provider.SearchResult, error) {
			return results, nil
		},
	}
}

func TestQueueNextInsertsAndShadows(t *testing.T) {
	session := newSession()
	gate := &stubGate{authorized: true}
	playing := models.PlaybackSnapshot{
		IsPlaying:    true,
		CurrentTrack: &models.Track{Title: "Current", Artist: "Someone"},
	}
	player := searchablePlayer(playing, provider.SearchResult{
		Track:           models.Track{Title: "Naima", Artist: "John Coltrane"},
		ProviderTrackID: "trk-1",
	})
	emitter := &mocks.MockEmitter{}
	session.TryBeginPick()

	d := newDispatcher(session, gate, player, emitter)
	d.Handle(context.Background(), message(t, channel.KindQueueNext, channel.QueryPayload{Query: "naima coltrane"}))

	if player.CallCount("InsertNext") != 1 {
		t.Errorf("InsertNext called %d times, want 1", player.CallCount("InsertNext"))
	}
	if session.ShadowLen() != 1 {
		t.Errorf("ShadowLen() = %d, want 1", session.ShadowLen())
	}
	// A fulfilled queue command satisfies the outstanding pick.
	if session.PickPending() {
		t.Error("expected pick flag cleared")
	}

	event, ok := emitter.Last()
	if !ok || event.Kind != channel.KindSongQueued {
		t.Fatalf("expected song_queued, got %+v", event)
	}
	payload := event.Payload.(channel.SongQueuedPayload)
	if payload.Title != "Naima" || payload.Query != "naima coltrane" {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestQueueNextDedup(t *testing.T) {
	session := newSession()
	gate := &stubGate{authorized: true}
	playing := models.PlaybackSnapshot{IsPlaying: true, CurrentTrack: &models.Track{Title: "Current", Artist: "Someone"}}
	player := searchablePlayer(playing, provider.SearchResult{
		Track:           models.Track{Title: "Naima", Artist: "John Coltrane"},
		ProviderTrackID: "trk-1",
	})
	emitter := &mocks.MockEmitter{}

	d := newDispatcher(session, gate, player, emitter)
	msg := message(t, channel.KindQueueNext, channel.QueryPayload{Query: "naima coltrane"})
	d.Handle(context.Background(), msg)
	d.Handle(context.Background(), msg)

	if got := player.CallCount("InsertNext"); got != 1 {
		t.Errorf("InsertNext called %d times, want 1 (duplicate dropped)", got)
	}
	if session.ShadowLen() != 1 {
		t.Errorf("ShadowLen() = %d, want 1", session.ShadowLen())
	}

	// Outside the window the same query is a fresh request.
	d.SetDedupWindow(time.Nanosecond)
	time.Sleep(time.Millisecond)
	d.Handle(context.Background(), msg)
	if got := player.CallCount("InsertNext"); got != 2 {
		t.Errorf("InsertNext called %d times, want 2 after window lapsed", got)
	}
}

func TestQueueNextPlaysImmediatelyWhenIdle(t *testing.T) {
	session := newSession()
	gate := &stubGate{authorized: true}
	player := searchablePlayer(models.PlaybackSnapshot{IsPlaying: false}, provider.SearchResult{
		Track:           models.Track{Title: "Naima", Artist: "John Coltrane"},
		ProviderTrackID: "trk-1",
	})
	emitter := &mocks.MockEmitter{}

	d := newDispatcher(session, gate, player, emitter)
	d.Handle(context.Background(), message(t, channel.KindQueueNext, channel.QueryPayload{Query: "naima"}))

	if player.CallCount("PlayNow") != 1 {
		t.Errorf("PlayNow called %d times, want 1", player.CallCount("PlayNow"))
	}
	if player.CallCount("InsertNext") != 0 {
		t.Error("InsertNext should not run while idle")
	}
}

func TestQueueNextReplaceFallback(t *testing.T) {
	session := newSession()
	gate := &stubGate{authorized: true}
	playing := models.PlaybackSnapshot{IsPlaying: true, CurrentTrack: &models.Track{Title: "Current", Artist: "Someone"}}
	player := searchablePlayer(playing, provider.SearchResult{
		Track:           models.Track{Title: "Naima", Artist: "John Coltrane"},
		ProviderTrackID: "trk-1",
	})
	player.InsertNextFunc = func(ctx context.Context, trackID string) error {
		return fmt.Errorf("%w: insert not supported", shared.ErrAPIRequest)
	}
	emitter := &mocks.MockEmitter{}

	d := newDispatcher(session, gate, player, emitter)
	d.Handle(context.Background(), message(t, channel.KindQueueNext, channel.QueryPayload{Query: "naima"}))

	if player.CallCount("ReplaceQueue") != 1 {
		t.Errorf("ReplaceQueue called %d times, want 1", player.CallCount("ReplaceQueue"))
	}
	if session.ShadowLen() != 1 {
		t.Errorf("ShadowLen() = %d, want 1 after fallback", session.ShadowLen())
	}
}

func TestQueueNextEmptySearchEmitsBackup(t *testing.T) {
	session := newSession()
	gate := &stubGate{authorized: true}
	player := searchablePlayer(models.PlaybackSnapshot{IsPlaying: true})
	emitter := &mocks.MockEmitter{}

	d := newDispatcher(session, gate, player, emitter)
	d.Handle(context.Background(), message(t, channel.KindQueueNext, channel.QueryPayload{Query: "unfindable song"}))

	event, ok := emitter.Last()
	if !ok || event.Kind != channel.KindBackupRequest {
		t.Fatalf("expected backup_request, got %+v", event)
	}
	payload := event.Payload.(channel.BackupRequestPayload)
	if payload.FailedQuery != "unfindable song" {
		t.Errorf("FailedQuery = %q", payload.FailedQuery)
	}
	if session.ShadowLen() != 0 {
		t.Error("empty search must not add a shadow entry")
	}
	// Empty results are reported, never retried here.
	if player.CallCount("Search") != 1 {
		t.Errorf("Search called %d times, want 1", player.CallCount("Search"))
	}
}

func TestQueueNextAuthErrorAbandons(t *testing.T) {
	session := newSession()
	session.AddShadow(models.ShadowQueueEntry{Title: "Pending", Artist: "Artist"})
	gate := &stubGate{authorized: true}
	player := &mocks.MockPlayer{
		SearchFunc: func(ctx context.Context, query string) ([]provider.SearchResult, error) {
			return nil, fmt.Errorf("search: %w", shared.ErrSessionExpired)
		},
	}
	emitter := &mocks.MockEmitter{}

	d := newDispatcher(session, gate, player, emitter)
	d.Handle(context.Background(), message(t, channel.KindQueueNext, channel.QueryPayload{Query: "naima"}))

	if gate.Authorized() {
		t.Error("auth error should invalidate the session")
	}
	if len(emitter.Events) != 0 {
		t.Errorf("abandoned command emitted %v", emitter.Kinds())
	}
	if player.CallCount("State") != 0 {
		t.Error("command should abandon after the auth failure")
	}
}

func TestTransportCommands(t *testing.T) {
	tc := []struct {
		name     string
		kind     string
		payload  any
		wantCall string
	}{
		{name: "play", kind: channel.KindPlay, wantCall: "Play"},
		{name: "pause", kind: channel.KindPause, wantCall: "Pause"},
		{name: "next", kind: channel.KindNext, wantCall: "Next"},
		{name: "previous", kind: channel.KindPrevious, wantCall: "Previous"},
		{name: "set volume", kind: channel.KindSetVolume, payload: channel.VolumePayload{Volume: 40}, wantCall: "SetVolume"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			session := newSession()
			gate := &stubGate{authorized: true}
			player := &mocks.MockPlayer{}
			emitter := &mocks.MockEmitter{}

			d := newDispatcher(session, gate, player, emitter)
			d.Handle(context.Background(), message(t, tt.kind, tt.payload))

			if player.CallCount(tt.wantCall) != 1 {
				t.Errorf("%s called %d times, want 1", tt.wantCall, player.CallCount(tt.wantCall))
			}
			// Successful transport commands report fresh state.
			kinds := emitter.Kinds()
			if len(kinds) == 0 || kinds[len(kinds)-1] != channel.KindStateUpdate {
				t.Errorf("expected trailing state_update, got %v", kinds)
			}
		})
	}
}

func TestCommandsDroppedWithoutSession(t *testing.T) {
	session := newSession()
	gate := &stubGate{authorized: false}
	player := &mocks.MockPlayer{}
	emitter := &mocks.MockEmitter{}

	d := newDispatcher(session, gate, player, emitter)
	d.Handle(context.Background(), message(t, channel.KindPlay, nil))
	d.Handle(context.Background(), message(t, channel.KindQueueNext, channel.QueryPayload{Query: "naima"}))

	if len(player.Calls) != 0 {
		t.Errorf("unauthorized commands reached the provider: %v", player.Calls)
	}
}

func TestGetState(t *testing.T) {
	session := newSession()
	gate := &stubGate{authorized: true}
	player := searchablePlayer(models.PlaybackSnapshot{IsPlaying: true, Volume: 55})
	emitter := &mocks.MockEmitter{}

	d := newDispatcher(session, gate, player, emitter)
	d.Handle(context.Background(), message(t, channel.KindGetState, nil))

	event, ok := emitter.Last()
	if !ok || event.Kind != channel.KindStateUpdate {
		t.Fatalf("expected state_update, got %+v", event)
	}
	snapshot := event.Payload.(*models.PlaybackSnapshot)
	if !snapshot.IsPlaying || snapshot.Volume != 55 {
		t.Errorf("unexpected snapshot: %+v", snapshot)
	}
}

func TestSearchAndPlay(t *testing.T) {
	session := newSession()
	gate := &stubGate{authorized: true}
	player := searchablePlayer(models.PlaybackSnapshot{}, provider.SearchResult{
		Track:           models.Track{Title: "Naima", Artist: "John Coltrane"},
		ProviderTrackID: "trk-1",
	})
	emitter := &mocks.MockEmitter{}

	d := newDispatcher(session, gate, player, emitter)
	d.Handle(context.Background(), message(t, channel.KindSearchAndPlay, channel.QueryPayload{Query: "naima"}))

	if player.CallCount("PlayNow") != 1 {
		t.Errorf("PlayNow called %d times, want 1", player.CallCount("PlayNow"))
	}
	if session.ShadowLen() != 0 {
		t.Error("search_and_play should not shadow-queue")
	}
}

func TestUnknownCommandIgnored(t *testing.T) {
	session := newSession()
	gate := &stubGate{authorized: true}
	player := &mocks.MockPlayer{}
	emitter := &mocks.MockEmitter{}

	d := newDispatcher(session, gate, player, emitter)
	d.Handle(context.Background(), channel.Message{Kind: "reticulate"})

	if len(player.Calls) != 0 {
		t.Errorf("unknown command reached the provider: %v", player.Calls)
	}
}
