package dj

import (
	"context"
	"sync"
	"testing"

	"github.com/desertthunder/djx/internal/channel"
	"github.com/desertthunder/djx/internal/models"
	"github.com/desertthunder/djx/internal/provider"
	mocks "github.com/desertthunder/djx/internal/testing"
)

// stubGate is a minimal SessionGate: authorized unless an auth error flips it.
type stubGate struct {
	mu         sync.Mutex
	authorized bool
	resets     []string
}

func (g *stubGate) Authorized() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.authorized
}

func (g *stubGate) HandleProviderError(err error) bool {
	if err == nil || !provider.IsAuthError(err) {
		return false
	}
	g.mu.Lock()
	g.authorized = false
	g.resets = append(g.resets, err.Error())
	g.mu.Unlock()
	return true
}

func playerWith(state models.PlaybackSnapshot, upcoming int) *mocks.MockPlayer {
	return &mocks.MockPlayer{
		StateFunc: func(ctx context.Context) (*models.PlaybackSnapshot, error) {
			s := state
			return &s, nil
		},
		QueueFunc: func(ctx context.Context) (*provider.QueueState, error) {
			return &provider.QueueState{Upcoming: upcoming}, nil
		},
	}
}

func TestEvaluateTriggersWhenIdle(t *testing.T) {
	session := newSession()
	gate := &stubGate{authorized: true}
	player := playerWith(models.PlaybackSnapshot{IsPlaying: false}, 0)
	emitter := &mocks.MockEmitter{}

	sched := NewScheduler(session, gate, player, emitter, nil)
	sched.Evaluate(context.Background())

	if !session.PickPending() {
		t.Fatal("expected pending pick after idle evaluate")
	}
	event, ok := emitter.Last()
	if !ok || event.Kind != channel.KindPickRequest {
		t.Fatalf("expected pick_request, got %+v", event)
	}

	// Second tick with the request still outstanding must not fire again.
	sched.Evaluate(context.Background())
	if len(emitter.Events) != 1 {
		t.Errorf("emitted %d events, want 1", len(emitter.Events))
	}
}

func TestEvaluateNearEndTrigger(t *testing.T) {
	track := &models.Track{Title: "Naima", Artist: "John Coltrane", DurationSeconds: 260}

	tc := []struct {
		name      string
		state     models.PlaybackSnapshot
		upcoming  int
		shadow    int
		wantFire  bool
		wantCount int
	}{
		{
			name:     "45s remaining and empty shadow fires",
			state:    models.PlaybackSnapshot{IsPlaying: true, CurrentTrack: track, RemainingSeconds: 45},
			upcoming: 2,
			shadow:   0,
			wantFire: true,
		},
		{
			name:     "one buffered and near end prefetches a second",
			state:    models.PlaybackSnapshot{IsPlaying: true, CurrentTrack: track, RemainingSeconds: 45},
			upcoming: 2,
			shadow:   1,
			wantFire: true,
		},
		{
			name:     "one buffered with plenty of time holds",
			state:    models.PlaybackSnapshot{IsPlaying: true, CurrentTrack: track, RemainingSeconds: 200},
			upcoming: 2,
			shadow:   1,
			wantFire: false,
		},
		{
			name:     "two buffered never fires",
			state:    models.PlaybackSnapshot{IsPlaying: true, CurrentTrack: track, RemainingSeconds: 45},
			upcoming: 3,
			shadow:   2,
			wantFire: false,
		},
		{
			name:     "empty live queue fires regardless of remaining",
			state:    models.PlaybackSnapshot{IsPlaying: true, CurrentTrack: track, RemainingSeconds: 200},
			upcoming: 0,
			shadow:   0,
			wantFire: true,
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			session := newSession()
			for i := 0; i < tt.shadow; i++ {
				session.AddShadow(models.ShadowQueueEntry{Title: "Buffered", Artist: "Artist"})
			}
			gate := &stubGate{authorized: true}
			emitter := &mocks.MockEmitter{}

			sched := NewScheduler(session, gate, playerWith(tt.state, tt.upcoming), emitter, nil)
			sched.Evaluate(context.Background())

			if got := session.PickPending(); got != tt.wantFire {
				t.Errorf("PickPending() = %v, want %v", got, tt.wantFire)
			}
		})
	}
}

func TestEvaluateStaleShadowReconcile(t *testing.T) {
	session := newSession()
	session.AddShadow(models.ShadowQueueEntry{Title: "Skipped", Artist: "Artist"})
	session.AddShadow(models.ShadowQueueEntry{Title: "Also Skipped", Artist: "Artist"})

	gate := &stubGate{authorized: true}
	player := playerWith(models.PlaybackSnapshot{IsPlaying: false}, 0)
	emitter := &mocks.MockEmitter{}

	sched := NewScheduler(session, gate, player, emitter, nil)
	sched.Evaluate(context.Background())

	if session.ShadowLen() != 0 {
		t.Errorf("ShadowLen() = %d, want 0 after reconcile", session.ShadowLen())
	}
	// With the stale entries gone the idle trigger fires on the same tick.
	if !session.PickPending() {
		t.Error("expected pick request after reconcile")
	}
}

func TestEvaluateGates(t *testing.T) {
	tc := []struct {
		name       string
		authorized bool
		autoPick   bool
	}{
		{name: "unauthorized session", authorized: false, autoPick: true},
		{name: "auto-pick disabled", authorized: true, autoPick: false},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			session := newSession()
			session.SetAutoPick(tt.autoPick)
			gate := &stubGate{authorized: tt.authorized}
			player := playerWith(models.PlaybackSnapshot{}, 0)
			emitter := &mocks.MockEmitter{}

			sched := NewScheduler(session, gate, player, emitter, nil)
			sched.Evaluate(context.Background())

			if player.CallCount("State") != 0 {
				t.Error("gated evaluate should not touch the provider")
			}
			if session.PickPending() {
				t.Error("gated evaluate should not claim the pick slot")
			}
		})
	}
}

func TestEvaluateEmitFailureReleasesSlot(t *testing.T) {
	session := newSession()
	gate := &stubGate{authorized: true}
	player := playerWith(models.PlaybackSnapshot{IsPlaying: false}, 0)
	emitter := &mocks.MockEmitter{Err: context.DeadlineExceeded}

	sched := NewScheduler(session, gate, player, emitter, nil)
	sched.Evaluate(context.Background())

	if session.PickPending() {
		t.Error("failed emit must release the pick slot")
	}
}
