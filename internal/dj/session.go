// package dj implements the automation layer that keeps playback supplied
// with selector-chosen tracks: shared session state, the prefetch scheduler,
// the command dispatcher, the state reporter, and the AFK policy engine.
package dj

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/djx/internal/models"
	"github.com/desertthunder/djx/internal/shared"
)

// DefaultPickTimeout bounds how long a pick request may stay outstanding
// before the pending flag clears unconditionally. It must exceed the
// selector's worst-case generation latency (~30s).
const DefaultPickTimeout = 60 * time.Second

// Emitter carries outbound events to the selector over the push channel.
type Emitter interface {
	Emit(ctx context.Context, kind string, payload any) error
}

// PrefsStore persists the client-authoritative DJ preferences.
type PrefsStore interface {
	Get() (models.DjConfig, error)
	SetAutoPick(enabled bool) error
	SetPauseOnAfk(enabled bool) error
}

// PlayerSession owns the state shared between the scheduler, dispatcher, and
// reporter: the shadow queue, the single pending pick slot, and the
// client-authoritative preferences. All access is mutex-guarded; there are
// no package-level mutable globals.
type PlayerSession struct {
	logger      *log.Logger
	pickTimeout time.Duration
	prefs       PrefsStore

	mu        sync.Mutex
	shadow    []models.ShadowQueueEntry
	pickID    string
	pickTimer *time.Timer
	config    models.DjConfig
}

// NewPlayerSession creates session state with the given preferences. The
// prefs store may be nil; flag changes then live only in memory.
func NewPlayerSession(config models.DjConfig, prefs PrefsStore, logger *log.Logger) *PlayerSession {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &PlayerSession{
		logger:      shared.WithLogger(logger, "component", "session_state"),
		pickTimeout: DefaultPickTimeout,
		prefs:       prefs,
		config:      config,
	}
}

// SetPickTimeout overrides the pick-request timeout. Zero or negative values
// are ignored.
func (s *PlayerSession) SetPickTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	s.pickTimeout = d
	s.mu.Unlock()
}

// AddShadow records a track the automation layer queued but the provider has
// not yet confirmed as playing.
func (s *PlayerSession) AddShadow(entry models.ShadowQueueEntry) {
	s.mu.Lock()
	s.shadow = append(s.shadow, entry)
	s.mu.Unlock()
	s.logger.Debug("shadow entry added", "title", entry.Title, "artist", entry.Artist)
}

// ShadowLen returns the number of unconfirmed queued tracks.
func (s *PlayerSession) ShadowLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.shadow)
}

// ShadowEntries returns a copy of the shadow queue.
func (s *PlayerSession) ShadowEntries() []models.ShadowQueueEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ShadowQueueEntry, len(s.shadow))
	copy(out, s.shadow)
	return out
}

// ClearShadow discards every shadow entry.
func (s *PlayerSession) ClearShadow(reason string) {
	s.mu.Lock()
	n := len(s.shadow)
	s.shadow = nil
	s.mu.Unlock()
	if n > 0 {
		s.logger.Info("shadow queue cleared", "entries", n, "reason", reason)
	}
}

// ConfirmPlaying removes the shadow entry matching the now-playing identity,
// reporting whether one matched. Matching uses the normalized title|artist
// key, not the provider track id, because the provider may substitute an
// equivalent upload.
func (s *PlayerSession) ConfirmPlaying(title, artist string) bool {
	key := shared.NormalizeTrackKey(title, artist)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, entry := range s.shadow {
		if shared.NormalizeTrackKey(entry.Title, entry.Artist) == key {
			s.shadow = append(s.shadow[:i], s.shadow[i+1:]...)
			s.logger.Debug("shadow entry confirmed", "title", entry.Title, "artist", entry.Artist)
			return true
		}
	}
	return false
}

// TryBeginPick claims the single pending-pick slot. When it succeeds it
// returns a correlation id and arms the timeout that releases the slot
// unconditionally; when a pick is already outstanding it returns ok=false.
func (s *PlayerSession) TryBeginPick() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pickID != "" {
		return "", false
	}

	id := shared.GenerateID()
	s.pickID = id
	s.pickTimer = time.AfterFunc(s.pickTimeout, func() {
		s.ClearPick(id, "timeout")
	})
	return id, true
}

// ClearPick releases the pending-pick slot. A non-empty id only clears its
// own claim (a stale timeout must not cancel a newer pick); the empty id
// forces the clear regardless of owner.
func (s *PlayerSession) ClearPick(id, reason string) {
	s.mu.Lock()
	if s.pickID == "" || (id != "" && id != s.pickID) {
		s.mu.Unlock()
		return
	}
	cleared := s.pickID
	s.pickID = ""
	if s.pickTimer != nil {
		s.pickTimer.Stop()
		s.pickTimer = nil
	}
	s.mu.Unlock()
	s.logger.Debug("pick request cleared", "id", cleared, "reason", reason)
}

// PickPending reports whether a pick request is outstanding.
func (s *PlayerSession) PickPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pickID != ""
}

// AutoPickEnabled reports the client-authoritative auto-pick flag. This is
// distinct from the selector's own advisory enabled bit and the two are
// never merged.
func (s *PlayerSession) AutoPickEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.AutoPickEnabled
}

// SetAutoPick updates and persists the auto-pick flag.
func (s *PlayerSession) SetAutoPick(enabled bool) error {
	s.mu.Lock()
	s.config.AutoPickEnabled = enabled
	s.mu.Unlock()

	if s.prefs != nil {
		return s.prefs.SetAutoPick(enabled)
	}
	return nil
}

// PauseOnAfkEnabled reports the local AFK-pause preference.
func (s *PlayerSession) PauseOnAfkEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.PauseOnAfkEnabled
}

// SetPauseOnAfk updates and persists the AFK-pause preference.
func (s *PlayerSession) SetPauseOnAfk(enabled bool) error {
	s.mu.Lock()
	s.config.PauseOnAfkEnabled = enabled
	s.mu.Unlock()

	if s.prefs != nil {
		return s.prefs.SetPauseOnAfk(enabled)
	}
	return nil
}

// Config returns a copy of the client-authoritative preferences.
func (s *PlayerSession) Config() models.DjConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// Reset clears every in-flight assumption: the shadow queue and the pending
// pick slot. Wired as a guardian reset hook so stale state never survives a
// session boundary.
func (s *PlayerSession) Reset(reason string) {
	s.ClearShadow(reason)
	s.ClearPick("", reason)
}
