// package weights implements operator bias over track selection: optimistic
// local factors per scope, debounced writes to the selector, and
// reconciliation with the authoritative server values.
package weights

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/djx/internal/models"
	"github.com/desertthunder/djx/internal/selector"
	"github.com/desertthunder/djx/internal/shared"
)

const (
	// MinFactor is the decrement floor. Only an explicit ban reaches zero.
	MinFactor = 0.05
	// Step is the per-edit adjustment increment.
	Step = 0.1
	// DefaultDebounce is the quiet window collapsing rapid edits on one key
	// into a single network write.
	DefaultDebounce = 600 * time.Millisecond

	defaultFactor = 1.0
	flushTimeout  = 10 * time.Second
)

// Identity names one weighted entity. Track edits carry title+artist,
// artist edits carry artist, genre edits carry genre.
type Identity struct {
	Scope  models.WeightScope
	Title  string
	Artist string
	Genre  string
}

// TrackIdentity builds a track-scope identity.
func TrackIdentity(title, artist string) Identity {
	return Identity{Scope: models.ScopeTrack, Title: title, Artist: artist}
}

// ArtistIdentity builds an artist-scope identity.
func ArtistIdentity(artist string) Identity {
	return Identity{Scope: models.ScopeArtist, Artist: artist}
}

// GenreIdentity builds a genre-scope identity.
func GenreIdentity(genre string) Identity {
	return Identity{Scope: models.ScopeGenre, Genre: genre}
}

// Key returns the normalized map key for this identity.
func (i Identity) Key() string {
	switch i.Scope {
	case models.ScopeTrack:
		return string(i.Scope) + ":" + shared.NormalizeTrackKey(i.Title, i.Artist)
	case models.ScopeArtist:
		return string(i.Scope) + ":" + shared.NormalizeField(i.Artist)
	default:
		return string(i.Scope) + ":" + shared.NormalizeField(i.Genre)
	}
}

// Valid reports whether the identity carries the fields its scope requires.
func (i Identity) Valid() bool {
	switch i.Scope {
	case models.ScopeTrack:
		return strings.TrimSpace(i.Title) != ""
	case models.ScopeArtist:
		return strings.TrimSpace(i.Artist) != ""
	case models.ScopeGenre:
		return strings.TrimSpace(i.Genre) != ""
	}
	return false
}

// Adjuster is the slice of the selector client the controller writes through.
type Adjuster interface {
	AdjustWeight(ctx context.Context, req selector.AdjustRequest) (*selector.AdjustResponse, error)
}

// Store persists the optimistic factor cache across restarts. May be nil.
// Factor reports whether the identity was ever persisted; the controller
// hydrates from it on first touch of each key.
type Store interface {
	Upsert(scope models.WeightScope, identity string, factor float64) error
	Factor(scope models.WeightScope, identity string) (float64, bool, error)
}

type pendingEdit struct {
	identity Identity
	factor   float64
	timer    *time.Timer
}

// Controller holds the local factor cache and debounces edits into selector
// writes. Edits apply optimistically; the server's returned factor overwrites
// the local value on a successful write, and a network failure keeps the
// optimistic value (a later read reconciles).
type Controller struct {
	client   Adjuster
	store    Store
	logger   *log.Logger
	debounce time.Duration

	mu      sync.Mutex
	factors map[string]float64
	pending map[string]*pendingEdit
}

// NewController creates a weight controller with the default debounce.
func NewController(client Adjuster, store Store, logger *log.Logger) *Controller {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Controller{
		client:   client,
		store:    store,
		logger:   shared.WithLogger(logger, "component", "weights"),
		debounce: DefaultDebounce,
		factors:  make(map[string]float64),
		pending:  make(map[string]*pendingEdit),
	}
}

// SetDebounce overrides the quiet window. Zero or negative values are ignored.
func (c *Controller) SetDebounce(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.debounce = d
	c.mu.Unlock()
}

// Factor returns the local factor for an identity, hydrating from the
// persisted cache on first touch and defaulting to 1.0.
func (c *Controller) Factor(id Identity) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current(id)
}

// Increment raises the factor by one step and schedules a write.
func (c *Controller) Increment(id Identity) float64 {
	c.mu.Lock()
	factor := c.current(id) + Step
	c.apply(id, factor)
	c.mu.Unlock()
	return factor
}

// Decrement lowers the factor by one step, never below the floor, and
// schedules a write. Reaching exactly zero requires Ban.
func (c *Controller) Decrement(id Identity) float64 {
	c.mu.Lock()
	factor := c.current(id) - Step
	if factor < MinFactor {
		factor = MinFactor
	}
	c.apply(id, factor)
	c.mu.Unlock()
	return factor
}

// Ban sets the factor to exactly zero and writes immediately. Any pending
// debounced edit for the same key is discarded first so a stale increment
// can never overwrite the ban.
func (c *Controller) Ban(id Identity) {
	c.mu.Lock()
	if edit, ok := c.pending[id.Key()]; ok {
		edit.timer.Stop()
		delete(c.pending, id.Key())
	}
	c.factors[id.Key()] = 0
	c.mu.Unlock()

	c.persist(id, 0)
	c.send(id, 0)
}

// SeedMeta overwrites local factors with the server's authoritative values
// for one track, skipping any key with an edit still pending (last human
// intent wins locally).
func (c *Controller) SeedMeta(title, artist string, meta *selector.SongMeta) {
	if meta == nil || !meta.Found {
		return
	}

	seeds := []struct {
		id     Identity
		factor float64
	}{
		{TrackIdentity(title, artist), meta.Weights.Track},
		{ArtistIdentity(artist), meta.Weights.Artist},
		{GenreIdentity(meta.Genre), meta.Weights.Genre},
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, seed := range seeds {
		if !seed.id.Valid() {
			continue
		}
		if _, busy := c.pending[seed.id.Key()]; busy {
			continue
		}
		c.factors[seed.id.Key()] = seed.factor
	}
}

// EffectiveWeight composes the sampling weight for one track. It is derived
// on demand and never stored; any banned scope zeroes the product.
func EffectiveWeight(row, track, artist, genre float64) float64 {
	return max(0, row) * max(0, track) * max(0, artist) * max(0, genre)
}

// Flush fires every pending edit immediately. Used by the CLI, which cannot
// wait out debounce windows before exiting.
func (c *Controller) Flush() {
	c.mu.Lock()
	edits := make([]*pendingEdit, 0, len(c.pending))
	for key, edit := range c.pending {
		edit.timer.Stop()
		edits = append(edits, edit)
		delete(c.pending, key)
	}
	c.mu.Unlock()

	for _, edit := range edits {
		c.send(edit.identity, edit.factor)
	}
}

// current reads the factor without locking; callers hold c.mu. A key not yet
// in memory hydrates from the persisted cache, so a restarted process keeps
// editing from the last value rather than from 1.0.
func (c *Controller) current(id Identity) float64 {
	key := id.Key()
	if f, ok := c.factors[key]; ok {
		return f
	}
	if c.store != nil {
		f, ok, err := c.store.Factor(id.Scope, key)
		if err != nil {
			c.logger.Warn("weight cache read failed", "key", key, "err", err)
		} else if ok {
			c.factors[key] = f
			return f
		}
	}
	return defaultFactor
}

// apply records the optimistic value and (re)schedules the debounced write.
// Callers hold c.mu. Last value within the window wins.
func (c *Controller) apply(id Identity, factor float64) {
	key := id.Key()
	c.factors[key] = factor

	if edit, ok := c.pending[key]; ok {
		edit.factor = factor
		edit.timer.Reset(c.debounce)
		return
	}

	edit := &pendingEdit{identity: id, factor: factor}
	edit.timer = time.AfterFunc(c.debounce, func() {
		c.fire(key)
	})
	c.pending[key] = edit
}

// fire runs when a debounce window closes.
func (c *Controller) fire(key string) {
	c.mu.Lock()
	edit, ok := c.pending[key]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.pending, key)
	c.mu.Unlock()

	c.send(edit.identity, edit.factor)
}

// send posts one factor to the selector and reconciles the response. A
// failed write keeps the optimistic value.
func (c *Controller) send(id Identity, factor float64) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	resp, err := c.client.AdjustWeight(ctx, selector.AdjustRequest{
		Scope:     id.Scope,
		Title:     id.Title,
		Artist:    id.Artist,
		Genre:     id.Genre,
		SetFactor: factor,
	})
	if err != nil {
		c.logger.Warn("weight write failed, keeping optimistic value",
			"key", id.Key(), "factor", factor, "err", err)
		c.persist(id, factor)
		return
	}

	// Server may clamp differently; its value is authoritative, unless a
	// newer edit landed while the write was in flight.
	c.mu.Lock()
	if _, busy := c.pending[id.Key()]; !busy {
		c.factors[id.Key()] = resp.NewFactor
	}
	c.mu.Unlock()

	c.persist(id, resp.NewFactor)
	c.logger.Debug("weight written", "key", id.Key(), "factor", resp.NewFactor)
}

func (c *Controller) persist(id Identity, factor float64) {
	if c.store == nil {
		return
	}
	if err := c.store.Upsert(id.Scope, id.Key(), factor); err != nil {
		c.logger.Warn("weight cache write failed", "key", id.Key(), "err", err)
	}
}
