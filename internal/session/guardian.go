// package session tracks provider session health and coordinates recovery.
//
// Every component that talks to the playback provider reports auth-shaped
// failures here; the guardian owns the reauthorization lifecycle and fires
// reset hooks so dependent state (shadow queue, pending picks) never survives
// a session boundary.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/djx/internal/models"
	"github.com/desertthunder/djx/internal/provider"
	"github.com/desertthunder/djx/internal/shared"
)

// ResetHook runs after a forced reauthorization. Hooks must not call back
// into the guardian.
type ResetHook func(reason string)

// AuthFunc performs one authorization attempt against the provider.
type AuthFunc func(ctx context.Context) error

// Guardian owns the provider session state machine.
type Guardian struct {
	player provider.Player
	authFn AuthFunc
	logger *log.Logger

	mu    sync.Mutex
	state models.SessionState
	hooks []ResetHook
}

// NewGuardian creates a guardian in the Unauthorized state.
func NewGuardian(player provider.Player, authFn AuthFunc, logger *log.Logger) *Guardian {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Guardian{
		player: player,
		authFn: authFn,
		logger: shared.WithLogger(logger, "component", "session"),
		state:  models.Unauthorized,
	}
}

// State returns the current session state.
func (g *Guardian) State() models.SessionState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Authorized reports whether provider calls are expected to succeed.
func (g *Guardian) Authorized() bool {
	return g.State() == models.Authorized
}

// OnReset registers a hook to run after every forced reauthorization.
func (g *Guardian) OnReset(hook ResetHook) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hooks = append(g.hooks, hook)
}

// Authorize runs the configured auth flow and moves the session to
// Authorized on success.
func (g *Guardian) Authorize(ctx context.Context) error {
	g.mu.Lock()
	if g.state == models.Authorizing {
		g.mu.Unlock()
		return fmt.Errorf("%w: authorization already in progress", shared.ErrAuthFailed)
	}
	prev := g.state
	g.state = models.Authorizing
	g.mu.Unlock()

	if err := g.authFn(ctx); err != nil {
		g.setState(prev)
		return fmt.Errorf("provider authorization failed: %w", err)
	}

	g.setState(models.Authorized)
	g.logger.Info("provider session authorized")
	return nil
}

// Validate pings the provider to confirm the session is still live. An
// auth-shaped failure forces reauthorization.
func (g *Guardian) Validate(ctx context.Context) error {
	err := g.player.Validate(ctx)
	if err == nil {
		return nil
	}
	if provider.IsAuthError(err) {
		g.ForceReauthorize("validation failed")
	}
	return err
}

// ForceReauthorize invalidates the session and runs every reset hook.
// Idempotent while a reauthorization is already pending.
func (g *Guardian) ForceReauthorize(reason string) {
	g.mu.Lock()
	if g.state == models.Reauthorizing || g.state == models.Unauthorized {
		g.mu.Unlock()
		return
	}
	g.state = models.Reauthorizing
	hooks := make([]ResetHook, len(g.hooks))
	copy(hooks, g.hooks)
	g.mu.Unlock()

	g.logger.Warn("provider session invalidated", "reason", reason)
	for _, hook := range hooks {
		hook(reason)
	}
}

// HandleProviderError inspects an error from a provider call. Auth-shaped
// errors trigger a forced reauthorization; the return value reports whether
// the caller should abandon its current operation.
func (g *Guardian) HandleProviderError(err error) bool {
	if err == nil || !provider.IsAuthError(err) {
		return false
	}
	g.ForceReauthorize("provider rejected session")
	return true
}

// Reauthorize retries the auth flow after a forced invalidation.
func (g *Guardian) Reauthorize(ctx context.Context) error {
	if g.State() != models.Reauthorizing {
		return nil
	}

	if err := g.authFn(ctx); err != nil {
		return fmt.Errorf("provider reauthorization failed: %w", err)
	}

	g.setState(models.Authorized)
	g.logger.Info("provider session restored")
	return nil
}

func (g *Guardian) setState(state models.SessionState) {
	g.mu.Lock()
	g.state = state
	g.mu.Unlock()
}
