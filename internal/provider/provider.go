// package provider defines the boundary to the playback SDK bridge.
//
// The bridge wraps the desktop player's SDK behind a local HTTP API; this
// package holds the [Player] interface every automation component programs
// against, plus the auth-shaped error classification the session guardian
// relies on.
package provider

import (
	"context"
	"errors"

	"github.com/desertthunder/djx/internal/models"
	"github.com/desertthunder/djx/internal/shared"
)

// Player defines the operations the automation layer needs from a playback provider.
//
// Every method returning an error may fail with an auth-shaped error
// (detectable via [IsAuthError]); callers route those to the session guardian
// and never retry locally.
type Player interface {
	// Validate issues a cheap read-only call to confirm the session is usable.
	Validate(ctx context.Context) error

	// State returns the normalized playback snapshot.
	State(ctx context.Context) (*models.PlaybackSnapshot, error)

	// Queue returns the provider's live queue, the ground truth the shadow
	// queue is reconciled against.
	Queue(ctx context.Context) (*QueueState, error)

	// Transport controls.
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	SetVolume(ctx context.Context, percent int) error

	// Search resolves a free-text query to concrete provider tracks.
	Search(ctx context.Context, query string) ([]SearchResult, error)

	// PlayNow starts playback of the given track immediately.
	PlayNow(ctx context.Context, trackID string) error

	// InsertNext inserts the track directly after the current one. Providers
	// may reject direct insertion; callers fall back to ReplaceQueue.
	InsertNext(ctx context.Context, trackID string) error

	// ReplaceQueue replaces the upcoming queue with the given track.
	ReplaceQueue(ctx context.Context, trackID string) error
}

// QueueState describes the provider's live queue relative to the current position.
type QueueState struct {
	// Upcoming is the number of items after the current position.
	Upcoming int `json:"upcoming"`
}

// SearchResult is a provider track returned from search, carrying the
// provider-side ID needed for queue operations.
type SearchResult struct {
	Track           models.Track `json:"track"`
	ProviderTrackID string       `json:"provider_track_id"`
}

// IsAuthError reports whether err carries an auth-shaped provider failure
// (expired token, 401/403-equivalent status, explicit session-ended text).
func IsAuthError(err error) bool {
	return errors.Is(err, shared.ErrSessionExpired)
}
