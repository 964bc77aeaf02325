package models

// WeightScope identifies which slice of a track's identity a weight factor applies to.
type WeightScope string

const (
	ScopeTrack  WeightScope = "track"
	ScopeArtist WeightScope = "artist"
	ScopeGenre  WeightScope = "genre"
)

// Valid reports whether the scope is one of track, artist or genre.
func (s WeightScope) Valid() bool {
	switch s {
	case ScopeTrack, ScopeArtist, ScopeGenre:
		return true
	}
	return false
}

// SessionState tracks the provider authorization lifecycle.
//
// Transitions happen only inside the session guardian; every other component
// treats a non-Authorized state as a gate, not an error.
type SessionState int

const (
	Unauthorized SessionState = iota
	Authorizing
	Authorized
	Reauthorizing
)

// String returns the lowercase state name for logs and status output.
func (s SessionState) String() string {
	switch s {
	case Unauthorized:
		return "unauthorized"
	case Authorizing:
		return "authorizing"
	case Authorized:
		return "authorized"
	case Reauthorizing:
		return "reauthorizing"
	}
	return "unknown"
}

// Track represents a playable track as reported by the provider or selector.
type Track struct {
	Title           string `json:"title"`
	Artist          string `json:"artist"`
	Album           string `json:"album,omitempty"`
	DurationSeconds int    `json:"duration_seconds"`
	ArtworkRef      string `json:"artwork_ref,omitempty"`
}

// ShadowQueueEntry records a track this client asked the provider to queue,
// not yet confirmed as now-playing. Entries are matched by title+artist and
// removed the moment the provider reports the track as current.
type ShadowQueueEntry struct {
	Title           string `json:"title"`
	Artist          string `json:"artist"`
	ProviderTrackID string `json:"provider_track_id"`
}

// PlaybackSnapshot is the normalized playback state reported outward.
type PlaybackSnapshot struct {
	IsPlaying        bool   `json:"is_playing"`
	CurrentTrack     *Track `json:"current_track"`
	ProgressSeconds  int    `json:"progress_seconds"`
	DurationSeconds  int    `json:"duration_seconds"`
	RemainingSeconds int    `json:"remaining_seconds"`
	Volume           int    `json:"volume"`
}

// DjConfig holds the client-authoritative automation preferences.
//
// Both flags persist locally; the selector's own enabled bit is advisory and
// never overwrites these.
type DjConfig struct {
	AutoPickEnabled   bool `json:"auto_pick_enabled"`
	PauseOnAfkEnabled bool `json:"pause_on_afk_enabled"`
}

// AfkState is an externally-pushed presence transition.
type AfkState struct {
	IsAfk        bool `json:"is_afk"`
	JustWentAfk  bool `json:"just_went_afk"`
	JustReturned bool `json:"just_returned"`
}
