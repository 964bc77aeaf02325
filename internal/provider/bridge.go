// Playback bridge implementation of [Player]
//
// Communicates with the local bridge process that wraps the desktop player's
// SDK. All state-changing endpoints require a bearer token; the session
// guardian owns obtaining and refreshing it.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/djx/internal/models"
	"github.com/desertthunder/djx/internal/shared"
	"golang.org/x/oauth2"
)

const defaultBridgeURL = "http://localhost:9863"

// sessionEndedMarkers are body substrings the bridge uses for auth-shaped
// failures that arrive with a non-401 status.
var sessionEndedMarkers = []string{
	"token expired",
	"session ended",
	"not authorized",
	"unauthorized",
}

// Bridge implements [Player] against the local playback bridge HTTP API.
type Bridge struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger

	mu     sync.RWMutex
	tokens oauth2.TokenSource
}

// NewBridge creates a new playback bridge client.
func NewBridge(baseURL string, client *http.Client, logger *log.Logger) *Bridge {
	if baseURL == "" {
		baseURL = defaultBridgeURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &Bridge{
		baseURL:    baseURL,
		httpClient: client,
		logger:     shared.WithLogger(logger, "component", "bridge"),
	}
}

// SetTokenSource installs the token source used for bearer authorization.
//
// A static developer token from the selector and an interactive OAuth token
// both arrive through here; the bridge does not care which.
func (b *Bridge) SetTokenSource(ts oauth2.TokenSource) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = ts
}

// SetToken is a convenience wrapper installing a static token.
func (b *Bridge) SetToken(accessToken string) {
	b.SetTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
}

// Authorize hands the current token to the bridge so it can complete the
// SDK-side authorization. The bridge surfaces its own consent UI if needed.
func (b *Bridge) Authorize(ctx context.Context) error {
	return b.doRequest(ctx, http.MethodPost, "/session/authorize", nil, nil)
}

// Validate issues the cheap read-only session ping.
func (b *Bridge) Validate(ctx context.Context) error {
	return b.doRequest(ctx, http.MethodGet, "/session/ping", nil, nil)
}

// State returns the normalized playback snapshot.
func (b *Bridge) State(ctx context.Context) (*models.PlaybackSnapshot, error) {
	var state bridgeState
	if err := b.doRequest(ctx, http.MethodGet, "/player/state", nil, &state); err != nil {
		return nil, err
	}
	return state.snapshot(), nil
}

// Queue returns the live queue relative to the current position.
func (b *Bridge) Queue(ctx context.Context) (*QueueState, error) {
	var queue QueueState
	if err := b.doRequest(ctx, http.MethodGet, "/player/queue", nil, &queue); err != nil {
		return nil, err
	}
	return &queue, nil
}

// Play resumes playback.
func (b *Bridge) Play(ctx context.Context) error {
	return b.doRequest(ctx, http.MethodPost, "/player/play", nil, nil)
}

// Pause pauses playback.
func (b *Bridge) Pause(ctx context.Context) error {
	return b.doRequest(ctx, http.MethodPost, "/player/pause", nil, nil)
}

// Next skips to the next track.
func (b *Bridge) Next(ctx context.Context) error {
	return b.doRequest(ctx, http.MethodPost, "/player/next", nil, nil)
}

// Previous returns to the previous track.
func (b *Bridge) Previous(ctx context.Context) error {
	return b.doRequest(ctx, http.MethodPost, "/player/previous", nil, nil)
}

// SetVolume sets the player volume (0-100).
func (b *Bridge) SetVolume(ctx context.Context, percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	body := map[string]int{"percent": percent}
	return b.doRequest(ctx, http.MethodPost, "/player/volume", body, nil)
}

// Search resolves a free-text query against the provider's catalog.
func (b *Bridge) Search(ctx context.Context, query string) ([]SearchResult, error) {
	endpoint := "/search?q=" + url.QueryEscape(query)

	var response struct {
		Results []bridgeTrack `json:"results"`
	}
	if err := b.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(response.Results))
	for _, t := range response.Results {
		results = append(results, SearchResult{
			Track:           t.track(),
			ProviderTrackID: t.ID,
		})
	}
	return results, nil
}

// PlayNow starts playback of the given track immediately.
func (b *Bridge) PlayNow(ctx context.Context, trackID string) error {
	return b.doRequest(ctx, http.MethodPost, "/player/play_now", map[string]string{"track_id": trackID}, nil)
}

// InsertNext inserts the track directly after the current one.
func (b *Bridge) InsertNext(ctx context.Context, trackID string) error {
	return b.doRequest(ctx, http.MethodPost, "/player/queue_next", map[string]string{"track_id": trackID}, nil)
}

// ReplaceQueue replaces the upcoming queue with the given track.
func (b *Bridge) ReplaceQueue(ctx context.Context, trackID string) error {
	return b.doRequest(ctx, http.MethodPost, "/player/queue_replace", map[string]string{"track_id": trackID}, nil)
}

// doRequest performs an authenticated request against the bridge and decodes
// the JSON response into result. Auth-shaped failures are mapped to
// [shared.ErrSessionExpired] so callers can classify them with [IsAuthError].
func (b *Bridge) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	apiURL := b.baseURL + endpoint

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	b.mu.RLock()
	tokens := b.tokens
	b.mu.RUnlock()

	if tokens != nil {
		tok, err := tokens.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrSessionExpired, err)
		}
		req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Detail string `json:"detail"`
		}
		detail := ""
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
			detail = errResp.Detail
		}

		if authShaped(resp.StatusCode, detail) {
			return fmt.Errorf("%w: status %d: %s", shared.ErrSessionExpired, resp.StatusCode, detail)
		}
		if detail != "" {
			return fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, detail)
		}
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// authShaped classifies a bridge failure as an authorization failure.
func authShaped(status int, detail string) bool {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return true
	}
	lower := strings.ToLower(detail)
	for _, marker := range sessionEndedMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// bridgeState is the raw /player/state response.
type bridgeState struct {
	IsPlaying       bool         `json:"is_playing"`
	Track           *bridgeTrack `json:"track"`
	ProgressSeconds int          `json:"progress_seconds"`
	Volume          int          `json:"volume"`
}

// bridgeTrack is a track in bridge responses.
type bridgeTrack struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Artist          string `json:"artist"`
	Album           string `json:"album"`
	DurationSeconds int    `json:"duration_seconds"`
	ArtworkURL      string `json:"artwork_url"`
}

func (t bridgeTrack) track() models.Track {
	return models.Track{
		Title:           t.Title,
		Artist:          t.Artist,
		Album:           t.Album,
		DurationSeconds: t.DurationSeconds,
		ArtworkRef:      t.ArtworkURL,
	}
}

func (s bridgeState) snapshot() *models.PlaybackSnapshot {
	snap := &models.PlaybackSnapshot{
		IsPlaying:       s.IsPlaying,
		ProgressSeconds: s.ProgressSeconds,
		Volume:          s.Volume,
	}
	if s.Track != nil {
		track := s.Track.track()
		snap.CurrentTrack = &track
		snap.DurationSeconds = track.DurationSeconds
		remaining := track.DurationSeconds - s.ProgressSeconds
		if remaining < 0 {
			remaining = 0
		}
		snap.RemainingSeconds = remaining
	}
	return snap
}
