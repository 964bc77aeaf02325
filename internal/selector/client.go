// package selector implements the HTTP client for the selector service.
//
// The selector owns track scoring and ranking; this client only carries the
// operations the automation layer needs: weight adjustments, manual picks,
// the advisory enable flag, song metadata reads, and provider token issuing.
package selector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/djx/internal/models"
	"github.com/desertthunder/djx/internal/shared"
	"golang.org/x/time/rate"
)

const defaultSelectorURL = "http://localhost:5000"

// Client provides methods for calling the selector's REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewClient creates a selector API client.
//
// writeRate caps POST traffic (weight debounce storms should never hammer the
// selector); zero or negative disables the cap.
func NewClient(baseURL string, client *http.Client, writeRate float64, logger *log.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultSelectorURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	var limiter *rate.Limiter
	if writeRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(writeRate), 1)
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: client,
		limiter:    limiter,
		logger:     shared.WithLogger(logger, "component", "selector"),
	}
}

// AdjustRequest is the body of POST /weights/adjust. Identity fields are
// populated per scope: track edits carry title+artist, artist edits carry
// artist, genre edits carry genre.
type AdjustRequest struct {
	Scope     models.WeightScope `json:"scope"`
	Title     string             `json:"title,omitempty"`
	Artist    string             `json:"artist,omitempty"`
	Genre     string             `json:"genre,omitempty"`
	SetFactor float64            `json:"set_factor"`
}

// AdjustResponse carries the authoritative factor the server settled on,
// which overwrites the optimistic local value.
type AdjustResponse struct {
	Status    string  `json:"status"`
	NewFactor float64 `json:"new_factor"`
}

// PickResponse is the result of a manual pick request.
type PickResponse struct {
	Status string `json:"status"`
}

// StatusResponse reports the selector's advisory enabled flag and stats.
type StatusResponse struct {
	Enabled bool           `json:"enabled"`
	Stats   map[string]any `json:"stats"`
}

// SongMeta is the authoritative per-track metadata and weight state.
type SongMeta struct {
	Found     bool               `json:"found"`
	Genre     string             `json:"genre"`
	Sliders   map[string]float64 `json:"sliders"`
	RowWeight float64            `json:"row_weight"`
	Weights   SongWeights        `json:"weights"`
}

// SongWeights carries the server-side scope factors for one track.
type SongWeights struct {
	Track  float64 `json:"track"`
	Artist float64 `json:"artist"`
	Genre  float64 `json:"genre"`
}

// TokenResponse is the developer/session token issued for the playback provider.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AdjustWeight posts a weight adjustment and returns the authoritative factor.
func (c *Client) AdjustWeight(ctx context.Context, req AdjustRequest) (*AdjustResponse, error) {
	if !req.Scope.Valid() {
		return nil, fmt.Errorf("%w: unknown scope %q", shared.ErrInvalidInput, req.Scope)
	}

	var resp AdjustResponse
	if err := c.post(ctx, "/weights/adjust", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PickOnce asks the selector for exactly one pick, independent of the
// auto-pick preference.
func (c *Client) PickOnce(ctx context.Context) (*PickResponse, error) {
	var resp PickResponse
	if err := c.post(ctx, "/dj/pick_once", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Enable flips the selector's advisory enabled flag on.
func (c *Client) Enable(ctx context.Context) error {
	return c.post(ctx, "/dj/enable", nil, nil)
}

// Disable flips the selector's advisory enabled flag off.
func (c *Client) Disable(ctx context.Context) error {
	return c.post(ctx, "/dj/disable", nil, nil)
}

// Status reads the selector's advisory flag and stats.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.get(ctx, "/dj/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetSongMeta reads the authoritative metadata and weights for a track.
func (c *Client) GetSongMeta(ctx context.Context, title, artist string) (*SongMeta, error) {
	endpoint := fmt.Sprintf("/song_meta?title=%s&artist=%s",
		url.QueryEscape(title), url.QueryEscape(artist))

	var resp SongMeta
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Token requests a provider token for the given origin.
func (c *Client) Token(ctx context.Context, origin string) (*TokenResponse, error) {
	endpoint := "/token?origin=" + url.QueryEscape(origin)

	var resp TokenResponse
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("%w: selector returned empty token", shared.ErrAuthFailed)
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
	}
	return c.do(ctx, http.MethodPost, path, body, result)
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	fullURL := c.baseURL + path

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

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: selector status %d", shared.ErrServiceUnavailable, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: selector status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
