package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestBridge(t *testing.T, handler http.HandlerFunc) (*Bridge, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	bridge := NewBridge(server.URL, server.Client(), nil)
	bridge.SetToken("test-token")
	return bridge, server
}

func TestBridgeState(t *testing.T) {
	bridge, _ := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/player/state" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("unexpected authorization header: %s", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"is_playing": true,
			"track": map[string]any{
				"id":               "t1",
				"title":            "Blue Train",
				"artist":           "John Coltrane",
				"duration_seconds": 635,
			},
			"progress_seconds": 600,
			"volume":           80,
		})
	})

	snap, err := bridge.State(context.Background())
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}

	if !snap.IsPlaying {
		t.Error("expected playing state")
	}
	if snap.CurrentTrack == nil || snap.CurrentTrack.Title != "Blue Train" {
		t.Errorf("unexpected current track: %+v", snap.CurrentTrack)
	}
	if snap.RemainingSeconds != 35 {
		t.Errorf("RemainingSeconds = %d, want 35", snap.RemainingSeconds)
	}
}

func TestBridgeAuthErrorMapping(t *testing.T) {
	tc := []struct {
		name   string
		status int
		detail string
		auth   bool
	}{
		{name: "401 is auth shaped", status: http.StatusUnauthorized, detail: "", auth: true},
		{name: "403 is auth shaped", status: http.StatusForbidden, detail: "", auth: true},
		{name: "expired token marker", status: http.StatusBadRequest, detail: "Token expired, re-authorize", auth: true},
		{name: "session ended marker", status: http.StatusInternalServerError, detail: "playback session ended", auth: true},
		{name: "plain server error", status: http.StatusInternalServerError, detail: "boom", auth: false},
		{name: "not found", status: http.StatusNotFound, detail: "no such endpoint", auth: false},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			bridge, _ := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]string{"detail": tt.detail})
			})

			err := bridge.Validate(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if got := IsAuthError(err); got != tt.auth {
				t.Errorf("IsAuthError() = %v, want %v (err: %v)", got, tt.auth, err)
			}
		})
	}
}

func TestBridgeSearch(t *testing.T) {
	bridge, _ := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "so what" {
			t.Errorf("unexpected query: %s", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"id": "abc", "title": "So What", "artist": "Miles Davis", "duration_seconds": 545},
				{"id": "def", "title": "So What (Live)", "artist": "Miles Davis", "duration_seconds": 610},
			},
		})
	})

	results, err := bridge.Search(context.Background(), "so what")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ProviderTrackID != "abc" || results[0].Track.Title != "So What" {
		t.Errorf("unexpected first result: %+v", results[0])
	}
}

func TestBridgeSetVolumeClamps(t *testing.T) {
	var got int
	bridge, _ := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Percent int `json:"percent"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		got = body.Percent
		w.WriteHeader(http.StatusOK)
	})

	if err := bridge.SetVolume(context.Background(), 150); err != nil {
		t.Fatalf("SetVolume() error = %v", err)
	}
	if got != 100 {
		t.Errorf("volume = %d, want clamped 100", got)
	}

	if err := bridge.SetVolume(context.Background(), -5); err != nil {
		t.Fatalf("SetVolume() error = %v", err)
	}
	if got != 0 {
		t.Errorf("volume = %d, want clamped 0", got)
	}
}
