// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/djx/internal/models"
	"github.com/desertthunder/djx/internal/provider"
)

// MockPlayer is a scriptable test double for [provider.Player]. Each field
// overrides one method; unset methods succeed with zero values. Calls records
// method names in invocation order.
type MockPlayer struct {
	mu    sync.Mutex
	Calls []string

	ValidateFunc     func(ctx context.Context) error
	StateFunc        func(ctx context.Context) (*models.PlaybackSnapshot, error)
	QueueFunc        func(ctx context.Context) (*provider.QueueState, error)
	PlayFunc         func(ctx context.Context) error
	PauseFunc        func(ctx context.Context) error
	NextFunc         func(ctx context.Context) error
	PreviousFunc     func(ctx context.Context) error
	SetVolumeFunc    func(ctx context.Context, percent int) error
	SearchFunc       func(ctx context.Context, query string) ([]provider.SearchResult, error)
	PlayNowFunc      func(ctx context.Context, trackID string) error
	InsertNextFunc   func(ctx context.Context, trackID string) error
	ReplaceQueueFunc func(ctx context.Context, trackID string) error
}

func (m *MockPlayer) record(name string) {
	m.mu.Lock()
	m.Calls = append(m.Calls, name)
	m.mu.Unlock()
}

// CallCount returns how many times the named method was invoked.
func (m *MockPlayer) CallCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, call := range m.Calls {
		if call == name {
			count++
		}
	}
	return count
}

func (m *MockPlayer) Validate(ctx context.Context) error {
	m.record("Validate")
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx)
	}
	return nil
}

func (m *MockPlayer) State(ctx context.Context) (*models.PlaybackSnapshot, error) {
	m.record("State")
	if m.StateFunc != nil {
		return m.StateFunc(ctx)
	}
	return &models.PlaybackSnapshot{}, nil
}

func (m *MockPlayer) Queue(ctx context.Context) (*provider.QueueState, error) {
	m.record("Queue")
	if m.QueueFunc != nil {
		return m.QueueFunc(ctx)
	}
	return &provider.QueueState{}, nil
}

func (m *MockPlayer) Play(ctx context.Context) error {
	m.record("Play")
	if m.PlayFunc != nil {
		return m.PlayFunc(ctx)
	}
	return nil
}

func (m *MockPlayer) Pause(ctx context.Context) error {
	m.record("Pause")
	if m.PauseFunc != nil {
		return m.PauseFunc(ctx)
	}
	return nil
}

func (m *MockPlayer) Next(ctx context.Context) error {
	m.record("Next")
	if m.NextFunc != nil {
		return m.NextFunc(ctx)
	}
	return nil
}

func (m *MockPlayer) Previous(ctx context.Context) error {
	m.record("Previous")
	if m.PreviousFunc != nil {
		return m.PreviousFunc(ctx)
	}
	return nil
}

func (m *MockPlayer) SetVolume(ctx context.Context, percent int) error {
	m.record("SetVolume")
	if m.SetVolumeFunc != nil {
		return m.SetVolumeFunc(ctx, percent)
	}
	return nil
}

func (m *MockPlayer) Search(ctx context.Context, query string) ([]provider.SearchResult, error) {
	m.record("Search")
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query)
	}
	return nil, nil
}

func (m *MockPlayer) PlayNow(ctx context.Context, trackID string) error {
	m.record("PlayNow")
	if m.PlayNowFunc != nil {
		return m.PlayNowFunc(ctx, trackID)
	}
	return nil
}

func (m *MockPlayer) InsertNext(ctx context.Context, trackID string) error {
	m.record("InsertNext")
	if m.InsertNextFunc != nil {
		return m.InsertNextFunc(ctx, trackID)
	}
	return nil
}

func (m *MockPlayer) ReplaceQueue(ctx context.Context, trackID string) error {
	m.record("ReplaceQueue")
	if m.ReplaceQueueFunc != nil {
		return m.ReplaceQueueFunc(ctx, trackID)
	}
	return nil
}

// MockEmitter records outbound channel events for assertions.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
	Err    error
}

// EmittedEvent is one recorded Emit call.
type EmittedEvent struct {
	Kind    string
	Payload any
}

func (m *MockEmitter) Emit(ctx context.Context, kind string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Events = append(m.Events, EmittedEvent{Kind: kind, Payload: payload})
	return nil
}

// Kinds returns the recorded event kinds in order.
func (m *MockEmitter) Kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	kinds := make([]string, len(m.Events))
	for i, e := range m.Events {
		kinds[i] = e.Kind
	}
	return kinds
}

// Last returns the most recent event, or false when none were emitted.
func (m *MockEmitter) Last() (EmittedEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Events) == 0 {
		return EmittedEvent{}, false
	}
	return m.Events[len(m.Events)-1], true
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
