// package channel implements the push channel between the client and the selector.
//
// Inbound messages are commands the dispatcher executes against the playback
// provider; outbound messages are state snapshots and pick/backup requests.
package channel

import (
	"encoding/json"
	"fmt"
	"time"
)

// Inbound message kinds.
const (
	KindPlay          = "play"
	KindPause         = "pause"
	KindNext          = "next"
	KindPrevious      = "previous"
	KindSetVolume     = "set_volume"
	KindSearchAndPlay = "search_and_play"
	KindQueueNext     = "queue_next"
	KindGetState      = "get_state"
	KindAfkState      = "afk_state"
)

// Outbound message kinds.
const (
	KindStateUpdate   = "state_update"
	KindPickRequest   = "pick_request"
	KindSongQueued    = "song_queued"
	KindBackupRequest = "backup_request"
)

// Message is the wire envelope for both directions.
type Message struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// VolumePayload accompanies set_volume commands.
type VolumePayload struct {
	Volume int `json:"volume"`
}

// QueryPayload accompanies search_and_play and queue_next commands.
type QueryPayload struct {
	Query string `json:"query"`
}

// AfkPayload accompanies out-of-band presence transitions.
type AfkPayload struct {
	IsAfk        bool `json:"is_afk"`
	JustWentAfk  bool `json:"just_went_afk"`
	JustReturned bool `json:"just_returned"`
}

// PickRequestPayload asks the selector for a new track recommendation.
type PickRequestPayload struct {
	QueueLength   int       `json:"queue_length"`
	DjQueuedCount int       `json:"dj_queued_count"`
	Timestamp     time.Time `json:"timestamp"`
}

// SongQueuedPayload confirms a fulfilled queue command.
type SongQueuedPayload struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Query  string `json:"query"`
}

// BackupRequestPayload reports a query the provider could not resolve, so the
// selector can fall back to a different strategy. Distinct from a timeout.
type BackupRequestPayload struct {
	FailedQuery string    `json:"failed_query"`
	Timestamp   time.Time `json:"timestamp"`
}

// Encode builds the wire bytes for a message of the given kind.
func Encode(kind string, payload any) ([]byte, error) {
	msg := Message{Kind: kind}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", kind, err)
		}
		msg.Data = data
	}

	out, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s message: %w", kind, err)
	}
	return out, nil
}

// Decode parses wire bytes into a [Message].
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("failed to decode message: %w", err)
	}
	if msg.Kind == "" {
		return Message{}, fmt.Errorf("message missing kind")
	}
	return msg, nil
}

// DecodeData parses a message's payload into the given type.
func DecodeData[T any](msg Message) (T, error) {
	var payload T
	if len(msg.Data) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		return payload, fmt.Errorf("failed to decode %s payload: %w", msg.Kind, err)
	}
	return payload, nil
}
