// package formatter renders playback state and weight data for CLI output and export (CSV, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/desertthunder/djx/internal/models"
	"github.com/desertthunder/djx/internal/repositories"
	"github.com/desertthunder/djx/internal/shared"
)

// SnapshotToText converts a playback snapshot to plain text
func SnapshotToText(snapshot *models.PlaybackSnapshot) []byte {
	var buf bytes.Buffer

	state := "paused"
	if snapshot.IsPlaying {
		state = "playing"
	}
	buf.WriteString(fmt.Sprintf("State: %s\n", state))

	if snapshot.CurrentTrack != nil {
		track := snapshot.CurrentTrack
		buf.WriteString(fmt.Sprintf("Track: %s - %s\n", track.Artist, track.Title))
		if track.Album != "" {
			buf.WriteString(fmt.Sprintf("Album: %s\n", track.Album))
		}
		buf.WriteString(fmt.Sprintf("Position: %s / %s (%s left)\n",
			shared.FormatDuration(snapshot.ProgressSeconds),
			shared.FormatDuration(snapshot.DurationSeconds),
			shared.FormatDuration(snapshot.RemainingSeconds)))
	} else {
		buf.WriteString("Track: none\n")
	}

	buf.WriteString(fmt.Sprintf("Volume: %d%%\n", snapshot.Volume))
	return buf.Bytes()
}

// WeightsToCSV converts cached weights to CSV format with columns: Scope, Identity, Factor, UpdatedAt
func WeightsToCSV(weights []repositories.StoredWeight) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Scope", "Identity", "Factor", "UpdatedAt"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, weight := range weights {
		record := []string{
			string(weight.Scope),
			weight.Identity,
			strconv.FormatFloat(weight.Factor, 'f', -1, 64),
			weight.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// WeightsToText converts cached weights to plain text format
func WeightsToText(weights []repositories.StoredWeight) []byte {
	var buf bytes.Buffer

	if len(weights) == 0 {
		buf.WriteString("No cached weights.\n")
		return buf.Bytes()
	}

	buf.WriteString(fmt.Sprintf("Cached weights: %d\n\n", len(weights)))
	for _, weight := range weights {
		marker := ""
		if weight.Factor == 0 {
			marker = " (banned)"
		}
		buf.WriteString(fmt.Sprintf("%-7s %.2f  %s%s\n", weight.Scope, weight.Factor, weight.Identity, marker))
	}
	return buf.Bytes()
}

// ShadowToText converts the shadow queue to plain text format
func ShadowToText(entries []models.ShadowQueueEntry) []byte {
	var buf bytes.Buffer

	if len(entries) == 0 {
		buf.WriteString("Shadow queue empty.\n")
		return buf.Bytes()
	}

	buf.WriteString(fmt.Sprintf("Shadow queue: %d\n", len(entries)))
	for i, entry := range entries {
		buf.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, entry.Artist, entry.Title))
	}
	return buf.Bytes()
}
