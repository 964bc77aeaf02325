// Package models defines the domain types shared across the DJ automation layer.
//
// The package contains three categories of types:
//
// 1. Playback data: [Track], [PlaybackSnapshot], [ShadowQueueEntry]
//   - Tracks are immutable once returned by the provider or selector
//   - A ShadowQueueEntry records a track this client asked the provider to
//     queue but which has not yet been confirmed as now-playing
//
// 2. Weighting: [WeightScope] and identity helpers
//   - Scope factors are multiplicative and non-negative; the effective weight
//     is always derived, never stored
//
// 3. Session and preferences: [SessionState], [DjConfig], [AfkState]
//   - DjConfig flags are client-authoritative; the selector's own
//     enable/disable bit is advisory and may lag
package models
