// Package repositories implements SQLite persistence for the automation
// layer's local state.
//
// Two small stores back it:
//   - [PrefsRepository] : the client-authoritative DJ preferences (single row)
//   - [WeightRepository] : the optimistic scope-weight cache
//
// Both exist so a daemon restart resumes with the operator's last intent
// instead of defaults; the selector remains authoritative for weights and
// reconciles the cache on the next read.
package repositories
