package dj

import (
	"testing"
	"time"

	"github.com/desertthunder/djx/internal/models"
)

type memPrefs struct {
	config models.DjConfig
}

func (p *memPrefs) Get() (models.DjConfig, error) { return p.config, nil }
func (p *memPrefs) SetAutoPick(enabled bool) error {
	p.config.AutoPickEnabled = enabled
	return nil
}
func (p *memPrefs) SetPauseOnAfk(enabled bool) error {
	p.config.PauseOnAfkEnabled = enabled
	return nil
}

func newSession() *PlayerSession {
	return NewPlayerSession(models.DjConfig{AutoPickEnabled: true, PauseOnAfkEnabled: true}, nil, nil)
}

func TestShadowQueue(t *testing.T) {
	session := newSession()

	session.AddShadow(models.ShadowQueueEntry{Title: "Naima", Artist: "John Coltrane"})
	session.AddShadow(models.ShadowQueueEntry{Title: "Lonnie's Lament", Artist: "John Coltrane"})
	if session.ShadowLen() != 2 {
		t.Fatalf("ShadowLen() = %d, want 2", session.ShadowLen())
	}

	// Confirmation matches on normalized identity, not exact strings.
	if !session.ConfirmPlaying("  NAIMA ", "john coltrane") {
		t.Error("expected normalized match to confirm")
	}
	if session.ShadowLen() != 1 {
		t.Errorf("ShadowLen() = %d after confirm, want 1", session.ShadowLen())
	}

	if session.ConfirmPlaying("Giant Steps", "John Coltrane") {
		t.Error("unexpected confirmation for track never queued")
	}

	session.ClearShadow("test")
	if session.ShadowLen() != 0 {
		t.Errorf("ShadowLen() = %d after clear, want 0", session.ShadowLen())
	}
}

func TestPickSlotAtMostOne(t *testing.T) {
	session := newSession()

	id, ok := session.TryBeginPick()
	if !ok || id == "" {
		t.Fatal("expected first claim to succeed")
	}
	if _, ok := session.TryBeginPick(); ok {
		t.Error("second claim should fail while one is outstanding")
	}

	// A stale owner id must not release a slot it no longer holds.
	session.ClearPick("some-other-id", "stale timeout")
	if !session.PickPending() {
		t.Error("foreign id cleared the slot")
	}

	session.ClearPick(id, "response")
	if session.PickPending() {
		t.Error("owner id should clear the slot")
	}

	if _, ok := session.TryBeginPick(); !ok {
		t.Error("slot should be claimable again after clear")
	}
}

func TestPickSlotForceClear(t *testing.T) {
	session := newSession()

	if _, ok := session.TryBeginPick(); !ok {
		t.Fatal("claim failed")
	}

	session.ClearPick("", "track queued")
	if session.PickPending() {
		t.Error("empty id should force the clear")
	}
}

func TestPickSlotTimeout(t *testing.T) {
	session := newSession()
	session.SetPickTimeout(20 * time.Millisecond)

	if _, ok := session.TryBeginPick(); !ok {
		t.Fatal("claim failed")
	}

	deadline := time.Now().Add(2 * time.Second)
	for session.PickPending() {
		if time.Now().After(deadline) {
			t.Fatal("timeout never released the slot")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestReset(t *testing.T) {
	session := newSession()
	session.AddShadow(models.ShadowQueueEntry{Title: "Naima", Artist: "John Coltrane"})
	session.TryBeginPick()

	session.Reset("session ended")

	if session.ShadowLen() != 0 {
		t.Error("reset should clear the shadow queue")
	}
	if session.PickPending() {
		t.Error("reset should clear the pending pick")
	}
}

func TestPrefsPersistence(t *testing.T) {
	prefs := &memPrefs{config: models.DjConfig{AutoPickEnabled: true, PauseOnAfkEnabled: true}}
	session := NewPlayerSession(prefs.config, prefs, nil)

	if err := session.SetAutoPick(false); err != nil {
		t.Fatalf("SetAutoPick() error = %v", err)
	}
	if session.AutoPickEnabled() {
		t.Error("expected auto-pick disabled")
	}
	if prefs.config.AutoPickEnabled {
		t.Error("expected auto-pick persisted")
	}

	if err := session.SetPauseOnAfk(false); err != nil {
		t.Fatalf("SetPauseOnAfk() error = %v", err)
	}
	if prefs.config.PauseOnAfkEnabled {
		t.Error("expected pause_on_afk persisted")
	}
}
