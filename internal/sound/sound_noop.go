//go:build ci

// Package sound plays short notification sounds for chat events.
package sound

import "sync/atomic"

type SoundManager struct {
	muted atomic.Bool
}

func NewSoundManager(string) *SoundManager {
	return &SoundManager{}
}

func (sm *SoundManager) Init() error {
	return nil
}

func (sm *SoundManager) Play(string) {
	// No-op
}

func (sm *SoundManager) SetMuted(muted bool) { sm.muted.Store(muted) }

func (sm *SoundManager) Muted() bool { return sm.muted.Load() }

func (sm *SoundManager) Loaded(string) bool { return false }

func (sm *SoundManager) Close() {
	// No-op
}
