//go:build !ci

// Package sound plays short notification sounds for chat events.
package sound

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
	"github.com/pkg/errors"
)

// SoundManager plays sound files by base name, e.g. "message" for
// message.mp3.
type SoundManager struct {
	dir string

	mu      sync.RWMutex
	buffers map[string]*beep.Buffer
	enabled bool
	muted   bool
}

// NewSoundManager creates a manager loading sounds from dir.
func NewSoundManager(dir string) *SoundManager {
	return &SoundManager{
		dir:     dir,
		buffers: make(map[string]*beep.Buffer),
	}
}

// Init opens the speaker and loads every sound in the directory.
func (sm *SoundManager) Init() error {
	sampleRate := beep.SampleRate(44100)
	// 较小的缓冲区，降低延迟
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/10)); err != nil {
		return errors.Wrap(err, "failed to initialize speaker")
	}

	sm.mu.Lock()
	sm.enabled = true
	sm.mu.Unlock()

	return sm.loadSoundFiles(sampleRate)
}

// loadSoundFiles loads all mp3/wav files of the sound directory
func (sm *SoundManager) loadSoundFiles(sampleRate beep.SampleRate) error {
	files, err := os.ReadDir(sm.dir)
	if err != nil {
		// 目录不存在时静默
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "failed to read sound directory")
	}

	for _, file := range files {
		if file.IsDir() {
			continue
		}
		name := file.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".mp3" && ext != ".wav" {
			continue
		}

		buffer, err := decodeFile(filepath.Join(sm.dir, name), ext, sampleRate)
		if err != nil {
			continue
		}
		sm.mu.Lock()
		sm.buffers[strings.TrimSuffix(name, filepath.Ext(name))] = buffer
		sm.mu.Unlock()
	}

	return nil
}

// decodeFile decodes a single sound file into a stereo buffer at sampleRate
func decodeFile(path, ext string, sampleRate beep.SampleRate) (*beep.Buffer, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var streamer beep.StreamSeekCloser
	var format beep.Format

	switch ext {
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".wav":
		streamer, format, err = wav.Decode(f)
	default:
		return nil, errors.Errorf("unsupported sound format %q", ext)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	defer func() { _ = streamer.Close() }()

	var resampled beep.Streamer = streamer
	if format.SampleRate != sampleRate {
		resampled = beep.Resample(4, format.SampleRate, sampleRate, streamer)
	}

	buffer := beep.NewBuffer(beep.Format{
		SampleRate:  sampleRate,
		NumChannels: 2,
		Precision:   4,
	})
	buffer.Append(resampled)
	return buffer, nil
}

// Play plays the named sound. Unknown names and muted or uninitialised
// managers are silent.
func (sm *SoundManager) Play(name string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if !sm.enabled || sm.muted {
		return
	}

	buffer, ok := sm.buffers[name]
	if !ok {
		return
	}
	speaker.Play(buffer.Streamer(0, buffer.Len()))
}

// SetMuted toggles playback without unloading sounds.
func (sm *SoundManager) SetMuted(muted bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.muted = muted
}

// Muted reports whether playback is muted.
func (sm *SoundManager) Muted() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.muted
}

// Loaded reports whether a sound with the given name is available.
func (sm *SoundManager) Loaded(name string) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	_, ok := sm.buffers[name]
	return ok
}

func (sm *SoundManager) Close() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.enabled = false
}
