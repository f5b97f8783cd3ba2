package sample

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
)

// Store loads WAV files at a fixed engine format and caches them by absolute
// path, so every binding that names the same file shares one decoded buffer.
// Loads happen off the audio path; the cache lock is never taken by the mixer.
type Store struct {
	rate     int
	channels int

	mu    sync.RWMutex
	cache map[string]*Buffer
}

// NewStore creates a store that decodes to the given sample rate and channel
// count.
func NewStore(sampleRate, channels int) *Store {
	return &Store{
		rate:     sampleRate,
		channels: channels,
		cache:    make(map[string]*Buffer),
	}
}

// SampleRate returns the engine rate every loaded buffer matches.
func (s *Store) SampleRate() int { return s.rate }

// Channels returns the engine channel count.
func (s *Store) Channels() int { return s.channels }

// Load decodes path or returns the cached buffer for it. Undecodable files
// and sample-rate mismatches return *FormatError; missing files return the
// wrapped os error. A zero-byte file is a valid silent binding and yields a
// zero-length buffer.
func (s *Store) Load(path string) (*Buffer, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve sample path: %w", err)
	}

	s.mu.RLock()
	buf, ok := s.cache[abs]
	s.mu.RUnlock()
	if ok {
		return buf, nil
	}

	buf, err = decodeWAV(abs, s.rate, s.channels)
	if err != nil {
		return nil, err
	}
	if buf.Frames() == 0 {
		slog.Debug("sample decodes to silence", "path", abs)
	}

	s.mu.Lock()
	if cached, ok := s.cache[abs]; ok {
		buf = cached
	} else {
		s.cache[abs] = buf
	}
	s.mu.Unlock()
	return buf, nil
}

// Invalidate drops the cached buffer for path, if any. In-flight voices keep
// playing the old data; the next Load decodes fresh.
func (s *Store) Invalidate(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	s.mu.Lock()
	delete(s.cache, abs)
	s.mu.Unlock()
}

// Clear empties the cache. Used on sound-pack switches.
func (s *Store) Clear() {
	s.mu.Lock()
	s.cache = make(map[string]*Buffer)
	s.mu.Unlock()
}

// Len reports the number of cached buffers.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}
