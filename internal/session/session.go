// Package session holds the video the user is currently working on.
package session

import (
	"log/slog"
	"sync"

	"github.com/heimdex/heimdex-clipper/internal/logging"
	"github.com/heimdex/heimdex-clipper/internal/media"
)

// State is a snapshot of the active video.
type State struct {
	Path   string           `json:"path,omitempty"`
	Info   *media.VideoInfo `json:"info,omitempty"`
	Loaded bool             `json:"loaded"`
	Error  string           `json:"error,omitempty"` // last load failure
}

// Listener is called after the active video is replaced or unloaded.
type Listener func(prev, next State)

// Session owns the active video. Listeners run synchronously after the
// change, outside the lock, in registration order.
type Session struct {
	logger *slog.Logger

	mu        sync.RWMutex
	state     State
	listeners []listenerEntry
	nextID    int
}

type listenerEntry struct {
	id int
	fn Listener
}

func New(logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{logger: logging.WithComponent(logger, "session")}
}

// Load makes path the active video. Any previous video is replaced.
func (s *Session) Load(path string, info media.VideoInfo) {
	infoCopy := info
	s.swap(State{Path: path, Info: &infoCopy, Loaded: true})
	s.logger.Info("video loaded",
		"path", logging.SanitizePath(path),
		"duration", info.Duration,
		"format", info.Format,
	)
}

// Fail records a failed load. The video is not considered loaded.
func (s *Session) Fail(path string, err error) {
	s.swap(State{Path: path, Error: err.Error()})
	s.logger.Warn("video load failed", "path", logging.SanitizePath(path), "error", err)
}

// Clear unloads the active video. It is a no-op when nothing is loaded.
func (s *Session) Clear() {
	cleared := s.swapIf(func(cur State) bool {
		return cur.Loaded || cur.Path != "" || cur.Error != ""
	}, State{})
	if cleared {
		s.logger.Info("video unloaded")
	}
}

// ClearIf unloads the active video only when it is path. The check and the
// unload happen under one lock, so a concurrent Load of another video wins.
func (s *Session) ClearIf(path string) bool {
	cleared := s.swapIf(func(cur State) bool {
		return cur.Loaded && cur.Path == path
	}, State{})
	if cleared {
		s.logger.Info("video unloaded", "path", logging.SanitizePath(path))
	}
	return cleared
}

// Current returns a snapshot of the active video.
func (s *Session) Current() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// VideoInfo returns the loaded video's metadata, or nil.
func (s *Session) VideoInfo() *media.VideoInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.state.Loaded || s.state.Info == nil {
		return nil
	}
	info := *s.state.Info
	return &info
}

// Subscribe registers fn and returns a function that removes it.
func (s *Session) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, l := range s.listeners {
				if l.id == id {
					s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Session) swap(next State) {
	s.swapIf(nil, next)
}

// swapIf replaces the state with next when cond accepts the current state.
// A nil cond always accepts.
func (s *Session) swapIf(cond func(State) bool, next State) bool {
	s.mu.Lock()
	if cond != nil && !cond(s.state) {
		s.mu.Unlock()
		return false
	}
	prev := s.state
	s.state = next
	listeners := make([]Listener, len(s.listeners))
	for i, l := range s.listeners {
		listeners[i] = l.fn
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(prev.clone(), next.clone())
	}
	return true
}

func (st State) clone() State {
	if st.Info != nil {
		info := *st.Info
		st.Info = &info
	}
	return st
}
