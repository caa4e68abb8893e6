package clips

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/heimdex/heimdex-clipper/internal/logging"
	"github.com/heimdex/heimdex-clipper/internal/media"
	"github.com/heimdex/heimdex-clipper/internal/session"
)

const msgNotFound = "segment not found"

// Store owns the ordered segments of the active video. Insertion order is
// display and export order. Every mutation is atomic and readers only ever
// get copies.
type Store struct {
	sess        *session.Session
	logger      *slog.Logger
	unsubscribe func()

	mu       sync.RWMutex
	segments []Segment
}

// NewStore creates a store bound to sess. Whenever the session's video is
// replaced or unloaded the store is cleared. sess may be nil, in which case
// segments are validated without a duration bound.
func NewStore(sess *session.Session, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{sess: sess, logger: logging.WithComponent(logger, "clips")}
	if sess != nil {
		s.unsubscribe = sess.Subscribe(func(prev, next session.State) {
			if n := s.clear(); n > 0 {
				s.logger.Info("segments cleared after video change", "count", n, "loaded", next.Loaded)
			}
		})
	}
	return s
}

// Close detaches the store from its session.
func (s *Store) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *Store) videoInfo() *media.VideoInfo {
	if s.sess == nil {
		return nil
	}
	return s.sess.VideoInfo()
}

// Add validates c and appends it with a fresh id.
func (s *Store) Add(c Candidate) ValidationResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := Validate(c, s.videoInfo())
	if !res.Valid {
		return res
	}

	seg := Segment{
		ID:        uuid.NewString(),
		Name:      c.Name,
		StartTime: c.StartTime,
		EndTime:   c.EndTime,
	}
	s.segments = append(s.segments, seg)
	s.logger.Debug("segment added", "id", seg.ID, "start", seg.StartTime, "end", seg.EndTime)

	res.ID = seg.ID
	return res
}

// Update validates c and replaces the segment id in place. An unknown id
// changes nothing and reports NotFound.
func (s *Store) Update(id string, c Candidate) ValidationResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := Validate(c, s.videoInfo())
	if !res.Valid {
		return res
	}

	i := s.indexOf(id)
	if i < 0 {
		return ValidationResult{Error: msgNotFound, Field: FieldID, NotFound: true}
	}

	s.segments[i] = Segment{ID: id, Name: c.Name, StartTime: c.StartTime, EndTime: c.EndTime}
	res.ID = id
	return res
}

// Delete removes id. Unknown ids are ignored.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.segments = append(s.segments[:i:i], s.segments[i+1:]...)
	return true
}

// Clear removes every segment.
func (s *Store) Clear() {
	s.clear()
}

func (s *Store) clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.segments)
	s.segments = nil
	return n
}

// Get returns a copy of the segment with id.
func (s *Store) Get(id string) (Segment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.segments[i], true
	}
	return Segment{}, false
}

// Segments returns a snapshot of all segments in order.
func (s *Store) Segments() []Segment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Segment, len(s.segments))
	copy(out, s.segments)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.segments)
}

func (s *Store) indexOf(id string) int {
	for i := range s.segments {
		if s.segments[i].ID == id {
			return i
		}
	}
	return -1
}
