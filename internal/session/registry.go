package session

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Registry maps room ids to their single RoomSession.
type Registry struct {
	clock    Clock
	bus      Broadcaster
	recorder Recorder
	logger   *logrus.Logger

	mu       sync.Mutex
	sessions map[string]*RoomSession
}

// NewRegistry returns an empty registry whose sessions share clock, bus and recorder.
func NewRegistry(clock Clock, bus Broadcaster, recorder Recorder, logger *logrus.Logger) *Registry {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Registry{
		clock:    clock,
		bus:      bus,
		recorder: recorder,
		logger:   logger,
		sessions: make(map[string]*RoomSession),
	}
}

// GetOrCreate returns the session for roomID, creating it on first
// reference. opts only apply when the session is created; concurrent
// first callers all receive the same instance.
func (r *Registry) GetOrCreate(roomID string, opts ...Option) *RoomSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[roomID]; ok {
		return s
	}
	opts = append([]Option{WithLogger(r.logger)}, opts...)
	s := New(roomID, r.clock, r.bus, r.recorder, opts...)
	r.sessions[roomID] = s
	r.logger.WithField("room_id", roomID).Debug("Room session created")
	return s
}

// Get returns the session for roomID if one exists.
func (r *Registry) Get(roomID string) (*RoomSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[roomID]
	return s, ok
}

// Evict removes and closes the session for roomID. Holders of the old
// instance get ErrRoomGone from then on.
func (r *Registry) Evict(roomID string) bool {
	r.mu.Lock()
	s, ok := r.sessions[roomID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.sessions, roomID)
	// Shut down before releasing r.mu: CloseRoom works on the room id, so a
	// replacement created in between would lose its subscribers. Lock order
	// is registry, then session, then hub.
	ended := s.shutdown()
	r.mu.Unlock()

	// The recorder may block on the network; keep it outside the lock.
	s.persistEnded(ended)
	r.logger.WithField("room_id", roomID).Info("Room session evicted")
	return true
}

// Active returns every registered session.
func (r *Registry) Active() []*RoomSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*RoomSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Len is the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
