package session_test

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"live-poll/internal/domain"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: t0} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// captureSub records every queued message. limit > 0 makes it refuse
// messages once that many are queued.
type captureSub struct {
	mu     sync.Mutex
	msgs   [][]byte
	limit  int
	closed bool
}

func (s *captureSub) Enqueue(msg []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || (s.limit > 0 && len(s.msgs) >= s.limit) {
		return false
	}
	s.msgs = append(s.msgs, msg)
	return true
}

func (s *captureSub) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *captureSub) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *captureSub) messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, 0, len(s.msgs))
	for _, raw := range s.msgs {
		var m struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(raw, &m); err == nil {
			out = append(out, domain.Message{Type: m.Type, Payload: m.Payload})
		}
	}
	return out
}

func (s *captureSub) types() []string {
	msgs := s.messages()
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Type
	}
	return out
}

type fakeRecorder struct {
	mu      sync.Mutex
	started []domain.Poll
	ended   []domain.PollRecord
	err     error
}

func (r *fakeRecorder) PollStarted(_ context.Context, poll domain.Poll) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, poll)
	return r.err
}

func (r *fakeRecorder) PollEnded(_ context.Context, rec domain.PollRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended = append(r.ended, rec)
	return r.err
}

func (r *fakeRecorder) endedRecords() []domain.PollRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.PollRecord(nil), r.ended...)
}
