package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"live-poll/internal/hub"
	"live-poll/internal/session"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

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

func newRegistry() (*session.Registry, *fakeClock) {
	clock := &fakeClock{now: t0}
	return session.NewRegistry(clock, hub.NewHub(nil), nil, nil), clock
}

type mockRoomEvents struct {
	mock.Mock
}

func (m *mockRoomEvents) RoomClosed(ctx context.Context, roomID string) error {
	return m.Called(ctx, roomID).Error(0)
}

func quizSpec() session.PollSpec {
	return session.PollSpec{
		Question:        "Which letter?",
		Options:         []string{"A", "B", "C"},
		DurationSeconds: 10,
		CorrectOptionID: 2,
	}
}
