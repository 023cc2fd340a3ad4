package session_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-poll/internal/domain"
	"live-poll/internal/hub"
	"live-poll/internal/session"
)

func TestRegistry_ConcurrentGetOrCreateSharesInstance(t *testing.T) {
	reg := session.NewRegistry(newFakeClock(), hub.NewHub(nil), nil, nil)

	const n = 50
	got := make([]*session.RoomSession, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = reg.GetOrCreate("room-x")
		}(i)
	}
	wg.Wait()

	for _, s := range got {
		assert.Same(t, got[0], s)
	}
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_OptionsOnlyApplyOnCreate(t *testing.T) {
	reg := session.NewRegistry(newFakeClock(), hub.NewHub(nil), nil, nil)
	s := reg.GetOrCreate("room-1", session.WithLastPollID(10))
	same := reg.GetOrCreate("room-1", session.WithLastPollID(99))
	require.Same(t, s, same)
	assert.Equal(t, int64(10), s.CurrentState().LastPollID)
}

func TestRegistry_EvictClosesSession(t *testing.T) {
	reg := session.NewRegistry(newFakeClock(), hub.NewHub(nil), nil, nil)
	s := reg.GetOrCreate("room-1")
	sub := &captureSub{}
	require.NoError(t, s.Attach(sub))

	assert.True(t, reg.Evict("room-1"))
	assert.False(t, reg.Evict("room-1"))
	_, ok := reg.Get("room-1")
	assert.False(t, ok)
	assert.True(t, s.Gone())

	_, err := s.StartPoll(quizSpec())
	assert.ErrorIs(t, err, session.ErrRoomGone)
	assert.Equal(t, []string{domain.MessageSync, domain.MessageRoomClosed}, sub.types())

	fresh := reg.GetOrCreate("room-1")
	assert.NotSame(t, s, fresh)
	assert.False(t, fresh.Gone())
}

// closingBus runs onRoomClosed right after a room_closed event is fanned out,
// while the evicting session is still shutting down.
type closingBus struct {
	*hub.Hub
	once         sync.Once
	onRoomClosed func()
}

func (b *closingBus) Publish(roomID string, evt domain.LifecycleEvent) int {
	n := b.Hub.Publish(roomID, evt)
	if _, ok := evt.(domain.RoomClosed); ok && b.onRoomClosed != nil {
		b.once.Do(b.onRoomClosed)
	}
	return n
}

func TestRegistry_EvictDoesNotDisconnectReplacementSession(t *testing.T) {
	bus := &closingBus{Hub: hub.NewHub(nil)}
	reg := session.NewRegistry(newFakeClock(), bus, nil, nil)
	old := reg.GetOrCreate("room-1")
	require.NoError(t, old.Attach(&captureSub{}))

	fresh := &captureSub{}
	var replacement *session.RoomSession
	var attachErr error
	done := make(chan struct{})
	bus.onRoomClosed = func() {
		// A reconnecting client races the eviction. Give it a moment to get
		// in; it must not be able to until the old session is fully closed.
		go func() {
			defer close(done)
			replacement = reg.GetOrCreate("room-1")
			attachErr = replacement.Attach(fresh)
		}()
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
	}

	require.True(t, reg.Evict("room-1"))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("replacement session was never created")
	}

	require.NoError(t, attachErr)
	assert.NotSame(t, old, replacement)
	assert.False(t, replacement.Gone())
	assert.False(t, fresh.isClosed())
	assert.Equal(t, 1, bus.SubscriberCount("room-1"))
	assert.Equal(t, []string{domain.MessageSync}, fresh.types())
}
