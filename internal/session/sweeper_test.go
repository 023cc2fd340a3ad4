package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-poll/internal/hub"
	"live-poll/internal/session"
)

func TestSweeper_ClosesOnlyExpiredPolls(t *testing.T) {
	clock := newFakeClock()
	rec := &fakeRecorder{}
	reg := session.NewRegistry(clock, hub.NewHub(nil), rec, nil)

	short := quizSpec()
	short.DurationSeconds = 5
	_, err := reg.GetOrCreate("short").StartPoll(short)
	require.NoError(t, err)
	_, err = reg.GetOrCreate("long").StartPoll(quizSpec())
	require.NoError(t, err)
	reg.GetOrCreate("idle")

	sw := session.NewSweeper(reg, clock, 0, nil)
	assert.Equal(t, 0, sw.Sweep())

	clock.Advance(5 * time.Second)
	assert.Equal(t, 1, sw.Sweep())
	assert.Equal(t, 0, sw.Sweep())

	long, _ := reg.Get("long")
	assert.True(t, long.Voting())
	assert.Len(t, rec.endedRecords(), 1)
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	clock := newFakeClock()
	reg := session.NewRegistry(clock, hub.NewHub(nil), nil, nil)
	sw := session.NewSweeper(reg, clock, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sw.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
