package uv

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOneShotTimer(t *testing.T) {
	l := NewLoop()
	start := time.Now()
	id, err := l.SetTimer(50, 0)
	require.NoError(t, err)

	ev := nextEvent(t, l)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, Event{Handle: id, Kind: EventRead, Payload: ReadPayload{}}, ev)

	assert.Empty(t, drain(t, l), "a one-shot timer fires once")

	require.NoError(t, l.Close(id))
	assert.Empty(t, drain(t, l))
	assert.Zero(t, l.HandleCount())
}

func TestRepeatingTimer(t *testing.T) {
	l := NewLoop()
	id, err := l.SetTimer(5, 5)
	require.NoError(t, err)

	for range 3 {
		assert.Equal(t, id, nextEvent(t, l).Handle)
	}

	require.NoError(t, l.StopTimer(id))
	require.NoError(t, l.StopTimer(id), "stopping twice is harmless")
	drain(t, l)

	h, ok := l.Handle(id)
	require.True(t, ok)
	assert.Equal(t, StateOpen, h.State())
	assert.False(t, h.active())
}

func TestStartTimerRearms(t *testing.T) {
	l := NewLoop()
	id, err := l.SetTimer(uint32(time.Hour/time.Millisecond), 0)
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, l.StartTimer(id, 10, 0))
	ev := nextEvent(t, l)
	assert.Equal(t, id, ev.Handle)
	assert.Less(t, time.Since(start), time.Hour)
	assert.Empty(t, drain(t, l), "the hour-long run was replaced, not added to")

	require.NoError(t, l.StartTimer(id, 1, 0))
	assert.Equal(t, id, nextEvent(t, l).Handle)
}

func TestClosingTimerDropsFirings(t *testing.T) {
	l := NewLoop()
	id, err := l.SetTimer(1, 1)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, l.Close(id))
	assert.ErrorIs(t, l.StopTimer(id), ErrInvalidHandle)
	for _, ev := range drain(t, l) {
		assert.Equal(t, id, ev.Handle, "only the event cached before close")
	}
	assert.Zero(t, l.HandleCount())
}
