package fiber

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle_IDIsStable(t *testing.T) {
	s := NewScheduler(NewRoundRobin())
	h, err := s.Spawn(func() {})
	require.NoError(t, err)
	assert.Equal(t, h.ctx.ID(), h.ID())
}

func TestHandle_DetachReleasesWithoutBlocking(t *testing.T) {
	s := NewScheduler(NewRoundRobin())
	var ran bool

	h, err := s.Spawn(func() { ran = true })
	require.NoError(t, err)

	_, err = s.Spawn(func() {
		require.NoError(t, h.Detach())
		s.Close()
	})
	require.NoError(t, err)

	s.Run()
	assert.True(t, ran)
}

func TestHandle_DoubleJoinReturnsError(t *testing.T) {
	s := NewScheduler(NewRoundRobin())
	h, err := s.Spawn(func() { s.Yield() })
	require.NoError(t, err)

	var firstErr, secondErr error
	_, err = s.Spawn(func() {
		_, _, firstErr = h.Join()
		_, _, secondErr = h.Join()
		s.Close()
	})
	require.NoError(t, err)

	s.Run()
	assert.NoError(t, firstErr)
	assert.ErrorIs(t, secondErr, ErrAlreadyJoinedOrDetached)
}

func TestHandle_JoinAfterDetachReturnsError(t *testing.T) {
	s := NewScheduler(NewRoundRobin())
	h, err := s.Spawn(func() {})
	require.NoError(t, err)

	var joinErr error
	_, err = s.Spawn(func() {
		require.NoError(t, h.Detach())
		_, _, joinErr = h.Join()
		s.Close()
	})
	require.NoError(t, err)

	s.Run()
	assert.ErrorIs(t, joinErr, ErrAlreadyJoinedOrDetached)
}

// TestHandle_JoinAfterRunReturnsFromConstructingGoroutine joins a handle
// from the same goroutine that constructed the Scheduler, after Run has
// already returned — the one "outside any fiber body" pattern that doesn't
// require a second goroutine touching this Scheduler concurrently with its
// own dispatcher loop (see DESIGN.md, Open Question 6).
func TestHandle_JoinAfterRunReturnsFromConstructingGoroutine(t *testing.T) {
	s := NewScheduler(NewRoundRobin())
	var ran bool
	h, err := s.Spawn(func() {
		ran = true
	})
	require.NoError(t, err)

	_, err = s.Spawn(func() { s.Close() })
	require.NoError(t, err)

	s.Run()

	_, _, joinErr := h.Join()
	assert.NoError(t, joinErr)
	assert.True(t, ran)
}
