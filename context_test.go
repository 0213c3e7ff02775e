package fiber

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_InitialState(t *testing.T) {
	ctx := newContext(RoleWorker, func() {}, nil)
	assert.Equal(t, StateReady, ctx.State())
	assert.False(t, ctx.InterruptRequested())
	dl, ok := ctx.Deadline()
	assert.False(t, ok)
	assert.True(t, dl.IsZero())
}

func TestContext_RoleString(t *testing.T) {
	assert.Equal(t, "main", RoleMain.String())
	assert.Equal(t, "dispatcher", RoleDispatcher.String())
	assert.Equal(t, "worker", RoleWorker.String())
}

func TestContext_StateString(t *testing.T) {
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "waiting", StateWaiting.String())
	assert.Equal(t, "terminated", StateTerminated.String())
}

func TestContext_AttachDetach(t *testing.T) {
	ctx := newContext(RoleWorker, func() {}, nil)
	assert.Nil(t, ctx.schedulerOf())

	s := NewScheduler(NewRoundRobin())
	ctx.attach(s)
	assert.Same(t, s, ctx.schedulerOf())

	ctx.detach()
	assert.Nil(t, ctx.schedulerOf())
}

func TestContext_PushAndDrainJoiners(t *testing.T) {
	target := newContext(RoleWorker, func() {}, nil)
	j1 := newContext(RoleWorker, func() {}, nil)
	j2 := newContext(RoleWorker, func() {}, nil)

	target.pushJoiner(j1)
	target.pushJoiner(j2)

	algo := NewRoundRobin()
	target.drainJoiners(algo)

	assert.Equal(t, StateReady, j1.State())
	assert.Equal(t, StateReady, j2.State())
	assert.Nil(t, target.joiners)
	assert.True(t, algo.HasReady())
}

func TestContext_PushJoinerAlreadyLinkedAborts(t *testing.T) {
	target := newContext(RoleWorker, func() {}, nil)
	waiter := newContext(RoleWorker, func() {}, nil)
	waiter.next = target // simulate already linked elsewhere

	require.Panics(t, func() { target.pushJoiner(waiter) })
}
