package fiber

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundRobin_FIFOWorkerOrder(t *testing.T) {
	a := NewRoundRobin()
	w1 := newContext(RoleWorker, func() {}, nil)
	w2 := newContext(RoleWorker, func() {}, nil)

	a.Awakened(w1)
	a.Awakened(w2)

	assert.True(t, a.HasReady())
	assert.Same(t, w1, a.PickNext())
	assert.Same(t, w2, a.PickNext())
	assert.Nil(t, a.PickNext())
}

func TestRoundRobin_MainAndDispatcherStashedPrivately(t *testing.T) {
	a := NewRoundRobin()
	main := newContext(RoleMain, nil, nil)
	dispatcher := newContext(RoleDispatcher, func() {}, nil)
	worker := newContext(RoleWorker, func() {}, nil)

	a.Awakened(main)
	a.Awakened(dispatcher)
	a.Awakened(worker)

	// Workers always win over the stashed main/dispatcher slots.
	assert.Same(t, worker, a.PickNext())
	assert.Same(t, main, a.PickNext())
	assert.Same(t, dispatcher, a.PickNext())
	assert.Nil(t, a.PickNext())
}

func TestRoundRobin_HasReadyIgnoresDispatcherSlot(t *testing.T) {
	a := NewRoundRobin()
	assert.False(t, a.HasReady())

	dispatcher := newContext(RoleDispatcher, func() {}, nil)
	a.Awakened(dispatcher)
	assert.False(t, a.HasReady())

	main := newContext(RoleMain, nil, nil)
	a.Awakened(main)
	assert.True(t, a.HasReady())
}
