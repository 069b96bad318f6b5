package sandbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register("conv1", "ctr_abc", "user1")

	info, ok := r.Get("conv1")
	require.True(t, ok)
	assert.Equal(t, "ctr_abc", info.ContainerID)
	assert.Equal(t, "user1", info.UserID)
	assert.Equal(t, 1, r.Len())
}

func TestRegisterReplacesEntry(t *testing.T) {
	r := NewRegistry()
	r.Register("conv1", "ctr_old", "user1")
	r.Register("conv1", "ctr_new", "user1")

	info, ok := r.Get("conv1")
	require.True(t, ok)
	assert.Equal(t, "ctr_new", info.ContainerID)
	assert.Equal(t, 1, r.Len())
}

func TestUnregister(t *testing.T) {
	r := NewRegistry()
	r.Register("conv1", "ctr_abc", "user1")

	info, ok := r.Unregister("conv1")
	assert.True(t, ok)
	assert.Equal(t, "ctr_abc", info.ContainerID)

	_, ok = r.Get("conv1")
	assert.False(t, ok)

	_, ok = r.Unregister("conv1")
	assert.False(t, ok)
}

func TestTouchUpdatesActivity(t *testing.T) {
	r := NewRegistry()
	now := time.Unix(1000, 0)
	r.now = func() time.Time { return now }

	r.Register("conv1", "ctr_abc", "user1")
	before, _ := r.Get("conv1")

	now = now.Add(30 * time.Second)
	r.Touch("conv1")
	after, _ := r.Get("conv1")

	assert.True(t, after.LastActivity.After(before.LastActivity))

	// Touch without an entry is a no-op.
	r.Touch("missing")
}

func TestIdleContainersThreshold(t *testing.T) {
	r := NewRegistry()
	now := time.Unix(1000, 0)
	r.now = func() time.Time { return now }

	r.Register("conv1", "c1", "user1")
	now = now.Add(5 * time.Minute)
	r.Register("conv2", "c2", "user2")

	// conv1 is 5 minutes idle; conv2 is fresh.
	idle := r.IdleContainers(time.Minute)
	require.Len(t, idle, 1)
	assert.Equal(t, "conv1", idle[0].ConversationID)

	// Threshold larger than any elapsed time: nothing to reap.
	idle = r.IdleContainers(time.Hour)
	assert.Empty(t, idle)
}

func TestListAll(t *testing.T) {
	r := NewRegistry()
	r.Register("conv1", "c1", "user1")
	r.Register("conv2", "c2", "user2")

	assert.Len(t, r.ListAll(), 2)
}
