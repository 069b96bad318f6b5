package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine records calls and can be told to fail specific operations.
type fakeEngine struct {
	mu        sync.Mutex
	created   []CreateSpec
	names     []string
	started   []string
	stopped   []string
	removed   []string
	createErr error
	startErr  error
	seq       int
}

func (e *fakeEngine) CreateContainer(_ context.Context, name string, spec CreateSpec) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.createErr != nil {
		return "", e.createErr
	}
	e.seq++
	e.created = append(e.created, spec)
	e.names = append(e.names, name)
	return fmt.Sprintf("ctr_%d", e.seq), nil
}

func (e *fakeEngine) StartContainer(_ context.Context, containerID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.startErr != nil {
		return e.startErr
	}
	e.started = append(e.started, containerID)
	return nil
}

func (e *fakeEngine) StopContainer(_ context.Context, containerID string, _ int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = append(e.stopped, containerID)
	return nil
}

func (e *fakeEngine) RemoveContainer(_ context.Context, nameOrID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removed = append(e.removed, nameOrID)
	return nil
}

func newTestOrchestrator(t *testing.T, engine Engine) *Orchestrator {
	t.Helper()
	return NewOrchestrator(engine, NewRegistry(), Config{
		Image:        "sandchat-agent:test",
		DataDir:      t.TempDir(),
		BackendWSURL: "ws://host.docker.internal:8080/internal/ws",
		JWTSecret:    "orchestrator-test-secret",
		TokenTTL:     time.Hour,
		IdleTimeout:  10 * time.Minute,
	})
}

func TestStartContainerCreatesAndRegisters(t *testing.T) {
	engine := &fakeEngine{}
	o := newTestOrchestrator(t, engine)

	containerID, err := o.StartContainer(context.Background(), "conv_abcdef12345", "user1")
	require.NoError(t, err)
	assert.Equal(t, "ctr_1", containerID)

	info, ok := o.Registry().Get("conv_abcdef12345")
	require.True(t, ok)
	assert.Equal(t, containerID, info.ContainerID)
	assert.Equal(t, "user1", info.UserID)

	// Crash leftovers with the deterministic name are removed first.
	require.Len(t, engine.removed, 1)
	assert.Equal(t, "sandchat-agent-conv_abcdef12", engine.removed[0])
	assert.Equal(t, engine.removed[0], engine.names[0])

	require.Len(t, engine.created, 1)
	spec := engine.created[0]
	assert.Equal(t, "sandchat-agent:test", spec.Image)
	assert.Equal(t, "/workspace", spec.WorkingDir)
	assert.Equal(t, int64(512*1024*1024), spec.MemoryBytes)
	assert.Equal(t, int64(1_000_000_000), spec.NanoCPUs)
	assert.Contains(t, spec.ExtraHosts, "host.docker.internal:host-gateway")

	require.Len(t, spec.Binds, 1)
	bind := spec.Binds[0]
	assert.True(t, strings.HasSuffix(bind, ":/workspace"))
	hostPath := strings.TrimSuffix(bind, ":/workspace")
	assert.True(t, strings.HasPrefix(hostPath, "/"), "workspace bind must be absolute, got %q", hostPath)
	assert.Contains(t, hostPath, "conversations/conv_abcdef12345")

	env := strings.Join(spec.Env, "\n")
	assert.Contains(t, env, "BACKEND_WS_URL=ws://host.docker.internal:8080/internal/ws")
	assert.Contains(t, env, "CONVERSATION_ID=conv_abcdef12345")
	assert.Contains(t, env, "CONTAINER_TOKEN=")

	assert.Equal(t, []string{"ctr_1"}, engine.started)
}

func TestStartContainerIsIdempotent(t *testing.T) {
	engine := &fakeEngine{}
	o := newTestOrchestrator(t, engine)

	first, err := o.StartContainer(context.Background(), "conv1", "user1")
	require.NoError(t, err)
	second, err := o.StartContainer(context.Background(), "conv1", "user1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, engine.created, 1, "no second container for a registered conversation")
}

func TestStartFailureLeavesNoRegistration(t *testing.T) {
	engine := &fakeEngine{startErr: fmt.Errorf("no such image")}
	o := newTestOrchestrator(t, engine)

	_, err := o.StartContainer(context.Background(), "conv1", "user1")
	require.Error(t, err)

	_, ok := o.Registry().Get("conv1")
	assert.False(t, ok)

	// The partially created container is cleaned up: one pre-start
	// leftover removal plus the post-failure removal.
	assert.Len(t, engine.removed, 2)
	assert.Equal(t, "ctr_1", engine.removed[1])
}

func TestCreateFailurePropagates(t *testing.T) {
	engine := &fakeEngine{createErr: fmt.Errorf("daemon unavailable")}
	o := newTestOrchestrator(t, engine)

	_, err := o.StartContainer(context.Background(), "conv1", "user1")
	require.Error(t, err)
	_, ok := o.Registry().Get("conv1")
	assert.False(t, ok)
}

func TestStopContainerRemovesRegistration(t *testing.T) {
	engine := &fakeEngine{}
	o := newTestOrchestrator(t, engine)

	containerID, err := o.StartContainer(context.Background(), "conv1", "user1")
	require.NoError(t, err)

	require.NoError(t, o.StopContainer(context.Background(), "conv1"))
	_, ok := o.Registry().Get("conv1")
	assert.False(t, ok)
	assert.Equal(t, []string{containerID}, engine.stopped)
	assert.Contains(t, engine.removed, containerID)

	// Absent registry entry is an error.
	assert.Error(t, o.StopContainer(context.Background(), "conv1"))
}

func TestCleanupIdleContainers(t *testing.T) {
	engine := &fakeEngine{}
	o := newTestOrchestrator(t, engine)

	now := time.Unix(1000, 0)
	o.registry.now = func() time.Time { return now }

	_, err := o.StartContainer(context.Background(), "conv1", "user1")
	require.NoError(t, err)

	// Not yet idle: nothing stops.
	o.CleanupIdleContainers(context.Background())
	assert.Empty(t, engine.stopped)

	now = now.Add(11 * time.Minute)
	o.CleanupIdleContainers(context.Background())
	assert.Len(t, engine.stopped, 1)
	assert.Equal(t, 0, o.Registry().Len())
}

func TestTouchKeepsContainerAlive(t *testing.T) {
	engine := &fakeEngine{}
	o := newTestOrchestrator(t, engine)

	now := time.Unix(1000, 0)
	o.registry.now = func() time.Time { return now }

	_, err := o.StartContainer(context.Background(), "conv1", "user1")
	require.NoError(t, err)

	now = now.Add(9 * time.Minute)
	o.Touch("conv1")
	now = now.Add(9 * time.Minute)

	// 18 minutes since start, but only 9 since the last touch.
	o.CleanupIdleContainers(context.Background())
	assert.Equal(t, 1, o.Registry().Len())
}
