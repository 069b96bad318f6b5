package sandbox

import "context"

// CreateSpec describes a container to create.
type CreateSpec struct {
	Image       string
	Env         []string
	Binds       []string
	ExtraHosts  []string
	MemoryBytes int64
	NanoCPUs    int64
	WorkingDir  string
}

// Engine is the narrow container-engine surface the orchestrator needs.
// The production implementation talks to the Docker daemon; tests use a fake.
type Engine interface {
	CreateContainer(ctx context.Context, name string, spec CreateSpec) (string, error)
	StartContainer(ctx context.Context, containerID string) error
	// StopContainer stops with a grace period in seconds before the kill.
	StopContainer(ctx context.Context, containerID string, timeoutSecs int) error
	// RemoveContainer force-removes by name or ID.
	RemoveContainer(ctx context.Context, nameOrID string) error
}
