package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/firespoon/sandchat/api/auth"
)

const (
	containerMemoryBytes = 512 * 1024 * 1024
	containerNanoCPUs    = 1_000_000_000
	stopGraceSecs        = 10
	namePrefix           = "sandchat-agent-"
)

// Config holds the orchestrator's settings.
type Config struct {
	Image        string
	DataDir      string
	BackendWSURL string
	JWTSecret    string
	TokenTTL     time.Duration
	IdleTimeout  time.Duration
}

// Orchestrator translates conversation-scoped lifecycle requests into
// idempotent engine calls and keeps the registry in sync.
type Orchestrator struct {
	engine   Engine
	registry *Registry
	cfg      Config

	// startMu serializes starts per conversation so two sends racing the
	// same boot cannot create two containers.
	mu      sync.Mutex
	startMu map[string]*sync.Mutex
}

func NewOrchestrator(engine Engine, registry *Registry, cfg Config) *Orchestrator {
	return &Orchestrator{
		engine:   engine,
		registry: registry,
		cfg:      cfg,
		startMu:  make(map[string]*sync.Mutex),
	}
}

func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Touch refreshes the activity clock for a conversation's container so idle
// cleanup sees it as in use.
func (o *Orchestrator) Touch(conversationID string) {
	o.registry.Touch(conversationID)
}

func (o *Orchestrator) startLock(conversationID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.startMu[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		o.startMu[conversationID] = lock
	}
	return lock
}

// containerName derives a deterministic engine-side name from the
// conversation ID so crash leftovers can be force-removed before a restart.
func containerName(conversationID string) string {
	short := conversationID
	if len(short) > 13 {
		short = short[:13]
	}
	return namePrefix + short
}

// workspacePath creates the conversation's workspace directory if needed and
// canonicalizes it. A path that cannot be canonicalized fails the start:
// bind-mounting a relative path would break on any working-directory change.
func (o *Orchestrator) workspacePath(conversationID string) (string, error) {
	dir := filepath.Join(o.cfg.DataDir, "conversations", conversationID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create workspace dir: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve workspace dir: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("canonicalize workspace dir: %w", err)
	}
	return resolved, nil
}

// StartContainer ensures a container is running for the conversation and
// returns its engine ID. An existing registration is touched and reused.
func (o *Orchestrator) StartContainer(ctx context.Context, conversationID, userID string) (string, error) {
	lock := o.startLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	if info, ok := o.registry.Get(conversationID); ok {
		o.registry.Touch(conversationID)
		return info.ContainerID, nil
	}

	token, err := auth.CreateContainerToken(conversationID, userID, o.cfg.JWTSecret, o.cfg.TokenTTL)
	if err != nil {
		return "", fmt.Errorf("create container token: %w", err)
	}

	workspace, err := o.workspacePath(conversationID)
	if err != nil {
		return "", err
	}

	name := containerName(conversationID)

	// Remove any leftover container with the same name from a previous
	// crash. Errors (usually "no such container") are ignored.
	_ = o.engine.RemoveContainer(ctx, name)

	containerID, err := o.engine.CreateContainer(ctx, name, CreateSpec{
		Image: o.cfg.Image,
		Env: []string{
			"BACKEND_WS_URL=" + o.cfg.BackendWSURL,
			"CONTAINER_TOKEN=" + token,
			"CONVERSATION_ID=" + conversationID,
		},
		Binds:       []string{workspace + ":/workspace"},
		ExtraHosts:  []string{"host.docker.internal:host-gateway"},
		MemoryBytes: containerMemoryBytes,
		NanoCPUs:    containerNanoCPUs,
		WorkingDir:  "/workspace",
	})
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}

	if err := o.engine.StartContainer(ctx, containerID); err != nil {
		// Clear the partial state so the next attempt starts clean.
		_ = o.engine.RemoveContainer(ctx, containerID)
		return "", fmt.Errorf("start container: %w", err)
	}

	o.registry.Register(conversationID, containerID, userID)
	slog.Info("sandbox: container started",
		"conversation_id", conversationID, "container_id", containerID)
	return containerID, nil
}

// StopContainer stops and removes the conversation's container. A missing
// registry entry is an error; engine failures during teardown are not.
func (o *Orchestrator) StopContainer(ctx context.Context, conversationID string) error {
	info, ok := o.registry.Unregister(conversationID)
	if !ok {
		return fmt.Errorf("no container registered for conversation %s", conversationID)
	}

	if err := o.engine.StopContainer(ctx, info.ContainerID, stopGraceSecs); err != nil {
		slog.Warn("sandbox: stop failed", "container_id", info.ContainerID, "error", err)
	}
	if err := o.engine.RemoveContainer(ctx, info.ContainerID); err != nil {
		slog.Warn("sandbox: remove failed", "container_id", info.ContainerID, "error", err)
	}

	slog.Info("sandbox: container stopped",
		"conversation_id", conversationID, "container_id", info.ContainerID)
	return nil
}

// CleanupIdleContainers stops every container idle longer than the
// configured timeout. Invoked periodically by the supervisor schedule.
func (o *Orchestrator) CleanupIdleContainers(ctx context.Context) {
	for _, info := range o.registry.IdleContainers(o.cfg.IdleTimeout) {
		slog.Info("sandbox: stopping idle container",
			"conversation_id", info.ConversationID, "container_id", info.ContainerID)
		if err := o.StopContainer(ctx, info.ConversationID); err != nil {
			slog.Warn("sandbox: idle stop failed",
				"conversation_id", info.ConversationID, "error", err)
		}
	}
}
