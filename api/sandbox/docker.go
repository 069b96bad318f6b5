package sandbox

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/client"
)

// DockerEngine implements Engine against the Docker daemon.
type DockerEngine struct {
	api *client.Client
}

// NewDockerEngine connects to the given socket path or tcp:// endpoint.
func NewDockerEngine(host string) (*DockerEngine, error) {
	var opts []client.Opt
	if strings.HasPrefix(host, "tcp://") {
		opts = append(opts, client.WithHost(host))
	} else {
		sock := strings.TrimPrefix(host, "unix://")
		opts = append(opts,
			client.WithHost("unix://"+sock),
			client.WithHTTPClient(&http.Client{
				Transport: &http.Transport{
					DialContext: func(_ context.Context, _, _ string) (net.Conn, error) {
						return net.DialTimeout("unix", sock, 30*time.Second)
					},
				},
			}),
		)
	}

	api, err := client.New(opts...)
	if err != nil {
		return nil, err
	}
	return &DockerEngine{api: api}, nil
}

// Ping checks that the Docker daemon is reachable.
func (e *DockerEngine) Ping(ctx context.Context) error {
	_, err := e.api.Ping(ctx, client.PingOptions{})
	return err
}

func (e *DockerEngine) Close() error {
	return e.api.Close()
}

func (e *DockerEngine) CreateContainer(ctx context.Context, name string, spec CreateSpec) (string, error) {
	resp, err := e.api.ContainerCreate(ctx, client.ContainerCreateOptions{
		Name: name,
		Config: &container.Config{
			Image:      spec.Image,
			Env:        spec.Env,
			WorkingDir: spec.WorkingDir,
		},
		HostConfig: &container.HostConfig{
			Binds:      spec.Binds,
			ExtraHosts: spec.ExtraHosts,
			Resources: container.Resources{
				Memory:   spec.MemoryBytes,
				NanoCPUs: spec.NanoCPUs,
			},
		},
	})
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (e *DockerEngine) StartContainer(ctx context.Context, containerID string) error {
	_, err := e.api.ContainerStart(ctx, containerID, client.ContainerStartOptions{})
	return err
}

func (e *DockerEngine) StopContainer(ctx context.Context, containerID string, timeoutSecs int) error {
	_, err := e.api.ContainerStop(ctx, containerID, client.ContainerStopOptions{Timeout: &timeoutSecs})
	return err
}

func (e *DockerEngine) RemoveContainer(ctx context.Context, nameOrID string) error {
	_, err := e.api.ContainerRemove(ctx, nameOrID, client.ContainerRemoveOptions{Force: true})
	return err
}
