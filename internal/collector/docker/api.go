package docker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"github.com/jenastar/aura-agent/pkg/model"
)

// composeProjectLabel carries the docker compose project name.
const composeProjectLabel = "com.docker.compose.project"

// ContainerAPI abstracts the Docker daemon for testability.
type ContainerAPI interface {
	ListContainers(ctx context.Context) ([]model.ContainerInfo, error)
	Close() error
}

type dockerClient struct {
	cli *client.Client
}

// NewDockerClient creates a ContainerAPI over the local Docker daemon.
// host overrides DOCKER_HOST when non-empty.
func NewDockerClient(host string) (ContainerAPI, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &dockerClient{cli: cli}, nil
}

func (d *dockerClient) Close() error { return d.cli.Close() }

func (d *dockerClient) ListContainers(ctx context.Context) ([]model.ContainerInfo, error) {
	list, err := d.cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("container list: %w", err)
	}

	out := make([]model.ContainerInfo, 0, len(list))
	for _, c := range list {
		info := model.ContainerInfo{
			ID:      c.ID,
			ShortID: shortID(c.ID),
			Name:    containerName(c.Names),
			Labels:  c.Labels,
			Project: c.Labels[composeProjectLabel],
			Status:  c.State,
			Running: c.State == "running",
		}

		// Inspect fills the fields the list endpoint omits. A
		// container removed between list and inspect is skipped.
		detail, err := d.cli.ContainerInspect(ctx, c.ID)
		if err != nil {
			if client.IsErrNotFound(err) {
				continue
			}
			slog.Warn("container inspect failed", "container", info.ShortID, "error", err)
			out = append(out, info)
			continue
		}

		if detail.HostConfig != nil {
			info.Runtime = detail.HostConfig.Runtime
			info.CgroupParent = detail.HostConfig.CgroupParent
			info.GPUEntitled = GPUEntitled(detail.HostConfig.Runtime, detail.HostConfig.DeviceRequests, envOf(detail))
		}
		if detail.State != nil {
			info.InitPID = detail.State.Pid
			info.Running = detail.State.Running
			info.Status = detail.State.Status
		}
		info.RestartCount = detail.RestartCount

		out = append(out, info)
	}
	return out, nil
}

func envOf(detail types.ContainerJSON) []string {
	if detail.Config == nil {
		return nil
	}
	return detail.Config.Env
}

// GPUEntitled reports whether a container may touch the GPU: the
// nvidia runtime, an nvidia or gpu-capability device request, or an
// NVIDIA_VISIBLE_DEVICES value other than none/void all grant access.
func GPUEntitled(runtime string, requests []container.DeviceRequest, env []string) bool {
	if runtime == "nvidia" {
		return true
	}
	for _, req := range requests {
		if req.Driver == "nvidia" {
			return true
		}
		for _, caps := range req.Capabilities {
			for _, capability := range caps {
				if capability == "gpu" {
					return true
				}
			}
		}
	}
	for _, e := range env {
		k, v, ok := strings.Cut(e, "=")
		if !ok || k != "NVIDIA_VISIBLE_DEVICES" {
			continue
		}
		v = strings.TrimSpace(v)
		if v != "" && v != "none" && v != "void" {
			return true
		}
	}
	return false
}

func containerName(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return strings.TrimPrefix(names[0], "/")
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
