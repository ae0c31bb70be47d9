package docker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"

	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"

	"github.com/docker/docker/api/types/filters"

	"github.com/bigscience-workshop/carbonstack/internal/config"
)

// Labels stamped on everything we create, so list/stop/remove can
// filter down to our own containers and volumes.
const (
	LabelProject = "carbonstack.project"
	LabelService = "carbonstack.service"
	LabelManaged = "carbonstack.managed"
)

// Manager handles all interactions with the Docker Daemon
type Manager struct {
	cli *client.Client
}

// NewManager creates a new Docker client connected to the local daemon
func NewManager() (*Manager, error) {
	// FromEnv looks for standard env vars like DOCKER_HOST,
	// or defaults to the unix socket /var/run/docker.sock
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return &Manager{cli: cli}, nil
}

// ContainerName derives the container name for a service. A declared
// container_name wins; otherwise the name is project-service.
func ContainerName(project string, serviceName string, svc config.Service) string {
	if svc.ContainerName != "" {
		return svc.ContainerName
	}
	return fmt.Sprintf("%s-%s", project, serviceName)
}

// EnsureImage checks whether the service's image is available, pulling
// or building as appropriate, and returns the image name to run.
func (m *Manager) EnsureImage(ctx context.Context, project, serviceName string, svc config.Service) (string, error) {
	if svc.Build != "" {
		tag := fmt.Sprintf("%s-%s", project, serviceName)
		if err := m.BuildImage(ctx, svc.Build, tag); err != nil {
			return "", err
		}
		return tag, nil
	}
	return svc.Image, m.PullImage(ctx, svc.Image)
}

// PullImage asks the daemon to download an image.
func (m *Manager) PullImage(ctx context.Context, imageName string) error {
	fmt.Printf("Pulling image: %s...\n", imageName)

	// ImagePull returns a ReadCloser streaming the download progress
	// as JSON. We must read it to EOF or the pull may be cancelled.
	reader, err := m.cli.ImagePull(ctx, imageName, types.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", imageName, err)
	}
	defer reader.Close()

	if _, err = io.Copy(os.Stdout, reader); err != nil {
		return fmt.Errorf("error reading pull output: %w", err)
	}

	return nil
}

// EnsureNetwork creates a bridge network if it doesn't exist.
func (m *Manager) EnsureNetwork(ctx context.Context, networkName, driver string) error {
	networks, err := m.cli.NetworkList(ctx, types.NetworkListOptions{})
	if err != nil {
		return fmt.Errorf("failed to list networks: %w", err)
	}

	for _, net := range networks {
		if net.Name == networkName {
			return nil
		}
	}

	if driver == "" {
		driver = "bridge"
	}
	fmt.Printf("Creating network: %s...\n", networkName)
	_, err = m.cli.NetworkCreate(ctx, networkName, types.NetworkCreate{
		Driver: driver,
	})
	if err != nil {
		return fmt.Errorf("failed to create network %s: %w", networkName, err)
	}

	return nil
}

// EnsureVolume creates a named volume if it doesn't exist. Volumes are
// created on first use and survive `down`; we never remove them here.
func (m *Manager) EnsureVolume(ctx context.Context, project, volumeName string) error {
	existing, err := m.cli.VolumeList(ctx, volume.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", volumeName)),
	})
	if err != nil {
		return fmt.Errorf("failed to list volumes: %w", err)
	}
	for _, v := range existing.Volumes {
		if v.Name == volumeName {
			return nil
		}
	}

	fmt.Printf("Creating volume: %s...\n", volumeName)
	_, err = m.cli.VolumeCreate(ctx, volume.CreateOptions{
		Name: volumeName,
		Labels: map[string]string{
			LabelProject: project,
			LabelManaged: "true",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create volume %s: %w", volumeName, err)
	}
	return nil
}

// StartService creates and starts the container for one service. The
// service must already be resolved (no ${...} templates left) and its
// image pulled or built.
func (m *Manager) StartService(ctx context.Context, project, serviceName, imageName string, svc config.Service) error {
	containerName := ContainerName(project, serviceName, svc)

	// Port mappings (host -> container) in Docker's format.
	portBindings := nat.PortMap{}
	exposedPorts := nat.PortSet{}
	for _, mapping := range svc.Ports {
		mappings, err := nat.ParsePortSpec(mapping)
		if err != nil {
			return fmt.Errorf("invalid port mapping %s: %w", mapping, err)
		}
		for _, pm := range mappings {
			exposedPorts[pm.Port] = struct{}{}
			portBindings[pm.Port] = append(portBindings[pm.Port], nat.PortBinding{
				HostIP:   "0.0.0.0",
				HostPort: pm.Binding.HostPort,
			})
		}
	}

	// Mounts. Bind sources must be absolute for the daemon; anonymous
	// targets become container volumes, which is what masks a tooling
	// cache directory under a wider source mount.
	var binds []string
	anonymous := map[string]struct{}{}
	for _, spec := range svc.Volumes {
		mnt := config.ParseMount(spec)
		switch mnt.Kind {
		case config.MountAnonymous:
			anonymous[mnt.Target] = struct{}{}
		case config.MountBind:
			abs, err := filepath.Abs(mnt.Source)
			if err != nil {
				return fmt.Errorf("invalid bind source %s: %w", mnt.Source, err)
			}
			mnt.Source = abs
			binds = append(binds, mnt.Spec())
		default:
			binds = append(binds, mnt.Spec())
		}
	}

	cfg := &container.Config{
		Image: imageName,

		Labels: map[string]string{
			LabelProject: project,
			LabelService: serviceName,
			LabelManaged: "true",
		},

		ExposedPorts: exposedPorts,
		Env:          svc.Environment,
		Volumes:      anonymous,
	}

	if hc := svc.Healthcheck; hc != nil {
		healthCfg, err := healthConfig(hc)
		if err != nil {
			return fmt.Errorf("service %s: %w", serviceName, err)
		}
		cfg.Healthcheck = healthCfg
	}

	hostConfig := &container.HostConfig{
		PortBindings: portBindings,
		Binds:        binds,
	}
	if svc.Restart != "" {
		hostConfig.RestartPolicy = container.RestartPolicy{
			Name: container.RestartPolicyMode(svc.Restart),
		}
	}

	// Join every declared network with the service name as alias so
	// peers reach it by its topology name (e.g., "postgres").
	endpoints := map[string]*network.EndpointSettings{}
	for _, netName := range svc.Networks {
		endpoints[netName] = &network.EndpointSettings{
			Aliases: []string{serviceName},
		}
	}
	networkConfig := &network.NetworkingConfig{EndpointsConfig: endpoints}

	fmt.Printf("Creating container %s...\n", containerName)

	// Remove any stale container with the same name first. Ignore the
	// error; it usually just doesn't exist.
	_ = m.cli.ContainerRemove(ctx, containerName, container.RemoveOptions{Force: true})

	resp, err := m.cli.ContainerCreate(ctx, cfg, hostConfig, networkConfig, nil, containerName)
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}

	fmt.Printf("Starting container %s...\n", containerName)
	if err := m.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}

	return nil
}

func healthConfig(hc *config.Healthcheck) (*container.HealthConfig, error) {
	out := &container.HealthConfig{
		Test:    hc.Test,
		Retries: hc.Retries,
	}
	var err error
	if hc.Interval != "" {
		if out.Interval, err = time.ParseDuration(hc.Interval); err != nil {
			return nil, fmt.Errorf("invalid healthcheck interval %q: %w", hc.Interval, err)
		}
	}
	if hc.Timeout != "" {
		if out.Timeout, err = time.ParseDuration(hc.Timeout); err != nil {
			return nil, fmt.Errorf("invalid healthcheck timeout %q: %w", hc.Timeout, err)
		}
	}
	return out, nil
}

// ListContainers returns the containers belonging to the project.
func (m *Manager) ListContainers(ctx context.Context, project string) ([]types.Container, error) {
	filterArgs := filters.NewArgs()
	filterArgs.Add("label", fmt.Sprintf("%s=%s", LabelProject, project))

	return m.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filterArgs,
	})
}

// StopAndRemoveContainer stops and deletes a service's container.
// Named volumes stay behind: only an explicit `docker volume rm`
// destroys data.
func (m *Manager) StopAndRemoveContainer(ctx context.Context, project, serviceName string, svc config.Service) error {
	containerName := ContainerName(project, serviceName, svc)

	fmt.Printf("Stopping %s...\n", containerName)
	if err := m.cli.ContainerStop(ctx, containerName, container.StopOptions{}); err != nil {
		// Already stopped or never created; keep going.
		fmt.Printf("Warning: failed to stop %s (might not be running): %v\n", containerName, err)
	}

	fmt.Printf("Removing %s...\n", containerName)
	if err := m.cli.ContainerRemove(ctx, containerName, container.RemoveOptions{
		RemoveVolumes: false, // Keep the data!
		Force:         true,
	}); err != nil {
		return fmt.Errorf("failed to remove %s: %w", containerName, err)
	}

	return nil
}

// RemoveNetwork deletes the project network
func (m *Manager) RemoveNetwork(ctx context.Context, networkName string) error {
	fmt.Printf("Removing network %s...\n", networkName)
	return m.cli.NetworkRemove(ctx, networkName)
}
