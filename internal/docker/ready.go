package docker

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/bigscience-workshop/carbonstack/internal/config"
)

// How long a dependency gets to come up before we give up on the
// whole stack, and how often we re-check in between.
const (
	readyTimeout  = 60 * time.Second
	readyInterval = 500 * time.Millisecond
)

// WaitReady blocks until the service accepts work, not merely until
// its container runs. A started database container is not a usable
// database yet; dependents that connect immediately race its init.
//
// If the service declares a healthcheck, we wait for the daemon to
// report it healthy. Otherwise we probe the published host port with
// plain TCP dials. Either way the retry is bounded by readyTimeout.
func (m *Manager) WaitReady(ctx context.Context, project, serviceName string, svc config.Service) error {
	containerName := ContainerName(project, serviceName, svc)

	hostPort := readyHostPort(svc)
	if svc.Healthcheck == nil && hostPort == "" {
		return nil // nothing observable to wait on
	}

	fmt.Printf("Waiting for %s to become ready...\n", containerName)

	probeAddr := net.JoinHostPort(probeHost(m.cli.DaemonHost()), hostPort)

	deadline := time.Now().Add(readyTimeout)
	for {
		if svc.Healthcheck != nil {
			inspect, err := m.cli.ContainerInspect(ctx, containerName)
			if err != nil {
				return fmt.Errorf("failed to inspect %s: %w", containerName, err)
			}
			if inspect.State != nil && inspect.State.Health != nil &&
				inspect.State.Health.Status == "healthy" {
				return nil
			}
		} else {
			conn, err := net.DialTimeout("tcp", probeAddr, readyInterval)
			if err == nil {
				conn.Close()
				return nil
			}
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("service %s did not become ready within %s", serviceName, readyTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(readyInterval):
		}
	}
}

// probeHost picks the machine that actually publishes the container
// ports. With DOCKER_HOST pointing at a remote daemon over TCP the
// ports open on that machine, not on localhost.
func probeHost(daemonHost string) string {
	if u, err := url.Parse(daemonHost); err == nil {
		switch u.Scheme {
		case "tcp", "http", "https":
			if h := u.Hostname(); h != "" {
				return h
			}
		}
	}
	return "127.0.0.1"
}

// readyHostPort picks the host port to TCP-probe: the mapping whose
// container side matches ready_port, else the first published port.
func readyHostPort(svc config.Service) string {
	for _, mapping := range svc.Ports {
		if svc.ReadyPort != "" && config.ContainerPort(mapping) != svc.ReadyPort {
			continue
		}
		return config.HostPort(mapping)
	}
	return ""
}
