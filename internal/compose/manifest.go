// Package compose renders a stack as a docker-compose manifest so the
// same topology can run under plain `docker compose` on machines that
// don't carry this tool.
package compose

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/bigscience-workshop/carbonstack/internal/config"
)

// Manifest is the docker-compose file shape we emit.
type Manifest struct {
	Services map[string]Service `yaml:"services"`
	Networks map[string]Network `yaml:"networks,omitempty"`
	Volumes  map[string]Volume  `yaml:"volumes,omitempty"`
}

// Service is one compose service entry.
type Service struct {
	Image         string       `yaml:"image,omitempty"`
	Build         string       `yaml:"build,omitempty"`
	ContainerName string       `yaml:"container_name,omitempty"`
	Ports         []string     `yaml:"ports,omitempty"`
	Environment   []string     `yaml:"environment,omitempty"`
	Volumes       []string     `yaml:"volumes,omitempty"`
	Networks      []string     `yaml:"networks,omitempty"`
	DependsOn     []string     `yaml:"depends_on,omitempty"`
	Restart       string       `yaml:"restart,omitempty"`
	Healthcheck   *Healthcheck `yaml:"healthcheck,omitempty"`
}

// Healthcheck is the compose healthcheck block.
type Healthcheck struct {
	Test     []string `yaml:"test"`
	Interval string   `yaml:"interval,omitempty"`
	Timeout  string   `yaml:"timeout,omitempty"`
	Retries  int      `yaml:"retries,omitempty"`
}

// Network is a top-level compose network entry.
type Network struct {
	Driver   string `yaml:"driver,omitempty"`
	External bool   `yaml:"external,omitempty"`
}

// Volume is a top-level compose volume entry.
type Volume struct {
	External bool `yaml:"external,omitempty"`
}

// Render serializes the stack as compose YAML. Disabled services are
// omitted; a topology entry that is never scheduled has no business in
// the interop output.
func Render(stack *config.Stack) ([]byte, error) {
	m := Manifest{
		Services: make(map[string]Service, len(stack.Services)),
		Networks: make(map[string]Network, len(stack.Networks)),
		Volumes:  make(map[string]Volume, len(stack.Volumes)),
	}

	names := make([]string, 0, len(stack.Services))
	for name := range stack.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		svc := stack.Services[name]
		if !svc.IsEnabled() {
			continue
		}
		out := Service{
			Image:         svc.Image,
			Build:         svc.Build,
			ContainerName: svc.ContainerName,
			Ports:         svc.Ports,
			Environment:   svc.Environment,
			Volumes:       svc.Volumes,
			Networks:      svc.Networks,
			DependsOn:     svc.DependsOn,
			Restart:       svc.Restart,
		}
		if hc := svc.Healthcheck; hc != nil {
			out.Healthcheck = &Healthcheck{
				Test:     hc.Test,
				Interval: hc.Interval,
				Timeout:  hc.Timeout,
				Retries:  hc.Retries,
			}
		}
		m.Services[name] = out
	}

	for name, n := range stack.Networks {
		m.Networks[name] = Network{Driver: n.Driver, External: n.External}
	}
	for name, v := range stack.Volumes {
		m.Volumes[name] = Volume{External: v.External}
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal compose manifest: %w", err)
	}
	return data, nil
}
