package config

import "strings"

// Stack represents the root of carbonstack.yaml
type Stack struct {
	Name     string             `mapstructure:"name" yaml:"name"`
	Version  string             `mapstructure:"version" yaml:"version"`
	Services map[string]Service `mapstructure:"services" yaml:"services"` // Map keys are service names (e.g., "postgres")
	Networks map[string]Network `mapstructure:"networks" yaml:"networks,omitempty"`
	Volumes  map[string]Volume  `mapstructure:"volumes" yaml:"volumes,omitempty"`
}

// Service represents a single container definition
type Service struct {
	Image         string       `mapstructure:"image" yaml:"image,omitempty"` // e.g., "postgres:13"
	Build         string       `mapstructure:"build" yaml:"build,omitempty"` // local build context, alternative to Image
	ContainerName string       `mapstructure:"container_name" yaml:"container_name,omitempty"`
	Enabled       *bool        `mapstructure:"enabled" yaml:"enabled,omitempty"` // nil means enabled
	Ports         []string     `mapstructure:"ports" yaml:"ports,omitempty"` // e.g., ["5480:5432"]
	Environment   []string     `mapstructure:"environment" yaml:"environment,omitempty"`
	Volumes       []string     `mapstructure:"volumes" yaml:"volumes,omitempty"` // named volumes, binds, or anonymous targets
	Networks      []string     `mapstructure:"networks" yaml:"networks,omitempty"`
	DependsOn     []string     `mapstructure:"depends_on" yaml:"depends_on,omitempty"`
	Restart       string       `mapstructure:"restart" yaml:"restart,omitempty"` // e.g., "unless-stopped"
	Healthcheck   *Healthcheck `mapstructure:"healthcheck" yaml:"healthcheck,omitempty"`
	ReadyPort     string       `mapstructure:"ready_port" yaml:"ready_port,omitempty"` // container port probed when no healthcheck exists
}

// Healthcheck mirrors the container healthcheck surface we care about.
type Healthcheck struct {
	Test     []string `mapstructure:"test" yaml:"test"`
	Interval string   `mapstructure:"interval" yaml:"interval,omitempty"`
	Timeout  string   `mapstructure:"timeout" yaml:"timeout,omitempty"`
	Retries  int      `mapstructure:"retries" yaml:"retries,omitempty"`
}

// Network is a top-level virtual network declaration.
type Network struct {
	Driver   string `mapstructure:"driver" yaml:"driver,omitempty"`
	External bool   `mapstructure:"external" yaml:"external,omitempty"`
}

// Volume is a top-level named volume declaration. Named volumes are
// created on first use and survive `down`; only an explicit removal
// destroys them.
type Volume struct {
	External bool `mapstructure:"external" yaml:"external,omitempty"`
}

// IsEnabled reports whether the service should be scheduled.
// Services default to enabled; a declared-but-disabled entry stays in
// the file as topology documentation without ever being started.
func (s Service) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// MountKind classifies a volume spec entry.
type MountKind int

const (
	MountNamed MountKind = iota
	MountBind
	MountAnonymous
)

// Mount is one parsed entry of a service's volumes list.
type Mount struct {
	Kind     MountKind
	Source   string // volume name or host path; empty for anonymous mounts
	Target   string // path inside the container
	ReadOnly bool
}

// ParseMount splits a compose-style volume spec ("name:/path",
// "./host:/path:ro", "/path") into its parts. A spec with no colon is
// an anonymous volume over the target path, which is how a source bind
// mount masks a tooling cache directory underneath it.
func ParseMount(spec string) Mount {
	parts := strings.Split(spec, ":")
	if len(parts) == 1 {
		return Mount{Kind: MountAnonymous, Target: parts[0]}
	}

	m := Mount{Source: parts[0], Target: parts[1]}
	if len(parts) > 2 && parts[2] == "ro" {
		m.ReadOnly = true
	}

	// Host paths start with a path prefix; everything else is a named volume.
	if strings.HasPrefix(m.Source, ".") || strings.HasPrefix(m.Source, "/") || strings.HasPrefix(m.Source, "~") {
		m.Kind = MountBind
	} else {
		m.Kind = MountNamed
	}
	return m
}

// Spec renders the mount back into its compose-style string form.
func (m Mount) Spec() string {
	if m.Kind == MountAnonymous {
		return m.Target
	}
	s := m.Source + ":" + m.Target
	if m.ReadOnly {
		s += ":ro"
	}
	return s
}

// HostPort returns the host side of a "host:container" port mapping.
func HostPort(mapping string) string {
	if i := strings.Index(mapping, ":"); i >= 0 {
		return mapping[:i]
	}
	return ""
}

// ContainerPort returns the container side of a "host:container" mapping.
func ContainerPort(mapping string) string {
	if i := strings.Index(mapping, ":"); i >= 0 {
		return mapping[i+1:]
	}
	return mapping
}

// EnvValue looks up key in a KEY=VALUE environment list.
func EnvValue(env []string, key string) (string, bool) {
	prefix := key + "="
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			return kv[len(prefix):], true
		}
	}
	return "", false
}
