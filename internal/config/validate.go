package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// DeriveDatabaseURL builds the connection string the API server is
// expected to consume from the four variables that also configure the
// database service.
func DeriveDatabaseURL(user, pass, host, name string) string {
	return fmt.Sprintf("postgresql://%s:%s@%s/%s", user, pass, host, name)
}

// Validate runs the structural checks on a resolved stack. It expects
// variable references to be expanded already (see Resolve); validating
// an unresolved stack fails on the raw ${...} syntax.
func (s *Stack) Validate() error {
	var problems []string

	// Service names in a stable order so repeated runs report
	// identical findings.
	names := make([]string, 0, len(s.Services))
	for name := range s.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	hostPorts := map[string]string{} // port -> service that claimed it
	networkUse := map[string]int{}   // network -> enabled services on it
	enabledCount := 0

	for _, name := range names {
		svc := s.Services[name]

		if svc.Image == "" && svc.Build == "" {
			problems = append(problems, fmt.Sprintf("service %s: neither image nor build is set", name))
		}

		for _, netName := range svc.Networks {
			if _, ok := s.Networks[netName]; !ok {
				problems = append(problems, fmt.Sprintf("service %s: network %s is not declared", name, netName))
			}
		}

		for _, spec := range svc.Volumes {
			m := ParseMount(spec)
			if m.Kind == MountNamed {
				if _, ok := s.Volumes[m.Source]; !ok {
					problems = append(problems, fmt.Sprintf("service %s: volume %s is not declared", name, m.Source))
				}
			}
		}

		for _, dep := range svc.DependsOn {
			other, ok := s.Services[dep]
			if !ok {
				problems = append(problems, fmt.Sprintf("service %s: depends_on %s does not exist", name, dep))
				continue
			}
			if svc.IsEnabled() && !other.IsEnabled() {
				problems = append(problems, fmt.Sprintf("service %s: depends_on %s which is disabled", name, dep))
			}
		}

		if !svc.IsEnabled() {
			continue
		}
		enabledCount++

		for _, netName := range svc.Networks {
			networkUse[netName]++
		}

		for _, mapping := range svc.Ports {
			hp := HostPort(mapping)
			if hp == "" {
				problems = append(problems, fmt.Sprintf("service %s: port mapping %q has no host port", name, mapping))
				continue
			}
			if prev, taken := hostPorts[hp]; taken {
				problems = append(problems, fmt.Sprintf("host port %s claimed by both %s and %s", hp, prev, name))
			} else {
				hostPorts[hp] = name
			}
		}
	}

	// Reachability: every enabled service must sit on one shared
	// network, or the app can never see its store.
	if enabledCount > 1 {
		shared := false
		for _, count := range networkUse {
			if count == enabledCount {
				shared = true
				break
			}
		}
		if !shared {
			problems = append(problems, "no single network joins all enabled services")
		}
	}

	if err := s.checkDatabaseURL(); err != nil {
		problems = append(problems, err.Error())
	}

	if _, err := s.StartOrder(); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("stack validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// checkDatabaseURL verifies the latent consistency requirement between
// the connection string a service consumes and the credentials the
// database service is initialized with. Nothing in the topology itself
// enforces this; a drifted override would otherwise only surface as a
// connection failure at runtime.
func (s *Stack) checkDatabaseURL() error {
	var dbName string
	var db Service
	for name, svc := range s.Services {
		if _, ok := EnvValue(svc.Environment, "POSTGRES_USER"); ok {
			dbName = name
			db = svc
			break
		}
	}
	if dbName == "" {
		return nil // no database service, nothing to check
	}

	user, _ := EnvValue(db.Environment, "POSTGRES_USER")
	pass, _ := EnvValue(db.Environment, "POSTGRES_PASSWORD")
	name, _ := EnvValue(db.Environment, "POSTGRES_DB")

	for svcName, svc := range s.Services {
		raw, ok := EnvValue(svc.Environment, "DATABASE_URL")
		if !ok {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("service %s: DATABASE_URL %q is not a valid URL: %w", svcName, raw, err)
		}

		host := u.Hostname()
		if host != dbName && host != db.ContainerName {
			return fmt.Errorf("service %s: DATABASE_URL host %q does not resolve to database service %s", svcName, host, dbName)
		}

		urlPass, _ := u.User.Password()
		want := DeriveDatabaseURL(user, pass, host, name)
		got := DeriveDatabaseURL(u.User.Username(), urlPass, host, strings.TrimPrefix(u.Path, "/"))
		if got != want {
			return fmt.Errorf("service %s: DATABASE_URL %s does not match database credentials (expected %s)", svcName, got, want)
		}
	}
	return nil
}

// StartOrder returns the enabled services sorted so every service
// comes after the services it depends on. Ties break alphabetically to
// keep the order deterministic.
func (s *Stack) StartOrder() ([]string, error) {
	const (
		white = iota // unvisited
		grey         // on the current path
		black        // done
	)
	state := map[string]int{}
	var order []string

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case grey:
			return fmt.Errorf("dependency cycle through service %s", name)
		case black:
			return nil
		}
		state[name] = grey

		deps := append([]string(nil), s.Services[name].DependsOn...)
		sort.Strings(deps)
		for _, dep := range deps {
			if other, ok := s.Services[dep]; ok && other.IsEnabled() {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		state[name] = black
		order = append(order, name)
		return nil
	}

	names := make([]string, 0, len(s.Services))
	for name, svc := range s.Services {
		if svc.IsEnabled() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}
