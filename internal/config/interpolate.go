package config

import (
	"fmt"
	"os"
	"strings"
)

// Lookup resolves a variable name to a value. The second return value
// reports whether the variable was set at all (an empty string still
// counts as set, matching shell semantics for ${VAR}).
type Lookup func(name string) (string, bool)

// OSLookup resolves variables from the process environment. Together
// with the .env preload in Load, this gives the standard precedence:
// host environment, then .env file, then the in-file default.
func OSLookup(name string) (string, bool) {
	return os.LookupEnv(name)
}

// MapLookup resolves variables from a fixed map; used by tests and by
// callers that need resolution independent of the host environment.
func MapLookup(vars map[string]string) Lookup {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

// Interpolate expands ${VAR} and ${VAR:-default} references in s.
// "$$" escapes a literal dollar sign. Resolution is pure: the same
// input and lookup always produce the same output, so re-resolving a
// stack with identical inputs yields identical values.
func Interpolate(s string, lookup Lookup) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '$' {
			b.WriteByte(c)
			continue
		}
		if i+1 < len(s) && s[i+1] == '$' {
			b.WriteByte('$')
			i++
			continue
		}
		if i+1 >= len(s) || s[i+1] != '{' {
			return "", fmt.Errorf("invalid variable reference at offset %d in %q (expected ${...})", i, s)
		}

		end := strings.IndexByte(s[i+2:], '}')
		if end < 0 {
			return "", fmt.Errorf("unterminated variable reference in %q", s)
		}
		ref := s[i+2 : i+2+end]
		i += 2 + end

		name := ref
		def := ""
		hasDefault := false
		if j := strings.Index(ref, ":-"); j >= 0 {
			name = ref[:j]
			def = ref[j+2:]
			hasDefault = true
		}
		if name == "" {
			return "", fmt.Errorf("empty variable name in %q", s)
		}

		if v, ok := lookup(name); ok {
			b.WriteString(v)
		} else if hasDefault {
			b.WriteString(def)
		} else {
			return "", fmt.Errorf("variable %s is not set and has no default", name)
		}
	}
	return b.String(), nil
}

// interpolateAll expands every string in a slice, returning a new slice.
func interpolateAll(in []string, lookup Lookup) ([]string, error) {
	if in == nil {
		return nil, nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		v, err := Interpolate(s, lookup)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Resolve returns a deep copy of the stack with every variable
// reference expanded. The receiver is never mutated, so a stack can be
// resolved repeatedly against different environments.
func (s *Stack) Resolve(lookup Lookup) (*Stack, error) {
	out := &Stack{
		Name:     s.Name,
		Version:  s.Version,
		Services: make(map[string]Service, len(s.Services)),
		Networks: make(map[string]Network, len(s.Networks)),
		Volumes:  make(map[string]Volume, len(s.Volumes)),
	}
	for name, n := range s.Networks {
		out.Networks[name] = n
	}
	for name, v := range s.Volumes {
		out.Volumes[name] = v
	}

	for name, svc := range s.Services {
		resolved := svc

		var err error
		if resolved.Environment, err = interpolateAll(svc.Environment, lookup); err != nil {
			return nil, fmt.Errorf("service %s: environment: %w", name, err)
		}
		if resolved.Ports, err = interpolateAll(svc.Ports, lookup); err != nil {
			return nil, fmt.Errorf("service %s: ports: %w", name, err)
		}
		if resolved.Volumes, err = interpolateAll(svc.Volumes, lookup); err != nil {
			return nil, fmt.Errorf("service %s: volumes: %w", name, err)
		}
		if svc.Healthcheck != nil {
			hc := *svc.Healthcheck
			if hc.Test, err = interpolateAll(svc.Healthcheck.Test, lookup); err != nil {
				return nil, fmt.Errorf("service %s: healthcheck: %w", name, err)
			}
			resolved.Healthcheck = &hc
		}

		// Slices that carry no variables still need copying so the
		// resolved stack shares nothing with the original.
		resolved.Networks = append([]string(nil), svc.Networks...)
		resolved.DependsOn = append([]string(nil), svc.DependsOn...)

		out.Services[name] = resolved
	}
	return out, nil
}
