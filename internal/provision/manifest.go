// Package provision registers the dashboard as a hosted space from a
// declarative manifest.
package provision

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest describes the hosted space.
type Manifest struct {
	Name         string     `yaml:"name"`
	Organization string     `yaml:"organization"`
	SDK          string     `yaml:"sdk"`
	Private      bool       `yaml:"private"`
	Hardware     string     `yaml:"hardware"`
	AppPort      int        `yaml:"app_port"`
	Secrets      []Secret   `yaml:"secrets"`
	Variables    []Variable `yaml:"variables"`
}

// Secret is read from the environment variable FromEnv at provisioning time.
type Secret struct {
	Key         string `yaml:"key"`
	FromEnv     string `yaml:"from_env"`
	Description string `yaml:"description"`

	value string
}

type Variable struct {
	Key         string `yaml:"key"`
	Value       string `yaml:"value"`
	Description string `yaml:"description"`
}

// addrVariable is the listen address the dashboard reads at startup.
const addrVariable = "DASHBOARD_ADDR"

// RuntimeVariables returns the declared variables plus DASHBOARD_ADDR bound to
// app_port, unless the manifest sets it explicitly.
func (m *Manifest) RuntimeVariables() []Variable {
	vars := append([]Variable(nil), m.Variables...)
	for _, v := range vars {
		if v.Key == addrVariable {
			return vars
		}
	}
	return append(vars, Variable{
		Key:         addrVariable,
		Value:       fmt.Sprintf(":%d", m.AppPort),
		Description: "listen address matching app_port",
	})
}

// RepoID returns "organization/name", or just the name without an organization.
func (m *Manifest) RepoID() string {
	if m.Organization == "" {
		return m.Name
	}
	return m.Organization + "/" + m.Name
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(b)
}

func ParseManifest(b []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.SDK == "" {
		m.SDK = "docker"
	}
	if m.AppPort == 0 {
		m.AppPort = 7860
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	var errs []error
	if strings.TrimSpace(m.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if strings.Contains(m.Name, "/") {
		errs = append(errs, fmt.Errorf("name %q must not contain '/'", m.Name))
	}
	seen := map[string]bool{}
	for _, s := range m.Secrets {
		if s.Key == "" {
			errs = append(errs, errors.New("secret without key"))
			continue
		}
		if seen[s.Key] {
			errs = append(errs, fmt.Errorf("duplicate key %s", s.Key))
		}
		seen[s.Key] = true
	}
	for _, v := range m.Variables {
		if v.Key == "" {
			errs = append(errs, errors.New("variable without key"))
			continue
		}
		if seen[v.Key] {
			errs = append(errs, fmt.Errorf("duplicate key %s", v.Key))
		}
		seen[v.Key] = true
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid manifest: %w", errors.Join(errs...))
	}
	return nil
}

// ResolveSecrets fills secret values from lookup (normally os.LookupEnv).
// FromEnv defaults to the secret key.
func (m *Manifest) ResolveSecrets(lookup func(string) (string, bool)) error {
	var missing []string
	for i := range m.Secrets {
		s := &m.Secrets[i]
		env := s.FromEnv
		if env == "" {
			env = s.Key
		}
		v, ok := lookup(env)
		if !ok || v == "" {
			missing = append(missing, env)
			continue
		}
		s.value = v
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing environment for secrets: %s", strings.Join(missing, ", "))
	}
	return nil
}
