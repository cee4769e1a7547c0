// Package manifest loads and validates forge.yaml, the declarative project
// file naming the modules to package, their artifact coordinates, the
// dependency coordinates they consume, and the publication metadata that
// accompanies published artifacts.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Filename is the manifest file forge looks for at the project root.
const Filename = "forge.yaml"

// Developer identifies a publication contact.
type Developer struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email,omitempty"`
}

// Project holds project-wide publication metadata.
type Project struct {
	Name        string      `yaml:"name"`
	Group       string      `yaml:"group,omitempty"`
	Description string      `yaml:"description,omitempty"`
	URL         string      `yaml:"url,omitempty"`
	License     string      `yaml:"license,omitempty"`
	Developers  []Developer `yaml:"developers,omitempty"`
}

// Repository names a remote endpoint dependencies are resolved from.
// Resolution itself is delegated to external tooling; forge only records
// the declaration.
type Repository struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Registry configures where published artifacts are uploaded.
type Registry struct {
	// Default is the reference prefix artifacts are published under,
	// e.g. "registry.example.com/acme".
	Default      string       `yaml:"default,omitempty"`
	Repositories []Repository `yaml:"repositories,omitempty"`
}

// Module declares one packageable unit of the project.
type Module struct {
	Name         string   `yaml:"name"`
	Path         string   `yaml:"path"`
	Group        string   `yaml:"group,omitempty"`
	Artifact     string   `yaml:"artifact,omitempty"`
	Dependencies []string `yaml:"dependencies,omitempty"`
}

// Manifest is the parsed forge.yaml.
type Manifest struct {
	Project   Project  `yaml:"project"`
	Registry  Registry `yaml:"registry,omitempty"`
	Toolchain string   `yaml:"toolchain,omitempty"`
	Modules   []Module `yaml:"modules"`

	dir string
}

// Coordinate is a parsed group:artifact[:version] dependency declaration.
type Coordinate struct {
	Group    string
	Artifact string
	Version  string
}

func (c Coordinate) String() string {
	if c.Version == "" {
		return c.Group + ":" + c.Artifact
	}
	return c.Group + ":" + c.Artifact + ":" + c.Version
}

// ParseCoordinate splits a group:artifact[:version] declaration.
func ParseCoordinate(s string) (Coordinate, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	switch len(parts) {
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return Coordinate{}, fmt.Errorf("invalid coordinate %q (expected group:artifact[:version])", s)
		}
		return Coordinate{Group: parts[0], Artifact: parts[1]}, nil
	case 3:
		if parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return Coordinate{}, fmt.Errorf("invalid coordinate %q (expected group:artifact[:version])", s)
		}
		return Coordinate{Group: parts[0], Artifact: parts[1], Version: parts[2]}, nil
	default:
		return Coordinate{}, fmt.Errorf("invalid coordinate %q (expected group:artifact[:version])", s)
	}
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	m.dir = filepath.Dir(abs)
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// Find walks from start toward the filesystem root looking for forge.yaml.
func Find(start string) (string, error) {
	start = strings.TrimSpace(start)
	if start == "" {
		start = "."
	}
	current, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(current); err == nil && !info.IsDir() {
		current = filepath.Dir(current)
	}
	for {
		candidate := filepath.Join(current, Filename)
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("no %s found in %s or any parent directory", Filename, start)
		}
		current = parent
	}
}

// Dir returns the directory holding the manifest; module paths resolve
// relative to it.
func (m *Manifest) Dir() string {
	return m.dir
}

// Module looks up a declared module by name.
func (m *Manifest) Module(name string) (Module, bool) {
	for _, mod := range m.Modules {
		if mod.Name == name {
			return mod, true
		}
	}
	return Module{}, false
}

// ModuleDir resolves a module's source directory against the manifest root.
func (m *Manifest) ModuleDir(mod Module) string {
	if filepath.IsAbs(mod.Path) {
		return mod.Path
	}
	return filepath.Join(m.dir, mod.Path)
}

// Validate checks cross-field coherence and fills per-module defaults:
// group falls back to project.group, artifact to the module name.
func (m *Manifest) Validate() error {
	m.Project.Name = strings.TrimSpace(m.Project.Name)
	if m.Project.Name == "" {
		return fmt.Errorf("project.name is required")
	}
	m.Project.Group = strings.TrimSpace(m.Project.Group)
	if m.Toolchain != "" {
		m.Toolchain = strings.TrimSpace(m.Toolchain)
		if m.Toolchain == "" {
			return fmt.Errorf("toolchain must not be blank when set")
		}
	}
	if len(m.Modules) == 0 {
		return fmt.Errorf("at least one module must be declared")
	}
	seen := make(map[string]struct{}, len(m.Modules))
	seenCoords := make(map[string]string, len(m.Modules))
	for i := range m.Modules {
		mod := &m.Modules[i]
		mod.Name = strings.TrimSpace(mod.Name)
		if mod.Name == "" {
			return fmt.Errorf("modules[%d].name is required", i)
		}
		if _, dup := seen[mod.Name]; dup {
			return fmt.Errorf("duplicate module name %q", mod.Name)
		}
		seen[mod.Name] = struct{}{}
		mod.Path = strings.TrimSpace(mod.Path)
		if mod.Path == "" {
			return fmt.Errorf("module %s: path is required", mod.Name)
		}
		if strings.HasPrefix(filepath.ToSlash(filepath.Clean(mod.Path)), "..") {
			return fmt.Errorf("module %s: path %q escapes the project root", mod.Name, mod.Path)
		}
		if strings.TrimSpace(mod.Group) == "" {
			mod.Group = m.Project.Group
		}
		if strings.TrimSpace(mod.Group) == "" {
			return fmt.Errorf("module %s: group is required (set module group or project.group)", mod.Name)
		}
		if strings.TrimSpace(mod.Artifact) == "" {
			mod.Artifact = mod.Name
		}
		// Coordinates name archives and publish references, so two
		// modules sharing one would silently overwrite each other.
		coord := mod.Group + ":" + mod.Artifact
		if other, dup := seenCoords[coord]; dup {
			return fmt.Errorf("modules %s and %s declare the same coordinates %s", other, mod.Name, coord)
		}
		seenCoords[coord] = mod.Name
		for _, dep := range mod.Dependencies {
			if _, err := ParseCoordinate(dep); err != nil {
				return fmt.Errorf("module %s: %w", mod.Name, err)
			}
		}
	}
	for i, repo := range m.Registry.Repositories {
		if strings.TrimSpace(repo.Name) == "" {
			return fmt.Errorf("registry.repositories[%d].name is required", i)
		}
		if strings.TrimSpace(repo.URL) == "" {
			return fmt.Errorf("repository %s: url is required", repo.Name)
		}
	}
	return nil
}
