// project.go holds helpers shared by the forge subcommands: manifest
// discovery, tool config layering, and module selection.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/example/forge/internal/appconfig"
	"github.com/example/forge/internal/manifest"
)

func loadProject(manifestPath string) (*manifest.Manifest, error) {
	manifestPath = strings.TrimSpace(manifestPath)
	if manifestPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working dir: %w", err)
		}
		manifestPath, err = manifest.Find(wd)
		if err != nil {
			return nil, err
		}
	}
	return manifest.Load(manifestPath)
}

func loadToolConfig(projectDir string) (appconfig.Config, error) {
	repoPath := ""
	if root := appconfig.FindRepoRoot(projectDir); root != "" {
		repoPath = appconfig.DefaultRepoPath(root)
	}
	return appconfig.Load(appconfig.DefaultGlobalPath(), repoPath)
}

// selectModules resolves positional module names against the manifest.
// No names selects every declared module.
func selectModules(m *manifest.Manifest, names []string) ([]manifest.Module, error) {
	if len(names) == 0 {
		return append([]manifest.Module(nil), m.Modules...), nil
	}
	selected := make([]manifest.Module, 0, len(names))
	picked := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if _, dup := picked[name]; dup {
			continue
		}
		mod, ok := m.Module(name)
		if !ok {
			return nil, fmt.Errorf("unknown module %q (declared: %s)", name, strings.Join(moduleNames(m), ", "))
		}
		picked[name] = struct{}{}
		selected = append(selected, mod)
	}
	return selected, nil
}

func moduleNames(m *manifest.Manifest) []string {
	names := make([]string, 0, len(m.Modules))
	for _, mod := range m.Modules {
		names = append(names, mod.Name)
	}
	return names
}

// registryPrefix applies the override precedence: flag, tool config,
// manifest default.
func registryPrefix(m *manifest.Manifest, cfg appconfig.Config, flag string) string {
	if v := strings.TrimSpace(flag); v != "" {
		return v
	}
	if v := strings.TrimSpace(cfg.Registry); v != "" {
		return v
	}
	return strings.TrimSpace(m.Registry.Default)
}
