// Package appconfig merges forge's tool configuration: the global
// ~/.forge/config.yaml first, then the repository-local .forge.yaml, with
// repository values winning field by field.
package appconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Registry overrides the manifest's default publish endpoint.
	Registry string `yaml:"registry,omitempty"`
	// SigningKey is the path of the Ed25519 private key used for
	// `forge package --sign`.
	SigningKey string `yaml:"signingKey,omitempty"`
	// CacheDir overrides where archive records are kept.
	CacheDir string `yaml:"cacheDir,omitempty"`
	// AllowModified permits publishing stamps carrying the dirty suffix.
	AllowModified *bool `yaml:"allowModified,omitempty"`
}

func DefaultGlobalPath() string {
	home, _ := os.UserHomeDir()
	if strings.TrimSpace(home) == "" {
		return ""
	}
	return filepath.Join(home, ".forge", "config.yaml")
}

func DefaultRepoPath(repoRoot string) string {
	repoRoot = strings.TrimSpace(repoRoot)
	if repoRoot == "" {
		return ""
	}
	return filepath.Join(repoRoot, ".forge.yaml")
}

// Load reads and merges the two config layers. Missing files are not errors.
func Load(globalPath, repoPath string) (Config, error) {
	cfg := Config{}
	if strings.TrimSpace(globalPath) != "" {
		c, err := loadOne(globalPath)
		if err != nil {
			return Config{}, fmt.Errorf("load global config: %w", err)
		}
		cfg = merge(cfg, c)
	}
	if strings.TrimSpace(repoPath) != "" {
		c, err := loadOne(repoPath)
		if err != nil {
			return Config{}, fmt.Errorf("load repo config: %w", err)
		}
		cfg = merge(cfg, c)
	}
	return cfg, nil
}

func loadOne(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, err
	}
	raw = []byte(strings.TrimSpace(string(raw)))
	if len(raw) == 0 {
		return Config{}, nil
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func merge(a, b Config) Config {
	out := a
	if b.Registry != "" {
		out.Registry = b.Registry
	}
	if b.SigningKey != "" {
		out.SigningKey = b.SigningKey
	}
	if b.CacheDir != "" {
		out.CacheDir = b.CacheDir
	}
	if b.AllowModified != nil {
		out.AllowModified = b.AllowModified
	}
	return out
}
