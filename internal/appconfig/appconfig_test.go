package appconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMergesRepoOverGlobal(t *testing.T) {
	dir := t.TempDir()
	globalPath := filepath.Join(dir, "global.yaml")
	repoPath := filepath.Join(dir, "repo.yaml")
	if err := os.WriteFile(globalPath, []byte("registry: registry.example.com/global\nsigningKey: /keys/global.key\n"), 0o644); err != nil {
		t.Fatalf("write global: %v", err)
	}
	if err := os.WriteFile(repoPath, []byte("registry: registry.example.com/repo\nallowModified: true\n"), 0o644); err != nil {
		t.Fatalf("write repo: %v", err)
	}

	cfg, err := Load(globalPath, repoPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Registry != "registry.example.com/repo" {
		t.Fatalf("repo registry should win, got %q", cfg.Registry)
	}
	if cfg.SigningKey != "/keys/global.key" {
		t.Fatalf("global signing key should survive, got %q", cfg.SigningKey)
	}
	if cfg.AllowModified == nil || !*cfg.AllowModified {
		t.Fatalf("allowModified not merged: %+v", cfg)
	}
}

func TestLoadToleratesMissingFiles(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "absent.yaml"), filepath.Join(dir, "also-absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Registry != "" {
		t.Fatalf("expected zero config, got %+v", cfg)
	}
}

func TestFindRepoRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "forge.yaml"), []byte("project:\n  name: p\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	nested := filepath.Join(root, "core", "src")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if got := FindRepoRoot(nested); got != root {
		t.Fatalf("expected %s, got %q", root, got)
	}
	if got := FindRepoRoot(t.TempDir()); got != "" {
		t.Fatalf("expected no root, got %q", got)
	}
}
