package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleManifest = `project:
  name: acme-libs
  group: com.acme
  description: Shared utility libraries
  url: https://acme.example.com
  license: Apache-2.0
  developers:
    - name: Dev One
      email: dev1@acme.example.com
registry:
  default: registry.example.com/acme
  repositories:
    - name: central
      url: https://repo.example.com/releases
toolchain: "1.8"
modules:
  - name: core
    path: core
    dependencies:
      - org.slf4j:slf4j-api:1.7.36
  - name: extras
    path: libs/extras
    artifact: acme-extras
`

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, Filename)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeManifest(t, t.TempDir(), sampleManifest)
	m, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	core, ok := m.Module("core")
	if !ok {
		t.Fatal("core module not found")
	}
	if core.Group != "com.acme" {
		t.Fatalf("expected inherited group com.acme, got %q", core.Group)
	}
	if core.Artifact != "core" {
		t.Fatalf("expected artifact to default to module name, got %q", core.Artifact)
	}
	extras, _ := m.Module("extras")
	if extras.Artifact != "acme-extras" {
		t.Fatalf("explicit artifact should win, got %q", extras.Artifact)
	}
	if got := m.ModuleDir(extras); got != filepath.Join(m.Dir(), "libs", "extras") {
		t.Fatalf("unexpected module dir %q", got)
	}
}

func TestLoadRejectsDuplicateModules(t *testing.T) {
	body := `project:
  name: p
  group: g
modules:
  - name: core
    path: a
  - name: core
    path: b
`
	path := writeManifest(t, t.TempDir(), body)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "duplicate module") {
		t.Fatalf("expected duplicate module error, got %v", err)
	}
}

func TestLoadRejectsBadCoordinate(t *testing.T) {
	body := `project:
  name: p
  group: g
modules:
  - name: core
    path: core
    dependencies: ["just-an-artifact"]
`
	path := writeManifest(t, t.TempDir(), body)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "invalid coordinate") {
		t.Fatalf("expected coordinate error, got %v", err)
	}
}

func TestParseCoordinate(t *testing.T) {
	c, err := ParseCoordinate("org.slf4j:slf4j-api:1.7.36")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Group != "org.slf4j" || c.Artifact != "slf4j-api" || c.Version != "1.7.36" {
		t.Fatalf("unexpected coordinate %+v", c)
	}
	if c.String() != "org.slf4j:slf4j-api:1.7.36" {
		t.Fatalf("round trip mismatch: %s", c)
	}
	if _, err := ParseCoordinate("too:many:colons:here"); err == nil {
		t.Fatal("expected error for four segments")
	}
	if _, err := ParseCoordinate(":missing"); err == nil {
		t.Fatal("expected error for empty group")
	}
}

func TestFindWalksParents(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, sampleManifest)
	nested := filepath.Join(root, "core", "src")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	found, err := Find(nested)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found != filepath.Join(root, Filename) {
		t.Fatalf("expected manifest at root, got %s", found)
	}
}

func TestFindReportsMissingManifest(t *testing.T) {
	if _, err := Find(t.TempDir()); err == nil {
		t.Fatal("expected error when no manifest exists")
	}
}

func TestLoadRejectsDuplicateCoordinates(t *testing.T) {
	body := `project:
  name: acme-libs
  group: com.acme
modules:
  - name: core
    path: core
    artifact: acme-core
  - name: core-v2
    path: core-v2
    artifact: acme-core
`
	_, err := Load(writeManifest(t, t.TempDir(), body))
	if err == nil {
		t.Fatal("expected error for duplicate coordinates")
	}
	if !strings.Contains(err.Error(), "same coordinates com.acme:acme-core") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadRejectsBlankToolchain(t *testing.T) {
	body := `project:
  name: acme-libs
  group: com.acme
toolchain: "   "
modules:
  - name: core
    path: core
`
	_, err := Load(writeManifest(t, t.TempDir(), body))
	if err == nil {
		t.Fatal("expected error for blank toolchain")
	}
	if !strings.Contains(err.Error(), "toolchain") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadTrimsToolchain(t *testing.T) {
	body := `project:
  name: acme-libs
  group: com.acme
toolchain: " 1.8 "
modules:
  - name: core
    path: core
`
	m, err := Load(writeManifest(t, t.TempDir(), body))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Toolchain != "1.8" {
		t.Fatalf("expected trimmed toolchain, got %q", m.Toolchain)
	}
}
