package pubmeta

import (
	"encoding/json"
	"testing"
	"time"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/example/forge/internal/gitinfo"
	"github.com/example/forge/internal/manifest"
)

func sampleManifest() *manifest.Manifest {
	return &manifest.Manifest{
		Project: manifest.Project{
			Name:        "acme-libs",
			Group:       "com.acme",
			Description: "Shared utility libraries",
			URL:         "https://acme.example.com",
			License:     "Apache-2.0",
			Developers:  []manifest.Developer{{Name: "Dev One", Email: "dev1@acme.example.com"}},
		},
		Toolchain: "1.8",
	}
}

func TestFromModuleCarriesStamp(t *testing.T) {
	mod := manifest.Module{Name: "core", Group: "com.acme", Artifact: "acme-core", Dependencies: []string{"org.slf4j:slf4j-api:1.7.36"}}
	stamp := gitinfo.Stamp{Commit: "abc123", Dirty: true}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	pub := FromModule(sampleManifest(), mod, stamp, now)
	if pub.Version != "abc123"+gitinfo.DirtySuffix {
		t.Fatalf("unexpected version %q", pub.Version)
	}
	if pub.Commit != "abc123" || !pub.Dirty {
		t.Fatalf("stamp not carried: %+v", pub)
	}
	if pub.License != "Apache-2.0" || pub.URL != "https://acme.example.com" {
		t.Fatalf("project metadata not carried: %+v", pub)
	}
	if len(pub.Dependencies) != 1 {
		t.Fatalf("dependencies not carried: %+v", pub.Dependencies)
	}

	data, err := pub.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var decoded Publication
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Version != pub.Version {
		t.Fatalf("round trip lost version: %q", decoded.Version)
	}
}

func TestAnnotationsUseSpecKeys(t *testing.T) {
	mod := manifest.Module{Name: "core", Group: "com.acme", Artifact: "acme-core"}
	stamp := gitinfo.Stamp{Commit: "abc123"}
	pub := FromModule(sampleManifest(), mod, stamp, time.Now())

	ann := pub.Annotations()
	if ann[ocispec.AnnotationVersion] != "abc123" {
		t.Fatalf("version annotation missing: %v", ann)
	}
	if ann[ocispec.AnnotationRevision] != "abc123" {
		t.Fatalf("revision annotation missing: %v", ann)
	}
	if ann[AnnotationDirty] != "false" {
		t.Fatalf("dirty annotation should be false: %v", ann)
	}
	if ann[ocispec.AnnotationLicenses] != "Apache-2.0" {
		t.Fatalf("license annotation missing: %v", ann)
	}
}
