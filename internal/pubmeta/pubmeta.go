// Package pubmeta builds the publication metadata document that accompanies
// every published artifact: coordinates, version stamp, project contacts,
// and declared dependencies.
package pubmeta

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/example/forge/internal/gitinfo"
	"github.com/example/forge/internal/manifest"
)

// Annotation keys for fields the OCI image-spec has no standard name for.
const (
	AnnotationModule = "com.example.forge.module"
	AnnotationGroup  = "com.example.forge.group"
	AnnotationDirty  = "com.example.forge.dirty"
)

type Developer struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Publication is the metadata document embedded into archives and published
// alongside artifacts.
type Publication struct {
	Name         string      `json:"name"`
	Group        string      `json:"group"`
	Artifact     string      `json:"artifact"`
	Version      string      `json:"version"`
	Commit       string      `json:"commit"`
	Dirty        bool        `json:"dirty,omitempty"`
	Description  string      `json:"description,omitempty"`
	URL          string      `json:"url,omitempty"`
	License      string      `json:"license,omitempty"`
	Developers   []Developer `json:"developers,omitempty"`
	Dependencies []string    `json:"dependencies,omitempty"`
	Toolchain    string      `json:"toolchain,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// FromModule assembles the publication document for one module at the given
// stamp. The stamp is passed in, never recomputed here, so every module of a
// single invocation carries the identical version.
func FromModule(m *manifest.Manifest, mod manifest.Module, stamp gitinfo.Stamp, now time.Time) Publication {
	devs := make([]Developer, 0, len(m.Project.Developers))
	for _, d := range m.Project.Developers {
		devs = append(devs, Developer{Name: d.Name, Email: d.Email})
	}
	return Publication{
		Name:         mod.Name,
		Group:        mod.Group,
		Artifact:     mod.Artifact,
		Version:      stamp.String(),
		Commit:       stamp.Commit,
		Dirty:        stamp.Dirty,
		Description:  m.Project.Description,
		URL:          m.Project.URL,
		License:      m.Project.License,
		Developers:   devs,
		Dependencies: append([]string(nil), mod.Dependencies...),
		Toolchain:    m.Toolchain,
		CreatedAt:    now.UTC(),
	}
}

// Encode renders the document as indented JSON.
func (p Publication) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode publication: %w", err)
	}
	return data, nil
}

// Annotations maps the document onto OCI manifest annotations.
func (p Publication) Annotations() map[string]string {
	ann := map[string]string{
		ocispec.AnnotationTitle:    p.Artifact,
		ocispec.AnnotationVersion:  p.Version,
		ocispec.AnnotationRevision: p.Commit,
		ocispec.AnnotationCreated:  p.CreatedAt.Format(time.RFC3339),
		AnnotationModule:           p.Name,
		AnnotationGroup:            p.Group,
		AnnotationDirty:            strconv.FormatBool(p.Dirty),
	}
	if p.Description != "" {
		ann[ocispec.AnnotationDescription] = p.Description
	}
	if p.URL != "" {
		ann[ocispec.AnnotationURL] = p.URL
	}
	if p.License != "" {
		ann[ocispec.AnnotationLicenses] = p.License
	}
	return ann
}
