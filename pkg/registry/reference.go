package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
)

// ArtifactReference derives the publish reference for a module version:
// <prefix>/<group>/<artifact>:<version>. Repository components are
// lowercased as registries require; the version becomes the tag.
func ArtifactReference(prefix, group, artifact, version string) (string, error) {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return "", errors.New("registry prefix is required (set registry.default in forge.yaml or pass --registry)")
	}
	group = strings.ToLower(strings.TrimSpace(group))
	artifact = strings.ToLower(strings.TrimSpace(artifact))
	version = strings.TrimSpace(version)
	if group == "" || artifact == "" {
		return "", errors.New("group and artifact are required")
	}
	if version == "" {
		return "", errors.New("version is required")
	}
	reference := fmt.Sprintf("%s/%s/%s:%s", prefix, group, artifact, version)
	if _, err := name.NewTag(reference, name.StrictValidation); err != nil {
		return "", fmt.Errorf("invalid artifact reference %q: %w", reference, err)
	}
	return reference, nil
}
