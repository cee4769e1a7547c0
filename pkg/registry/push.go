// push.go wraps .forge archives as single-layer OCI artifacts and uploads
// them to the configured registry.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/static"
	"github.com/google/go-containerregistry/pkg/v1/types"
)

const (
	// ArchiveMediaType identifies the .forge sqlite payload layer.
	ArchiveMediaType types.MediaType = "application/vnd.example.forge.module.v1+sqlite"
	// ConfigMediaType identifies the (empty) artifact config blob.
	ConfigMediaType types.MediaType = "application/vnd.example.forge.module.config.v1+json"
)

type PushOptions struct {
	// Annotations are attached to the artifact manifest; callers pass the
	// publication document's annotation form here.
	Annotations map[string]string
	Output      io.Writer
}

type PushResult struct {
	Reference string
	Digest    string
}

func push(ctx context.Context, archivePath, reference string, opts PushOptions) (PushResult, error) {
	if archivePath == "" {
		return PushResult{}, errors.New("archive path is required")
	}
	ref, err := name.ParseReference(reference)
	if err != nil {
		return PushResult{}, fmt.Errorf("parse reference %q: %w", reference, err)
	}
	data, err := os.ReadFile(archivePath)
	if err != nil {
		return PushResult{}, fmt.Errorf("read archive: %w", err)
	}
	img, err := buildArtifact(data, opts.Annotations)
	if err != nil {
		return PushResult{}, err
	}
	dig, err := img.Digest()
	if err != nil {
		return PushResult{}, fmt.Errorf("compute artifact digest: %w", err)
	}
	if opts.Output != nil {
		fmt.Fprintf(opts.Output, "Pushing %s (%s)\n", reference, dig)
	}
	if err := remote.Write(ref, img, remote.WithContext(ctx), remote.WithAuthFromKeychain(authn.DefaultKeychain)); err != nil {
		return PushResult{}, fmt.Errorf("push %s: %w", reference, err)
	}
	return PushResult{Reference: ref.Name(), Digest: dig.String()}, nil
}

// buildArtifact assembles the OCI image wrapping one archive payload.
func buildArtifact(archive []byte, annotations map[string]string) (v1.Image, error) {
	if len(archive) == 0 {
		return nil, errors.New("archive payload is empty")
	}
	img := mutate.MediaType(empty.Image, types.OCIManifestSchema1)
	img = mutate.ConfigMediaType(img, ConfigMediaType)
	layer := static.NewLayer(archive, ArchiveMediaType)
	img, err := mutate.AppendLayers(img, layer)
	if err != nil {
		return nil, fmt.Errorf("append archive layer: %w", err)
	}
	if len(annotations) > 0 {
		annotated, ok := mutate.Annotations(img, annotations).(v1.Image)
		if !ok {
			return nil, errors.New("annotate artifact manifest")
		}
		img = annotated
	}
	return img, nil
}
