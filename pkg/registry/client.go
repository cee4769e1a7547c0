package registry

import "context"

// Client exposes archive recording and publishing helpers.
type Client interface {
	RecordArchive(reference, archivePath string, meta RecordMeta) error
	ResolveArchive(reference string) (ArchiveRecord, error)
	ListProject(prefix string) ([]ArchiveRecord, error)
	Push(ctx context.Context, archivePath, reference string, opts PushOptions) (PushResult, error)
	Copy(ctx context.Context, src, dst string) error
}

// Option adjusts how a Client stores its local archive records.
type Option func(*defaultClient)

// WithCacheDir overrides the base directory archive records are kept
// under. An empty dir keeps the default user cache location.
func WithCacheDir(dir string) Option {
	return func(c *defaultClient) { c.cacheDir = dir }
}

// NewClient returns a Client backed by the default registry helpers.
func NewClient(opts ...Option) Client {
	c := &defaultClient{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type defaultClient struct {
	cacheDir string
}

func (c *defaultClient) RecordArchive(reference, archivePath string, meta RecordMeta) error {
	return recordArchive(c.cacheDir, reference, archivePath, meta)
}

func (c *defaultClient) ResolveArchive(reference string) (ArchiveRecord, error) {
	return resolveArchive(c.cacheDir, reference)
}

func (c *defaultClient) ListProject(prefix string) ([]ArchiveRecord, error) {
	return listProject(c.cacheDir, prefix)
}

func (c *defaultClient) Push(ctx context.Context, archivePath, reference string, opts PushOptions) (PushResult, error) {
	return push(ctx, archivePath, reference, opts)
}

func (c *defaultClient) Copy(ctx context.Context, src, dst string) error {
	return copyReference(ctx, src, dst)
}
