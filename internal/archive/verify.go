package archive

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"hash"
	"strings"

	"github.com/opencontainers/go-digest"
	_ "modernc.org/sqlite"
)

type VerifyResult struct {
	ArchivePath   string        `json:"archivePath"`
	ModuleName    string        `json:"moduleName,omitempty"`
	Version       string        `json:"version,omitempty"`
	FileCount     int           `json:"fileCount"`
	TotalBytes    int64         `json:"totalBytes"`
	ContentDigest digest.Digest `json:"contentDigest,omitempty"`
}

// Verify recomputes every stored file hash and the archive content digest.
// The content digest is deterministic: it covers (path, sha256) pairs in
// path order, so two archives with identical content agree regardless of
// when or where they were packaged.
func Verify(ctx context.Context, path string) (*VerifyResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("archive path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	defer db.Close()

	meta, err := readMeta(ctx, db)
	if err != nil {
		return nil, err
	}
	if meta[MetaArchiveType] != archiveType {
		return nil, fmt.Errorf("unexpected archive type %q (want %q)", meta[MetaArchiveType], archiveType)
	}
	if meta[MetaArchiveVersion] != archiveVersion {
		return nil, fmt.Errorf("unexpected archive version %q (want %q)", meta[MetaArchiveVersion], archiveVersion)
	}

	rows, err := db.QueryContext(ctx, `SELECT path, sha256, size, data FROM forge_module_files ORDER BY path ASC`)
	if err != nil {
		return nil, fmt.Errorf("read module files: %w", err)
	}
	defer rows.Close()

	content := sha256.New()
	var (
		fileCount  int
		totalBytes int64
	)
	for rows.Next() {
		var (
			p    string
			sha  string
			size int64
			data []byte
		)
		if err := rows.Scan(&p, &sha, &size, &data); err != nil {
			return nil, fmt.Errorf("scan module file: %w", err)
		}
		actual := sha256.Sum256(data)
		actualHex := fmt.Sprintf("%x", actual[:])
		if strings.TrimSpace(sha) != actualHex {
			return nil, fmt.Errorf("sha256 mismatch for %s", p)
		}
		if size != int64(len(data)) {
			return nil, fmt.Errorf("size mismatch for %s (recorded %d, actual %d)", p, size, len(data))
		}
		recordDigest(content, p, actualHex)
		fileCount++
		totalBytes += int64(len(data))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &VerifyResult{
		ArchivePath:   path,
		ModuleName:    meta[MetaModuleName],
		Version:       meta[MetaVersion],
		FileCount:     fileCount,
		TotalBytes:    totalBytes,
		ContentDigest: digest.NewDigestFromEncoded(digest.SHA256, fmt.Sprintf("%x", content.Sum(nil))),
	}, nil
}

func recordDigest(h hash.Hash, path, sha string) {
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write([]byte(sha))
	h.Write([]byte{0})
}
