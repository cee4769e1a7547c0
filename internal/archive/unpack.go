package archive

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

type UnpackOptions struct {
	// DestinationPath is the directory to write module files into. If
	// empty, it is derived from the archive meta (<artifact>-<version>).
	DestinationPath string
	Force           bool
}

type UnpackResult struct {
	ArchivePath     string `json:"archivePath"`
	ModuleName      string `json:"moduleName,omitempty"`
	Version         string `json:"version,omitempty"`
	DestinationPath string `json:"destinationPath"`
	FileCount       int    `json:"fileCount"`
	TotalBytes      int64  `json:"totalBytes"`
}

// Unpack extracts an archive into a directory, re-checking each file hash
// and refusing paths that would escape the destination.
func Unpack(ctx context.Context, archivePath string, opts UnpackOptions) (*UnpackResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	archivePath = strings.TrimSpace(archivePath)
	if archivePath == "" {
		return nil, errors.New("archive path is required")
	}

	db, err := sql.Open("sqlite", archivePath)
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

	destPath := strings.TrimSpace(opts.DestinationPath)
	if destPath == "" {
		destPath = Filename(ModuleInfo{Artifact: meta[MetaModuleArtifact], Name: meta[MetaModuleName], Version: meta[MetaVersion]})
		destPath = strings.TrimSuffix(destPath, Extension)
	}
	destPath, err = filepath.Abs(destPath)
	if err != nil {
		return nil, fmt.Errorf("resolve destination: %w", err)
	}
	if info, err := os.Stat(destPath); err == nil {
		if !info.IsDir() {
			return nil, fmt.Errorf("destination exists and is not a directory: %s", destPath)
		}
		if !opts.Force {
			return nil, fmt.Errorf("destination already exists: %s (use --force to overwrite)", destPath)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(destPath, 0o755); err != nil {
			return nil, fmt.Errorf("create destination: %w", err)
		}
	} else {
		return nil, fmt.Errorf("stat destination: %w", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT path, mode, sha256, data FROM forge_module_files ORDER BY path ASC`)
	if err != nil {
		return nil, fmt.Errorf("read module files: %w", err)
	}
	defer rows.Close()

	var (
		files int
		total int64
	)
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		var (
			relPath string
			mode    int64
			sha     string
			data    []byte
		)
		if err := rows.Scan(&relPath, &mode, &sha, &data); err != nil {
			return nil, fmt.Errorf("scan module file: %w", err)
		}
		clean := filepath.Clean(filepath.FromSlash(relPath))
		if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
			return nil, fmt.Errorf("invalid file path in archive: %s", relPath)
		}
		actual := sha256.Sum256(data)
		if strings.TrimSpace(sha) != fmt.Sprintf("%x", actual[:]) {
			return nil, fmt.Errorf("sha256 mismatch for %s", relPath)
		}
		target := filepath.Join(destPath, clean)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, fmt.Errorf("create dir for %s: %w", relPath, err)
		}
		perm := fs.FileMode(mode).Perm()
		if perm == 0 {
			perm = 0o644
		}
		if err := os.WriteFile(target, data, perm); err != nil {
			return nil, fmt.Errorf("write %s: %w", relPath, err)
		}
		files++
		total += int64(len(data))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &UnpackResult{
		ArchivePath:     archivePath,
		ModuleName:      meta[MetaModuleName],
		Version:         meta[MetaVersion],
		DestinationPath: destPath,
		FileCount:       files,
		TotalBytes:      total,
	}, nil
}
