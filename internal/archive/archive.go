// archive.go implements the writer used to create .forge module archives:
// SQLite files holding the module's content-addressed sources plus the
// metadata that ties the artifact back to the stamped revision.
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
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	archiveType    = "module"
	archiveVersion = "1"

	// Extension is the suffix used for forge module archives.
	Extension = ".forge"
)

const (
	createMetaTableStmt = `
CREATE TABLE IF NOT EXISTS forge_archive_meta (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
);`
	createFilesTableStmt = `
CREATE TABLE IF NOT EXISTS forge_module_files (
  path TEXT PRIMARY KEY,
  mode INTEGER NOT NULL,
  size INTEGER NOT NULL,
  sha256 TEXT NOT NULL,
  data BLOB NOT NULL
);`
)

// Meta keys written into forge_archive_meta.
const (
	MetaArchiveType    = "forge_archive_type"
	MetaArchiveVersion = "forge_archive_version"
	MetaCreatedAt      = "created_at"
	MetaModuleName     = "module_name"
	MetaModuleGroup    = "module_group"
	MetaModuleArtifact = "module_artifact"
	MetaVersion        = "version"
	MetaGitCommit      = "git_commit"
	MetaGitDirty       = "git_dirty"
	MetaToolchain      = "toolchain"
	MetaPublication    = "publication"
)

// ModuleInfo identifies the module and revision being packaged.
type ModuleInfo struct {
	Name      string
	Group     string
	Artifact  string
	Version   string
	Commit    string
	Dirty     bool
	Toolchain string
}

type PackageOptions struct {
	// OutputPath is the desired archive file path. If empty, a name is
	// derived from the module coordinates and written to the working
	// directory. If it points to an existing directory, the derived
	// filename is placed inside it.
	OutputPath string
	Force      bool
	// Publication is an optional JSON document stored under the
	// "publication" meta key and carried into registry annotations.
	Publication []byte
}

type PackageResult struct {
	ArchivePath string
	ModuleName  string
	Version     string
	FileCount   int
	TotalBytes  int64
}

// Package walks moduleDir and writes its files into a fresh archive. The
// archive is written to a temp file first and renamed into place so a failed
// run never leaves a partial artifact behind.
func Package(ctx context.Context, moduleDir string, info ModuleInfo, opts PackageOptions) (*PackageResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	moduleDir = strings.TrimSpace(moduleDir)
	if moduleDir == "" {
		moduleDir = "."
	}
	if strings.TrimSpace(info.Name) == "" {
		return nil, errors.New("module name is required")
	}
	if strings.TrimSpace(info.Version) == "" {
		return nil, errors.New("version is required")
	}
	if fi, err := os.Stat(moduleDir); err != nil {
		return nil, fmt.Errorf("module dir: %w", err)
	} else if !fi.IsDir() {
		return nil, fmt.Errorf("module path %s is not a directory", moduleDir)
	}

	outputPath, err := resolveOutputPath(opts.OutputPath, info)
	if err != nil {
		return nil, err
	}
	if !opts.Force {
		if _, err := os.Stat(outputPath); err == nil {
			return nil, fmt.Errorf("output already exists: %s (rerun with --force to overwrite)", outputPath)
		}
	}
	outDir := filepath.Dir(outputPath)
	if outDir != "" && outDir != "." {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}

	tmpFile, err := os.CreateTemp(outDir, "forge-module-*.sqlite")
	if err != nil {
		return nil, fmt.Errorf("create temp sqlite: %w", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	cleanupTmp := func() { _ = os.Remove(tmpPath) }

	result, err := writeArchive(ctx, tmpPath, moduleDir, info, opts.Publication)
	if err != nil {
		cleanupTmp()
		return nil, err
	}

	if opts.Force {
		_ = os.Remove(outputPath)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		cleanupTmp()
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	result.ArchivePath = outputPath
	return result, nil
}

// Filename derives the canonical archive filename for a module version.
func Filename(info ModuleInfo) string {
	artifact := sanitizeToken(info.Artifact)
	if artifact == "" {
		artifact = sanitizeToken(info.Name)
	}
	if artifact == "" {
		artifact = "module"
	}
	version := sanitizeToken(info.Version)
	if version == "" {
		version = "unknown"
	}
	return fmt.Sprintf("%s-%s%s", artifact, version, Extension)
}

func resolveOutputPath(requested string, info ModuleInfo) (string, error) {
	requested = strings.TrimSpace(requested)
	filename := Filename(info)
	if requested == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working dir: %w", err)
		}
		return filepath.Join(wd, filename), nil
	}
	fi, err := os.Stat(requested)
	if err == nil && fi.IsDir() {
		return filepath.Join(requested, filename), nil
	}
	if err != nil && errors.Is(err, os.ErrNotExist) && strings.HasSuffix(requested, string(os.PathSeparator)) {
		return filepath.Join(strings.TrimRight(requested, string(os.PathSeparator)), filename), nil
	}
	return requested, nil
}

func writeArchive(ctx context.Context, path, moduleDir string, info ModuleInfo, publication []byte) (*PackageResult, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	defer db.Close()

	if _, err := db.ExecContext(ctx, createMetaTableStmt); err != nil {
		return nil, fmt.Errorf("create meta table: %w", err)
	}
	if _, err := db.ExecContext(ctx, createFilesTableStmt); err != nil {
		return nil, fmt.Errorf("create files table: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	meta := map[string]string{
		MetaArchiveType:    archiveType,
		MetaArchiveVersion: archiveVersion,
		MetaCreatedAt:      time.Now().UTC().Format(time.RFC3339Nano),
		MetaModuleName:     info.Name,
		MetaModuleGroup:    info.Group,
		MetaModuleArtifact: info.Artifact,
		MetaVersion:        info.Version,
		MetaGitCommit:      info.Commit,
		MetaGitDirty:       strconv.FormatBool(info.Dirty),
		MetaToolchain:      info.Toolchain,
	}
	if len(publication) > 0 {
		meta[MetaPublication] = string(publication)
	}
	if err := insertMeta(ctx, tx, meta); err != nil {
		return nil, err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO forge_module_files(path, mode, size, sha256, data) VALUES(?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	var (
		fileCount  int
		totalBytes int64
	)
	walkErr := filepath.WalkDir(moduleDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(moduleDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		hash := sha256.Sum256(data)
		if _, err := stmt.ExecContext(ctx, rel, int64(fi.Mode().Perm()), int64(len(data)), fmt.Sprintf("%x", hash[:]), data); err != nil {
			return fmt.Errorf("insert file %s: %w", rel, err)
		}
		fileCount++
		totalBytes += int64(len(data))
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	if fileCount == 0 {
		return nil, fmt.Errorf("module %s has no files under %s", info.Name, moduleDir)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &PackageResult{
		ModuleName: info.Name,
		Version:    info.Version,
		FileCount:  fileCount,
		TotalBytes: totalBytes,
	}, nil
}

func insertMeta(ctx context.Context, tx *sql.Tx, values map[string]string) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO forge_archive_meta(key, value) VALUES(?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare meta insert: %w", err)
	}
	defer stmt.Close()
	for k, v := range values {
		if strings.TrimSpace(k) == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, k, v); err != nil {
			return fmt.Errorf("insert meta %s: %w", k, err)
		}
	}
	return nil
}

// ReadMeta returns the meta table of an existing archive.
func ReadMeta(ctx context.Context, path string) (map[string]string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	defer db.Close()
	return readMeta(ctx, db)
}

func readMeta(ctx context.Context, db *sql.DB) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM forge_archive_meta`)
	if err != nil {
		return nil, fmt.Errorf("read archive meta: %w", err)
	}
	defer rows.Close()
	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

func sanitizeToken(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(token))
	lastDash := false
	for _, r := range token {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
