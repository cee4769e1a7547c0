package archive

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

func sampleModuleDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "src", "main"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	files := map[string]string{
		"build.txt":          "module core\n",
		"src/main/lib.txt":   "library body\n",
		"src/main/extra.txt": "extra body\n",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, filepath.FromSlash(name)), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	// .git contents must never end up in an artifact.
	if err := os.MkdirAll(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatalf("mkdir .git: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".git", "HEAD"), []byte("ref: refs/heads/main\n"), 0o644); err != nil {
		t.Fatalf("write HEAD: %v", err)
	}
	return dir
}

func testInfo() ModuleInfo {
	return ModuleInfo{
		Name:     "core",
		Group:    "com.acme",
		Artifact: "acme-core",
		Version:  "abc123",
		Commit:   "abc123",
	}
}

func TestPackageWritesSQLiteArchive(t *testing.T) {
	moduleDir := sampleModuleDir(t)
	outDir := t.TempDir()

	res, err := Package(context.Background(), moduleDir, testInfo(), PackageOptions{OutputPath: outDir, Publication: []byte(`{"name":"core"}`)})
	if err != nil {
		t.Fatalf("package: %v", err)
	}
	if res.FileCount != 3 {
		t.Fatalf("expected 3 files, got %d", res.FileCount)
	}
	if filepath.Base(res.ArchivePath) != "acme-core-abc123.forge" {
		t.Fatalf("unexpected archive name %s", filepath.Base(res.ArchivePath))
	}

	db, err := sql.Open("sqlite", res.ArchivePath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	var version string
	if err := db.QueryRow(`SELECT value FROM forge_archive_meta WHERE key = ?`, MetaVersion).Scan(&version); err != nil {
		t.Fatalf("read version: %v", err)
	}
	if version != "abc123" {
		t.Fatalf("expected version abc123, got %q", version)
	}
	var gitFiles int
	if err := db.QueryRow(`SELECT COUNT(*) FROM forge_module_files WHERE path LIKE '.git/%'`).Scan(&gitFiles); err != nil {
		t.Fatalf("count .git files: %v", err)
	}
	if gitFiles != 0 {
		t.Fatalf("archive must not contain .git files, found %d", gitFiles)
	}
}

func TestPackageRefusesExistingOutput(t *testing.T) {
	moduleDir := sampleModuleDir(t)
	outDir := t.TempDir()

	first, err := Package(context.Background(), moduleDir, testInfo(), PackageOptions{OutputPath: outDir})
	if err != nil {
		t.Fatalf("first package: %v", err)
	}
	if _, err := Package(context.Background(), moduleDir, testInfo(), PackageOptions{OutputPath: first.ArchivePath}); err == nil {
		t.Fatal("expected error without --force")
	}
	if _, err := Package(context.Background(), moduleDir, testInfo(), PackageOptions{OutputPath: first.ArchivePath, Force: true}); err != nil {
		t.Fatalf("force repackage: %v", err)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	moduleDir := sampleModuleDir(t)
	res, err := Package(context.Background(), moduleDir, testInfo(), PackageOptions{OutputPath: t.TempDir()})
	if err != nil {
		t.Fatalf("package: %v", err)
	}

	ok, err := Verify(context.Background(), res.ArchivePath)
	if err != nil {
		t.Fatalf("verify clean archive: %v", err)
	}
	if ok.ContentDigest == "" || ok.FileCount != 3 {
		t.Fatalf("unexpected verify result %+v", ok)
	}

	db, err := sql.Open("sqlite", res.ArchivePath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if _, err := db.Exec(`UPDATE forge_module_files SET data = ? WHERE path = 'build.txt'`, []byte("tampered\n")); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	_ = db.Close()

	if _, err := Verify(context.Background(), res.ArchivePath); err == nil || !strings.Contains(err.Error(), "sha256 mismatch") {
		t.Fatalf("expected sha256 mismatch, got %v", err)
	}
}

func TestVerifyDigestIsDeterministic(t *testing.T) {
	moduleDir := sampleModuleDir(t)
	a, err := Package(context.Background(), moduleDir, testInfo(), PackageOptions{OutputPath: t.TempDir()})
	if err != nil {
		t.Fatalf("package a: %v", err)
	}
	b, err := Package(context.Background(), moduleDir, testInfo(), PackageOptions{OutputPath: t.TempDir()})
	if err != nil {
		t.Fatalf("package b: %v", err)
	}
	va, err := Verify(context.Background(), a.ArchivePath)
	if err != nil {
		t.Fatalf("verify a: %v", err)
	}
	vb, err := Verify(context.Background(), b.ArchivePath)
	if err != nil {
		t.Fatalf("verify b: %v", err)
	}
	if va.ContentDigest != vb.ContentDigest {
		t.Fatalf("content digests differ: %s vs %s", va.ContentDigest, vb.ContentDigest)
	}
}

func TestUnpackRoundTrip(t *testing.T) {
	moduleDir := sampleModuleDir(t)
	res, err := Package(context.Background(), moduleDir, testInfo(), PackageOptions{OutputPath: t.TempDir()})
	if err != nil {
		t.Fatalf("package: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "out")
	un, err := Unpack(context.Background(), res.ArchivePath, UnpackOptions{DestinationPath: dest})
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if un.FileCount != 3 {
		t.Fatalf("expected 3 files, got %d", un.FileCount)
	}
	body, err := os.ReadFile(filepath.Join(dest, "src", "main", "lib.txt"))
	if err != nil {
		t.Fatalf("read unpacked file: %v", err)
	}
	if string(body) != "library body\n" {
		t.Fatalf("unexpected body %q", body)
	}

	if _, err := Unpack(context.Background(), res.ArchivePath, UnpackOptions{DestinationPath: dest}); err == nil {
		t.Fatal("expected error for existing destination without --force")
	}
	if _, err := Unpack(context.Background(), res.ArchivePath, UnpackOptions{DestinationPath: dest, Force: true}); err != nil {
		t.Fatalf("force unpack: %v", err)
	}
}

func TestReadMetaExposesPublication(t *testing.T) {
	moduleDir := sampleModuleDir(t)
	pub := []byte(`{"name":"core","version":"abc123"}`)
	res, err := Package(context.Background(), moduleDir, testInfo(), PackageOptions{OutputPath: t.TempDir(), Publication: pub})
	if err != nil {
		t.Fatalf("package: %v", err)
	}
	meta, err := ReadMeta(context.Background(), res.ArchivePath)
	if err != nil {
		t.Fatalf("read meta: %v", err)
	}
	if meta[MetaPublication] != string(pub) {
		t.Fatalf("publication not stored: %q", meta[MetaPublication])
	}
	if meta[MetaGitDirty] != "false" {
		t.Fatalf("expected git_dirty false, got %q", meta[MetaGitDirty])
	}
}
