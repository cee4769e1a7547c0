// records.go tracks locally packaged archives so 'forge publish' can find
// them later without re-reading the manifest.
package registry

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RecordMeta carries identifying fields copied into the record for listing.
type RecordMeta struct {
	ModuleName string `json:"moduleName,omitempty"`
	Version    string `json:"version,omitempty"`
}

// ArchiveRecord maps a publish reference to the archive produced for it.
type ArchiveRecord struct {
	Reference   string    `json:"reference"`
	ArchivePath string    `json:"archivePath"`
	ModuleName  string    `json:"moduleName,omitempty"`
	Version     string    `json:"version,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func recordArchive(cacheDir, reference, archivePath string, meta RecordMeta) error {
	if reference == "" {
		return errors.New("reference is required")
	}
	if archivePath == "" {
		return errors.New("archive path is required")
	}
	if _, err := os.Stat(archivePath); err != nil {
		return fmt.Errorf("archive %s is not readable: %w", archivePath, err)
	}
	abs, err := filepath.Abs(archivePath)
	if err != nil {
		return err
	}
	rec := ArchiveRecord{
		Reference:   reference,
		ArchivePath: abs,
		ModuleName:  meta.ModuleName,
		Version:     meta.Version,
		UpdatedAt:   time.Now().UTC(),
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	dir, err := recordsDir(cacheDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(dir, fmt.Sprintf("%s.tmp", encodeReference(reference)))
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	target := filepath.Join(dir, fmt.Sprintf("%s.json", encodeReference(reference)))
	return os.Rename(tmp, target)
}

func resolveArchive(cacheDir, reference string) (ArchiveRecord, error) {
	dir, err := recordsDir(cacheDir)
	if err != nil {
		return ArchiveRecord{}, err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s.json", encodeReference(reference)))
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ArchiveRecord{}, fmt.Errorf("no packaged archive for %s; run forge package first", reference)
		}
		return ArchiveRecord{}, err
	}
	var rec ArchiveRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return ArchiveRecord{}, err
	}
	if _, err := os.Stat(rec.ArchivePath); err != nil {
		return ArchiveRecord{}, fmt.Errorf("recorded archive for %s is missing: %w", reference, err)
	}
	return rec, nil
}

func listProject(cacheDir, prefix string) ([]ArchiveRecord, error) {
	if prefix == "" {
		return nil, errors.New("prefix is required")
	}
	records, err := readAllRecords(cacheDir)
	if err != nil {
		return nil, err
	}
	matches := make([]ArchiveRecord, 0)
	for _, rec := range records {
		if strings.HasPrefix(rec.Reference, prefix) {
			matches = append(matches, rec)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Reference == matches[j].Reference {
			return matches[i].UpdatedAt.After(matches[j].UpdatedAt)
		}
		return matches[i].Reference < matches[j].Reference
	})
	return matches, nil
}

func readAllRecords(cacheDir string) ([]ArchiveRecord, error) {
	dir, err := recordsDir(cacheDir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	records := make([]ArchiveRecord, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		var rec ArchiveRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// recordsDir resolves the record directory, honoring a configured cache
// dir before falling back to the user cache location.
func recordsDir(cacheDir string) (string, error) {
	if dir := strings.TrimSpace(cacheDir); dir != "" {
		return filepath.Join(dir, "archives"), nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locate cache dir: %w", err)
	}
	return filepath.Join(base, "forge", "archives"), nil
}

func encodeReference(reference string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(reference))
}
