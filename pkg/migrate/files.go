package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
)

const versionLayout = "20060102150405"

var (
	fileNameRe   = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)
	unsafeNameRe = regexp.MustCompile(`[^a-z0-9_]+`)

	requiredMarkers = []string{"-- +goose Up", "-- +goose Down"}
)

// File is one SQL migration on disk.
type File struct {
	Version int64
	Name    string
	Path    string
}

// ListDir returns the .sql migrations in dir ordered by version. Misnamed
// files and repeated versions are errors.
func ListDir(dir string) ([]File, error) {
	if dir == "" {
		return nil, fmt.Errorf("dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}

	files := make([]File, 0, len(entries))
	byVersion := make(map[int64]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		m := fileNameRe.FindStringSubmatch(entry.Name())
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename %q (want %s_name.sql)", entry.Name(), versionLayout)
		}
		version, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse version of %q: %w", entry.Name(), err)
		}
		if prev, ok := byVersion[version]; ok {
			return nil, fmt.Errorf("version %d used by %q and %q", version, prev, entry.Name())
		}
		byVersion[version] = entry.Name()
		files = append(files, File{Version: version, Name: m[2], Path: filepath.Join(dir, entry.Name())})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}

// ValidateDir checks every migration in dir and reports all problems at once.
// Each file must be reversible.
func ValidateDir(dir string) error {
	files, err := ListDir(dir)
	if err != nil {
		return err
	}
	var errs error
	for _, f := range files {
		body, err := os.ReadFile(f.Path)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("read %q: %w", f.Path, err))
			continue
		}
		for _, marker := range requiredMarkers {
			if !strings.Contains(string(body), marker) {
				errs = multierr.Append(errs, fmt.Errorf("migration %q missing %q", filepath.Base(f.Path), marker))
			}
		}
	}
	return errs
}

// CreateSQLMigration writes an empty reversible migration to dir and returns
// its path. The version is the current UTC second, moved past the newest
// existing migration if the clock is behind it.
func CreateSQLMigration(dir string, name string) (string, error) {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Trim(unsafeNameRe.ReplaceAllString(slug, "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("name %q has no usable characters", name)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}
	existing, err := ListDir(dir)
	if err != nil {
		return "", err
	}

	version, _ := strconv.ParseInt(time.Now().UTC().Format(versionLayout), 10, 64)
	if n := len(existing); n > 0 && existing[n-1].Version >= version {
		next, err := time.Parse(versionLayout, strconv.FormatInt(existing[n-1].Version, 10))
		if err != nil {
			return "", fmt.Errorf("parse latest version: %w", err)
		}
		version, _ = strconv.ParseInt(next.Add(time.Second).Format(versionLayout), 10, 64)
	}

	path := filepath.Join(dir, fmt.Sprintf("%d_%s.sql", version, slug))
	body := fmt.Sprintf("-- +goose Up\n-- +goose StatementBegin\n-- %[1]s\n-- +goose StatementEnd\n\n-- +goose Down\n-- +goose StatementBegin\n-- revert %[1]s\n-- +goose StatementEnd\n", slug)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("write migration %q: %w", path, err)
	}
	return path, nil
}
