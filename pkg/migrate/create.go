package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var nameSanitizeRe = regexp.MustCompile(`[^a-z0-9_]+`)

const migrationTemplate = `-- +goose Up
-- +goose StatementBegin
SELECT 'up: %[1]s';
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
SELECT 'down: %[1]s';
-- +goose StatementEnd
`

// CreateSQLMigration creates <dir>/<YYYYMMDDHHMMSS>_<name>.sql with Up and
// Down placeholders that pass ValidateDir.
func CreateSQLMigration(dir string, name string) (string, error) {
	return createSQLMigrationAt(dir, name, time.Now().UTC())
}

func createSQLMigrationAt(dir, name string, at time.Time) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	safe := sanitizeMigrationName(name)
	if safe == "" {
		return "", fmt.Errorf("name %q results in empty sanitized filename", name)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	latest, err := existingMigrations(dir, safe)
	if err != nil {
		return "", err
	}

	// versions must stay strictly increasing for goose ordering
	version := at.UTC().Format(versionLayout)
	if version <= latest {
		next, err := time.Parse(versionLayout, latest)
		if err != nil {
			return "", fmt.Errorf("parse version %q: %w", latest, err)
		}
		version = next.Add(time.Second).Format(versionLayout)
	}

	fullpath := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", version, safe))
	if err := os.WriteFile(fullpath, []byte(fmt.Sprintf(migrationTemplate, safe)), 0o644); err != nil {
		return "", fmt.Errorf("write migration %q: %w", fullpath, err)
	}
	return fullpath, nil
}

func sanitizeMigrationName(name string) string {
	safe := strings.ToLower(strings.TrimSpace(name))
	safe = strings.ReplaceAll(safe, " ", "_")
	safe = nameSanitizeRe.ReplaceAllString(safe, "_")
	return strings.Trim(safe, "_")
}

// existingMigrations returns the highest version in dir and fails when a
// migration with the same name already exists.
func existingMigrations(dir, safe string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read dir %q: %w", dir, err)
	}
	var latest string
	for _, e := range entries {
		m := sqlFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		if m[2] == safe {
			return "", fmt.Errorf("migration %q already exists: %s", safe, e.Name())
		}
		if m[1] > latest {
			latest = m[1]
		}
	}
	return latest, nil
}
