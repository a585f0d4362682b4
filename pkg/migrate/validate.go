package migrate

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)

const (
	annotationUp             = "-- +goose Up"
	annotationDown           = "-- +goose Down"
	annotationStatementBegin = "-- +goose StatementBegin"
	annotationStatementEnd   = "-- +goose StatementEnd"
)

// ValidateDir checks migration filenames, version uniqueness and the goose
// annotations of every .sql file in dir.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	seen := map[string]string{} // version -> filename

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		name := e.Name()

		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}

		version := m[1]
		if prev, ok := seen[version]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", version, prev, name)
		}
		seen[version] = name

		full := filepath.Join(dir, name)
		b, err := os.ReadFile(full)
		if err != nil {
			return fmt.Errorf("read file %q: %w", full, err)
		}
		if err := validateAnnotations(b); err != nil {
			return fmt.Errorf("migration %q: %w", name, err)
		}
	}

	return nil
}

// validateAnnotations requires one Up section followed by one Down section,
// balanced statement blocks, and at least one SQL statement in Up.
func validateAnnotations(body []byte) error {
	var (
		section    string
		upSeen     bool
		downSeen   bool
		inBlock    bool
		statements int
	)

	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, annotationUp):
			if upSeen {
				return fmt.Errorf("duplicate %q", annotationUp)
			}
			if downSeen {
				return fmt.Errorf("declares Down before Up")
			}
			upSeen, section = true, "up"
		case strings.HasPrefix(line, annotationDown):
			if downSeen {
				return fmt.Errorf("duplicate %q", annotationDown)
			}
			if inBlock {
				return fmt.Errorf("unterminated statement block in Up")
			}
			downSeen, section = true, "down"
		case strings.HasPrefix(line, annotationStatementBegin):
			if section == "" || inBlock {
				return fmt.Errorf("unexpected %q", annotationStatementBegin)
			}
			inBlock = true
		case strings.HasPrefix(line, annotationStatementEnd):
			if !inBlock {
				return fmt.Errorf("unexpected %q", annotationStatementEnd)
			}
			inBlock = false
		case line == "" || strings.HasPrefix(line, "--"):
		default:
			if section == "up" {
				statements++
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	switch {
	case !upSeen:
		return fmt.Errorf("missing %q", annotationUp)
	case !downSeen:
		return fmt.Errorf("missing %q", annotationDown)
	case inBlock:
		return fmt.Errorf("unterminated statement block")
	case statements == 0:
		return fmt.Errorf("Up section has no SQL")
	}
	return nil
}
