package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"slices"
	"strings"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// MigrationNames lists the embedded migrations for direction in the order
// they must run: ascending for up, descending for down.
func MigrationNames(direction Direction) ([]string, error) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	suffix := "." + string(direction) + ".sql"
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	if direction == Down {
		slices.Reverse(names)
	}
	return names, nil
}

// FindMigration returns the file whose name ends with name, for example
// "create_ballot_core.up".
func FindMigration(name string) (string, error) {
	pattern, err := regexp.Compile(fmt.Sprintf(`^.*%s\.sql$`, regexp.QuoteMeta(name)))
	if err != nil {
		return "", fmt.Errorf("invalid migration name: %w", err)
	}

	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return "", fmt.Errorf("failed to read migrations: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() && pattern.MatchString(e.Name()) {
			return e.Name(), nil
		}
	}
	return "", fmt.Errorf("migration %q not found", name)
}

func RunMigration(ctx context.Context, db *sql.DB, file string) error {
	content, err := migrationFiles.ReadFile("migrations/" + file)
	if err != nil {
		return fmt.Errorf("failed to read migration %s: %w", file, err)
	}
	if _, err := db.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", file, err)
	}
	return nil
}

// Migrate runs every embedded migration for direction.
func Migrate(ctx context.Context, db *sql.DB, direction Direction) error {
	names, err := MigrationNames(direction)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := RunMigration(ctx, db, name); err != nil {
			return err
		}
	}
	return nil
}
