package migrations

import (
	"fmt"
	"os"
	"path/filepath"
)

var (
	// MigrationsDir can be overridden in tests, by the application, or via
	// the INBOXD_MIGRATIONS_DIR environment variable
	MigrationsDir = "scripts/migrations"
)

const initialSchemaFile = "001_initial_schema.sql"

// GetInitialSchema returns the initial database schema
func GetInitialSchema() (string, error) {
	dir := MigrationsDir
	if env := os.Getenv("INBOXD_MIGRATIONS_DIR"); env != "" {
		dir = env
	}

	// The daemon may be started from the repo root or from a package dir
	// under test; try each relative location.
	searchPaths := []string{
		filepath.Join(dir, initialSchemaFile),
		filepath.Join("..", "..", dir, initialSchemaFile),
		filepath.Join("..", dir, initialSchemaFile),
	}

	for _, path := range searchPaths {
		schemaContent, err := os.ReadFile(path)
		if err == nil {
			return string(schemaContent), nil
		}
	}

	return "", fmt.Errorf("could not find schema file %s under %s", initialSchemaFile, dir)
}
