package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// MigrationFiles lists the *.up.sql or *.down.sql files in dir in the order they must
// be applied: ascending for up, descending for down.
func MigrationFiles(dir, direction string) ([]string, error) {
	if direction != DirectionUp && direction != DirectionDown {
		return nil, fmt.Errorf("direction must be %q or %q", DirectionUp, DirectionDown)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migration directory: %w", err)
	}

	suffix := fmt.Sprintf(".%s.sql", direction)
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), suffix) {
			files = append(files, entry.Name())
		}
	}

	slices.Sort(files)
	if direction == DirectionDown {
		slices.Reverse(files)
	}
	return files, nil
}

// RunMigrations applies every migration for direction, each file in its own
// transaction, and returns the applied file names.
func RunMigrations(ctx context.Context, db *sql.DB, dir, direction string) ([]string, error) {
	files, err := MigrationFiles(dir, direction)
	if err != nil {
		return nil, err
	}

	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read migration file %s: %w", name, err)
		}

		err = WithTransaction(ctx, db, DefaultTxOptions(), func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, string(content))
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("execute migration %s: %w", name, err)
		}
	}

	return files, nil
}
