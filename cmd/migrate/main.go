// Package main provides a database migration runner for the lobby schema.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/cory-johannsen/lobby/internal/config"
	"github.com/cory-johannsen/lobby/migrations"
)

// result reports the schema state after a migration run.
type result struct {
	Version uint
	Dirty   bool
	Changed bool
}

// runMigration applies the embedded migrations to the database at dsn.
//
// Precondition: direction is "up" or "down"; steps >= 0 where 0 means all.
// Postcondition: Returns the resulting version. No pending change is not an error.
func runMigration(dsn, direction string, steps int) (result, error) {
	if direction != "up" && direction != "down" {
		return result{}, fmt.Errorf("invalid direction %q: must be 'up' or 'down'", direction)
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return result{}, fmt.Errorf("opening embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return result{}, fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	switch {
	case direction == "up" && steps > 0:
		err = m.Steps(steps)
	case direction == "up":
		err = m.Up()
	case steps > 0:
		err = m.Steps(-steps)
	default:
		err = m.Down()
	}
	changed := true
	if errors.Is(err, migrate.ErrNoChange) {
		changed, err = false, nil
	}
	if err != nil {
		return result{}, fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return result{}, fmt.Errorf("reading version: %w", err)
	}
	return result{Version: version, Dirty: dirty, Changed: changed}, nil
}

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	direction := flag.String("direction", "up", "migration direction: up or down")
	steps := flag.Int("steps", 0, "number of steps (0 = all)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	res, err := runMigration(cfg.Database.DSN(), *direction, *steps)
	if err != nil {
		log.Fatal(err)
	}

	elapsed := time.Since(start)
	if !res.Changed {
		fmt.Fprintf(os.Stdout, "no changes (version=%d dirty=%v) [%s]\n", res.Version, res.Dirty, elapsed)
		return
	}
	fmt.Fprintf(os.Stdout, "migrated %s to version=%d dirty=%v [%s]\n", *direction, res.Version, res.Dirty, elapsed)
}
