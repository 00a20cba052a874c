package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"

	"github.com/JaimeStill/docket/internal/config"
	"github.com/JaimeStill/docket/migrations"
	"github.com/JaimeStill/docket/pkg/database"
)

const envDSN = "DOCKET_DB_DSN"

func main() {
	var (
		driver  = flag.String("driver", "", "Database driver (postgres or sqlite); defaults to the configured driver")
		dsn     = flag.String("dsn", "", "Database connection string; defaults to "+envDSN+" or the configured database")
		up      = flag.Bool("up", false, "Run all up migrations")
		down    = flag.Bool("down", false, "Run all down migrations")
		steps   = flag.Int("steps", 0, "Number of migrations (positive=up, negative=down)")
		version = flag.Bool("version", false, "Print current migration version")
		force   = flag.Int("force", -1, "Force set version (use with caution)")
	)
	flag.Parse()

	forceSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "force" {
			forceSet = true
		}
	})

	dialect, conn, err := resolveTarget(*driver, *dsn)
	if err != nil {
		log.Fatalf("resolve database: %v", err)
	}

	m, err := migrations.New(dialect, conn)
	if err != nil {
		log.Fatalf("failed to create migrator: %v", err)
	}
	defer m.Close()

	switch {
	case *version:
		v, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			log.Fatalf("failed to get version: %v", err)
		}
		fmt.Printf("version: %d, dirty: %v\n", v, dirty)
	case forceSet:
		if err := m.Force(*force); err != nil {
			log.Fatalf("failed to force version: %v", err)
		}
		fmt.Printf("forced to version %d\n", *force)
	case *up:
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("failed to run up migrations: %v", err)
		}
		fmt.Println("migrations applied successfully")
	case *down:
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("failed to run down migrations: %v", err)
		}
		fmt.Println("migrations reverted successfully")
	case *steps != 0:
		if err := m.Steps(*steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("failed to run migrations: %v", err)
		}
		fmt.Printf("applied %d migration steps\n", *steps)
	default:
		fmt.Println("usage: migrate [-driver postgres|sqlite] [-dsn <connection-string>] [-up|-down|-steps N|-version|-force N]")
		flag.PrintDefaults()
	}
}

// resolveTarget picks the dialect and DSN from flags, then DOCKET_DB_DSN,
// then the loaded service configuration.
func resolveTarget(driver, dsn string) (database.Dialect, string, error) {
	if dsn == "" {
		dsn = os.Getenv(envDSN)
	}

	if dsn != "" {
		if driver == "" {
			driver = string(database.Postgres)
		}
		dialect, err := database.ParseDialect(driver)
		return dialect, dsn, err
	}

	cfg, err := config.Load()
	if err != nil {
		return "", "", err
	}
	if driver != "" && driver != cfg.Database.Driver {
		return "", "", fmt.Errorf("driver %q given without -dsn but config uses %q", driver, cfg.Database.Driver)
	}
	return cfg.Database.Dialect(), cfg.Database.Dsn(), nil
}
