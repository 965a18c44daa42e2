// Command migrate applies schema migrations against the configured database.
//
// Usage:
//
//	migrate -command up
//	migrate -command down -steps 1
//	migrate -command version
//	migrate -command force -version 3
package main

import (
	"flag"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/infrastructure/config"
	"github.com/orderbridge/backend/internal/infrastructure/logger"
	"github.com/orderbridge/backend/internal/infrastructure/migration"
)

func main() {
	var (
		command = flag.String("command", "up", "migration command: up, down, version, force")
		path    = flag.String("path", "migrations", "path to migration files")
		steps   = flag.Int("steps", 0, "number of migrations for down (0 means all)")
		version = flag.Int("version", -1, "target version for force")
	)
	flag.Parse()

	log, err := logger.New(logger.DefaultConfig())
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	m, err := migration.New(cfg.Database.DSN(), *path, log)
	if err != nil {
		log.Fatal("Failed to initialize migrator", zap.Error(err))
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Error("Error closing migrator", zap.Error(err))
		}
	}()

	switch *command {
	case "up":
		err = m.Up()
	case "down":
		if *steps > 0 {
			err = m.Steps(-*steps)
		} else {
			err = m.Down()
		}
	case "version":
		v, dirty, verr := m.Version()
		if verr != nil {
			log.Fatal("Failed to read version", zap.Error(verr))
		}
		fmt.Printf("version=%d dirty=%t\n", v, dirty)
		return
	case "force":
		if *version < 0 {
			log.Fatal("force requires -version")
		}
		err = m.Force(*version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", *command)
		flag.Usage()
		os.Exit(1)
	}

	if err != nil {
		log.Fatal("Migration failed", zap.String("command", *command), zap.Error(err))
	}
}
