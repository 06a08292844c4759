package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/cityhail/dispatch/pkg/config"
	"github.com/cityhail/dispatch/pkg/logger"
)

func main() {
	cfg, err := config.Load("migrate")
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(cfg.Server.Environment, "migrate"); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	migrationsDir := os.Getenv("MIGRATIONS_DIR")
	if migrationsDir == "" {
		migrationsDir = "migrations"
	}

	m, err := migrate.New("file://"+migrationsDir, cfg.Database.URL())
	if err != nil {
		logger.Fatal("Failed to initialize migrations", zap.Error(err))
	}
	defer m.Close()

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "up":
		err = m.Up()
	case "down":
		steps := 1
		if len(os.Args) > 2 {
			steps, err = strconv.Atoi(os.Args[2])
			if err != nil {
				logger.Fatal("Invalid step count", zap.String("arg", os.Args[2]))
			}
		}
		err = m.Steps(-steps)
	case "force":
		if len(os.Args) < 3 {
			logger.Fatal("force requires a version argument")
		}
		var v int
		v, err = strconv.Atoi(os.Args[2])
		if err != nil {
			logger.Fatal("Invalid version", zap.String("arg", os.Args[2]))
		}
		err = m.Force(v)
	case "version":
		v, dirty, verr := m.Version()
		if verr != nil && verr != migrate.ErrNilVersion {
			logger.Fatal("Failed to read migration version", zap.Error(verr))
		}
		logger.Info("Migration version", zap.Uint("version", v), zap.Bool("dirty", dirty))
		return
	default:
		logger.Fatal("Unknown command, expected up | down [n] | force <v> | version",
			zap.String("command", command))
	}

	if err == migrate.ErrNoChange {
		logger.Info("No migrations to apply")
		return
	}
	if err != nil {
		logger.Fatal("Migration failed", zap.Error(err))
	}

	logger.Info("Migrations applied", zap.String("command", command))
}
