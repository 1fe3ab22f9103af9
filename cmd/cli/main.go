package main

import (
	"os"
	"strings"

	"github.com/nimasrn/message-automation/internal/config"
	"github.com/nimasrn/message-automation/pkg/logger"
	"github.com/nimasrn/message-automation/pkg/pg"
)

const defaultMigrationDir = "./migrations"

// usage: cli --env=.env --dir=./migrations
func main() {
	if err := config.Load(flagValue("env", ".env")); err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	pgConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}
	dir := flagValue("dir", defaultMigrationDir)
	if dir == "" {
		logger.Error("migration: no migrations directory")
		os.Exit(1)
	}
	if err := pg.Migrate(pgConf, dir); err != nil {
		logger.Error("migration: error running migrations", "error", err)
		os.Exit(1)
	}
}

// flagValue reads --name=value from the arguments and falls back to def.
// The path must exist; a missing one yields "".
func flagValue(name, def string) string {
	prefix := "--" + name + "="
	path := def
	for _, v := range os.Args[1:] {
		if strings.HasPrefix(v, prefix) {
			path = strings.TrimPrefix(v, prefix)
			break
		}
	}
	if _, err := os.Stat(path); err != nil {
		logger.Warn("path not usable, ignoring", "flag", name, "path", path, "error", err)
		return ""
	}
	return path
}
