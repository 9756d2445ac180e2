package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/noah-isme/projecthub-api/pkg/config"
	"github.com/noah-isme/projecthub-api/pkg/database"
	"github.com/noah-isme/projecthub-api/pkg/logger"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [up|down|version]\n", os.Args[0])
	}
	flag.Parse()
	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	m, err := database.NewMigrator(cfg.Database)
	if err != nil {
		logr.Fatal("migrator init failed", zap.Error(err))
	}
	defer m.Close() //nolint:errcheck

	switch command {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "version":
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logr.Fatal("migration failed", zap.String("command", command), zap.Error(err))
	}

	version, dirty, err := m.Version()
	if err != nil {
		logr.Fatal("read schema version failed", zap.Error(err))
	}
	logr.Info("schema version", zap.String("command", command), zap.Uint("version", version), zap.Bool("dirty", dirty))
}
