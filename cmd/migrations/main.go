package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"time"

	_ "github.com/lib/pq"
	"github.com/vncsmyrnk/ballot/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/ballot/internal/config"
	"github.com/vncsmyrnk/ballot/internal/logger"
	"go.uber.org/zap"
)

// Usage:
//
//	migrations up|down          run every migration in that direction
//	migrations <name>           run one file, e.g. create_ballot_core.up
func main() {
	flag.Parse()
	if flag.NArg() < 1 {
		log.Fatal("a migration name or direction is required.")
	}
	target := flag.Arg(0)

	cfg, err := config.New()
	if err != nil {
		log.Fatal(err)
	}
	l, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer l.Sync()

	db, err := sql.Open("postgres", cfg.Postgres.DSN())
	if err != nil {
		l.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch postgres.Direction(target) {
	case postgres.Up, postgres.Down:
		err = postgres.Migrate(ctx, db, postgres.Direction(target))
	default:
		var file string
		file, err = postgres.FindMigration(target)
		if err == nil {
			err = postgres.RunMigration(ctx, db, file)
		}
	}
	if err != nil {
		l.Fatal("migration failed", zap.String("target", target), zap.Error(err))
	}

	l.Info("migration executed successfully", zap.String("target", target))
}
