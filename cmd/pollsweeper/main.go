package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"time"

	_ "github.com/lib/pq"
	"github.com/vncsmyrnk/ballot/internal/adapters/cache"
	"github.com/vncsmyrnk/ballot/internal/adapters/event"
	"github.com/vncsmyrnk/ballot/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/ballot/internal/config"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
	"github.com/vncsmyrnk/ballot/internal/core/services"
	"github.com/vncsmyrnk/ballot/internal/logger"
	"go.uber.org/zap"
)

// pollsweeper closes every open poll whose voting window has ended. It is
// meant to run from cron.
func main() {
	var timeout time.Duration
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "Job timeout")
	flag.Parse()

	cfg, err := config.New()
	if err != nil {
		log.Fatal(err)
	}
	l, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer l.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := sql.Open("postgres", cfg.Postgres.DSN())
	if err != nil {
		l.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		l.Fatal("failed to reach database", zap.Error(err))
	}

	pollRepo := postgres.NewPollRepository(db)
	members := postgres.NewMemberRepository(db)

	var resultsCache ports.ResultsCache
	if cfg.Redis.URL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			l.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer client.Close()
		resultsCache = cache.NewResultsCache(client, cfg.Redis.ResultsTTL)
	}

	var events ports.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := event.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer publisher.Close()
		events = publisher
	}

	tabulation := services.NewTabulationService(services.TabulationDeps{
		Polls:      pollRepo,
		Ballots:    postgres.NewBallotRepository(db),
		Membership: members,
		Snapshots:  members,
		Cache:      resultsCache,
	}, l.Named("tabulation"))
	pollService := services.NewPollService(pollRepo, events, tabulation, nil, l.Named("polls"))

	l.Info("starting poll sweep")

	closed, err := pollService.CloseExpired(ctx)
	if err != nil {
		l.Fatal("poll sweep failed", zap.Int("closed", closed), zap.Error(err))
	}

	l.Info("poll sweep completed", zap.Int("closed", closed))
}
