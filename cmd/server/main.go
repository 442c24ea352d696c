package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	stdhttp "net/http"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/vncsmyrnk/ballot/internal/adapters/cache"
	"github.com/vncsmyrnk/ballot/internal/adapters/event"
	"github.com/vncsmyrnk/ballot/internal/adapters/handler/http"
	"github.com/vncsmyrnk/ballot/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/ballot/internal/config"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
	"github.com/vncsmyrnk/ballot/internal/core/services"
	"github.com/vncsmyrnk/ballot/internal/logger"
	"github.com/vncsmyrnk/ballot/internal/metrics"
	"go.uber.org/zap"
)

type storage struct {
	polls      ports.PollRepository
	ballots    ports.BallotRepository
	members    ports.MemberDirectory
	membership ports.MembershipOracle
	snapshots  ports.SnapshotRepository
	close      func() error
}

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatal(err)
	}

	l, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer l.Sync()

	if err := run(cfg, l); err != nil {
		l.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, l *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer store.close()

	requirements, err := cfg.ProfileRequirements()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewBallotMetrics(reg, cfg.Metrics.Namespace)

	var resultsCache ports.ResultsCache
	if cfg.Redis.URL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer client.Close()
		resultsCache = cache.NewResultsCache(client, cfg.Redis.ResultsTTL)
		l.Info("results cache enabled")
	}

	var events ports.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := event.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer publisher.Close()
		events = publisher
		l.Info("poll events enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	eligibility := services.NewEligibilityService(services.EligibilityDeps{
		Polls:        store.polls,
		Members:      store.members,
		Membership:   store.membership,
		Snapshots:    store.snapshots,
		Ballots:      store.ballots,
		Requirements: requirements,
	}, l.Named("eligibility"))
	tabulation := services.NewTabulationService(services.TabulationDeps{
		Polls:      store.polls,
		Ballots:    store.ballots,
		Membership: store.membership,
		Snapshots:  store.snapshots,
		Cache:      resultsCache,
		Metrics:    m,
	}, l.Named("tabulation"))
	polls := services.NewPollService(store.polls, events, tabulation, nil, l.Named("polls"))
	ballots := services.NewBallotService(store.polls, store.ballots, eligibility, nil, m, l.Named("ballots"))
	tokens := services.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, nil)

	handler := http.NewHandler(http.Handlers{
		Polls:   http.NewPollHandler(polls, eligibility, l),
		Ballots: http.NewBallotHandler(ballots, l),
		Results: http.NewResultsHandler(tabulation, cfg.Voting.LiveResultsInterval, cfg.HTTP.AllowedOrigins, l),
	}, tokens, reg, l.Named("http"))

	server := &stdhttp.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		l.Info("listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	l.Info("gracefully shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

func openStorage(ctx context.Context, cfg *config.Config, l *zap.Logger) (*storage, error) {
	db, err := sql.Open("postgres", cfg.Postgres.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	l.Info("connected to database", zap.String("host", cfg.Postgres.Host), zap.String("db", cfg.Postgres.DB))

	members := postgres.NewMemberRepository(db)
	return &storage{
		polls:      postgres.NewPollRepository(db),
		ballots:    postgres.NewBallotRepository(db),
		members:    members,
		membership: members,
		snapshots:  members,
		close:      db.Close,
	}, nil
}
