package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
)

// ResultsCache keeps the final results of closed polls. Results of open polls
// are never stored because they change with every ballot.
type ResultsCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ports.ResultsCache = (*ResultsCache)(nil)

func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis URL: %w", err)
	}

	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("error connecting to redis: %w", err)
	}
	return c, nil
}

func NewResultsCache(client *redis.Client, ttl time.Duration) *ResultsCache {
	return &ResultsCache{client: client, ttl: ttl}
}

func resultsKey(pollID uuid.UUID) string {
	return fmt.Sprintf("poll:%s:results", pollID)
}

func (c *ResultsCache) Get(ctx context.Context, pollID uuid.UUID) (*domain.Results, bool, error) {
	raw, err := c.client.Get(ctx, resultsKey(pollID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("error reading cached results: %w", err)
	}

	var results domain.Results
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, false, fmt.Errorf("error decoding cached results: %w", err)
	}
	return &results, true, nil
}

func (c *ResultsCache) Set(ctx context.Context, results *domain.Results) error {
	if !results.Final {
		return nil
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("error encoding results: %w", err)
	}
	if err := c.client.Set(ctx, resultsKey(results.PollID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("error caching results: %w", err)
	}
	return nil
}
