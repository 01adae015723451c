// Package redis persists the latest snapshot so a restarted replica can serve
// data before its first poll completes.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/quake-map-etl/internal/config"
	"github.com/couchcryptid/quake-map-etl/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// SnapshotKey is where the latest snapshot JSON is stored.
const SnapshotKey = "quake-map:snapshot:latest"

// ErrNoSnapshot is returned by Latest when nothing has been stored yet or the
// stored snapshot expired.
var ErrNoSnapshot = errors.New("no snapshot stored")

// client is the subset of go-redis the store uses.
type client interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	Ping(ctx context.Context) *goredis.StatusCmd
	Close() error
}

// Store writes snapshots to Redis. It implements pipeline.SnapshotLoader.
type Store struct {
	client client
	ttl    time.Duration
	logger *slog.Logger
}

// NewStore connects to the configured Redis and checks the connection.
func NewStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	c := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	logger.Info("redis connected", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
	return newStore(c, cfg.RedisTTL, logger), nil
}

func newStore(c client, ttl time.Duration, logger *slog.Logger) *Store {
	return &Store{client: c, ttl: ttl, logger: logger}
}

// Name identifies the store in logs and metrics.
func (s *Store) Name() string { return "redis" }

// LoadSnapshot overwrites the stored snapshot and refreshes its TTL.
func (s *Store) LoadSnapshot(ctx context.Context, snap domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("serialize snapshot: %w", err)
	}
	if err := s.client.Set(ctx, SnapshotKey, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	s.logger.Debug("snapshot stored", "snapshot_id", snap.ID, "bytes", len(data), "ttl", s.ttl)
	return nil
}

// Latest reads the stored snapshot.
func (s *Store) Latest(ctx context.Context) (domain.Snapshot, error) {
	data, err := s.client.Get(ctx, SnapshotKey).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("redis get: %w", err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// CheckHealth pings Redis.
func (s *Store) CheckHealth(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
