package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sifan077/GateLink/config"
)

const (
	defaultPingTimeout = 5 * time.Second
	// Rate limiting must never hold up a redirect for long.
	commandTimeout = 250 * time.Millisecond
)

// Options translates app config into client options.
func Options(cfg config.RedisConfig) *redis.Options {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 6379
	}

	return &redis.Options{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  commandTimeout,
		WriteTimeout: commandTimeout,
	}
}

// NewClient builds a redis client and verifies connectivity via PING.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(Options(cfg))

	if err := Ping(rdb)(ctx); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return rdb, nil
}

// Ping returns a readiness check for the client.
func Ping(rdb redis.UniversalClient) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
		defer cancel()
		return rdb.Ping(pingCtx).Err()
	}
}
