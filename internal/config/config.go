// Package config bootstraps the process's environment-variable-driven
// configuration, grounded on backend/utils/conn.go's InitConn pattern:
// required connection strings come from env vars with sane dev-mode
// fallbacks, read once at startup into a plain struct.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds every environment-driven setting this process needs at
// startup. Fields left blank (empty string / zero) mean "that
// collaborator is not configured" — callers decide whether that's fatal.
type Config struct {
	CDSListenAddr string

	RedisAddr string

	PostgresURL string

	DiskCacheDir string

	CleanupIntervalSeconds int
	MaxRecordsPerField     int
	MinBackRecordsPerField int
}

// getEnv returns the environment variable named key, or fallback if it
// is unset or empty — the same helper shape as
// services/backend/internal/data/conn.go's getEnv.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// Load reads the process environment into a Config, applying the same
// dev-mode fallbacks the teacher's InitConn uses for local development.
func Load() Config {
	return Config{
		CDSListenAddr:          getEnv("RVDAQ_CDS_ADDR", ":8766"),
		RedisAddr:              getEnv("RVDAQ_REDIS_ADDR", "localhost:6379"),
		PostgresURL:            getEnv("RVDAQ_POSTGRES_URL", ""),
		DiskCacheDir:           getEnv("RVDAQ_DISK_CACHE_DIR", ""),
		CleanupIntervalSeconds: getEnvInt("RVDAQ_CLEANUP_INTERVAL_SECONDS", 60),
		MaxRecordsPerField:     getEnvInt("RVDAQ_MAX_RECORDS_PER_FIELD", 0),
		MinBackRecordsPerField: getEnvInt("RVDAQ_MIN_BACK_RECORDS_PER_FIELD", 1),
	}
}

// ConnectRedis dials c.RedisAddr, retrying with a bounded timeout the
// way backend/utils/conn.go's InitConn retries its redis connection at
// startup, rather than failing fast on a collaborator that's merely
// slow to come up.
func ConnectRedis(ctx context.Context, c Config) (*redis.Client, error) {
	if c.RedisAddr == "" {
		return nil, fmt.Errorf("config: RVDAQ_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	for {
		if err := client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("config: connect redis at %s: %w", c.RedisAddr, ctx.Err())
		case <-time.After(time.Second):
		}
	}
}

// ConnectPostgres opens a pgxpool.Pool against c.PostgresURL, with the
// same retry-until-timeout shape as ConnectRedis.
func ConnectPostgres(ctx context.Context, c Config) (*pgxpool.Pool, error) {
	if c.PostgresURL == "" {
		return nil, fmt.Errorf("config: RVDAQ_POSTGRES_URL not set")
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	for {
		pool, err := pgxpool.New(ctx, c.PostgresURL)
		if err == nil {
			if pingErr := pool.Ping(ctx); pingErr == nil {
				return pool, nil
			}
			pool.Close()
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("config: connect postgres: %w", ctx.Err())
		case <-time.After(time.Second):
		}
	}
}
