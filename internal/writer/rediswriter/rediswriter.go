// Package rediswriter publishes records to a redis pub/sub channel,
// grounded on backend/socket/polygonSocket.go's conn.Cache.Publish fan-out
// and backend/utils/conn.go's redis client construction.
package rediswriter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/oceantech/rvdaq/internal/errpolicy"
	"github.com/oceantech/rvdaq/internal/formats"
)

// RedisWriter publishes each record, JSON-encoded, to a single redis
// channel. One writer instance owns one channel name, per SPEC_FULL.md
// §6's external interface note.
type RedisWriter struct {
	client  *redis.Client
	channel string
	retry   *errpolicy.RetryPolicy
}

// NewRedisWriter wraps an already-constructed *redis.Client (ownership
// stays with the caller — RedisWriter never opens or closes it) to
// publish to channel.
func NewRedisWriter(client *redis.Client, channel string) *RedisWriter {
	return &RedisWriter{
		client:  client,
		channel: channel,
		retry:   errpolicy.NewRetryPolicy(fmt.Sprintf("rediswriter(%s)", channel)),
	}
}

func (w *RedisWriter) InputFormat() formats.Format { return formats.JSONRecord }

func (w *RedisWriter) CanAccept(source formats.Format) bool {
	return formats.JSONRecord.CanAccept(source)
}

// Write JSON-encodes rec and publishes it to the writer's channel,
// retrying transient failures per internal/errpolicy.
func (w *RedisWriter) Write(rec any) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("rediswriter: marshal: %w", err)
	}
	ctx := context.Background()
	return w.retry.Do(ctx, func() error {
		return w.client.Publish(ctx, w.channel, payload).Err()
	})
}
