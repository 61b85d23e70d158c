package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"truckgate/internal/checkpoint/models"
)

// DefaultStream is the Redis stream entries are appended to.
const DefaultStream = "truckgate:entries"

// RedisStream appends entries to a capped Redis stream with XADD.
type RedisStream struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

// NewRedisStream publishes to stream, trimming it to roughly maxLen entries.
func NewRedisStream(client redis.Cmdable, stream string, maxLen int64) *RedisStream {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStream{client: client, stream: stream, maxLen: maxLen}
}

func (r *RedisStream) Publish(ctx context.Context, entry models.LogEntry) error {
	msg := NewMessage(entry)
	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]any{
			"id":          msg.ID,
			"timestamp":   msg.Timestamp.Format(time.RFC3339Nano),
			"driver_name": msg.DriverName,
			"qr_code":     msg.QRCode,
			"status":      msg.Status,
			"notes":       msg.Notes,
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis xadd %s: %w", r.stream, err)
	}
	return nil
}

// Close is a no-op; the client is owned by the caller.
func (r *RedisStream) Close() error {
	return nil
}
