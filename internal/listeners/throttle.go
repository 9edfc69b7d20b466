// Package listeners holds the receivers wired onto the comment signal bus.
package listeners

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/emilythestrangee/wikicomments/backend/internal/signals"
)

// Counter increments a windowed counter and returns the new value.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisCounter keeps throttle counters in Redis with INCR and a TTL set on
// first use.
type RedisCounter struct {
	rdb *redis.Client
}

func NewRedisCounter(rdb *redis.Client) *RedisCounter {
	return &RedisCounter{rdb: rdb}
}

func (rc *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := rc.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("incrementing %s: %w", key, err)
	}
	return incr.Val(), nil
}

// Throttle vetoes saves once a user has saved more than Limit comments within
// Window.
type Throttle struct {
	counter Counter
	limit   int64
	window  time.Duration
	logger  *slog.Logger
}

func NewThrottle(counter Counter, limit int64, window time.Duration, logger *slog.Logger) *Throttle {
	return &Throttle{counter: counter, limit: limit, window: window, logger: logger}
}

func throttleKey(userID int) string {
	return "wikicomments:throttle:" + strconv.Itoa(userID)
}

// WillBePosted is a signals.PreSaveFunc.
func (t *Throttle) WillBePosted(ctx context.Context, ev *signals.Event) (bool, error) {
	n, err := t.counter.Incr(ctx, throttleKey(ev.UserID), t.window)
	if err != nil {
		return false, err
	}
	if n > t.limit {
		t.logger.WarnContext(ctx, "comment throttled", "user_id", ev.UserID, "count", n, "limit", t.limit)
		return false, nil
	}
	return true, nil
}
