package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type redisListAPI interface {
	LPush(ctx context.Context, key string, values ...interface{}) *goredis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *goredis.StringSliceCmd
}

// RedisQueue is a list-backed queue: producers LPUSH, consumers BRPOP.
type RedisQueue struct {
	rdb redisListAPI
	key string
}

// NewRedisQueue connects to addr and verifies the server responds.
func NewRedisQueue(ctx context.Context, addr, key string) (*RedisQueue, func() error, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, nil, fmt.Errorf("missing REDIS_ADDR")
	}
	if strings.TrimSpace(key) == "" {
		key = "ck:analysis:steps"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisQueue{rdb: rdb, key: key}, rdb.Close, nil
}

// Send pushes the encoded message onto the list.
func (q *RedisQueue) Send(ctx context.Context, msg Message) error {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode redis message: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("redis lpush: %w", err)
	}
	return nil
}

// Receive blocks on BRPOP for up to wait.
func (q *RedisQueue) Receive(ctx context.Context, wait time.Duration) (string, bool, error) {
	vals, err := q.rdb.BRPop(ctx, wait, q.key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis brpop: %w", err)
	}
	if len(vals) != 2 {
		return "", false, fmt.Errorf("redis brpop: unexpected reply length %d", len(vals))
	}
	return vals[1], true, nil
}

var (
	_ Client   = (*RedisQueue)(nil)
	_ Receiver = (*RedisQueue)(nil)
)
