// Package redis keeps rate-limit windows in Redis so every replica counts
// against the same budget.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const opTimeout = time.Second

type Client struct {
	rdb *redis.Client
}

func New(ctx context.Context, addr, pass string, db int) (*Client, error) {
	const op = "storage.redis.New"

	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     pass,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Client{rdb: rdb}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// LimitCounter returns a counter whose keys are namespaced by name, so two
// limiters never share a budget.
func (c *Client) LimitCounter(name string) *LimitCounter {
	return &LimitCounter{rdb: c.rdb, prefix: "ratelimit:" + name + ":"}
}

// LimitCounter satisfies httprate.LimitCounter.
type LimitCounter struct {
	rdb          *redis.Client
	prefix       string
	windowLength time.Duration
}

func (l *LimitCounter) Config(_ int, windowLength time.Duration) {
	l.windowLength = windowLength
}

func (l *LimitCounter) Increment(key string, currentWindow time.Time) error {
	return l.IncrementBy(key, currentWindow, 1)
}

func (l *LimitCounter) IncrementBy(key string, currentWindow time.Time, amount int) error {
	const op = "storage.redis.IncrementBy"

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	k := l.key(key, currentWindow)

	pipe := l.rdb.TxPipeline()
	pipe.IncrBy(ctx, k, int64(amount))
	// the sliding estimate still reads the previous window
	pipe.Expire(ctx, k, 3*l.windowLength)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (l *LimitCounter) Get(key string, currentWindow, previousWindow time.Time) (int, int, error) {
	const op = "storage.redis.Get"

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	values, err := l.rdb.MGet(ctx, l.key(key, currentWindow), l.key(key, previousWindow)).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}

	curr, err := count(values[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}

	prev, err := count(values[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}

	return curr, prev, nil
}

func (l *LimitCounter) key(key string, window time.Time) string {
	return l.prefix + key + ":" + strconv.FormatInt(window.Unix(), 10)
}

// count reads an MGET slot; missing keys come back as nil.
func count(v interface{}) (int, error) {
	switch v := v.(type) {
	case nil:
		return 0, nil
	case string:
		return strconv.Atoi(v)
	default:
		return 0, fmt.Errorf("unexpected counter value %T", v)
	}
}
