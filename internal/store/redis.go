package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// LatestPrefix prefixes the key holding the last payload of each topic.
const LatestPrefix = "latest:"

// RedisSink publishes each message on a Redis channel named after its
// topic and keeps the last payload per topic under latest:<topic>.
type RedisSink struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisSink connects and pings. A zero ttl keeps latest keys forever.
func NewRedisSink(ctx context.Context, addr string, db int, ttl time.Duration, logger *slog.Logger) (*RedisSink, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "redis")
	logger.Info("connected", "addr", addr, "db", db)
	return &RedisSink{rdb: rdb, ttl: ttl, logger: logger}, nil
}

func (s *RedisSink) Publish(ctx context.Context, topic string, payload []byte) error {
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, topic, payload)
		pipe.Set(ctx, LatestPrefix+topic, payload, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis publish %s: %w", topic, err)
	}
	return nil
}

// Latest returns the last payload stored for topic.
func (s *RedisSink) Latest(ctx context.Context, topic string) ([]byte, bool, error) {
	val, err := s.rdb.Get(ctx, LatestPrefix+topic).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// LatestMany returns the stored payloads for the topics that have one.
func (s *RedisSink) LatestMany(ctx context.Context, topics []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(topics))
	if len(topics) == 0 {
		return out, nil
	}
	keys := make([]string, len(topics))
	for i, t := range topics {
		keys[i] = LatestPrefix + t
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		if v == nil {
			continue
		}
		str, _ := v.(string)
		out[topics[i]] = []byte(str)
	}
	return out, nil
}

func (s *RedisSink) Close() error {
	return s.rdb.Close()
}
