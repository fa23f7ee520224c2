package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis keeps each user's values in one hash so the widget can read them in a
// single HGETALL.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, prefix: "kv:"}
}

func (r *Redis) hash(userID string) string { return r.prefix + userID }

func (r *Redis) Get(ctx context.Context, userID string, key Key) (string, bool, error) {
	if err := checkKey(key); err != nil {
		return "", false, err
	}
	v, err := r.client.HGet(ctx, r.hash(userID), string(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv: get %s: %w", key, err)
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, userID string, key Key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := r.client.HSet(ctx, r.hash(userID), string(key), value).Err(); err != nil {
		return fmt.Errorf("kv: set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, userID string, key Key) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := r.client.HDel(ctx, r.hash(userID), string(key)).Err(); err != nil {
		return fmt.Errorf("kv: delete %s: %w", key, err)
	}
	return nil
}

func (r *Redis) All(ctx context.Context, userID string) (map[Key]string, error) {
	raw, err := r.client.HGetAll(ctx, r.hash(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("kv: get all: %w", err)
	}
	out := make(map[Key]string, len(raw))
	for k, v := range raw {
		if key := Key(k); key.Valid() {
			out[key] = v
		}
	}
	return out, nil
}

var _ Store = (*Redis)(nil)
