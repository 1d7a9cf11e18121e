package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisClient .
type RedisClient struct {
	conn *redis.Client
}

var _ KeyValueDB = &RedisClient{}

// NewRedisClient create a redis client
func NewRedisClient(host string, port int, password string) *RedisClient {
	conn := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
	})
	return &RedisClient{
		conn: conn,
	}
}

// HSet implement KeyValueDB
func (rdb *RedisClient) HSet(ctx context.Context, key, field, value string) error {
	return rdb.conn.HSet(ctx, key, field, value).Err()
}

// HGet implement KeyValueDB, the bool result reports whether the field exists
func (rdb *RedisClient) HGet(ctx context.Context, key, field string) (string, bool, error) {
	v, err := rdb.conn.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// HGetAll implement KeyValueDB
func (rdb *RedisClient) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return rdb.conn.HGetAll(ctx, key).Result()
}

// Ping implement KeyValueDB
func (rdb *RedisClient) Ping() error {
	return rdb.conn.Ping(context.Background()).Err()
}

// Close implement KeyValueDB
func (rdb *RedisClient) Close() error {
	return rdb.conn.Close()
}
