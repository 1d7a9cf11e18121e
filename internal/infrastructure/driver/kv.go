package driver

import "context"

// KeyValueDB define a key-value storage interface
type KeyValueDB interface {
	HSet(ctx context.Context, key, field, value string) error
	HGet(ctx context.Context, key, field string) (string, bool, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Ping() error
	Close() error
}
