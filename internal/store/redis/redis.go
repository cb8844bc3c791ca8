package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/jusunglee/mjpin/internal/store"
)

const defaultPrefix = "mjpin:"

// Store implements store.Store on Redis string keys. Documents never expire.
type Store struct {
	r      redis.Cmdable
	closer func() error
	prefix string
}

// New connects to the Redis server described by url (redis://host:port/db).
func New(ctx context.Context, url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return &Store{r: client, closer: client.Close, prefix: defaultPrefix}, nil
}

// NewWithClient wraps an existing client; Close is a no-op.
func NewWithClient(r redis.Cmdable, prefix string) *Store {
	return &Store{r: r, closer: func() error { return nil }, prefix: prefix}
}

func (s *Store) Close() error {
	return s.closer()
}

func (s *Store) Read(ctx context.Context, key string) (json.RawMessage, error) {
	b, err := s.r.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return store.EmptyObject, nil
	}
	if err != nil {
		return nil, &store.Error{Op: "read", Key: key, Err: err}
	}
	return json.RawMessage(b), nil
}

func (s *Store) Write(ctx context.Context, key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return &store.Error{Op: "write", Key: key, Err: store.ErrInvalidJSON}
	}
	if err := s.r.Set(ctx, s.prefix+key, []byte(value), 0).Err(); err != nil {
		return &store.Error{Op: "write", Key: key, Err: err}
	}
	return nil
}
