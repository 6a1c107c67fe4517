package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const minRedisTTL = time.Second

// RedisStore keeps the credential slot in Redis so several processes (for example a
// set of BFF replicas) share one session.
//
// Writes publish on "<key>:changed" so Watch can observe other writers.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	slot   string
	clock  func() time.Time
}

// NewRedisStore returns a store keyed at prefix:slot.
func NewRedisStore(client redis.UniversalClient, prefix, slot string) *RedisStore {
	if prefix == "" {
		prefix = "gac"
	}
	if slot == "" {
		slot = "default"
	}
	return &RedisStore{
		redis:  client,
		prefix: prefix,
		slot:   slot,
		clock:  time.Now,
	}
}

// Key returns the Redis key holding the record.
func (s *RedisStore) Key() string {
	return s.prefix + ":" + s.slot
}

func (s *RedisStore) channel() string {
	return s.Key() + ":changed"
}

func (s *RedisStore) Get(ctx context.Context) (string, bool, error) {
	data, err := s.redis.Get(ctx, s.Key()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	record, err := Decode(data)
	if err != nil {
		return "", false, err
	}
	return record.Token, true, nil
}

// Set stores the record with a TTL until expiresAt. A zero expiresAt stores without TTL.
func (s *RedisStore) Set(ctx context.Context, token string, expiresAt time.Time) error {
	if token == "" {
		return ErrEmptyToken
	}
	now := s.clock()
	record := &Record{Token: token, StoredAt: now.Unix()}

	var ttl time.Duration
	if !expiresAt.IsZero() {
		record.ExpiresAt = expiresAt.Unix()
		ttl = expiresAt.Sub(now)
		if ttl < minRedisTTL {
			ttl = minRedisTTL
		}
	}
	data, err := Encode(record)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.Key(), data, ttl)
		pipe.Publish(ctx, s.channel(), "set")
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.Key())
		pipe.Publish(ctx, s.channel(), "clear")
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Watch subscribes to change notifications for the slot and calls onChange for each
// one until ctx is done.
func (s *RedisStore) Watch(ctx context.Context, onChange func()) error {
	sub := s.redis.Subscribe(ctx, s.channel())
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				onChange()
			}
		}
	}()
	return nil
}
