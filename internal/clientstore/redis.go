package clientstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisStore shares the session mirror between client processes. Writes run in a
// MULTI/EXEC block and are announced on a pub/sub channel tagged with the writer's
// origin so that handles can ignore their own writes.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	channel string
	origin  string
	log     zerolog.Logger
}

type changeEvent struct {
	Key     string `json:"key"`
	Origin  string `json:"origin"`
	Deleted bool   `json:"deleted"`
}

func NewRedisStore(client *redis.Client, prefix, channel string, log zerolog.Logger) *RedisStore {
	return newRedisStore(client, prefix, channel, uuid.NewString(), log)
}

func newRedisStore(client *redis.Client, prefix, channel, origin string, log zerolog.Logger) *RedisStore {
	return &RedisStore{
		client:  client,
		prefix:  prefix,
		channel: channel,
		origin:  origin,
		log:     log,
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *RedisStore) Update(ctx context.Context, values map[string]*string) error {
	keys := sortedKeys(values)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.queue(ctx, pipe, keys, values)
		return nil
	})
	if err != nil {
		return fmt.Errorf("write session mirror: %w", err)
	}
	return s.announce(ctx, keys, values)
}

// UpdateIf watches key and runs the write in MULTI/EXEC only while key holds expected.
// A concurrent change to key aborts the transaction and reports false.
func (s *RedisStore) UpdateIf(ctx context.Context, key, expected string, values map[string]*string) (bool, error) {
	keys := sortedKeys(values)
	applied := false

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, s.prefix+key).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if current != expected {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.queue(ctx, pipe, keys, values)
			return nil
		})
		if err == nil {
			applied = true
		}
		return err
	}, s.prefix+key)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("write session mirror: %w", err)
	}
	if !applied {
		return false, nil
	}
	return true, s.announce(ctx, keys, values)
}

func (s *RedisStore) queue(ctx context.Context, pipe redis.Pipeliner, keys []string, values map[string]*string) {
	for _, key := range keys {
		if value := values[key]; value == nil {
			pipe.Del(ctx, s.prefix+key)
		} else {
			pipe.Set(ctx, s.prefix+key, *value, 0)
		}
	}
}

func (s *RedisStore) announce(ctx context.Context, keys []string, values map[string]*string) error {
	for _, key := range keys {
		payload, err := json.Marshal(changeEvent{Key: key, Origin: s.origin, Deleted: values[key] == nil})
		if err != nil {
			return fmt.Errorf("encode change: %w", err)
		}
		if err := s.client.Publish(ctx, s.channel, string(payload)).Err(); err != nil {
			return fmt.Errorf("publish change: %w", err)
		}
	}
	return nil
}

func sortedKeys(values map[string]*string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (s *RedisStore) Subscribe(ctx context.Context, key string) (<-chan Change, error) {
	pubsub := s.client.Subscribe(ctx, s.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", s.channel, err)
	}

	out := make(chan Change, subscriberBuffer)
	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				change, relevant := s.decode(msg.Payload, key)
				if !relevant {
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (s *RedisStore) decode(payload string, key string) (Change, bool) {
	var event changeEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		s.log.Warn().Err(err).Str("channel", s.channel).Msg("drop malformed change event")
		return Change{}, false
	}
	if event.Origin == s.origin || event.Key != key {
		return Change{}, false
	}
	return Change{Key: event.Key, Deleted: event.Deleted}, true
}
