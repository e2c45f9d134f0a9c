package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nvandessel/eigentrust/internal/simulation"
)

const simulationsSet = "eigentrust:sims"

// RedisStore implements SimulationStore on Redis. Each record is a JSON
// string under eigentrust:sim:<id>, its listing entry sits under
// eigentrust:sim:<id>:meta, and every id is a member of eigentrust:sims.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisStoreFromURL connects using a redis:// or rediss:// URL and
// checks the connection.
func NewRedisStoreFromURL(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return NewRedisStore(client), nil
}

func (s *RedisStore) recordKey(id string) string {
	return fmt.Sprintf("eigentrust:sim:%s", id)
}

func (s *RedisStore) metaKey(id string) string {
	return fmt.Sprintf("eigentrust:sim:%s:meta", id)
}

func (s *RedisStore) Save(ctx context.Context, rec simulation.Record) error {
	if err := validateID(rec.SimulationID); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	meta, err := json.Marshal(entryFor(rec, time.Now()))
	if err != nil {
		return fmt.Errorf("marshaling entry: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.recordKey(rec.SimulationID), data, 0)
		pipe.Set(ctx, s.metaKey(rec.SimulationID), meta, 0)
		pipe.SAdd(ctx, simulationsSet, rec.SimulationID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving %s: %w", rec.SimulationID, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, id string) (simulation.Record, error) {
	if err := validateID(id); err != nil {
		return simulation.Record{}, err
	}
	data, err := s.client.Get(ctx, s.recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return simulation.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return simulation.Record{}, fmt.Errorf("loading %s: %w", id, err)
	}
	var rec simulation.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return simulation.Record{}, fmt.Errorf("parsing %s: %w", id, err)
	}
	return rec, nil
}

func (s *RedisStore) List(ctx context.Context) ([]Entry, error) {
	ids, err := s.client.SMembers(ctx, simulationsSet).Result()
	if err != nil {
		return nil, fmt.Errorf("listing simulations: %w", err)
	}
	entries := []Entry{}
	if len(ids) == 0 {
		return entries, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.metaKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("reading entries: %w", err)
	}
	for i, val := range values {
		if val == nil {
			// Set member without metadata; skip
			continue
		}
		str, ok := val.(string)
		if !ok {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(str), &e); err != nil {
			return nil, fmt.Errorf("parsing entry %s: %w", ids[i], err)
		}
		entries = append(entries, e)
	}
	sortEntries(entries)
	return entries, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.recordKey(id), s.metaKey(id))
		pipe.SRem(ctx, simulationsSet, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", id, err)
	}
	if del.Val() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
