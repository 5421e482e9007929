package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/steakoverflow/weather"
)

type Storage struct {
	redisClient      *redis.Client
	storageKey       string
	recentStorageKey string
}

func NewStorage(client *redis.Client) *Storage {
	return &Storage{
		redisClient:      client,
		storageKey:       "lookups",
		recentStorageKey: "lookups:recent",
	}
}

func (s *Storage) Get(ctx context.Context, id string) (*weather.Lookup, error) {
	val, err := s.redisClient.HGet(ctx, s.storageKey, id).Result()

	if err == redis.Nil {
		return nil, weather.ErrNotFound
	} else if err != nil {
		return nil, errors.Wrap(err, "error fetching lookup")
	}

	return s.convertJsonToLookup(val)
}

func (s *Storage) Save(ctx context.Context, value *weather.Lookup) error {
	jsonVal, err := json.Marshal(value)
	if err != nil {
		return err
	}

	_, err = s.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.storageKey, value.ID, string(jsonVal))
		pipe.ZAdd(ctx, s.recentStorageKey, &redis.Z{Score: float64(value.At.Unix()), Member: value.ID})
		return nil
	})

	return errors.Wrap(err, "error storing lookup")
}

// Recent returns up to limit lookups, newest first.
func (s *Storage) Recent(ctx context.Context, limit int) ([]*weather.Lookup, error) {
	if limit <= 0 {
		return []*weather.Lookup{}, nil
	}

	ids, err := s.redisClient.ZRevRange(ctx, s.recentStorageKey, 0, int64(limit-1)).Result()
	if err != nil && err != redis.Nil {
		return nil, errors.Wrap(err, "error fetching recent lookup ids")
	}

	if len(ids) == 0 {
		return []*weather.Lookup{}, nil
	}

	values, err := s.redisClient.HMGet(ctx, s.storageKey, ids...).Result()
	if err != nil && err != redis.Nil {
		return nil, errors.Wrap(err, "error fetching recent lookups")
	}

	results := make([]*weather.Lookup, 0, len(values))
	for _, val := range values {
		if val == nil {
			// the hash entry was removed after the id was read
			continue
		}

		lookup, err := s.convertJsonToLookup(val.(string))
		if err != nil {
			return nil, err
		}

		results = append(results, lookup)
	}

	return results, nil
}

func (s *Storage) RemoveExpired(ctx context.Context, before time.Time) error {
	max := strconv.FormatInt(before.Unix()-1, 10)

	ids, err := s.redisClient.ZRangeByScore(ctx, s.recentStorageKey, &redis.ZRangeBy{Min: "-inf", Max: max}).Result()
	if err != nil && err != redis.Nil {
		return errors.Wrap(err, "error fetching expired lookups")
	}

	if len(ids) == 0 {
		return nil
	}

	_, err = s.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.storageKey, ids...)
		pipe.ZRemRangeByScore(ctx, s.recentStorageKey, "-inf", max)
		return nil
	})

	return errors.Wrap(err, "error removing expired lookups")
}

func (s *Storage) convertJsonToLookup(jsonVal string) (*weather.Lookup, error) {
	var result *weather.Lookup
	if err := json.Unmarshal([]byte(jsonVal), &result); err != nil {
		return nil, errors.Wrap(err, "error decoding lookup")
	}

	return result, nil
}
