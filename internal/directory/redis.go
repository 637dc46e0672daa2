package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/Collab/internal/domain"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the hash holding one field per room.
const DefaultRedisKey = "collab:rooms"

// Redis stores RoomInfo as JSON fields of a single hash so every
// instance sharing the server sees the same listing.
type Redis struct {
	client redis.Cmdable
	key    string
}

func NewRedis(client redis.Cmdable, key string) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{client: client, key: key}
}

func (s *Redis) Put(ctx context.Context, info RoomInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal room info: %w", err)
	}
	if err := s.client.HSet(ctx, s.key, string(info.ID), data).Err(); err != nil {
		return fmt.Errorf("redis hset %s: %w", info.ID, err)
	}
	return nil
}

func (s *Redis) Remove(ctx context.Context, id domain.RoomID) error {
	if err := s.client.HDel(ctx, s.key, string(id)).Err(); err != nil {
		return fmt.Errorf("redis hdel %s: %w", id, err)
	}
	return nil
}

func (s *Redis) Get(ctx context.Context, id domain.RoomID) (RoomInfo, error) {
	raw, err := s.client.HGet(ctx, s.key, string(id)).Result()
	if errors.Is(err, redis.Nil) {
		return RoomInfo{}, ErrNotFound
	}
	if err != nil {
		return RoomInfo{}, fmt.Errorf("redis hget %s: %w", id, err)
	}
	var info RoomInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return RoomInfo{}, fmt.Errorf("decode room info %s: %w", id, err)
	}
	return info, nil
}

func (s *Redis) Exists(ctx context.Context, id domain.RoomID) (bool, error) {
	ok, err := s.client.HExists(ctx, s.key, string(id)).Result()
	if err != nil {
		return false, fmt.Errorf("redis hexists %s: %w", id, err)
	}
	return ok, nil
}

func (s *Redis) List(ctx context.Context) ([]RoomInfo, error) {
	vals, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	out := make([]RoomInfo, 0, len(vals))
	for _, raw := range vals {
		var info RoomInfo
		if err := json.Unmarshal([]byte(raw), &info); err != nil {
			continue
		}
		out = append(out, info)
	}
	sortInfos(out)
	return out, nil
}
