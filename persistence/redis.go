// persistence/redis.go
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wfunc/matchgame/config"
	"github.com/wfunc/matchgame/models"
)

// recordHistory bounds the list of recent rounds kept in Redis.
const recordHistory = 1000

// Redis keeps one JSON document per room plus a set of live codes, and
// aggregates rounds into a hash.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(cfg config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return newRedisStore(client, cfg.KeyPrefix), nil
}

func newRedisStore(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) roomKey(code string) string { return r.prefix + "room:" + code }
func (r *Redis) roomsKey() string          { return r.prefix + "rooms" }
func (r *Redis) statsKey() string          { return r.prefix + "stats" }
func (r *Redis) recordsKey() string        { return r.prefix + "records" }

func (r *Redis) SaveRoom(ctx context.Context, room models.RoomSnapshot) error {
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.roomKey(room.Code), data, 0)
		pipe.SAdd(ctx, r.roomsKey(), room.Code)
		return nil
	})
	return err
}

func (r *Redis) DeleteRoom(ctx context.Context, code string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.roomKey(code))
		pipe.SRem(ctx, r.roomsKey(), code)
		return nil
	})
	return err
}

func (r *Redis) LoadRooms(ctx context.Context) ([]models.RoomSnapshot, error) {
	codes, err := r.client.SMembers(ctx, r.roomsKey()).Result()
	if err != nil {
		return nil, err
	}
	if len(codes) == 0 {
		return nil, nil
	}

	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = r.roomKey(code)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	rooms := make([]models.RoomSnapshot, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var room models.RoomSnapshot
		if err := json.Unmarshal([]byte(s), &room); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func (r *Redis) SaveGameRecord(ctx context.Context, record models.GameRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, r.statsKey(), "rounds", 1)
		if record.Match {
			pipe.HIncrBy(ctx, r.statsKey(), "matches", 1)
		}
		pipe.LPush(ctx, r.recordsKey(), data)
		pipe.LTrim(ctx, r.recordsKey(), 0, recordHistory-1)
		return nil
	})
	return err
}

func (r *Redis) Summary(ctx context.Context) (models.Summary, error) {
	values, err := r.client.HMGet(ctx, r.statsKey(), "rounds", "matches").Result()
	if err != nil {
		return models.Summary{}, err
	}
	var s models.Summary
	if s.Rounds, err = parseCount(values[0]); err != nil {
		return models.Summary{}, err
	}
	if s.Matches, err = parseCount(values[1]); err != nil {
		return models.Summary{}, err
	}
	return s, nil
}

// RecentRecords returns up to n of the newest rounds.
func (r *Redis) RecentRecords(ctx context.Context, n int64) ([]models.GameRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	values, err := r.client.LRange(ctx, r.recordsKey(), 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	records := make([]models.GameRecord, 0, len(values))
	for _, v := range values {
		var rec models.GameRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseCount(v any) (int64, error) {
	if v == nil {
		return 0, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, errors.New("unexpected counter type")
	}
	return strconv.ParseInt(s, 10, 64)
}

func (r *Redis) Close() error {
	return r.client.Close()
}
