package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/qrkiosk/internal/common"
	"github.com/dmitrijs2005/qrkiosk/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	activeKeyPrefix  = "qrkiosk:session:active:"
	closedKeyPrefix  = "qrkiosk:session:closed:"
	closedListKey    = "qrkiosk:sessions:closed"
	redisScanBatch   = 100
	closedSessionTTL = 90 * 24 * time.Hour
	maxCloseRetries  = 5
)

// RedisRepository stores one JSON document per active session under
// activeKeyPrefix+uniqueID. SET NX guards the single active session.
type RedisRepository struct {
	cli *redis.Client
}

func NewRedisRepository(cli *redis.Client) *RedisRepository {
	return &RedisRepository{cli: cli}
}

func activeKey(uniqueID string) string { return activeKeyPrefix + uniqueID }

func (r *RedisRepository) FindActive(ctx context.Context, uniqueID string) (*models.Session, error) {
	val, err := r.cli.Get(ctx, activeKey(uniqueID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("redis error: %w", err)
	}
	return decodeSession(val)
}

func (r *RedisRepository) Create(ctx context.Context, s *models.Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.IsActive = true
	s.LoggedOutAt = nil

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	ok, err := r.cli.SetNX(ctx, activeKey(s.UniqueID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	if !ok {
		return common.ErrAlreadyActive
	}
	return nil
}

// CloseActive moves the active session into the closed history in one
// MULTI/EXEC guarded by WATCH, so a failed write leaves the session active.
func (r *RedisRepository) CloseActive(ctx context.Context, uniqueID string, at time.Time) (*models.Session, error) {
	key := activeKey(uniqueID)

	var closed *models.Session
	txf := func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return common.ErrorNotFound
			}
			return err
		}

		s, err := decodeSession(val)
		if err != nil {
			return err
		}
		s.IsActive = false
		s.LoggedOutAt = &at

		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.Set(ctx, closedKeyPrefix+s.ID, data, closedSessionTTL)
			pipe.LPush(ctx, closedListKey, s.ID)
			return nil
		})
		if err != nil {
			return err
		}
		closed = s
		return nil
	}

	for i := 0; i < maxCloseRetries; i++ {
		err := r.cli.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return closed, nil
		case errors.Is(err, redis.TxFailedErr):
			// key changed between WATCH and EXEC
			continue
		case errors.Is(err, common.ErrorNotFound):
			return nil, err
		default:
			return nil, fmt.Errorf("redis error: %w", err)
		}
	}
	return nil, fmt.Errorf("redis error: %w", redis.TxFailedErr)
}

func (r *RedisRepository) ListActive(ctx context.Context) ([]models.Session, error) {
	var keys []string
	iter := r.cli.Scan(ctx, 0, activeKeyPrefix+"*", redisScanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}

	result := []models.Session{}
	if len(keys) == 0 {
		return result, nil
	}

	vals, err := r.cli.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			// removed between SCAN and MGET
			continue
		}
		s, err := decodeSession([]byte(str))
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].LoggedInAt.Before(result[j].LoggedInAt)
	})
	return result, nil
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	if err := r.cli.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RedisRepository) Close() error {
	return r.cli.Close()
}

func decodeSession(b []byte) (*models.Session, error) {
	var s models.Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}
