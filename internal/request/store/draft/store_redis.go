package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"intake/internal/request/models"
	"intake/internal/visibility"
	id "intake/pkg/domain"
	"intake/pkg/platform/sentinel"
)

const (
	// Redis key prefix for drafts; one hash per draft.
	draftKeyPrefix = "intake:draft:"

	metaServiceID = "_service_id"
	metaStartedAt = "_started_at"
	metaUpdatedAt = "_updated_at"
	valuePrefix   = "v:"
)

// RedisStore keeps drafts in Redis hashes so every instance sees the same
// in-progress forms. Each write refreshes the TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis constructs a Redis-backed draft store.
func NewRedis(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func key(draftID id.DraftID) string {
	return draftKeyPrefix + draftID.String()
}

func (s *RedisStore) Create(ctx context.Context, d *models.Draft) error {
	fields := map[string]any{
		metaServiceID: d.ServiceID.String(),
		metaStartedAt: d.StartedAt.UTC().Format(time.RFC3339Nano),
		metaUpdatedAt: d.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	for name, v := range d.Values {
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal draft value: %w", err)
		}
		fields[valuePrefix+name] = string(encoded)
	}

	k := key(d.ID)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, k).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return sentinel.ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, k, fields)
			s.expire(ctx, pipe, k)
			return nil
		})
		return err
	}, k)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrConflict), errors.Is(err, redis.TxFailedErr):
		// TxFailedErr: another writer created the key between WATCH and EXEC.
		return sentinel.ErrConflict
	default:
		return fmt.Errorf("create draft: %w", err)
	}
}

func (s *RedisStore) FindByID(ctx context.Context, draftID id.DraftID) (*models.Draft, error) {
	raw, err := s.client.HGetAll(ctx, key(draftID)).Result()
	if err != nil {
		return nil, fmt.Errorf("find draft: %w", err)
	}
	return decodeDraft(draftID, raw)
}

// SetValue writes one field and refreshes the TTL in a single transaction. The
// draft must exist; a missing hash is not recreated.
func (s *RedisStore) SetValue(ctx context.Context, draftID id.DraftID, field string, value visibility.Value, now time.Time) (*models.Draft, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal draft value: %w", err)
	}
	k := key(draftID)

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, k).Result()
		if err != nil {
			return err
		}
		if exists == 0 {
			return sentinel.ErrNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, k,
				valuePrefix+field, string(encoded),
				metaUpdatedAt, now.UTC().Format(time.RFC3339Nano),
			)
			s.expire(ctx, pipe, k)
			return nil
		})
		return err
	}, k)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("set draft value: %w", err)
	}
	return s.FindByID(ctx, draftID)
}

func (s *RedisStore) Delete(ctx context.Context, draftID id.DraftID) error {
	if err := s.client.Del(ctx, key(draftID)).Err(); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

func (s *RedisStore) expire(ctx context.Context, pipe redis.Pipeliner, k string) {
	if s.ttl > 0 {
		pipe.Expire(ctx, k, s.ttl)
	}
}

func decodeDraft(draftID id.DraftID, raw map[string]string) (*models.Draft, error) {
	serviceID, ok := raw[metaServiceID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	d := &models.Draft{
		ID:        draftID,
		ServiceID: id.ServiceID(serviceID),
		Values:    visibility.Values{},
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw[metaStartedAt]); err == nil {
		d.StartedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw[metaUpdatedAt]); err == nil {
		d.UpdatedAt = ts
	}
	for f, encoded := range raw {
		name, ok := strings.CutPrefix(f, valuePrefix)
		if !ok {
			continue
		}
		var v visibility.Value
		if err := json.Unmarshal([]byte(encoded), &v); err != nil {
			return nil, fmt.Errorf("decode draft value %q: %w", name, err)
		}
		d.Values[name] = v
	}
	return d, nil
}
