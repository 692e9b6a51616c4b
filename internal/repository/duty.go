package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"courier-dispatch/internal/domain"
)

const (
	dutyKeyPrefix = "duty:session:"
	dutyIndexKey  = "duty:partners"
)

// DutyRepo keeps duty sessions in Redis hashes indexed by a set of partner ids.
type DutyRepo struct {
	rdb       redis.UniversalClient
	retention time.Duration
}

// NewDutyRepo creates a new DutyRepo. Sessions silent for longer than retention are dropped by Redis.
func NewDutyRepo(rdb redis.UniversalClient, retention time.Duration) *DutyRepo {
	return &DutyRepo{rdb: rdb, retention: retention}
}

// Get returns the stored session of p.
func (r *DutyRepo) Get(ctx context.Context, p domain.PartnerID) (domain.DutySession, bool, error) {
	vals, err := r.rdb.HGetAll(ctx, dutyKeyPrefix+string(p)).Result()
	if err != nil {
		return domain.DutySession{}, false, fmt.Errorf("get duty %q: %w", p, err)
	}
	if len(vals) == 0 {
		return domain.DutySession{}, false, nil
	}
	s, err := decodeSession(p, vals)
	if err != nil {
		return domain.DutySession{}, false, err
	}
	return s, true, nil
}

// Put stores s and refreshes its expiry.
func (r *DutyRepo) Put(ctx context.Context, s domain.DutySession) error {
	key := dutyKeyPrefix + string(s.Partner)
	onDuty := "0"
	if s.OnDuty {
		onDuty = "1"
	}
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "on_duty", onDuty, "last_heartbeat", s.LastHeartbeat.UTC().Format(time.RFC3339Nano))
		if r.retention > 0 {
			pipe.Expire(ctx, key, r.retention)
		}
		pipe.SAdd(ctx, dutyIndexKey, string(s.Partner))
		return nil
	})
	if err != nil {
		return fmt.Errorf("put duty %q: %w", s.Partner, err)
	}
	return nil
}

// List returns every stored session, pruning index entries whose hash expired.
func (r *DutyRepo) List(ctx context.Context) ([]domain.DutySession, error) {
	members, err := r.rdb.SMembers(ctx, dutyIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list duty: %w", err)
	}
	out := make([]domain.DutySession, 0, len(members))
	for _, m := range members {
		s, ok, err := r.Get(ctx, domain.PartnerID(m))
		if err != nil {
			return nil, err
		}
		if !ok {
			if err := r.rdb.SRem(ctx, dutyIndexKey, m).Err(); err != nil && !errors.Is(err, redis.Nil) {
				return nil, fmt.Errorf("prune duty index: %w", err)
			}
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func decodeSession(p domain.PartnerID, vals map[string]string) (domain.DutySession, error) {
	s := domain.DutySession{Partner: p, OnDuty: vals["on_duty"] == "1"}
	if raw := vals["last_heartbeat"]; raw != "" {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return domain.DutySession{}, fmt.Errorf("decode duty %q: %w", p, err)
		}
		s.LastHeartbeat = at
	}
	return s, nil
}
