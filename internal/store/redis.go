package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares history between every instance pointed at the same
// Redis database. Logs are Redis lists of JSON documents; variant counters
// are hash fields bumped with HINCRBY so concurrent writers never lose counts.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// OpenRedis connects to addr and fails when the server does not answer a ping.
func OpenRedis(ctx context.Context, addr, password string, db int, prefix string) (*RedisStore, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	if prefix == "" {
		prefix = "seopulse:"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) Name() string { return "redis" }

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) key(parts ...string) string {
	return redisKey(s.prefix, parts...)
}

// redisKey joins parts with ":". Each part is query-escaped so ids and
// keywords containing ":" cannot reach another entity's key.
func redisKey(prefix string, parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.QueryEscape(p)
	}
	return prefix + strings.Join(escaped, ":")
}

func (s *RedisStore) AppendSample(ctx context.Context, p PerformanceSample) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal sample: %w", err)
	}
	if err := s.client.RPush(ctx, s.key("samples", p.URL), data).Err(); err != nil {
		return fmt.Errorf("failed to append sample: %w", err)
	}
	return nil
}

func (s *RedisStore) Samples(ctx context.Context, url string, since time.Time) ([]PerformanceSample, error) {
	raw, err := s.client.LRange(ctx, s.key("samples", url), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read samples: %w", err)
	}
	var out []PerformanceSample
	for _, item := range raw {
		var p PerformanceSample
		if err := json.Unmarshal([]byte(item), &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sample: %w", err)
		}
		if since.IsZero() || p.Timestamp.After(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *RedisStore) CreateTest(ctx context.Context, t *ABTest) error {
	def := cloneTest(t)
	for i := range def.Variants {
		def.Variants[i].Impressions, def.Variants[i].Clicks, def.Variants[i].Conversions = 0, 0, 0
	}
	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to marshal test: %w", err)
	}

	key := s.key("test", t.ID)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to check test: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("test %s: %w", t.ID, ErrDuplicate)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.RPush(ctx, s.key("tests"), t.ID)
			for _, v := range t.Variants {
				if v.Impressions+v.Clicks+v.Conversions == 0 {
					continue
				}
				pipe.HSet(ctx, s.key("test", t.ID, "counters"),
					counterField(v.ID, CounterImpressions), v.Impressions,
					counterField(v.ID, CounterClicks), v.Clicks,
					counterField(v.ID, CounterConversions), v.Conversions,
				)
			}
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("test %s: %w", t.ID, ErrDuplicate)
	}
	if errors.Is(err, ErrDuplicate) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to register test: %w", err)
	}
	return nil
}

func (s *RedisStore) GetTest(ctx context.Context, id string) (*ABTest, error) {
	data, err := s.client.Get(ctx, s.key("test", id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get test: %w", err)
	}

	var t ABTest
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal test: %w", err)
	}

	counters, err := s.client.HGetAll(ctx, s.key("test", id, "counters")).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get counters: %w", err)
	}
	for i := range t.Variants {
		v := &t.Variants[i]
		v.Impressions = atoi(counters[counterField(v.ID, CounterImpressions)])
		v.Clicks = atoi(counters[counterField(v.ID, CounterClicks)])
		v.Conversions = atoi(counters[counterField(v.ID, CounterConversions)])
		v.RecomputeCTR()
	}
	return &t, nil
}

func (s *RedisStore) ListTests(ctx context.Context) ([]*ABTest, error) {
	ids, err := s.client.LRange(ctx, s.key("tests"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list tests: %w", err)
	}
	tests := make([]*ABTest, 0, len(ids))
	for _, id := range ids {
		t, err := s.GetTest(ctx, id)
		if err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, nil
}

func (s *RedisStore) SetTestActive(ctx context.Context, id string, active bool, endDate *time.Time) error {
	key := s.key("test", id)
	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get test: %w", err)
		}
		var t ABTest
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("failed to unmarshal test: %w", err)
		}
		t.Active = active
		if endDate != nil {
			end := *endDate
			t.EndDate = &end
		}
		updated, err := json.Marshal(&t)
		if err != nil {
			return fmt.Errorf("failed to marshal test: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}, key)
}

func (s *RedisStore) IncrementVariant(ctx context.Context, testID, variantID string, c Counter) (*Variant, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("unknown counter %q", c)
	}
	t, err := s.GetTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	v := t.Variant(variantID)
	if v == nil {
		return nil, ErrNotFound
	}

	n, err := s.client.HIncrBy(ctx, s.key("test", testID, "counters"), counterField(variantID, c), 1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to increment %s: %w", c, err)
	}

	// The other two counters may have moved since GetTest; reread them.
	vals, err := s.client.HMGet(ctx, s.key("test", testID, "counters"),
		counterField(variantID, CounterImpressions),
		counterField(variantID, CounterClicks),
		counterField(variantID, CounterConversions),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read counters: %w", err)
	}
	v.Impressions, v.Clicks, v.Conversions = anyToInt(vals[0]), anyToInt(vals[1]), anyToInt(vals[2])
	switch c {
	case CounterImpressions:
		v.Impressions = int(n)
	case CounterClicks:
		v.Clicks = int(n)
	case CounterConversions:
		v.Conversions = int(n)
	}
	v.RecomputeCTR()
	out := *v
	return &out, nil
}

func (s *RedisStore) AddKeyword(ctx context.Context, keyword string) error {
	added, err := s.client.SAdd(ctx, s.key("keywords", "set"), keyword).Result()
	if err != nil {
		return fmt.Errorf("failed to add keyword: %w", err)
	}
	if added == 0 {
		return nil
	}
	if err := s.client.RPush(ctx, s.key("keywords"), keyword).Err(); err != nil {
		return fmt.Errorf("failed to add keyword: %w", err)
	}
	return nil
}

func (s *RedisStore) Keywords(ctx context.Context) ([]string, error) {
	kws, err := s.client.LRange(ctx, s.key("keywords"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list keywords: %w", err)
	}
	return kws, nil
}

func (s *RedisStore) AppendRanking(ctx context.Context, r RankTrackingData) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal ranking: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, s.key("rankings"), data)
		pipe.RPush(ctx, s.key("rankings", r.Keyword), data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append ranking: %w", err)
	}
	return nil
}

func (s *RedisStore) LatestRanking(ctx context.Context, keyword string) (*RankTrackingData, error) {
	data, err := s.client.LIndex(ctx, s.key("rankings", keyword), -1).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest ranking: %w", err)
	}
	var r RankTrackingData
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ranking: %w", err)
	}
	return &r, nil
}

func (s *RedisStore) Rankings(ctx context.Context, keyword string, since time.Time) ([]RankTrackingData, error) {
	key := s.key("rankings")
	if keyword != "" {
		key = s.key("rankings", keyword)
	}
	raw, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read rankings: %w", err)
	}
	var out []RankTrackingData
	for _, item := range raw {
		var r RankTrackingData
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal ranking: %w", err)
		}
		if since.IsZero() || r.Date.After(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func counterField(variantID string, c Counter) string {
	return url.QueryEscape(variantID) + ":" + string(c)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func anyToInt(v any) int {
	if s, ok := v.(string); ok {
		return atoi(s)
	}
	return 0
}
