package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	generationKey     = "reports:generation"
	invalidateChannel = "reports:invalidate"
)

// Cache memoizes rendered reports in redis. Every key carries a shared
// generation counter, so an import drops the whole report set with a single
// INCR instead of enumerating keys. A nil Cache, or one without a client,
// rebuilds on every call.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// generation reads the counter, seeding it at 1 the first time.
func (c *Cache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	switch {
	case errors.Is(err, redis.Nil), err == nil && gen <= 0:
		gen = 1
		err = c.client.Set(ctx, generationKey, gen, 0).Err()
	}
	if err != nil {
		return 0, err
	}
	return gen, nil
}

// GetOrBuild returns the report stored under name for the current
// generation, building and caching it on a miss. The built value round-trips
// through JSON either way so cached and fresh responses look identical.
func (c *Cache) GetOrBuild(ctx context.Context, name string, dest any, build func(context.Context) (any, error)) error {
	if build == nil {
		return errors.New("reports: build func required")
	}
	if c == nil || c.client == nil {
		value, err := build(ctx)
		if err != nil {
			return err
		}
		return recode(value, dest)
	}

	gen, err := c.generation(ctx)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s:%d", name, gen)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		return err
	}

	value, err := build(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Invalidate advances the generation, orphaning every cached report, and
// announces the new generation to sibling processes.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	gen, err := c.client.Incr(ctx, generationKey).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, invalidateChannel, strconv.FormatInt(gen, 10)).Err()
}

// WatchInvalidations follows generation announcements from other processes
// until ctx is cancelled, so a fleet shares one cache lifetime.
func (c *Cache) WatchInvalidations(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	sub := c.client.Subscribe(ctx, invalidateChannel)
	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				gen, err := strconv.ParseInt(msg.Payload, 10, 64)
				if err != nil {
					_ = c.client.Incr(ctx, generationKey).Err()
					continue
				}
				_ = c.client.Set(ctx, generationKey, gen, 0).Err()
			}
		}
	}()
	return nil
}

func recode(value, dest any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func keyTrialBalance(asOf time.Time) string {
	return strings.Join([]string{"reports", "trial_balance", asOf.Format("2006-01-02")}, ":")
}

func keyAging(prefix string, asOf time.Time) string {
	return strings.Join([]string{"reports", prefix, asOf.Format("2006-01-02")}, ":")
}

func keyBankBalance() string {
	return strings.Join([]string{"reports", "bank_balance"}, ":")
}
