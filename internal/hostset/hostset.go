// Package hostset implements a circuit-breaker host set: a shared,
// add-only set of hostnames the crawl pipeline consults to avoid self-crawling,
// backed by Redis so it's consistent across processes.
// False positives only cause extra blocking, so adds never need to be
// transactional with the read path.
package hostset

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKey = "digestgate:crawl:hosts"
const memberTTL = 24 * time.Hour

// Set wraps a Redis client scoped to one logical set key.
type Set struct {
	client *redis.Client
	key    string
}

// New builds a Set. If url is empty, operations become no-ops so the
// crawl pipeline can run without Redis configured (at the cost of losing
// cross-process self-crawl protection).
func New(url string) (*Set, error) {
	if url == "" {
		return &Set{}, nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &Set{client: redis.NewClient(opt), key: defaultKey}, nil
}

// Add records host as seen. A duplicate add only refreshes the host's
// expiry score.
func (s *Set) Add(ctx context.Context, host string) error {
	if s.client == nil || host == "" {
		return nil
	}
	return s.client.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(time.Now().Add(memberTTL).Unix()),
		Member: host,
	}).Err()
}

// Contains reports whether host has been seen recently.
func (s *Set) Contains(ctx context.Context, host string) (bool, error) {
	if s.client == nil || host == "" {
		return false, nil
	}
	score, err := s.client.ZScore(ctx, s.key, host).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return int64(score) > time.Now().Unix(), nil
}

// Ping checks Redis connectivity for the health endpoint.
func (s *Set) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Ping(ctx).Err()
}
