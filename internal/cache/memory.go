package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryCache is a fake Cache implementation used by unit tests across
// the idempotency, rate limiter, limits, and AML packages, mirroring the
// teacher's pattern of testing services against hand-written fakes of their
// ports interfaces rather than a real Redis instance.
type InMemoryCache struct {
	mu       sync.Mutex
	strings  map[string]string
	expiry   map[string]time.Time
	sortedSets map[string]map[string]float64
	lists    map[string][]string
}

func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		strings:    make(map[string]string),
		expiry:     make(map[string]time.Time),
		sortedSets: make(map[string]map[string]float64),
		lists:      make(map[string][]string),
	}
}

func (c *InMemoryCache) expired(key string) bool {
	exp, ok := c.expiry[key]
	return ok && time.Now().After(exp)
}

func (c *InMemoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expired(key) {
		delete(c.strings, key)
		return "", false, nil
	}
	v, ok := c.strings[key]
	return v, ok, nil
}

func (c *InMemoryCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strings[key] = value
	if ttl > 0 {
		c.expiry[key] = time.Now().Add(ttl)
	} else {
		delete(c.expiry, key)
	}
	return nil
}

func (c *InMemoryCache) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expired(key) {
		delete(c.strings, key)
	}
	if _, ok := c.strings[key]; ok {
		return false, nil
	}
	c.strings[key] = value
	if ttl > 0 {
		c.expiry[key] = time.Now().Add(ttl)
	}
	return true, nil
}

func (c *InMemoryCache) Incr(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expired(key) {
		delete(c.strings, key)
		delete(c.expiry, key)
	}
	var n int64
	if v, ok := c.strings[key]; ok {
		for _, ch := range v {
			n = n*10 + int64(ch-'0')
		}
	}
	n++
	c.strings[key] = itoa(n)
	return n, nil
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func (c *InMemoryCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expiry[key] = time.Now().Add(ttl)
	return nil
}

func (c *InMemoryCache) ZAdd(ctx context.Context, key string, score float64, member string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.sortedSets[key]
	if !ok {
		set = make(map[string]float64)
		c.sortedSets[key] = set
	}
	set[member] = score
	return nil
}

func (c *InMemoryCache) ZRemRangeByScore(ctx context.Context, key string, min, max float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.sortedSets[key]
	if !ok {
		return nil
	}
	for member, score := range set {
		if score >= min && score <= max {
			delete(set, member)
		}
	}
	return nil
}

func (c *InMemoryCache) ZCard(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.sortedSets[key])), nil
}

func (c *InMemoryCache) LPush(ctx context.Context, key string, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists[key] = append([]string{value}, c.lists[key]...)
	return nil
}

func (c *InMemoryCache) LTrim(ctx context.Context, key string, start, stop int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	l := c.lists[key]
	if int(stop) >= len(l) {
		stop = int64(len(l) - 1)
	}
	if start > stop || len(l) == 0 {
		c.lists[key] = nil
		return nil
	}
	c.lists[key] = l[start : stop+1]
	return nil
}

func (c *InMemoryCache) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l := c.lists[key]
	if len(l) == 0 {
		return nil, nil
	}
	if int(stop) >= len(l) {
		stop = int64(len(l) - 1)
	}
	if start > stop {
		return nil, nil
	}
	out := make([]string, stop-start+1)
	copy(out, l[start:stop+1])
	return out, nil
}

// sortedMembers is a small test helper to inspect ZSet contents deterministically.
func (c *InMemoryCache) sortedMembers(key string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	set := c.sortedSets[key]
	members := make([]string, 0, len(set))
	for m := range set {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return set[members[i]] < set[members[j]] })
	return members
}
