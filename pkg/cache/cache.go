package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrCacheMiss is returned by stores when a key is absent.
var ErrCacheMiss = errors.New("cache miss")

// Store is a TTL key-value backend. Implementations are safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Stats(ctx context.Context) map[string]interface{}
	Close() error
}

type Kind string

const (
	KindSpecs    Kind = "specs"
	KindPrice    Kind = "price"
	KindReviews  Kind = "reviews"
	KindProsCons Kind = "proscons"
)

// Key derives "{kind}:{hash}" where hash is the first 12 hex chars of the md5 of
// the lower-cased, trimmed, non-empty fields joined with "|".
func Key(kind Kind, fields ...string) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			parts = append(parts, f)
		}
	}
	sum := md5.Sum([]byte(strings.Join(parts, "|")))
	return string(kind) + ":" + hex.EncodeToString(sum[:])[:12]
}

func PriceKey(brand, name, variant, region string) string {
	return Key(KindPrice, brand, name, variant, region)
}

func SpecsKey(brand, name, variant string) string {
	return Key(KindSpecs, brand, name, variant)
}

// ReviewsKey is keyed on the full product name so that rating lookups by name and
// by brand/name/variant share one slot.
func ReviewsKey(fullName string) string {
	return Key(KindReviews, fullName)
}

func ProsConsKey(brand, name, variant string) string {
	return Key(KindProsCons, brand, name, variant)
}

type TTLPolicy struct {
	Specs          time.Duration
	Price          time.Duration
	PriceEstimated time.Duration
	Reviews        time.Duration
	ProsCons       time.Duration
}

func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		Specs:          604800 * time.Second,
		Price:          86400 * time.Second,
		PriceEstimated: 43200 * time.Second,
		Reviews:        604800 * time.Second,
		ProsCons:       604800 * time.Second,
	}
}

// For returns the TTL of a kind. Estimated applies to prices only.
func (p TTLPolicy) For(kind Kind, estimated bool) time.Duration {
	switch kind {
	case KindSpecs:
		return p.Specs
	case KindPrice:
		if estimated {
			return p.PriceEstimated
		}
		return p.Price
	case KindReviews:
		return p.Reviews
	case KindProsCons:
		return p.ProsCons
	default:
		return p.Price
	}
}

// Entry is the envelope persisted for every key.
type Entry struct {
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
	TTLSeconds int64           `json:"ttl_seconds"`
}

func (e Entry) Expired(now time.Time) bool {
	return now.After(e.CreatedAt.Add(time.Duration(e.TTLSeconds) * time.Second))
}

type Option func(*Cache)

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// Cache stores JSON payloads in a Store. A Cache without a store turns every
// operation into a no-op: gets miss and writes report false.
type Cache struct {
	store  Store
	now    func() time.Time
	logger zerolog.Logger
}

func New(store Store, logger zerolog.Logger, opts ...Option) *Cache {
	c := &Cache{
		store:  store,
		now:    time.Now,
		logger: logger.With().Str("component", "cache").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) Available() bool {
	return c != nil && c.store != nil
}

// Get decodes the payload stored under key into dest. Entries past their TTL are
// deleted and reported as a miss.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) bool {
	if !c.Available() {
		return false
	}

	raw, err := c.store.Get(ctx, key)
	if errors.Is(err, ErrCacheMiss) {
		c.logger.Debug().Str("key", key).Msg("cache MISS")
		return false
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache get failed")
		return false
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("dropping undecodable cache entry")
		c.Delete(ctx, key)
		return false
	}
	if entry.Expired(c.now()) {
		c.logger.Debug().Str("key", key).Time("created_at", entry.CreatedAt).Msg("cache entry expired")
		c.Delete(ctx, key)
		return false
	}
	if err := json.Unmarshal(entry.Payload, dest); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache payload does not match destination")
		return false
	}

	c.logger.Debug().Str("key", key).Msg("cache HIT")
	return true
}

func (c *Cache) Set(ctx context.Context, key string, payload interface{}, ttl time.Duration) bool {
	if !c.Available() || ttl <= 0 {
		return false
	}

	body, err := json.Marshal(payload)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache payload not serialisable")
		return false
	}
	raw, err := json.Marshal(Entry{
		Payload:    body,
		CreatedAt:  c.now().UTC(),
		TTLSeconds: int64(ttl / time.Second),
	})
	if err != nil {
		return false
	}

	if err := c.store.Set(ctx, key, raw, ttl); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache set failed")
		return false
	}
	c.logger.Debug().Str("key", key).Dur("ttl", ttl).Msg("cached")
	return true
}

func (c *Cache) Delete(ctx context.Context, key string) bool {
	if !c.Available() {
		return false
	}
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache delete failed")
		return false
	}
	return true
}

func (c *Cache) Stats(ctx context.Context) map[string]interface{} {
	if !c.Available() {
		return map[string]interface{}{
			"status": "unavailable",
		}
	}
	return c.store.Stats(ctx)
}

func (c *Cache) Close() error {
	if !c.Available() {
		return nil
	}
	return c.store.Close()
}

// KeyInfo describes one stored entry without decoding its payload.
type KeyInfo struct {
	Key        string    `json:"key"`
	CreatedAt  time.Time `json:"created_at"`
	TTLSeconds int64     `json:"ttl_seconds"`
	ExpiresIn  string    `json:"expires_in"`
	StoreTTL   string    `json:"store_ttl,omitempty"`
}

type ttlReporter interface {
	TTL(ctx context.Context, key string) time.Duration
}

// Inspect reports the envelope metadata of key. Missing and expired entries report false.
func (c *Cache) Inspect(ctx context.Context, key string) (*KeyInfo, bool) {
	if !c.Available() {
		return nil, false
	}
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false
	}
	now := c.now()
	if entry.Expired(now) {
		return nil, false
	}

	info := &KeyInfo{
		Key:        key,
		CreatedAt:  entry.CreatedAt,
		TTLSeconds: entry.TTLSeconds,
		ExpiresIn:  entry.CreatedAt.Add(time.Duration(entry.TTLSeconds) * time.Second).Sub(now).Round(time.Second).String(),
	}
	if r, ok := c.store.(ttlReporter); ok {
		info.StoreTTL = r.TTL(ctx, key).String()
	}
	return info, true
}
