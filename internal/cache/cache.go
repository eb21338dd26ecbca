// Package cache is the Redis-backed result cache for rendered query output
// and CSV downloads. Payloads are keyed by a content hash of the query that
// produced them; download tokens map a uuid to a cached payload so the
// download link survives the page render that created it.
//
// The cache is strictly best-effort: misses fall through to the backing
// store and Redis errors degrade to uncached operation.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultTTL = 15 * time.Minute

// Payload is a cached response body with its content type and a suggested
// download filename.
type Payload struct {
	ContentType string
	Filename    string
	Body        []byte
}

// Cache wraps a Redis client with the portal's key scheme.
type Cache struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// Option configures the cache.
type Option func(*Cache)

// WithTTL sets the expiration for cached payloads.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(c *Cache) {
		c.prefix = prefix
	}
}

// WithLogger attaches a logger for degraded-operation warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New connects to Redis at the given address and database.
func New(address string, db int, opts ...Option) *Cache {
	client := backend.NewClient(&backend.Options{
		Addr: address,
		DB:   db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient builds a cache over an existing client. Tests hand in a
// miniredis-backed client here.
func NewFromClient(client *backend.Client, opts ...Option) *Cache {
	c := &Cache{
		client: client,
		prefix: "quicklook:",
		ttl:    defaultTTL,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// ContentKey derives a stable cache key from the parts that define a query:
// operation id plus the submitted name/value pairs. Order of parts does not
// matter.
func ContentKey(operation string, parts map[string][]string) string {
	keys := make([]string, 0, len(parts))
	for key := range parts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte(operation))
	for _, key := range keys {
		values := append([]string(nil), parts[key]...)
		sort.Strings(values)
		h.Write([]byte("\x00" + key + "=" + strings.Join(values, ",")))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Cache) payloadKey(key string) string {
	return c.prefix + "result:" + key
}

func (c *Cache) tokenKey(token string) string {
	return c.prefix + "download:" + token
}

// Get fetches a cached payload. A miss or a Redis error both report found
// false; the error case is logged and otherwise invisible to the caller.
func (c *Cache) Get(ctx context.Context, key string) (Payload, bool) {
	fields, err := c.client.HGetAll(ctx, c.payloadKey(key)).Result()
	if err != nil {
		c.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return Payload{}, false
	}
	if len(fields) == 0 {
		return Payload{}, false
	}
	return Payload{
		ContentType: fields["content_type"],
		Filename:    fields["filename"],
		Body:        []byte(fields["body"]),
	}, true
}

// Put stores a payload under key. Failures are logged and swallowed.
func (c *Cache) Put(ctx context.Context, key string, payload Payload) {
	full := c.payloadKey(key)
	pipe := c.client.Pipeline()
	pipe.HSet(ctx, full, map[string]any{
		"content_type": payload.ContentType,
		"filename":     payload.Filename,
		"body":         payload.Body,
	})
	pipe.Expire(ctx, full, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("cache put failed", zap.String("key", key), zap.Error(err))
	}
}

// IssueToken stores a payload under a fresh download token and returns the
// token. The token shares the cache TTL, so a stale download link expires
// with its page.
func (c *Cache) IssueToken(ctx context.Context, payload Payload) (string, error) {
	token := uuid.NewString()
	full := c.tokenKey(token)
	pipe := c.client.Pipeline()
	pipe.HSet(ctx, full, map[string]any{
		"content_type": payload.ContentType,
		"filename":     payload.Filename,
		"body":         payload.Body,
	})
	pipe.Expire(ctx, full, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("cache: issue token: %w", err)
	}
	return token, nil
}

// Redeem fetches the payload for a download token and consumes it. Tokens
// are one-shot: a second redeem, or an unknown or expired token, reports
// found false.
func (c *Cache) Redeem(ctx context.Context, token string) (Payload, bool) {
	if _, err := uuid.Parse(token); err != nil {
		return Payload{}, false
	}
	full := c.tokenKey(token)
	pipe := c.client.TxPipeline()
	read := pipe.HGetAll(ctx, full)
	pipe.Del(ctx, full)
	if _, err := pipe.Exec(ctx); err != nil {
		if !errors.Is(err, backend.Nil) {
			c.logger.Warn("cache redeem failed", zap.String("token", token), zap.Error(err))
		}
		return Payload{}, false
	}
	fields := read.Val()
	if len(fields) == 0 {
		return Payload{}, false
	}
	return Payload{
		ContentType: fields["content_type"],
		Filename:    fields["filename"],
		Body:        []byte(fields["body"]),
	}, true
}
