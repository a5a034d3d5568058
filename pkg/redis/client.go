package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/marketcore/pkg/config"
	"github.com/angelmondragon/marketcore/pkg/logger"
)

const (
	keyNamespace = "mc"
	intentPrefix = "payment_intent"
)

// releaseScript deletes KEYS[1] only while it still holds ARGV[1].
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) end return 0`

var errNotInitialized = errors.New("redis client not initialized")

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// Client wraps the redis helpers used by order operations.
type Client struct {
	store cmdable
	raw   *redis.Client
}

// New bootstraps a Redis client with pooling/timeouts and verifies connectivity.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if logg != nil {
		logg.Info(ctx, "redis connection established")
	}
	return &Client{store: raw, raw: raw}, nil
}

func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	if cfg.URL == "" && cfg.Address == "" {
		return nil, errors.New("redis url or address is required")
	}
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	if opts.DB == 0 {
		opts.DB = cfg.DB
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

// Get returns the value stored at key, or redis.Nil when absent.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c.store == nil {
		return "", errNotInitialized
	}
	return c.store.Get(ctx, key).Result()
}

// SetNX sets a value only if the key does not exist yet.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if c.store == nil {
		return false, errNotInitialized
	}
	return c.store.SetNX(ctx, key, value, ttl).Result()
}

// IntentClaim is the outcome of ClaimIntent.
type IntentClaim struct {
	// Granted is true when orderID holds the intent.
	Granted bool
	// Fresh is true when this call created the claim.
	Fresh bool
	Owner string
}

// ClaimIntent records that intentID settles orderID. The claim is refused,
// naming the current owner, when another order already holds the intent.
func (c *Client) ClaimIntent(ctx context.Context, intentID, orderID string, ttl time.Duration) (IntentClaim, error) {
	key := c.IntentKey(intentID)
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := c.SetNX(ctx, key, orderID, ttl)
		if err != nil {
			return IntentClaim{}, err
		}
		if ok {
			return IntentClaim{Granted: true, Fresh: true, Owner: orderID}, nil
		}
		owner, err := c.Get(ctx, key)
		if errors.Is(err, redis.Nil) {
			// expired between the two calls
			continue
		}
		if err != nil {
			return IntentClaim{}, err
		}
		return IntentClaim{Granted: owner == orderID, Owner: owner}, nil
	}
	return IntentClaim{}, fmt.Errorf("claim intent %s: key churned", intentID)
}

// ReleaseIntent drops the claim on intentID if orderID still holds it. It
// reports whether a claim was removed.
func (c *Client) ReleaseIntent(ctx context.Context, intentID, orderID string) (bool, error) {
	if c.store == nil {
		return false, errNotInitialized
	}
	n, err := c.store.Eval(ctx, releaseScript, []string{c.IntentKey(intentID)}, orderID).Int64()
	if err != nil {
		return false, fmt.Errorf("release intent %s: %w", intentID, err)
	}
	return n > 0, nil
}

// IntentKey returns the namespaced key guarding a payment intent.
func (c *Client) IntentKey(intentID string) string {
	return c.buildKey(intentPrefix, intentID)
}

// Ping verifies the connection.
func (c *Client) Ping(ctx context.Context) error {
	if c.store == nil {
		return errNotInitialized
	}
	return c.store.Ping(ctx).Err()
}

// Close shuts down the underlying client if available.
func (c *Client) Close() error {
	if c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

func (c *Client) buildKey(parts ...string) string {
	clean := []string{keyNamespace}
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		clean = append(clean, part)
	}
	return strings.Join(clean, ":")
}
