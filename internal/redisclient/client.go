package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/reserve_stock.lua
var reserveStockScript string

//go:embed scripts/release_stock.lua
var releaseStockScript string

// GateResult is the outcome of a fast-path stock reservation.
type GateResult int

const (
	// GateUnknown means the mirror has no entry for the combination and the
	// database must decide.
	GateUnknown GateResult = iota
	// GateRejected means the mirror does not hold enough stock.
	GateRejected
	// GateAccepted means the quantity was taken from the mirror.
	GateAccepted
)

type Client struct {
	rdb           *redis.Client
	reserveScript *redis.Script
	releaseScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return Wrap(rdb), nil
}

// Wrap builds a Client around an existing connection.
func Wrap(rdb *redis.Client) *Client {
	return &Client{
		rdb:           rdb,
		reserveScript: redis.NewScript(reserveStockScript),
		releaseScript: redis.NewScript(releaseStockScript),
	}
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection, used by readiness probes.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func stockKey(productID string) string {
	return "stock:" + productID
}

// ReserveStock atomically takes quantity from the mirrored availability of
// one color/size field.
func (c *Client) ReserveStock(ctx context.Context, productID, field string, quantity int) (GateResult, error) {
	result, err := c.reserveScript.Run(ctx, c.rdb, []string{stockKey(productID)}, field, quantity).Int64()
	if err != nil {
		return GateUnknown, fmt.Errorf("reserve stock script failed: %w", err)
	}

	switch result {
	case 1:
		return GateAccepted, nil
	case 0:
		return GateRejected, nil
	default:
		return GateUnknown, nil
	}
}

// ReleaseStock atomically gives quantity back to a mirrored field
// (compensation).
func (c *Client) ReleaseStock(ctx context.Context, productID, field string, quantity int) error {
	if err := c.releaseScript.Run(ctx, c.rdb, []string{stockKey(productID)}, field, quantity).Err(); err != nil {
		return fmt.Errorf("release stock script failed: %w", err)
	}
	return nil
}

// SyncProductStock replaces the mirror of one product with the given
// availability per field.
func (c *Client) SyncProductStock(ctx context.Context, productID string, available map[string]int) error {
	key := stockKey(productID)

	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, key)
	if len(available) > 0 {
		values := make(map[string]interface{}, len(available))
		for field, n := range available {
			values[field] = n
		}
		pipe.HSet(ctx, key, values)
	}

	_, err := pipe.Exec(ctx)
	return err
}

// DeleteProductStock drops the mirror of a product.
func (c *Client) DeleteProductStock(ctx context.Context, productID string) error {
	return c.rdb.Del(ctx, stockKey(productID)).Err()
}

// GetProductStock retrieves the mirrored availability of a product.
func (c *Client) GetProductStock(ctx context.Context, productID string) (map[string]int, error) {
	result, err := c.rdb.HGetAll(ctx, stockKey(productID)).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[string]int, len(result))
	for field, raw := range result {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt stock field %s: %w", field, err)
		}
		out[field] = n
	}
	return out, nil
}

// SetIdempotencyKey stores the order ID created for an idempotency key
func (c *Client) SetIdempotencyKey(ctx context.Context, key, orderID string, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("idempotency:%s", key), orderID, ttl).Err()
}

// GetIdempotencyKey returns the order ID stored for a key, or "" if none.
func (c *Client) GetIdempotencyKey(ctx context.Context, key string) (string, error) {
	orderID, err := c.rdb.Get(ctx, fmt.Sprintf("idempotency:%s", key)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return orderID, err
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
