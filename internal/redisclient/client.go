package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/apply_stock_delta.lua
var applyStockDeltaScript string

type Client struct {
	rdb         *redis.Client
	deltaScript *redis.Script
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

	return NewFromRedis(rdb), nil
}

// NewFromRedis wraps an existing connection
func NewFromRedis(rdb *redis.Client) *Client {
	return &Client{
		rdb:         rdb,
		deltaScript: redis.NewScript(applyStockDeltaScript),
	}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func inventoryKey(productID int64) string {
	return fmt.Sprintf("inventory:%d", productID)
}

// SetStock overwrites the mirrored available count for a product
func (c *Client) SetStock(ctx context.Context, productID int64, available int) error {
	return c.rdb.HSet(ctx, inventoryKey(productID), "available", available).Err()
}

// GetStock reads the mirrored available count. ok is false when the product is not mirrored.
func (c *Client) GetStock(ctx context.Context, productID int64) (available int, ok bool, err error) {
	val, err := c.rdb.HGet(ctx, inventoryKey(productID), "available").Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	available, err = strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt inventory value for product %d: %w", productID, err)
	}
	return available, true, nil
}

// ApplyStockDelta atomically adds delta to a mirrored product, clamping at zero.
// Returns false if the product is not mirrored.
func (c *Client) ApplyStockDelta(ctx context.Context, productID int64, delta int) (bool, error) {
	result, err := c.deltaScript.Run(ctx, c.rdb, []string{inventoryKey(productID)}, delta).Result()
	if err != nil {
		return false, fmt.Errorf("apply stock delta script failed: %w", err)
	}

	available, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type")
	}

	return available >= 0, nil
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("idempotency:%s", key)
}

// GetIdempotentOrder returns the order id stored under an idempotency key
func (c *Client) GetIdempotentOrder(ctx context.Context, key string) (int64, bool, error) {
	id, err := c.rdb.Get(ctx, idempotencyKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// SetIdempotentOrder stores an order id under an idempotency key with TTL
func (c *Client) SetIdempotentOrder(ctx context.Context, key string, orderID int64, ttl time.Duration) error {
	return c.rdb.Set(ctx, idempotencyKey(key), orderID, ttl).Err()
}

// MarkEventProcessed records an event id and reports whether this is its first sighting
func (c *Client) MarkEventProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("event:%s", eventID), "1", ttl).Result()
}

// UnmarkEventProcessed forgets an event id so it can be processed again
func (c *Client) UnmarkEventProcessed(ctx context.Context, eventID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("event:%s", eventID)).Err()
}
