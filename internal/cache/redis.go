package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"empiria/internal/models"
)

// Client caches completed checkout-status lookups so the confirmation
// page's bounded polling does not hammer the orders table.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

type Config struct {
	Addr     string
	Password string
	DB       int
	TTLMin   int
}

func NewClient(cfg Config) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := time.Duration(cfg.TTLMin) * time.Minute
	if ttl == 0 {
		ttl = 30 * time.Minute
	}

	return &Client{rdb: rdb, ttl: ttl}, nil
}

func statusKey(sessionID string) string {
	return "checkout:status:" + sessionID
}

// GetCheckoutStatus returns the cached status for a session, or an error
// on a miss.
func (c *Client) GetCheckoutStatus(ctx context.Context, sessionID string) (*models.CheckoutStatusResponse, error) {
	raw, err := c.rdb.Get(ctx, statusKey(sessionID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("checkout status not cached")
		}
		return nil, fmt.Errorf("cache lookup error: %w", err)
	}

	var status models.CheckoutStatusResponse
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return nil, fmt.Errorf("invalid cached status: %w", err)
	}

	return &status, nil
}

// SetCheckoutStatus caches a status. Only terminal statuses should be
// cached; "processing" results must stay fresh.
func (c *Client) SetCheckoutStatus(ctx context.Context, sessionID string, status *models.CheckoutStatusResponse) error {
	raw, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	return c.rdb.Set(ctx, statusKey(sessionID), raw, c.ttl).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
