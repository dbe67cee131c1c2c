package kurrentdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/EventStore/EventStore-Client-Go/v4/esdb"
)

// Client wraps the EventStore client used to append workflow events.
type Client struct {
	mu     sync.RWMutex
	db     *esdb.Client
	prefix string
}

// Dial creates the client and verifies the server answers.
func Dial(ctx context.Context, cfg *Config) (*Client, error) {
	settings, err := esdb.ParseConnectionString(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	db, err := esdb.NewClient(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	c := &Client{db: db, prefix: cfg.StreamPrefix}
	if err := c.HealthCheck(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// AppendToStream appends events with no expected revision.
func (c *Client) AppendToStream(ctx context.Context, stream string, events ...esdb.EventData) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.db == nil {
		return 0, fmt.Errorf("kurrentdb client closed")
	}
	res, err := c.db.AppendToStream(ctx, stream, esdb.AppendToStreamOptions{
		ExpectedRevision: esdb.Any{},
	}, events...)
	if err != nil {
		return 0, err
	}
	return res.NextExpectedVersion, nil
}

// StreamPrefix is the configured stream namespace.
func (c *Client) StreamPrefix() string {
	return c.prefix
}

// Close closes the client connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// HealthCheck verifies the connection is alive by reading the $streams system stream.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil {
		return fmt.Errorf("kurrentdb client closed")
	}

	stream, err := c.db.ReadStream(ctx, "$streams", esdb.ReadStreamOptions{
		From:      esdb.Start{},
		Direction: esdb.Forwards,
	}, 1)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	stream.Close()

	return nil
}
