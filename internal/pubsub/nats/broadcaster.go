package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"p2pstats/internal/config"
	"p2pstats/internal/pubsub"

	"github.com/nats-io/nats.go"
	"gitlab.com/nevasik7/alerting/logger"
)

var _ pubsub.Broadcaster = (*Client)(nil)

var ErrNotConnected = errors.New("nats not connected")

type Client struct {
	nc     *nats.Conn
	log    logger.Logger
	prefix string
}

func New(log logger.Logger, cfg *config.NATSConfig) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("nats config is required")
	}

	url := cfg.URL
	if url == "" {
		return nil, errors.New("nats url is required")
	}

	opts := []nats.Option{
		nats.Name("p2p-stats"),
		nats.Timeout(5 * time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1), // endless reconnects
		nats.ReconnectWait(2 * time.Second),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Client{
		nc:     nc,
		log:    log,
		prefix: cfg.SubjectPrefix,
	}, nil
}

// Publish marshals data as JSON and publishes it under prefix+subject
func (c *Client) Publish(_ context.Context, subject string, data interface{}) error {
	if !c.Ready() {
		return ErrNotConnected
	}

	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal broadcast payload: %w", err)
	}

	if err = c.nc.Publish(c.prefix+subject, b); err != nil {
		c.log.Errorf("Failed to publish to %s%s, error=%v", c.prefix, subject, err)
		return fmt.Errorf("nats publish: %w", err)
	}

	return nil
}

func (c *Client) Health(_ context.Context) error {
	if !c.Ready() {
		return ErrNotConnected
	}
	return nil
}

func (c *Client) Ready() bool {
	if c.nc == nil {
		return false
	}
	return c.nc.Status() == nats.CONNECTED
}

func (c *Client) Status() nats.Status {
	if c.nc == nil {
		return nats.DISCONNECTED
	}
	return c.nc.Status()
}

func (c *Client) Close() error {
	if c.nc == nil {
		return nil
	}

	if c.nc.Status() == nats.CLOSED {
		return nil
	}

	if err := c.nc.Drain(); err != nil {
		c.log.Errorf("Failed to drain connection to NATS, error=%v", err)
		c.nc.Close()
		return fmt.Errorf("failed to drain connection to NATS: %w", err)
	}

	c.nc.Close()
	c.log.Infof("NATS connection closed gracefully")
	return nil
}
