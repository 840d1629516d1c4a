package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/igniter-labs/igniterx/pkg/retry"
	"github.com/igniter-labs/igniterx/pkg/utils"
)

// DefaultStreamMaxLen bounds each provider notification stream.
const DefaultStreamMaxLen = 10000

// Config selects the server holding the notification streams. URL wins over the discrete
// fields when set.
type Config struct {
	URL          string
	Host         string
	Port         string
	Password     string
	DB           int
	StreamMaxLen int64
}

// ConfigFromEnv reads REDIS_URL, or REDIS_HOST, REDIS_PORT, REDIS_PASSWORD and REDIS_DB,
// plus REDIS_STREAM_MAXLEN (0 disables trimming).
func ConfigFromEnv() Config {
	return Config{
		URL:          utils.Env("REDIS_URL", ""),
		Host:         utils.Env("REDIS_HOST", "localhost"),
		Port:         utils.Env("REDIS_PORT", "6379"),
		Password:     utils.Env("REDIS_PASSWORD", ""),
		DB:           utils.EnvInt("REDIS_DB", 0),
		StreamMaxLen: utils.EnvInt64("REDIS_STREAM_MAXLEN", DefaultStreamMaxLen),
	}
}

func (c Config) options() (*redis.Options, error) {
	opts := &redis.Options{
		Addr:     fmt.Sprintf("%s:%s", c.Host, c.Port),
		Password: c.Password,
		DB:       c.DB,
	}
	if c.URL != "" {
		parsed, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		opts = parsed
	}
	opts.PoolSize = 10
	opts.MinIdleConns = 2
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	return opts, nil
}

// Client is the stream surface the notifier and the provider consumer share.
type Client struct {
	client       *redis.Client
	logger       *zap.Logger
	streamMaxLen int64
}

// NewClient connects with ConfigFromEnv, retrying while the server is unreachable.
func NewClient(ctx context.Context, logger *zap.Logger) (*Client, error) {
	cfg := ConfigFromEnv()
	if _, err := cfg.options(); err != nil {
		return nil, err
	}
	var c *Client
	err := retry.WithBackoff(ctx, retry.DefaultConfig(), logger, "redis_connection", func() error {
		var err error
		c, err = Connect(ctx, logger, cfg)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Connect dials cfg and fails unless the server answers a ping within five seconds.
func Connect(ctx context.Context, logger *zap.Logger, cfg Config) (*Client, error) {
	opts, err := cfg.options()
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}

	logger.Info("Connected to Redis",
		zap.String("addr", opts.Addr),
		zap.Int("db", opts.DB),
		zap.Int64("streamMaxLen", cfg.StreamMaxLen))

	return Wrap(rdb, logger, cfg.StreamMaxLen), nil
}

// Wrap adopts an existing go-redis client.
func Wrap(rdb *redis.Client, logger *zap.Logger, streamMaxLen int64) *Client {
	return &Client{client: rdb, logger: logger, streamMaxLen: streamMaxLen}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// XAdd appends an entry to stream, trimming it approximately to the configured length, and
// returns the entry id.
func (c *Client) XAdd(ctx context.Context, stream string, values map[string]interface{}) (string, error) {
	args := &redis.XAddArgs{Stream: stream, Values: values}
	if c.streamMaxLen > 0 {
		args.MaxLen = c.streamMaxLen
		args.Approx = true
	}
	id, err := c.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", stream, err)
	}
	return id, nil
}

// XReadGroup reads entries of stream for a consumer of group. ">" reads entries never
// delivered, "0" re-reads the consumer's pending entries.
func (c *Client) XReadGroup(ctx context.Context, group, consumer, stream, id string, count int64, block time.Duration) ([]redis.XStream, error) {
	return c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, id},
		Count:    count,
		Block:    block,
	}).Result()
}

func (c *Client) XAck(ctx context.Context, stream, group string, ids ...string) (int64, error) {
	return c.client.XAck(ctx, stream, group, ids...).Result()
}

// XGroupCreateMkStream creates group and its stream. An existing group is not an error.
func (c *Client) XGroupCreateMkStream(ctx context.Context, stream, group, start string) error {
	err := c.client.XGroupCreateMkStream(ctx, stream, group, start).Err()
	if err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

// XPending returns how many entries of group were delivered but not acknowledged.
func (c *Client) XPending(ctx context.Context, stream, group string) (int64, error) {
	res, err := c.client.XPending(ctx, stream, group).Result()
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}

func (c *Client) XLen(ctx context.Context, stream string) (int64, error) {
	return c.client.XLen(ctx, stream).Result()
}

// XRange returns up to count entries between start and end inclusive ("-" and "+" for the
// whole stream).
func (c *Client) XRange(ctx context.Context, stream, start, end string, count int64) ([]redis.XMessage, error) {
	return c.client.XRangeN(ctx, stream, start, end, count).Result()
}
