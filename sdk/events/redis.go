package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kadoa-org/kadoa-sdk-go/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RedisPublisher forwards events to a Redis channel and keeps a bounded backlog for replay.
type RedisPublisher struct {
	client     redis.UniversalClient
	channel    string
	logKey     string
	seqKey     string
	maxEntries int64
	ttl        time.Duration
	owned      bool
}

// RedisOptions controls Redis publisher behavior.
type RedisOptions struct {
	Channel    string
	MaxEntries int64
	TTL        time.Duration
}

const (
	defaultChannel    = "kadoa:events"
	defaultMaxEntries = 500
	defaultTTL        = 24 * time.Hour
)

// NewRedisPublisher constructs a publisher over an existing client.
func NewRedisPublisher(client redis.UniversalClient, opts *RedisOptions) (*RedisPublisher, error) {
	if client == nil {
		return nil, errors.New("events: redis client is required")
	}
	cfg := applyRedisDefaults(opts)
	if cfg.MaxEntries <= 0 {
		return nil, fmt.Errorf("events: max entries must be > 0 (got %d)", cfg.MaxEntries)
	}
	return &RedisPublisher{
		client:     client,
		channel:    cfg.Channel,
		logKey:     cfg.Channel + ":log",
		seqKey:     cfg.Channel + ":seq",
		maxEntries: cfg.MaxEntries,
		ttl:        cfg.TTL,
	}, nil
}

// DialRedisPublisher connects to redisURL, verifies the connection and returns a
// publisher that closes the connection on Close.
func DialRedisPublisher(ctx context.Context, redisURL string, opts *RedisOptions) (*RedisPublisher, error) {
	parsed, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("events: parse redis url: %w", err)
	}
	client := redis.NewClient(parsed)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("events: connect redis: %w", err)
	}
	p, err := NewRedisPublisher(client, opts)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	p.owned = true
	return p, nil
}

// Publish stores and broadcasts event; failures are logged.
func (p *RedisPublisher) Publish(ctx context.Context, event Event) {
	if _, err := p.Append(ctx, event); err != nil {
		logger.FromContext(ctx).Warn("failed to forward event to redis",
			"event", string(event.Type),
			"error", err,
		)
	}
}

// Append stores event in the backlog and broadcasts it to channel subscribers.
func (p *RedisPublisher) Append(ctx context.Context, event Event) (Envelope, error) {
	if p == nil {
		return Envelope{}, errors.New("events: publisher is nil")
	}
	id, err := p.client.Incr(ctx, p.seqKey).Result()
	if err != nil {
		return Envelope{}, fmt.Errorf("events: increment seq: %w", err)
	}
	envelope, err := NewEnvelope(id, event)
	if err != nil {
		return Envelope{}, err
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal envelope: %w", err)
	}
	pipe := p.client.TxPipeline()
	pipe.LPush(ctx, p.logKey, payload)
	pipe.LTrim(ctx, p.logKey, 0, p.maxEntries-1)
	if p.ttl > 0 {
		pipe.Expire(ctx, p.logKey, p.ttl)
		pipe.Expire(ctx, p.seqKey, p.ttl)
	}
	pipe.Publish(ctx, p.channel, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return Envelope{}, fmt.Errorf("events: persist event: %w", err)
	}
	return envelope, nil
}

// Replay returns stored envelopes with id greater than afterID in ascending order.
func (p *RedisPublisher) Replay(ctx context.Context, afterID int64, limit int) ([]Envelope, error) {
	if p == nil {
		return nil, errors.New("events: publisher is nil")
	}
	if limit <= 0 || int64(limit) > p.maxEntries {
		limit = int(p.maxEntries)
	}
	values, err := p.client.LRange(ctx, p.logKey, 0, p.maxEntries-1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("events: fetch backlog: %w", err)
	}
	result := make([]Envelope, 0, min(len(values), limit))
	for i := len(values) - 1; i >= 0; i-- {
		var envelope Envelope
		if err := json.Unmarshal([]byte(values[i]), &envelope); err != nil {
			continue
		}
		if envelope.ID <= afterID {
			continue
		}
		result = append(result, envelope)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

// Listen delivers envelopes broadcast on the channel until ctx is done.
func (p *RedisPublisher) Listen(ctx context.Context, fn func(Envelope)) error {
	sub := p.client.Subscribe(ctx, p.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("events: subscribe %s: %w", p.channel, err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var envelope Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				logger.FromContext(ctx).Debug("skipping malformed event", "error", err)
				continue
			}
			fn(envelope)
		}
	}
}

// Channel returns the pub/sub channel name.
func (p *RedisPublisher) Channel() string {
	return p.channel
}

// Close releases the connection when the publisher dialed it.
func (p *RedisPublisher) Close() error {
	if p == nil || !p.owned {
		return nil
	}
	return p.client.Close()
}

func applyRedisDefaults(opts *RedisOptions) RedisOptions {
	if opts == nil {
		return RedisOptions{Channel: defaultChannel, MaxEntries: defaultMaxEntries, TTL: defaultTTL}
	}
	cfg := *opts
	if cfg.Channel == "" {
		cfg.Channel = defaultChannel
	}
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = defaultMaxEntries
	}
	if cfg.TTL == 0 {
		cfg.TTL = defaultTTL
	}
	return cfg
}
