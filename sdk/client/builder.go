package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/kadoa-org/kadoa-sdk-go/pkg/config"
	"github.com/kadoa-org/kadoa-sdk-go/pkg/logger"
	"github.com/kadoa-org/kadoa-sdk-go/pkg/monitoring"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/events"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/internal/validate"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/poll"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/realtime"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/sdkerrors"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/workflow"
)

const (
	// DefaultBaseURL is the public Kadoa API.
	DefaultBaseURL = "https://api.kadoa.com"
	defaultTimeout = 30 * time.Second
)

// RetryPolicy retries transient HTTP failures. Status polls never retry.
type RetryPolicy struct {
	Count   int
	Wait    time.Duration
	MaxWait time.Duration
}

// Builder configures a Client. Every method returns a new Builder; Build
// validates the configuration once.
type Builder struct {
	baseURL        string
	apiKey         string
	timeout        time.Duration
	retry          RetryPolicy
	rateLimit      float64
	rateBurst      int
	polling        poll.Options
	terminalStates []string
	log            logger.Logger
	metrics        *monitoring.SDKMetrics
	publishers     []events.Publisher
	redis          *events.RedisPublisher
	realtime       realtime.Config
	httpClient     *http.Client
	debug          bool
}

// New starts a client for baseURL with default timeout, polling and realtime endpoints.
func New(baseURL string) Builder {
	return Builder{
		baseURL:        strings.TrimSpace(baseURL),
		timeout:        defaultTimeout,
		retry:          RetryPolicy{Wait: 100 * time.Millisecond, MaxWait: 2 * time.Second},
		rateBurst:      1,
		polling:        poll.Options{Interval: 5 * time.Second, MaxWait: 5 * time.Minute},
		terminalStates: slices.Clone(workflow.DefaultTerminalStates),
		realtime:       realtime.DefaultConfig(),
	}
}

func (b Builder) clone() Builder {
	next := b
	next.terminalStates = slices.Clone(b.terminalStates)
	next.publishers = slices.Clone(b.publishers)
	return next
}

func (b Builder) WithAPIKey(key string) Builder {
	next := b.clone()
	next.apiKey = strings.TrimSpace(key)
	return next
}

func (b Builder) WithTimeout(d time.Duration) Builder {
	next := b.clone()
	next.timeout = d
	return next
}

func (b Builder) WithRetry(policy RetryPolicy) Builder {
	next := b.clone()
	next.retry = policy
	return next
}

// WithRateLimit caps requests per second; zero disables limiting.
func (b Builder) WithRateLimit(perSecond float64, burst int) Builder {
	next := b.clone()
	next.rateLimit = perSecond
	next.rateBurst = burst
	return next
}

// WithLogger sets the logger used when a call's context carries none.
func (b Builder) WithLogger(l logger.Logger) Builder {
	next := b.clone()
	next.log = l
	return next
}

// WithPolling sets the default wait interval and budget.
func (b Builder) WithPolling(opts poll.Options) Builder {
	next := b.clone()
	next.polling = opts
	return next
}

// WithTerminalStates replaces the run states that end a workflow wait.
func (b Builder) WithTerminalStates(states ...string) Builder {
	next := b.clone()
	next.terminalStates = slices.Clone(states)
	return next
}

func (b Builder) WithMetrics(m *monitoring.SDKMetrics) Builder {
	next := b.clone()
	next.metrics = m
	return next
}

// WithPublisher adds a destination for SDK events next to the client bus.
func (b Builder) WithPublisher(p events.Publisher) Builder {
	next := b.clone()
	if p != nil {
		next.publishers = append(next.publishers, p)
	}
	return next
}

// WithRedisPublisher forwards SDK events to Redis. The client closes it on Close.
func (b Builder) WithRedisPublisher(p *events.RedisPublisher) Builder {
	next := b.clone()
	next.redis = p
	return next
}

func (b Builder) WithRealtime(cfg realtime.Config) Builder {
	next := b.clone()
	next.realtime = cfg
	return next
}

func (b Builder) WithHTTPClient(c *http.Client) Builder {
	next := b.clone()
	next.httpClient = c
	return next
}

// WithDebug dumps HTTP exchanges to the transport log.
func (b Builder) WithDebug(enabled bool) Builder {
	next := b.clone()
	next.debug = enabled
	return next
}

// Build validates the configuration and creates the client.
func (b Builder) Build(ctx context.Context) (*Client, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}
	log := logger.FromContextOr(ctx, b.log)
	log.Debug("building kadoa client", "base_url", b.baseURL)
	collected := make([]error, 0)
	if err := validate.URL(ctx, b.baseURL); err != nil {
		collected = append(collected, fmt.Errorf("base url: %w", err))
	}
	if err := validate.NonEmpty(ctx, "api key", b.apiKey); err != nil {
		collected = append(collected, err)
	}
	if err := validate.Duration(ctx, "timeout", b.timeout); err != nil {
		collected = append(collected, err)
	}
	if b.retry.Count < 0 {
		collected = append(collected, errors.New("retry count must not be negative"))
	}
	if b.rateLimit < 0 {
		collected = append(collected, errors.New("rate limit must not be negative"))
	}
	if err := b.polling.Validate(); err != nil {
		collected = append(collected, err)
	}
	if len(b.terminalStates) == 0 {
		collected = append(collected, errors.New("at least one terminal state is required"))
	}
	for _, state := range b.terminalStates {
		if strings.TrimSpace(state) == "" {
			collected = append(collected, errors.New("terminal states must not be blank"))
			break
		}
	}
	if b.realtime.Source != "" && b.realtime.Source != realtime.SourceStream {
		collected = append(collected, fmt.Errorf("unsupported realtime source %q", b.realtime.Source))
	}
	if len(collected) > 0 {
		return nil, &sdkerrors.BuildError{Errors: collected}
	}
	return newClient(b.clone())
}

// Option adjusts a Builder derived from configuration.
type Option func(Builder) Builder

// FromConfig builds a client from loaded configuration; opts are applied on
// top of it. When events.redis_url is set the client dials Redis and forwards
// its events there.
func FromConfig(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, sdkerrors.New(sdkerrors.CodeConfig, "configuration is required")
	}
	b := New(cfg.API.BaseURL).
		WithAPIKey(cfg.API.Key.Value()).
		WithTimeout(cfg.HTTP.Timeout).
		WithRetry(RetryPolicy{Count: cfg.HTTP.RetryCount, Wait: cfg.HTTP.RetryWait, MaxWait: cfg.HTTP.RetryMaxWait}).
		WithRateLimit(cfg.HTTP.RateLimit, cfg.HTTP.RateBurst).
		WithPolling(poll.Options{Interval: cfg.Polling.Interval, MaxWait: cfg.Polling.MaxWait}).
		WithTerminalStates(cfg.Polling.TerminalStates...).
		WithRealtime(realtime.Config{
			URL:               cfg.Realtime.URL,
			StreamURL:         cfg.Realtime.StreamURL,
			AckURL:            cfg.Realtime.AckURL,
			Source:            cfg.Realtime.Source,
			HeartbeatInterval: cfg.Realtime.HeartbeatInterval,
			HeartbeatTimeout:  cfg.Realtime.HeartbeatTimeout,
			ReconnectDelay:    cfg.Realtime.ReconnectDelay,
			MaxReconnects:     cfg.Realtime.MaxReconnects,
		})
	for _, opt := range opts {
		if opt != nil {
			b = opt(b)
		}
	}
	if url := cfg.Events.RedisURL.Value(); url != "" {
		redis, err := events.DialRedisPublisher(ctx, url, &events.RedisOptions{Channel: cfg.Events.RedisChannel})
		if err != nil {
			return nil, sdkerrors.Wrap(sdkerrors.CodeConfig, "connect event redis", err)
		}
		b = b.WithRedisPublisher(redis)
		c, err := b.Build(ctx)
		if err != nil {
			_ = redis.Close()
			return nil, err
		}
		return c, nil
	}
	return b.Build(ctx)
}
