// Package client is the entry point of the Kadoa SDK.
//
// A Client owns its HTTP transport, its event bus and one instance of every
// service; nothing is cached at package level, so clients with different
// keys or endpoints can coexist in one process.
//
//	c, err := client.New(client.DefaultBaseURL).WithAPIKey(key).Build(ctx)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//	status, err := c.WaitForCompletion(ctx, workflowID)
package client

import (
	"context"
	"sync"

	"github.com/kadoa-org/kadoa-sdk-go/pkg/logger"
	"github.com/kadoa-org/kadoa-sdk-go/pkg/monitoring"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/crawler"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/events"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/extraction"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/internal/transport"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/notification"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/poll"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/realtime"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/schema"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/sdkerrors"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/user"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/validation"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/workflow"
)

// Client talks to one Kadoa workspace.
type Client struct {
	api         *transport.Client
	bus         *events.Bus
	publisher   events.Publisher
	redis       *events.RedisPublisher
	metrics     *monitoring.SDKMetrics
	log         logger.Logger
	polling     poll.Options
	realtimeCfg realtime.Config

	workflows     *workflow.Service
	extraction    *extraction.Service
	schemas       *schema.Service
	notifications *Notifications
	crawler       *crawler.Service
	validation    *validation.Service
	users         *user.Service

	mu     sync.Mutex
	rt     *realtime.Client
	closed bool
}

// Notifications groups the notification services.
type Notifications struct {
	channels *notification.Channels
	settings *notification.SettingsService
	setup    *notification.Setup
}

func (n *Notifications) Channels() *notification.Channels {
	return n.channels
}

func (n *Notifications) Settings() *notification.SettingsService {
	return n.settings
}

// Setup creates channels and settings for a workflow in one call.
func (n *Notifications) Setup(ctx context.Context, opts notification.Options) ([]notification.Settings, error) {
	return n.setup.Setup(ctx, opts)
}

func newClient(b Builder) (*Client, error) {
	api, err := transport.New(transport.Config{
		BaseURL:      b.baseURL,
		APIKey:       b.apiKey,
		Timeout:      b.timeout,
		RetryCount:   b.retry.Count,
		RetryWait:    b.retry.Wait,
		RetryMaxWait: b.retry.MaxWait,
		RateLimit:    b.rateLimit,
		RateBurst:    b.rateBurst,
		HTTPClient:   b.httpClient,
		Metrics:      b.metrics,
		Logger:       b.log,
		Debug:        b.debug,
	})
	if err != nil {
		return nil, sdkerrors.Wrap(sdkerrors.CodeConfig, "create transport", err)
	}
	bus := events.NewBus()
	fanout := events.Fanout{bus}
	fanout = append(fanout, b.publishers...)
	if b.redis != nil {
		fanout = append(fanout, b.redis)
	}
	c := &Client{
		api:         api,
		bus:         bus,
		publisher:   fanout,
		redis:       b.redis,
		metrics:     b.metrics,
		log:         b.log,
		polling:     b.polling,
		realtimeCfg: b.realtime,
		schemas:     schema.NewService(api),
		crawler:     crawler.NewService(api),
		validation:  validation.NewService(api),
		users:       user.NewService(api),
	}
	c.workflows = workflow.NewService(api,
		workflow.WithPublisher(fanout),
		workflow.WithTerminalStates(workflow.NewTerminalSet(b.terminalStates...)),
		workflow.WithMetrics(b.metrics),
	)
	channels := notification.NewChannels(api, c.users)
	settings := notification.NewSettings(api)
	c.notifications = &Notifications{
		channels: channels,
		settings: settings,
		setup:    notification.NewSetup(channels, settings),
	}
	c.extraction = extraction.NewService(
		c.workflows,
		extraction.NewDataFetcher(api),
		extraction.NewEntityResolver(api, c.schemas, fanout),
		extraction.WithPublisher(fanout),
		extraction.WithNotificationSetup(c.notifications),
	)
	return c, nil
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.api.BaseURL()
}

// Polling returns the default wait interval and budget.
func (c *Client) Polling() poll.Options {
	return c.polling
}

func (c *Client) Workflows() *workflow.Service {
	return c.workflows
}

func (c *Client) Extraction() *extraction.Service {
	return c.extraction
}

func (c *Client) Schemas() *schema.Service {
	return c.schemas
}

func (c *Client) Notifications() *Notifications {
	return c.notifications
}

func (c *Client) Crawler() *crawler.Service {
	return c.crawler
}

func (c *Client) Validation() *validation.Service {
	return c.validation
}

func (c *Client) User() *user.Service {
	return c.users
}

// Events returns the bus receiving every event the client publishes.
func (c *Client) Events() *events.Bus {
	return c.bus
}

// Extract starts an extraction description that waits with the client's polling defaults.
func (c *Client) Extract(urls ...string) extraction.Builder {
	return extraction.New(urls...).WithPolling(c.polling)
}

// WaitForCompletion waits for workflowID with the client's polling defaults.
func (c *Client) WaitForCompletion(ctx context.Context, workflowID string) (workflow.Status, error) {
	return c.workflows.WaitForCompletion(ctx, workflowID, c.polling)
}

// ConnectRealtime opens the realtime channel, or reuses the open one.
// Frames are forwarded to the event bus as realtime:event.
func (c *Client) ConnectRealtime(ctx context.Context) (*realtime.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, sdkerrors.New(sdkerrors.CodeConfig, "client is closed")
	}
	ctx = logger.ContextWithLogger(ctx, logger.FromContextOr(ctx, c.log))
	if c.rt != nil {
		if err := c.rt.Connect(ctx); err != nil {
			return nil, err
		}
		return c.rt, nil
	}
	rt := realtime.New(c.api, c.realtimeCfg,
		realtime.WithPublisher(c.publisher),
		realtime.WithMetrics(c.metrics),
	)
	if err := rt.Connect(ctx); err != nil {
		_ = rt.Close()
		return nil, err
	}
	c.rt = rt
	return rt, nil
}

// DisconnectRealtime closes the realtime channel if one is open.
func (c *Client) DisconnectRealtime() error {
	c.mu.Lock()
	rt := c.rt
	c.rt = nil
	c.mu.Unlock()
	if rt == nil {
		return nil
	}
	return rt.Close()
}

// IsRealtimeConnected reports whether the realtime socket is open.
func (c *Client) IsRealtimeConnected() bool {
	c.mu.Lock()
	rt := c.rt
	c.mu.Unlock()
	return rt != nil && rt.IsConnected()
}

// Close disconnects realtime and closes the Redis publisher. It is safe to call twice.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	rtErr := c.DisconnectRealtime()
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			return err
		}
	}
	return rtErr
}
