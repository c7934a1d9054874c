// Package realtime receives platform events over a WebSocket.
//
// A Client exchanges the API key for a short lived token, subscribes to the
// team channel and keeps the socket alive: a watchdog drops connections whose
// heartbeats stop, and dropped connections are re-established with backoff
// until Close is called or the reconnect budget is spent.
//
//	rt := realtime.New(api, realtime.DefaultConfig())
//	defer rt.Close()
//	stop := rt.OnEvent(func(msg realtime.Message) {
//	    fmt.Println(msg.Type, msg.Get("data.workflowId"))
//	})
//	defer stop()
//	err := rt.Connect(ctx)
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"github.com/kadoa-org/kadoa-sdk-go/pkg/logger"
	"github.com/kadoa-org/kadoa-sdk-go/pkg/monitoring"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/events"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/internal/transport"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/sdkerrors"
	"github.com/sethvargo/go-retry"
	"github.com/tidwall/gjson"
)

const (
	reasonClosed    = "client closed"
	reasonHeartbeat = "heartbeat timeout"
	reasonServer    = "closed by server"
)

// Client is a realtime subscription. It is safe for concurrent use.
type Client struct {
	api       *transport.Client
	cfg       Config
	publisher events.Publisher
	metrics   *monitoring.SDKMetrics

	mu         sync.Mutex
	connecting bool
	cancel     context.CancelFunc
	done       chan struct{}

	connected atomic.Bool
	closed    atomic.Bool
	heartbeat atomic.Int64

	eventListeners      registry[EventListener]
	connectionListeners registry[ConnectionListener]
	errorListeners      registry[ErrorListener]
}

// Option customizes a Client.
type Option func(*Client)

// WithPublisher forwards connection changes and frames as realtime:* events.
func WithPublisher(p events.Publisher) Option {
	return func(c *Client) {
		if p != nil {
			c.publisher = p
		}
	}
}

// WithMetrics counts received frames and reconnect attempts.
func WithMetrics(m *monitoring.SDKMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates a disconnected client. api issues the token and acknowledgements.
func New(api *transport.Client, cfg Config, opts ...Option) *Client {
	c := &Client{
		api:       api,
		cfg:       cfg.withDefaults(),
		publisher: events.Discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnEvent registers a listener for delivered frames and returns its unsubscribe func.
func (c *Client) OnEvent(fn EventListener) func() {
	return c.eventListeners.add(fn)
}

// OnConnection registers a listener for connection changes.
func (c *Client) OnConnection(fn ConnectionListener) func() {
	return c.connectionListeners.add(fn)
}

// OnError registers a listener for non-fatal failures.
func (c *Client) OnError(fn ErrorListener) func() {
	return c.errorListeners.add(fn)
}

// IsConnected reports whether a subscribed socket is open.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Connect opens and subscribes the socket, then serves it in the background.
// Only the first connection attempt is reported to the caller; later
// disconnects are retried and surface through OnConnection and OnError.
// Calling Connect on a running client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return sdkerrors.New(sdkerrors.CodeConfig, "realtime client is closed")
	}
	if c.cfg.Source != "" && c.cfg.Source != SourceStream {
		return sdkerrors.New(sdkerrors.CodeConfig, "unsupported realtime source: "+c.cfg.Source)
	}
	c.mu.Lock()
	if c.connecting || c.done != nil {
		c.mu.Unlock()
		return nil
	}
	c.connecting = true
	c.mu.Unlock()

	sock, err := c.open(ctx)

	c.mu.Lock()
	c.connecting = false
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if c.closed.Load() {
		c.mu.Unlock()
		_ = sock.Close()
		return sdkerrors.New(sdkerrors.CodeConfig, "realtime client is closed")
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	c.attach(runCtx, sock)
	go c.run(runCtx, sock, done)
	return nil
}

// Close stops the client, closes the socket and drops every listener.
// It waits for the background loop, so it must not be called from a listener.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	c.eventListeners.clear()
	c.connectionListeners.clear()
	c.errorListeners.clear()
	return nil
}

// socket is a dialed connection whose reads go through the handshake reader.
type socket struct {
	net.Conn
	r      io.Reader
	teamID string
}

func (s *socket) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

func (c *Client) open(ctx context.Context) (*socket, error) {
	tok, err := transport.Do[tokenResponse](ctx, c.api, http.MethodPost, tokenPath, transport.NoRetry())
	if err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, sdkerrors.New(sdkerrors.CodeAuth, "realtime token response has no access token")
	}
	target, endpoint, err := c.socketURL(tok.AccessToken)
	if err != nil {
		return nil, err
	}
	dialer := ws.Dialer{Timeout: c.cfg.DialTimeout}
	conn, br, _, err := dialer.Dial(ctx, target)
	if err != nil {
		return nil, sdkerrors.NewNetworkError(http.MethodGet, endpoint, err)
	}
	sock := &socket{Conn: conn, r: conn, teamID: tok.TeamID}
	if br != nil {
		sock.r = br
	}
	frame, err := json.Marshal(subscribeFrame{Action: "subscribe", Channel: tok.TeamID, Source: c.cfg.Source})
	if err != nil {
		_ = conn.Close()
		return nil, sdkerrors.Wrap(sdkerrors.CodeInternal, "encode subscribe frame", err)
	}
	if err := wsutil.WriteClientText(sock, frame); err != nil {
		_ = conn.Close()
		return nil, sdkerrors.NewNetworkError(http.MethodGet, endpoint, err)
	}
	c.heartbeat.Store(time.Now().UnixNano())
	return sock, nil
}

// socketURL returns the dial target and a token free form for errors and logs.
func (c *Client) socketURL(token string) (string, string, error) {
	base, param := c.cfg.URL, "access_token"
	if c.cfg.Source == SourceStream {
		base, param = c.cfg.StreamURL, "token"
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", "", sdkerrors.Wrap(sdkerrors.CodeConfig, "invalid realtime url", err)
	}
	endpoint := u.String()
	q := u.Query()
	q.Set(param, token)
	u.RawQuery = q.Encode()
	return u.String(), endpoint, nil
}

func (c *Client) attach(ctx context.Context, sock *socket) {
	c.connected.Store(true)
	logger.FromContext(ctx).Info("realtime connected", "team_id", sock.teamID)
	c.notifyConnection(ctx, true, "")
	c.publisher.Publish(ctx, events.New(events.TypeRealtimeConnected, "", events.RealtimeConnected{TeamID: sock.teamID}))
}

func (c *Client) run(ctx context.Context, sock *socket, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		if c.done == done {
			c.cancel()
			c.cancel = nil
			c.done = nil
		}
		c.mu.Unlock()
		close(done)
	}()
	log := logger.FromContext(ctx)
	for {
		reason := c.serve(ctx, sock)
		c.connected.Store(false)
		willRetry := ctx.Err() == nil
		log.Info("realtime disconnected", "reason", reason, "will_retry", willRetry)
		c.notifyConnection(ctx, false, reason)
		c.publisher.Publish(ctx, events.New(events.TypeRealtimeDisconnected, "",
			events.RealtimeDisconnected{Reason: reason, WillRetry: willRetry}))
		if !willRetry {
			return
		}
		next, err := c.reconnect(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.reportError(ctx, sdkerrors.Wrap(sdkerrors.CodeNetwork, "realtime stopped",
					fmt.Errorf("%w: %w", ErrReconnectsExhausted, err)))
			}
			return
		}
		c.attach(ctx, next)
		sock = next
	}
}

// serve reads frames until the socket fails and returns the disconnect reason.
func (c *Client) serve(ctx context.Context, sock *socket) string {
	serveCtx, stop := context.WithCancel(ctx)
	defer stop()
	var timedOut atomic.Bool
	go func() {
		<-serveCtx.Done()
		_ = sock.Close()
	}()
	go c.watchdog(serveCtx, &timedOut, stop)
	for {
		data, _, err := wsutil.ReadServerData(sock)
		if err != nil {
			var closed wsutil.ClosedError
			switch {
			case timedOut.Load():
				return reasonHeartbeat
			case ctx.Err() != nil:
				return reasonClosed
			case errors.As(err, &closed):
				return reasonServer
			default:
				return "connection lost: " + err.Error()
			}
		}
		c.handleFrame(ctx, data)
	}
}

// watchdog drops the connection when no heartbeat arrived within HeartbeatTimeout.
func (c *Client) watchdog(ctx context.Context, timedOut *atomic.Bool, drop context.CancelFunc) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			last := time.Unix(0, c.heartbeat.Load())
			if time.Since(last) > c.cfg.HeartbeatTimeout {
				logger.FromContext(ctx).Warn("realtime heartbeat missed, closing connection",
					"last_heartbeat", last, "timeout", c.cfg.HeartbeatTimeout)
				timedOut.Store(true)
				drop()
				return
			}
		}
	}
}

func (c *Client) handleFrame(ctx context.Context, data []byte) {
	log := logger.FromContext(ctx)
	if !gjson.ValidBytes(data) {
		log.Debug("ignoring malformed realtime frame", "size", len(data))
		return
	}
	frame := gjson.ParseBytes(data)
	kind := frame.Get("type").String()
	c.metrics.RecordRealtimeEvent(ctx, kind)
	if kind == frameHeartbeat {
		c.heartbeat.Store(time.Now().UnixNano())
		log.Debug("realtime heartbeat received")
		c.publisher.Publish(ctx, events.New(events.TypeRealtimeHeartbeat, "", nil))
		return
	}
	msg := Message{
		ID:   frame.Get("id").String(),
		Type: kind,
		Raw:  json.RawMessage(append([]byte(nil), data...)),
	}
	if msg.ID != "" {
		if err := c.ack(ctx, msg.ID); err != nil {
			c.reportError(ctx, err)
		}
	}
	for _, fn := range c.eventListeners.snapshot() {
		c.safeCall(ctx, "event", func() { fn(msg) })
	}
	c.publisher.Publish(ctx, events.New(events.TypeRealtimeEvent, frame.Get("data.workflowId").String(),
		events.RealtimeMessage{ID: msg.ID, Type: msg.Type, Data: msg.Raw}))
}

func (c *Client) ack(ctx context.Context, id string) error {
	endpoint := strings.TrimRight(c.cfg.AckURL, "/") + ackPath
	return c.api.Exec(ctx, http.MethodPost, endpoint, transport.WithBody(ackRequest{ID: id}), transport.NoRetry())
}

// reconnect waits ReconnectDelay and then dials until it succeeds, ctx ends,
// or MaxReconnects attempts failed.
func (c *Client) reconnect(ctx context.Context) (*socket, error) {
	timer := time.NewTimer(c.cfg.ReconnectDelay)
	select {
	case <-ctx.Done():
		timer.Stop()
		return nil, ctx.Err()
	case <-timer.C:
	}
	backoff := retry.WithJitterPercent(10, retry.NewConstant(c.cfg.ReconnectDelay))
	if c.cfg.MaxReconnects > 0 {
		backoff = retry.WithMaxRetries(uint64(c.cfg.MaxReconnects-1), backoff) // #nosec G115 -- positive
	}
	log := logger.FromContext(ctx)
	attempt := 0
	return retry.DoValue(ctx, backoff, func(ctx context.Context) (*socket, error) {
		attempt++
		c.metrics.RecordReconnect(ctx)
		log.Info("realtime reconnecting", "attempt", attempt)
		sock, err := c.open(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			c.reportError(ctx, err)
			return nil, retry.RetryableError(err)
		}
		return sock, nil
	})
}

func (c *Client) notifyConnection(ctx context.Context, connected bool, reason string) {
	for _, fn := range c.connectionListeners.snapshot() {
		c.safeCall(ctx, "connection", func() { fn(connected, reason) })
	}
}

func (c *Client) reportError(ctx context.Context, err error) {
	logger.FromContext(ctx).Warn("realtime error", "error", err)
	for _, fn := range c.errorListeners.snapshot() {
		c.safeCall(ctx, "error", func() { fn(err) })
	}
	c.publisher.Publish(ctx, events.New(events.TypeRealtimeError, "", events.RealtimeError{Message: err.Error()}))
}

// safeCall runs a listener and logs instead of propagating its panic.
func (c *Client) safeCall(ctx context.Context, kind string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.FromContext(ctx).Warn("realtime listener panicked", "listener", kind, "panic", rec)
		}
	}()
	fn()
}

// registry holds listeners keyed by a subscription id.
type registry[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

func (r *registry[T]) add(item T) func() {
	id := uuid.NewString()
	r.mu.Lock()
	if r.items == nil {
		r.items = make(map[string]T)
	}
	r.items[id] = item
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.items, id)
		r.mu.Unlock()
	}
}

func (r *registry[T]) snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, item)
	}
	return out
}

func (r *registry[T]) clear() {
	r.mu.Lock()
	r.items = nil
	r.mu.Unlock()
}
