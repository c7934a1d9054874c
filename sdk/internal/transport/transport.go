// Package transport performs the HTTP exchanges with the Kadoa API and turns
// every failure into a *sdkerrors.TransportError.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/kadoa-org/kadoa-sdk-go/pkg/logger"
	"github.com/kadoa-org/kadoa-sdk-go/pkg/monitoring"
	"github.com/kadoa-org/kadoa-sdk-go/pkg/version"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/sdkerrors"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	headerAPIKey     = "x-api-key"
	headerSDKVersion = "x-sdk-version"
	headerRequestID  = "x-request-id"
	tracerName       = "github.com/kadoa-org/kadoa-sdk-go/transport"
)

// Config configures a Client.
type Config struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	RetryCount   int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
	// RateLimit is the sustained number of requests per second; zero disables limiting.
	RateLimit  float64
	RateBurst  int
	HTTPClient *http.Client
	Metrics    *monitoring.SDKMetrics
	Tracer     trace.TracerProvider
	// Logger is used for requests whose context carries no logger.
	Logger logger.Logger
	Debug  bool
}

// Client sends requests to the Kadoa API.
// It holds two resty clients over the same connection pool: one retrying
// transient failures and one that performs exactly one round trip.
type Client struct {
	retrying *resty.Client
	single   *resty.Client
	limiter  *rate.Limiter
	baseURL  string
	apiKey   string
	metrics  *monitoring.SDKMetrics
	tracer   trace.Tracer
	log      logger.Logger
}

// New creates a Client from cfg.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	tp := cfg.Tracer
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	c := &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		metrics: cfg.Metrics,
		tracer:  tp.Tracer(tracerName),
		log:     cfg.Logger,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	c.single = c.buildRestyClient(httpClient, cfg)
	c.retrying = c.buildRestyClient(httpClient, cfg)
	if cfg.RetryCount > 0 {
		c.retrying.
			SetRetryCount(cfg.RetryCount).
			SetRetryWaitTime(cfg.RetryWait).
			SetRetryMaxWaitTime(cfg.RetryMaxWait).
			AddRetryCondition(retryCondition)
	}
	return c, nil
}

func (c *Client) buildRestyClient(httpClient *http.Client, cfg Config) *resty.Client {
	client := resty.NewWithClient(httpClient).
		SetBaseURL(c.baseURL).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", version.UserAgent()).
		SetHeader(headerSDKVersion, version.Version)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	if cfg.APIKey != "" {
		client.SetHeader(headerAPIKey, cfg.APIKey)
	}
	client.OnBeforeRequest(c.beforeRequest)
	if cfg.Debug {
		client.SetDebug(true)
	}
	return client
}

// beforeRequest stamps a request id and waits for the rate limiter.
func (c *Client) beforeRequest(_ *resty.Client, req *resty.Request) error {
	if req.Header.Get(headerRequestID) == "" {
		req.SetHeader(headerRequestID, uuid.NewString())
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}
	return nil
}

// retryCondition determines if a request should be retried.
func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}

// BaseURL returns the API base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIKey returns the configured API key.
func (c *Client) APIKey() string {
	return c.apiKey
}

// Option customizes a single request.
type Option func(*request)

type request struct {
	query   url.Values
	body    any
	headers map[string]string
	noRetry bool
}

// WithQuery adds query parameters.
func WithQuery(values url.Values) Option {
	return func(r *request) {
		for k, vs := range values {
			for _, v := range vs {
				r.query.Add(k, v)
			}
		}
	}
}

// WithParam adds one query parameter when value is non-empty.
func WithParam(key, value string) Option {
	return func(r *request) {
		if value != "" {
			r.query.Set(key, value)
		}
	}
}

// WithBody sets the JSON request body.
func WithBody(body any) Option {
	return func(r *request) {
		r.body = body
	}
}

// WithHeader sets a request header.
func WithHeader(key, value string) Option {
	return func(r *request) {
		r.headers[key] = value
	}
}

// NoRetry sends the request exactly once regardless of the retry policy.
func NoRetry() Option {
	return func(r *request) {
		r.noRetry = true
	}
}

// Do sends a request and decodes a successful JSON response into T.
// path is relative to the base URL unless it is an absolute URL.
func Do[T any](ctx context.Context, c *Client, method, path string, opts ...Option) (T, error) {
	var out T
	body, err := c.exchange(ctx, method, path, opts...)
	if err != nil {
		return out, err
	}
	if len(body) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, sdkerrors.Wrap(sdkerrors.CodeInternal, fmt.Sprintf("decode %s %s response", method, path), err)
	}
	return out, nil
}

// Exec sends a request and discards the response body.
func (c *Client) Exec(ctx context.Context, method, path string, opts ...Option) error {
	_, err := c.exchange(ctx, method, path, opts...)
	return err
}

func (c *Client) exchange(ctx context.Context, method, path string, opts ...Option) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("transport is not initialized")
	}
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}
	r := &request{query: url.Values{}, headers: map[string]string{}}
	for _, opt := range opts {
		opt(r)
	}
	ctx, span := c.tracer.Start(ctx, "kadoa "+method, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		))
	defer span.End()

	client := c.retrying
	if r.noRetry {
		client = c.single
	}
	req := client.R().SetContext(ctx).SetQueryParamsFromValues(r.query).SetHeaders(r.headers)
	if r.body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(r.body)
	}
	log := logger.FromContextOr(ctx, c.log)
	started := time.Now()
	resp, err := req.Execute(method, path)
	elapsed := time.Since(started)
	if err != nil {
		c.metrics.RecordRequest(ctx, method, 0, elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Debug("API request failed", "method", method, "path", path, "error", err)
		return nil, sdkerrors.NewNetworkError(method, path, err)
	}
	status := resp.StatusCode()
	c.metrics.RecordRequest(ctx, method, status, elapsed)
	span.SetAttributes(attribute.Int("http.response.status_code", status))
	if resp.IsError() || status < 200 || status >= 300 {
		body := resp.String()
		terr := sdkerrors.NewHTTPError(method, path, status, requestID(resp), body, errorMessage(body))
		span.SetStatus(codes.Error, terr.Error())
		log.Debug("API request rejected", "method", method, "path", path, "status", status)
		return nil, terr
	}
	log.Debug("API request completed", "method", method, "path", path, "status", status, "elapsed", elapsed)
	return resp.Body(), nil
}

func requestID(resp *resty.Response) string {
	for _, name := range []string{headerRequestID, "x-amzn-requestid"} {
		if v := resp.Header().Get(name); v != "" {
			return v
		}
	}
	if resp.Request != nil {
		return resp.Request.Header.Get(headerRequestID)
	}
	return ""
}

// errorMessage extracts a human readable message from an error body.
func errorMessage(body string) string {
	if !gjson.Valid(body) {
		return ""
	}
	for _, path := range []string{"message", "error.message", "error", "detail"} {
		if v := gjson.Get(body, path); v.Exists() && v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
