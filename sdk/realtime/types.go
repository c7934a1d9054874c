package realtime

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/tidwall/gjson"
)

// SourceStream selects the CloudEvents stream endpoint.
const SourceStream = "stream"

const (
	frameHeartbeat = "heartbeat"
	ackPath        = "/api/v1/events/ack"
	tokenPath      = "/v4/oauth2/token"
)

// ErrReconnectsExhausted is reported to error listeners when the client gave up
// reconnecting. The client stays closed until Connect is called again.
var ErrReconnectsExhausted = errors.New("realtime reconnect attempts exhausted")

// Config configures the socket endpoints and liveness checks.
type Config struct {
	URL       string
	StreamURL string
	AckURL    string
	// Source is empty or SourceStream.
	Source            string
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	ReconnectDelay    time.Duration
	// MaxReconnects caps consecutive reconnect attempts; zero means unlimited.
	MaxReconnects int
	DialTimeout   time.Duration
}

// DefaultConfig returns the production endpoints.
func DefaultConfig() Config {
	return Config{
		URL:               "wss://realtime.kadoa.com",
		StreamURL:         "wss://events.kadoa.com/events/ws",
		AckURL:            "https://realtime.kadoa.com",
		HeartbeatInterval: 10 * time.Second,
		HeartbeatTimeout:  30 * time.Second,
		ReconnectDelay:    5 * time.Second,
		DialTimeout:       10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.URL == "" {
		c.URL = def.URL
	}
	if c.StreamURL == "" {
		c.StreamURL = def.StreamURL
	}
	if c.AckURL == "" {
		c.AckURL = def.AckURL
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = def.HeartbeatInterval
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = def.HeartbeatTimeout
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = def.ReconnectDelay
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = def.DialTimeout
	}
	return c
}

// Message is one non-heartbeat frame received from the socket.
type Message struct {
	ID   string
	Type string
	Raw  json.RawMessage
}

// Get reads a field of the frame by gjson path.
func (m Message) Get(path string) gjson.Result {
	return gjson.GetBytes(m.Raw, path)
}

// EventListener receives delivered frames.
type EventListener func(msg Message)

// ConnectionListener observes connection state changes. reason is empty on connect.
type ConnectionListener func(connected bool, reason string)

// ErrorListener receives failures that did not stop the client.
type ErrorListener func(err error)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TeamID      string `json:"team_id"`
}

type subscribeFrame struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
	Source  string `json:"source,omitempty"`
}

type ackRequest struct {
	ID string `json:"id"`
}
